package panda

import "fmt"

// Category is the equipment category of an EUT
type Category int

const (
	CategoryLighting Category = iota + 1
	CategoryComputerAndCommunication
	CategoryEntertainment
	CategoryOtherAppliances
	CategoryGeneration
	CategoryElectricVehicles
)

var categoryNames = map[Category]string{
	CategoryLighting:                 "Lighting",
	CategoryComputerAndCommunication: "Computer and communication",
	CategoryEntertainment:            "Entertainment",
	CategoryOtherAppliances:          "Other appliances",
	CategoryGeneration:               "Generation",
	CategoryElectricVehicles:         "Electric vehicles",
}

// subCategoryNames lists the subcategories of every category in index order (index = position + 1)
var subCategoryNames = map[Category][]string{
	CategoryLighting: {
		"Incandescent filament lamp",
		"Compact fluorescent lamp",
		"Fluorescent lamp (electronic ballast)",
		"Fluorescent lamp (non-electronic ballast)",
		"Integrated solid state lamp",
		"Non-integrated solid state lamp",
		"Other lighting",
	},
	CategoryComputerAndCommunication: {
		"Desktop",
		"Laptop",
		"Mobile device",
		"Monitor",
		"Printer, scanner, multifunctional",
		"Network equipment",
		"Storage",
		"Permanently connected phones",
		"Other (charging)",
		"Other (non-charging)",
	},
	CategoryEntertainment: {
		"CRT television set",
		"Flat panel television set",
		"Projectors",
		"Audio, video, photo (charging)",
		"Audio, video, photo (non-charging)",
		"Game console (charging)",
		"Game console (non-charging)",
		"Other (charging)",
		"Other (non-charging)",
	},
	CategoryOtherAppliances: {
		"Kitchen",
		"Laundry",
		"Bathroom",
		"Office",
		"Tools and garden",
		"Battery chargers",
		"Other",
	},
	CategoryGeneration: {
		"Photovoltaic system",
		"Micro CHP",
		"Small wind electric system",
		"Other generation",
	},
	CategoryElectricVehicles: {
		"Electric car",
		"Electric bike",
		"Electric motorcycle and scooters",
		"Charging station with integrated rectifier",
		"Other electric vehicles",
	},
}

// Categories returns all categories in ascending order
func Categories() []Category {
	return []Category{
		CategoryLighting,
		CategoryComputerAndCommunication,
		CategoryEntertainment,
		CategoryOtherAppliances,
		CategoryGeneration,
		CategoryElectricVehicles,
	}
}

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// SubCategories returns the subcategories belonging to c
func (c Category) SubCategories() []SubCategory {
	names := subCategoryNames[c]
	subs := make([]SubCategory, 0, len(names))
	for i := range names {
		subs = append(subs, SubCategory{Category: c, Index: i + 1})
	}
	return subs
}

// SubCategory identifies a subcategory by its parent category and 1-based index
type SubCategory struct {
	Category Category
	Index    int
}

// Valid reports whether the index exists within the parent category
func (s SubCategory) Valid() bool {
	names, ok := subCategoryNames[s.Category]
	return ok && s.Index >= 1 && s.Index <= len(names)
}

func (s SubCategory) String() string {
	if !s.Valid() {
		return fmt.Sprintf("SubCategory(%d,%d)", int(s.Category), s.Index)
	}
	return subCategoryNames[s.Category][s.Index-1]
}

// SupplySource is the type of source used to supply the EUT during measurement.
//
// LF phenomena cover all frequencies below the 40th harmonic, where spectrum
// information is available. HF phenomena cover frequencies above the 40th
// harmonic and require raw waveform data.
type SupplySource int

const (
	SupplyGridVoltage SupplySource = iota + 1
	SupplyGeneratorSinusoidal
	SupplyGeneratorNonSinusoidalLF
	SupplyGeneratorNonSinusoidalHF
	SupplyGeneratorNonSinusoidalLFHF
)

var supplySourceNames = map[SupplySource]string{
	SupplyGridVoltage:                "Grid voltage",
	SupplyGeneratorSinusoidal:        "Programmable generator, sinusoidal",
	SupplyGeneratorNonSinusoidalLF:   "Programmable generator, non-sinusoidal (LF harmonics)",
	SupplyGeneratorNonSinusoidalHF:   "Programmable generator, non-sinusoidal (HF harmonics)",
	SupplyGeneratorNonSinusoidalLFHF: "Programmable generator, non-sinusoidal (LF and HF harmonics)",
}

// SupplySources returns all supply sources in ascending order
func SupplySources() []SupplySource {
	return []SupplySource{
		SupplyGridVoltage,
		SupplyGeneratorSinusoidal,
		SupplyGeneratorNonSinusoidalLF,
		SupplyGeneratorNonSinusoidalHF,
		SupplyGeneratorNonSinusoidalLFHF,
	}
}

// Valid reports whether s is a known supply source
func (s SupplySource) Valid() bool {
	_, ok := supplySourceNames[s]
	return ok
}

func (s SupplySource) String() string {
	if name, ok := supplySourceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SupplySource(%d)", int(s))
}
