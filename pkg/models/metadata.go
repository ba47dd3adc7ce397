package models

import "github.com/RMahshie/panda/pkg/panda"

// EquipmentMetadata holds the user and EUT fields of a PANDA file
type EquipmentMetadata struct {
	LabID            string   `json:"lab_id" yaml:"lab_id" minLength:"1" maxLength:"4" doc:"Laboratory identification number (digits)"`
	UserID           string   `json:"user_id" yaml:"user_id" minLength:"1" maxLength:"4" doc:"User identification number (digits)"`
	Category         int      `json:"category" yaml:"category" minimum:"1" maximum:"6" doc:"Equipment category"`
	SubCategory      int      `json:"sub_category" yaml:"sub_category" minimum:"1" maximum:"10" doc:"Equipment subcategory within the category"`
	UniqueID         string   `json:"unique_id" yaml:"unique_id" maxLength:"24" doc:"Unique identification of the EUT"`
	Manufacturer     string   `json:"manufacturer" yaml:"manufacturer" maxLength:"64" doc:"Name of the manufacturer"`
	ProductCode      string   `json:"product_code" yaml:"product_code" maxLength:"64" doc:"Code identifying the EUT model"`
	SellCountry      string   `json:"sell_country" yaml:"sell_country" minLength:"2" maxLength:"2" doc:"Two-letter code of the country where the EUT was bought"`
	SellYear         string   `json:"sell_year" yaml:"sell_year" maxLength:"4" doc:"Year the EUT was bought"`
	RatedPower       *float64 `json:"rated_power,omitempty" yaml:"rated_power" doc:"Rated power in W or VA, omitted when not available"`
	NominalFrequency float64  `json:"nominal_frequency" yaml:"nominal_frequency" exclusiveMinimum:"0" doc:"Nominal frequency in Hz"`
	NominalVoltage   float64  `json:"nominal_voltage" yaml:"nominal_voltage" exclusiveMinimum:"0" doc:"Nominal voltage in V"`
	SupplySource     int      `json:"supply_source" yaml:"supply_source" minimum:"1" maximum:"5" doc:"Type of source used for the measurement"`
	Description      string   `json:"description" yaml:"description" maxLength:"500" doc:"Description of the EUT"`
}

// UserDetail returns the [User Detail] section
func (m EquipmentMetadata) UserDetail() panda.UserDetail {
	return panda.UserDetail{LabID: m.LabID, UserID: m.UserID}
}

// EUT returns the [EUT] section
func (m EquipmentMetadata) EUT() panda.EUT {
	return panda.EUT{
		Category:         panda.Category(m.Category),
		SubCategory:      m.SubCategory,
		UniqueID:         m.UniqueID,
		Manufacturer:     m.Manufacturer,
		ProductCode:      m.ProductCode,
		SellCountry:      m.SellCountry,
		SellYear:         m.SellYear,
		RatedPower:       m.RatedPower,
		NominalFrequency: m.NominalFrequency,
		NominalVoltage:   m.NominalVoltage,
		SupplySource:     panda.SupplySource(m.SupplySource),
		Description:      m.Description,
	}
}

// MetadataFromFile extracts the metadata of a decoded PANDA file
func MetadataFromFile(f *panda.File) EquipmentMetadata {
	return EquipmentMetadata{
		LabID:            f.UserDetail.LabID,
		UserID:           f.UserDetail.UserID,
		Category:         int(f.EUT.Category),
		SubCategory:      f.EUT.SubCategory,
		UniqueID:         f.EUT.UniqueID,
		Manufacturer:     f.EUT.Manufacturer,
		ProductCode:      f.EUT.ProductCode,
		SellCountry:      f.EUT.SellCountry,
		SellYear:         f.EUT.SellYear,
		RatedPower:       f.EUT.RatedPower,
		NominalFrequency: f.EUT.NominalFrequency,
		NominalVoltage:   f.EUT.NominalVoltage,
		SupplySource:     int(f.EUT.SupplySource),
		Description:      f.EUT.Description,
	}
}
