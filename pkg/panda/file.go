package panda

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Version is the only PANDA text format revision this package reads and writes
const Version = "TUDHDB_TXT_v01"

// allowedChars is the PANDA character set for free-text fields. ';' is excluded because it terminates a value.
const allowedChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789 +-._:|<>?!$%&=()[]{}\\/@*‘"

// Field length limits in characters
const (
	maxLabID        = 4
	maxUserID       = 4
	maxSubCategory  = 2
	maxUniqueID     = 24
	maxManufacturer = 64
	maxProductCode  = 64
	maxSellCountry  = 2
	maxSellYear     = 4
	maxDescription  = 500
)

// UserDetail identifies the laboratory and the user who measured the EUT
type UserDetail struct {
	LabID  string
	UserID string
}

// EUT describes the equipment under test
type EUT struct {
	Category         Category
	SubCategory      int
	UniqueID         string
	Manufacturer     string
	ProductCode      string
	SellCountry      string
	SellYear         string
	RatedPower       *float64 // nil is written as NA
	NominalFrequency float64
	NominalVoltage   float64
	SupplySource     SupplySource
	Description      string
}

// Harmonics holds the measured current and voltage spectra
type Harmonics struct {
	Current Spectrum
	Voltage Spectrum
}

// Waveforms holds raw sampled waveforms, required for HF phenomena
type Waveforms struct {
	SamplingRate int
	Current      []float64
	Voltage      []float64
}

// File is the in-memory representation of a PANDA database file
type File struct {
	UserDetail UserDetail
	EUT        EUT
	Harmonics  Harmonics
	Waveforms  *Waveforms
}

// New builds a File and validates it
func New(user UserDetail, eut EUT, harmonics Harmonics, waveforms *Waveforms) (*File, error) {
	f := &File{
		UserDetail: user,
		EUT:        eut,
		Harmonics:  harmonics,
		Waveforms:  waveforms,
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks every field against the PANDA format rules
func (f *File) Validate() error {
	if err := f.UserDetail.Validate(); err != nil {
		return err
	}
	if err := f.EUT.Validate(); err != nil {
		return err
	}
	if err := validateSpectrum("Current_Harmonics", f.Harmonics.Current); err != nil {
		return err
	}
	if err := validateSpectrum("Voltage_Harmonics", f.Harmonics.Voltage); err != nil {
		return err
	}
	if f.Waveforms != nil {
		return f.Waveforms.validate()
	}
	return nil
}

// SubCategoryID returns the typed subcategory of the EUT
func (e EUT) SubCategoryID() SubCategory {
	return SubCategory{Category: e.Category, Index: e.SubCategory}
}

// Validate checks the Lab_ID and User_ID fields
func (u UserDetail) Validate() error {
	if err := checkText("Lab_ID", u.LabID, maxLabID, true); err != nil {
		return err
	}
	return checkText("User_ID", u.UserID, maxUserID, true)
}

// Validate checks every [EUT] field
func (e EUT) Validate() error {
	if !e.Category.Valid() {
		return invalid("Category", "unknown category %d", int(e.Category))
	}
	if err := checkText("Sub_Category", strconv.Itoa(e.SubCategory), maxSubCategory, true); err != nil {
		return err
	}
	if !e.SubCategoryID().Valid() {
		return invalid("Sub_Category", "subcategory %d does not exist in category %d", e.SubCategory, int(e.Category))
	}

	texts := []struct {
		field  string
		value  string
		max    int
		digits bool
	}{
		{"Unique_ID", e.UniqueID, maxUniqueID, false},
		{"Manufacturer", e.Manufacturer, maxManufacturer, false},
		{"Product_code", e.ProductCode, maxProductCode, false},
		{"Sell_Country", e.SellCountry, maxSellCountry, false},
		{"Sell_Year", e.SellYear, maxSellYear, true},
		{"Description", e.Description, maxDescription, false},
	}
	for _, t := range texts {
		if err := checkText(t.field, t.value, t.max, t.digits); err != nil {
			return err
		}
	}
	if !isCountryCode(e.SellCountry) {
		return invalid("Sell_Country", "%q is not a two-letter country code", e.SellCountry)
	}

	if e.RatedPower != nil && (!isFinite(*e.RatedPower) || *e.RatedPower < 0) {
		return invalid("Rated_Power", "must be a non-negative number or NA")
	}
	if !isFinite(e.NominalFrequency) || e.NominalFrequency <= 0 {
		return invalid("Nominal_Frequency", "must be positive")
	}
	if !isFinite(e.NominalVoltage) || e.NominalVoltage <= 0 {
		return invalid("Nominal_Voltage", "must be positive")
	}
	if !e.SupplySource.Valid() {
		return invalid("Supply_Source", "unknown supply source %d", int(e.SupplySource))
	}
	return nil
}

func (w *Waveforms) validate() error {
	if w.SamplingRate <= 0 {
		return invalid("Sampling_Rate", "must be positive")
	}
	if len(w.Current) == 0 || len(w.Voltage) == 0 {
		return invalid("Current_Data", "waveforms must not be empty")
	}
	if len(w.Current) != len(w.Voltage) {
		return invalid("Voltage_Data", "has %d samples, current has %d", len(w.Voltage), len(w.Current))
	}
	for i := range w.Current {
		if !isFinite(w.Current[i]) {
			return invalid("Current_Data", "sample %d is not finite", i)
		}
		if !isFinite(w.Voltage[i]) {
			return invalid("Voltage_Data", "sample %d is not finite", i)
		}
	}
	return nil
}

func validateSpectrum(field string, s Spectrum) error {
	if err := s.Validate(); err != nil {
		return &ValidationError{Field: field, Reason: err.Error(), Err: err}
	}
	if len(s.NonZero()) == 0 {
		return &ValidationError{Field: field, Reason: ErrEmptySpectrum.Error(), Err: ErrEmptySpectrum}
	}
	return nil
}

// checkText enforces the digits-only rule, the character set and the length limit, in that order.
// Surrounding spaces are rejected because the reader trims values.
func checkText(field, value string, maxLen int, digitsOnly bool) error {
	if digitsOnly && !isDigits(value) {
		return invalid(field, "must contain only digits")
	}
	if i := strings.IndexFunc(value, func(r rune) bool { return !strings.ContainsRune(allowedChars, r) }); i >= 0 {
		r, _ := utf8.DecodeRuneInString(value[i:])
		return invalid(field, "disallowed character %q", r)
	}
	if value != strings.TrimSpace(value) {
		return invalid(field, "must not start or end with spaces")
	}
	if n := utf8.RuneCountInString(value); n > maxLen {
		return invalid(field, "exceeds maximum length of %d characters (got %d)", maxLen, n)
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isCountryCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}

// RatedPowerString renders the rated power the way it appears in the file
func (e EUT) RatedPowerString() string {
	if e.RatedPower == nil {
		return "NA"
	}
	return formatFloat(*e.RatedPower)
}

func (e EUT) String() string {
	return fmt.Sprintf("%s %s (%s)", e.Manufacturer, e.ProductCode, e.UniqueID)
}
