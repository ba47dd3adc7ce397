package panda

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Section names
const (
	sectionUserDetail = "User Detail"
	sectionEUT        = "EUT"
	sectionHarmonics  = "Harmonics"
	sectionWaveforms  = "Waveforms"
)

// Encode validates the file and writes it in PANDA text format
func (f *File) Encode(w io.Writer) error {
	if err := f.Validate(); err != nil {
		return err
	}

	current, err := FormatSpectrum(f.Harmonics.Current)
	if err != nil {
		return err
	}
	voltage, err := FormatSpectrum(f.Harmonics.Voltage)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	ew := &errWriter{w: bw}

	ew.line(Version)
	ew.section(sectionUserDetail)
	ew.field("Lab_ID", f.UserDetail.LabID)
	ew.field("User_ID", f.UserDetail.UserID)

	ew.section(sectionEUT)
	ew.field("Category", strconv.Itoa(int(f.EUT.Category)))
	ew.field("Sub_Category", strconv.Itoa(f.EUT.SubCategory))
	ew.field("Unique_ID", f.EUT.UniqueID)
	ew.field("Manufacturer", f.EUT.Manufacturer)
	ew.field("Product_code", f.EUT.ProductCode)
	ew.field("Sell_Country", f.EUT.SellCountry)
	ew.field("Sell_Year", f.EUT.SellYear)
	ew.field("Rated_Power", f.EUT.RatedPowerString())
	ew.field("Nominal_Frequency", formatFloat(f.EUT.NominalFrequency))
	ew.field("Nominal_Voltage", formatFloat(f.EUT.NominalVoltage))
	ew.field("Supply_Source", strconv.Itoa(int(f.EUT.SupplySource)))
	ew.field("Description", f.EUT.Description)

	ew.section(sectionHarmonics)
	ew.field("Current_Harmonics", current)
	ew.field("Voltage_Harmonics", voltage)

	if f.Waveforms != nil {
		ew.section(sectionWaveforms)
		ew.field("Sampling_Rate", strconv.Itoa(f.Waveforms.SamplingRate))
		ew.field("Current_Data", joinFloats(f.Waveforms.Current))
		ew.field("Voltage_Data", joinFloats(f.Waveforms.Voltage))
	}

	if ew.err != nil {
		return fmt.Errorf("failed to write PANDA file: %w", ew.err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write PANDA file: %w", err)
	}
	return nil
}

// WriteFile encodes the file to path. The output is written to a temporary file
// in the same directory and renamed, so a failed write never leaves a partial file.
func (f *File) WriteFile(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := f.Encode(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write PANDA file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move PANDA file into place: %w", err)
	}
	return nil
}

// errWriter keeps the first write error so the encoder can write unconditionally
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) line(s string) {
	if e.err != nil {
		return
	}
	_, e.err = io.WriteString(e.w, s+"\n")
}

func (e *errWriter) section(name string) {
	e.line("[" + name + "]")
}

func (e *errWriter) field(key, value string) {
	e.line(key + " = " + value + ";")
}

func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatFloat(v)
	}
	return strings.Join(parts, ",")
}
