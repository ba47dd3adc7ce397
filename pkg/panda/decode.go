package panda

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// maxLineSize bounds a single line; waveform lines hold every sample of a channel
const maxLineSize = 64 << 20

type sections map[string]map[string]string

func (s sections) has(section string) bool {
	_, ok := s[section]
	return ok
}

func (s sections) get(section, key string) (string, error) {
	fields, ok := s[section]
	if !ok {
		return "", fmt.Errorf("%w: section [%s]", ErrMissingField, section)
	}
	v, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("%w: %s in section [%s]", ErrMissingField, key, section)
	}
	return v, nil
}

// Decode reads a PANDA text file and validates it
func Decode(r io.Reader) (*File, error) {
	data, err := scan(r)
	if err != nil {
		return nil, err
	}

	p := parser{data: data}
	f := &File{}

	f.UserDetail.LabID = p.str(sectionUserDetail, "Lab_ID")
	f.UserDetail.UserID = p.str(sectionUserDetail, "User_ID")

	f.EUT.Category = Category(p.integer(sectionEUT, "Category"))
	f.EUT.SubCategory = p.integer(sectionEUT, "Sub_Category")
	f.EUT.UniqueID = p.str(sectionEUT, "Unique_ID")
	f.EUT.Manufacturer = p.str(sectionEUT, "Manufacturer")
	f.EUT.ProductCode = p.str(sectionEUT, "Product_code")
	f.EUT.SellCountry = p.str(sectionEUT, "Sell_Country")
	f.EUT.SellYear = p.str(sectionEUT, "Sell_Year")
	if rated := p.str(sectionEUT, "Rated_Power"); !strings.EqualFold(rated, "NA") && p.err == nil {
		v := p.parseFloat("Rated_Power", rated)
		f.EUT.RatedPower = &v
	}
	f.EUT.NominalFrequency = p.float(sectionEUT, "Nominal_Frequency")
	f.EUT.NominalVoltage = p.float(sectionEUT, "Nominal_Voltage")
	f.EUT.SupplySource = SupplySource(p.integer(sectionEUT, "Supply_Source"))
	f.EUT.Description = p.str(sectionEUT, "Description")

	f.Harmonics.Current = p.spectrum(sectionHarmonics, "Current_Harmonics")
	f.Harmonics.Voltage = p.spectrum(sectionHarmonics, "Voltage_Harmonics")

	if data.has(sectionWaveforms) {
		f.Waveforms = &Waveforms{
			SamplingRate: p.integer(sectionWaveforms, "Sampling_Rate"),
			Current:      p.floats(sectionWaveforms, "Current_Data"),
			Voltage:      p.floats(sectionWaveforms, "Voltage_Data"),
		}
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// ReadFile decodes the PANDA file at path
func ReadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PANDA file: %w", err)
	}
	defer fh.Close()

	return Decode(fh)
}

// scan splits the input into sections of "Key = value;" pairs after checking the version header
func scan(r io.Reader) (sections, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	data := sections{}
	current := ""
	lineNo := 0
	headerSeen := false

	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		if !headerSeen {
			line = strings.TrimPrefix(line, "\ufeff")
			if line != Version {
				return nil, fmt.Errorf("%w: header %q, want %q", ErrUnsupportedVersion, line, Version)
			}
			headerSeen = true
			continue
		}

		key, value, isField := strings.Cut(line, "=")
		switch {
		case !isField && strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
			current = strings.TrimSpace(line[1 : len(line)-1])
			if _, ok := data[current]; !ok {
				data[current] = map[string]string{}
			}
		case isField:
			if current == "" {
				return nil, fmt.Errorf("%w: line %d: field outside of a section", ErrMalformedFile, lineNo)
			}
			value, _, _ = strings.Cut(value, ";")
			data[current][strings.TrimSpace(key)] = strings.TrimSpace(value)
		default:
			return nil, fmt.Errorf("%w: line %d: unexpected %q", ErrMalformedFile, lineNo, truncate(line, 40))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read PANDA file: %w", err)
	}
	if !headerSeen {
		return nil, fmt.Errorf("%w: empty file", ErrUnsupportedVersion)
	}
	return data, nil
}

// parser converts raw values and keeps the first error
type parser struct {
	data sections
	err  error
}

func (p *parser) str(section, key string) string {
	if p.err != nil {
		return ""
	}
	v, err := p.data.get(section, key)
	if err != nil {
		p.err = err
	}
	return v
}

func (p *parser) integer(section, key string) int {
	raw := p.str(section, key)
	if p.err != nil {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.err = &ValidationError{Field: key, Reason: fmt.Sprintf("%q is not an integer", raw), Err: ErrMalformedFile}
	}
	return v
}

func (p *parser) float(section, key string) float64 {
	raw := p.str(section, key)
	if p.err != nil {
		return 0
	}
	return p.parseFloat(key, raw)
}

func (p *parser) parseFloat(key, raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.err = &ValidationError{Field: key, Reason: fmt.Sprintf("%q is not a number", raw), Err: ErrMalformedFile}
	}
	return v
}

func (p *parser) floats(section, key string) []float64 {
	raw := p.str(section, key)
	if p.err != nil || raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]float64, len(parts))
	for i, part := range parts {
		out[i] = p.parseFloat(key, strings.TrimSpace(part))
		if p.err != nil {
			return nil
		}
	}
	return out
}

func (p *parser) spectrum(section, key string) Spectrum {
	raw := p.str(section, key)
	if p.err != nil {
		return nil
	}
	s, err := ParseSpectrum(raw)
	if err != nil {
		p.err = &ValidationError{Field: key, Reason: err.Error(), Err: err}
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
