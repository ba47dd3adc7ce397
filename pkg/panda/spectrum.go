package panda

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// zeroTolerance matches numpy.isclose(m, 0) with its default absolute tolerance
const zeroTolerance = 1e-8

// Harmonic is one component of a harmonic spectrum
type Harmonic struct {
	Order     float64 `json:"order" yaml:"order" doc:"Harmonic order (1 = fundamental)"`
	Magnitude float64 `json:"magnitude" yaml:"magnitude" doc:"RMS magnitude in A or V"`
	Phase     float64 `json:"phase" yaml:"phase" doc:"Phase angle in degrees"`
}

// IsZero reports whether the magnitude is below the accuracy limit of the measurement
func (h Harmonic) IsZero() bool {
	return math.Abs(h.Magnitude) <= zeroTolerance
}

// Spectrum is a harmonic spectrum ordered by ascending harmonic order
type Spectrum []Harmonic

// SpectrumFromSlices zips parallel order, magnitude and phase slices into a Spectrum
func SpectrumFromSlices(orders, magnitudes, phases []float64) (Spectrum, error) {
	if len(orders) != len(magnitudes) || len(orders) != len(phases) {
		return nil, ErrSpectrumLength
	}
	s := make(Spectrum, len(orders))
	for i := range orders {
		s[i] = Harmonic{Order: orders[i], Magnitude: magnitudes[i], Phase: phases[i]}
	}
	return s, nil
}

// Validate checks that orders are non-negative and strictly increasing and all values are finite
func (s Spectrum) Validate() error {
	for i, h := range s {
		if !isFinite(h.Order) || h.Order < 0 {
			return fmt.Errorf("%w: order %v at position %d", ErrSpectrumOrder, h.Order, i)
		}
		if i > 0 && h.Order <= s[i-1].Order {
			return fmt.Errorf("%w: order %v follows %v", ErrSpectrumOrder, h.Order, s[i-1].Order)
		}
		if !isFinite(h.Magnitude) || h.Magnitude < 0 {
			return fmt.Errorf("%w: magnitude %v for order %v", ErrMalformedSpectrum, h.Magnitude, h.Order)
		}
		if !isFinite(h.Phase) {
			return fmt.Errorf("%w: phase %v for order %v", ErrMalformedSpectrum, h.Phase, h.Order)
		}
	}
	return nil
}

// NonZero returns the harmonics whose magnitude is above the accuracy limit
func (s Spectrum) NonZero() Spectrum {
	out := make(Spectrum, 0, len(s))
	for _, h := range s {
		if !h.IsZero() {
			out = append(out, h)
		}
	}
	return out
}

// Lookup returns the harmonic with the given order
func (s Spectrum) Lookup(order float64) (Harmonic, bool) {
	for _, h := range s {
		if h.Order == order {
			return h, true
		}
	}
	return Harmonic{}, false
}

// Orders, Magnitudes and Phases split the spectrum back into parallel slices
func (s Spectrum) Orders() []float64 {
	return s.column(func(h Harmonic) float64 { return h.Order })
}

func (s Spectrum) Magnitudes() []float64 {
	return s.column(func(h Harmonic) float64 { return h.Magnitude })
}

func (s Spectrum) Phases() []float64 {
	return s.column(func(h Harmonic) float64 { return h.Phase })
}

func (s Spectrum) column(f func(Harmonic) float64) []float64 {
	out := make([]float64, len(s))
	for i, h := range s {
		out[i] = f(h)
	}
	return out
}

// FormatSpectrum renders a spectrum as "order,magnitude,phase/..." dropping zero-magnitude pairs
func FormatSpectrum(s Spectrum) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}

	nonZero := s.NonZero()
	if len(nonZero) == 0 {
		return "", ErrEmptySpectrum
	}

	var b strings.Builder
	for i, h := range nonZero {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(formatFloat(h.Order))
		b.WriteByte(',')
		b.WriteString(formatFloat(h.Magnitude))
		b.WriteByte(',')
		b.WriteString(formatFloat(h.Phase))
	}
	return b.String(), nil
}

// ParseSpectrum parses a spectrum string written by FormatSpectrum. A single trailing slash is tolerated.
func ParseSpectrum(str string) (Spectrum, error) {
	str = strings.TrimSpace(str)
	str = strings.TrimSuffix(str, "/")
	if str == "" {
		return nil, ErrEmptySpectrum
	}

	entries := strings.Split(str, "/")
	s := make(Spectrum, 0, len(entries))
	for i, entry := range entries {
		parts := strings.Split(entry, ",")
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: entry %d %q needs order,magnitude,phase", ErrMalformedSpectrum, i, entry)
		}

		var values [3]float64
		for j, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: entry %d: %v", ErrMalformedSpectrum, i, err)
			}
			values[j] = v
		}
		s = append(s, Harmonic{Order: values[0], Magnitude: values[1], Phase: values[2]})
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
