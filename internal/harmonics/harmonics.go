// Package harmonics extracts harmonic spectra from sampled waveforms.
package harmonics

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/RMahshie/panda/pkg/panda"
)

var (
	ErrInvalidParams = errors.New("sample rate, fundamental frequency and max order must be positive")
	ErrAliasing      = errors.New("highest harmonic is at or above the Nyquist frequency")
	ErrTooShort      = errors.New("waveform is shorter than one fundamental period")
)

// relativeFloor sets components below this fraction of the strongest one to zero
const relativeFloor = 1e-10

// Analyze computes the harmonic spectrum of samples for orders 0 (DC) through maxOrder.
//
// The analysis window is the largest whole number of fundamental periods that fits
// into samples, so every harmonic falls on an FFT bin. Magnitudes are RMS values in
// the unit of the samples, phases are in degrees relative to a cosine starting at
// the first sample.
func Analyze(samples []float64, sampleRate, fundamental float64, maxOrder int) (panda.Spectrum, error) {
	if sampleRate <= 0 || fundamental <= 0 || maxOrder < 1 {
		return nil, ErrInvalidParams
	}
	if float64(maxOrder)*fundamental >= sampleRate/2 {
		return nil, fmt.Errorf("%w: order %d at %g Hz with %g samples/s", ErrAliasing, maxOrder, fundamental, sampleRate)
	}

	period := sampleRate / fundamental
	cycles := int(float64(len(samples)) / period)
	if cycles < 1 {
		return nil, fmt.Errorf("%w: %d samples, period is %g samples", ErrTooShort, len(samples), period)
	}

	n := min(int(math.Round(float64(cycles)*period)), len(samples))
	spectrum := fft.FFTReal(samples[:n])

	out := make(panda.Spectrum, 0, maxOrder+1)
	var peak float64
	for k := 0; k <= maxOrder; k++ {
		bin := k * cycles
		if bin > n/2 {
			break
		}

		x := spectrum[bin]
		mag := cmplx.Abs(x) / float64(n)
		if k > 0 {
			mag *= math.Sqrt2
		}
		peak = math.Max(peak, mag)

		out = append(out, panda.Harmonic{
			Order:     float64(k),
			Magnitude: mag,
			Phase:     cmplx.Phase(x) * 180 / math.Pi,
		})
	}

	for i := range out {
		if out[i].Magnitude <= peak*relativeFloor {
			out[i].Magnitude = 0
			out[i].Phase = 0
		}
	}
	return out, nil
}

// Deinterleave splits interleaved multi-channel samples into one slice per channel.
// A trailing partial frame is dropped.
func Deinterleave(samples []float64, channels int) [][]float64 {
	if channels < 1 {
		return nil
	}
	frames := len(samples) / channels
	out := make([][]float64, channels)
	for c := range out {
		out[c] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			out[c][i] = samples[i*channels+c]
		}
	}
	return out
}

// Scale multiplies every sample by factor in place and returns the slice
func Scale(samples []float64, factor float64) []float64 {
	for i := range samples {
		samples[i] *= factor
	}
	return samples
}
