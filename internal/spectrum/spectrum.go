// Package spectrum reads measured harmonic spectra from the input formats the
// converter accepts.
//
// Tabular and document formats (CSV, JSON, YAML) carry spectra directly.
// Waveform formats (WAV, FLAC, AIFF) carry sampled current on channel 0 and voltage on
// channel 1, and the spectra are computed from them.
package spectrum

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/RMahshie/panda/pkg/models"
	"github.com/RMahshie/panda/pkg/panda"
)

var (
	ErrUnknownFormat  = errors.New("unknown input format")
	ErrMalformedInput = errors.New("malformed input")
)

// DefaultMaxOrder is the LF harmonic limit used when no max order is given
const DefaultMaxOrder = 40

// Measurement is what every reader produces
type Measurement struct {
	Current   panda.Spectrum
	Voltage   panda.Spectrum
	Waveforms *panda.Waveforms
}

// Options controls waveform analysis
type Options struct {
	NominalFrequency float64
	MaxOrder         int
	CurrentScale     float64
	VoltageScale     float64
	IncludeWaveforms bool
}

// NewOptions builds reader options from the nominal frequency and API options
func NewOptions(nominalFrequency float64, o models.ConversionOptions) Options {
	return Options{
		NominalFrequency: nominalFrequency,
		MaxOrder:         o.MaxOrder,
		CurrentScale:     o.CurrentScale,
		VoltageScale:     o.VoltageScale,
		IncludeWaveforms: o.IncludeWaveforms,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxOrder <= 0 {
		o.MaxOrder = DefaultMaxOrder
	}
	if o.CurrentScale == 0 {
		o.CurrentScale = 1
	}
	if o.VoltageScale == 0 {
		o.VoltageScale = 1
	}
	return o
}

// Reader turns an input stream into a Measurement
type Reader interface {
	Read(ctx context.Context, r io.Reader, opts Options) (*Measurement, error)
}

// ReaderFunc adapts a function to the Reader interface
type ReaderFunc func(ctx context.Context, r io.Reader, opts Options) (*Measurement, error)

func (f ReaderFunc) Read(ctx context.Context, r io.Reader, opts Options) (*Measurement, error) {
	return f(ctx, r, opts)
}

// Registry maps format keys (e.g. "csv", "wav") to readers
type Registry struct {
	readers map[string]Reader

	mtx *sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{
		readers: make(map[string]Reader),
		mtx:     &sync.Mutex{},
	}
}

// DefaultRegistry returns a registry with every built-in reader
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(models.FormatCSV, ReaderFunc(ReadCSV))
	r.Register(models.FormatJSON, ReaderFunc(ReadJSON))
	r.Register(models.FormatYAML, ReaderFunc(ReadYAML))
	r.Register(models.FormatWAV, ReaderFunc(ReadWAV))
	r.Register(models.FormatFLAC, ReaderFunc(ReadFLAC))
	r.Register(models.FormatAIFF, ReaderFunc(ReadAIFF))
	return r
}

func (r *Registry) Register(format string, reader Reader) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.readers[strings.ToLower(format)] = reader
}

func (r *Registry) Get(format string) (Reader, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	reader, ok := r.readers[strings.ToLower(format)]
	return reader, ok
}

// Formats returns the registered format keys in sorted order
func (r *Registry) Formats() []string {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	formats := make([]string, 0, len(r.readers))
	for f := range r.readers {
		formats = append(formats, f)
	}
	slices.Sort(formats)
	return formats
}

// Read looks up the reader for format and runs it
func (r *Registry) Read(ctx context.Context, format string, in io.Reader, opts Options) (*Measurement, error) {
	reader, ok := r.Get(format)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return reader.Read(ctx, in, opts.withDefaults())
}

var extensions = map[string]string{
	".csv":  models.FormatCSV,
	".json": models.FormatJSON,
	".yaml": models.FormatYAML,
	".yml":  models.FormatYAML,
	".wav":  models.FormatWAV,
	".wave": models.FormatWAV,
	".flac": models.FormatFLAC,
	".aif":  models.FormatAIFF,
	".aiff": models.FormatAIFF,
}

// FormatFromPath infers the input format from a file extension
func FormatFromPath(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	format, ok := extensions[ext]
	if !ok {
		return "", fmt.Errorf("%w: extension %q", ErrUnknownFormat, ext)
	}
	return format, nil
}

func sortByOrder(s panda.Spectrum) panda.Spectrum {
	slices.SortStableFunc(s, func(a, b panda.Harmonic) int {
		return cmp.Compare(a.Order, b.Order)
	})
	return s
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, fmt.Sprintf(format, args...))
}
