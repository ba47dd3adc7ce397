// Package conversion turns measurement inputs into PANDA files.
package conversion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/RMahshie/panda/internal/spectrum"
	"github.com/RMahshie/panda/pkg/models"
	"github.com/RMahshie/panda/pkg/panda"
)

// Converter reads a measurement, validates it together with the equipment
// metadata and produces a PANDA file
type Converter struct {
	registry *spectrum.Registry
}

// NewConverter creates a converter. A nil registry uses spectrum.DefaultRegistry.
func NewConverter(registry *spectrum.Registry) *Converter {
	if registry == nil {
		registry = spectrum.DefaultRegistry()
	}
	return &Converter{registry: registry}
}

// Formats lists the input formats the converter accepts
func (c *Converter) Formats() []string {
	return c.registry.Formats()
}

// Convert reads in as format and builds a validated PANDA file. The nominal
// frequency of the metadata drives waveform analysis unless opts sets one.
func (c *Converter) Convert(ctx context.Context, in io.Reader, format string, meta models.EquipmentMetadata, opts spectrum.Options) (*panda.File, error) {
	if opts.NominalFrequency == 0 {
		opts.NominalFrequency = meta.NominalFrequency
	}

	m, err := c.registry.Read(ctx, format, in, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s input: %w", format, err)
	}

	f, err := panda.New(meta.UserDetail(), meta.EUT(), panda.Harmonics{
		Current: m.Current,
		Voltage: m.Voltage,
	}, m.Waveforms)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("format", format).
		Int("currentHarmonics", len(f.Harmonics.Current.NonZero())).
		Int("voltageHarmonics", len(f.Harmonics.Voltage.NonZero())).
		Bool("waveforms", f.Waveforms != nil).
		Msg("Converted measurement")

	return f, nil
}

// ConvertFile converts the file at inPath and writes the PANDA file to outPath.
// An empty format is inferred from the input extension. Nothing is written when
// the conversion fails.
func (c *Converter) ConvertFile(ctx context.Context, inPath, outPath, format string, meta models.EquipmentMetadata, opts spectrum.Options) (*panda.File, error) {
	if format == "" {
		var err error
		format, err = spectrum.FormatFromPath(inPath)
		if err != nil {
			return nil, err
		}
	}

	in, err := os.Open(inPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	f, err := c.Convert(ctx, in, format, meta, opts)
	if err != nil {
		return nil, err
	}

	if err := f.WriteFile(outPath); err != nil {
		return nil, err
	}

	log.Info().Str("input", inPath).Str("output", outPath).Str("format", format).Msg("Wrote PANDA file")
	return f, nil
}

// LoadMetadata reads equipment metadata from a YAML document
func LoadMetadata(path string) (models.EquipmentMetadata, error) {
	var meta models.EquipmentMetadata

	file, err := os.Open(path)
	if err != nil {
		return meta, fmt.Errorf("failed to open metadata: %w", err)
	}
	defer file.Close()

	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&meta); err != nil {
		if errors.Is(err, io.EOF) {
			return meta, fmt.Errorf("metadata file %s is empty", path)
		}
		return meta, fmt.Errorf("failed to parse metadata: %w", err)
	}

	return meta, nil
}
