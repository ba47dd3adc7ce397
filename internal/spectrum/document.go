package spectrum

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/RMahshie/panda/pkg/panda"
)

// document is the JSON and YAML layout of a measurement
type document struct {
	Current   panda.Spectrum     `json:"current" yaml:"current"`
	Voltage   panda.Spectrum     `json:"voltage" yaml:"voltage"`
	Waveforms *waveformsDocument `json:"waveforms,omitempty" yaml:"waveforms,omitempty"`
}

type waveformsDocument struct {
	SamplingRate int       `json:"sampling_rate" yaml:"sampling_rate"`
	Current      []float64 `json:"current" yaml:"current"`
	Voltage      []float64 `json:"voltage" yaml:"voltage"`
}

// ReadJSON reads {"current": [{"order", "magnitude", "phase"}...], "voltage": [...]}
// with an optional "waveforms" object.
func ReadJSON(_ context.Context, r io.Reader, _ Options) (*Measurement, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, malformed("failed to decode JSON: %v", err)
	}
	return doc.measurement()
}

// ReadYAML reads the same layout as ReadJSON
func ReadYAML(_ context.Context, r io.Reader, _ Options) (*Measurement, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, malformed("empty YAML input")
		}
		return nil, malformed("failed to decode YAML: %v", err)
	}
	return doc.measurement()
}

func (d document) measurement() (*Measurement, error) {
	if len(d.Current) == 0 {
		return nil, malformed("no current harmonics")
	}
	if len(d.Voltage) == 0 {
		return nil, malformed("no voltage harmonics")
	}

	m := &Measurement{
		Current: sortByOrder(d.Current),
		Voltage: sortByOrder(d.Voltage),
	}
	if d.Waveforms != nil {
		m.Waveforms = &panda.Waveforms{
			SamplingRate: d.Waveforms.SamplingRate,
			Current:      d.Waveforms.Current,
			Voltage:      d.Waveforms.Voltage,
		}
	}
	return m, nil
}
