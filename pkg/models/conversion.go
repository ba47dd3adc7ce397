package models

import (
	"time"

	"github.com/RMahshie/panda/pkg/panda"
)

// Conversion status values
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Input formats accepted for conversion
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatWAV  = "wav"
	FormatFLAC = "flac"
	FormatAIFF = "aiff"
)

// Conversion represents the core conversion entity (for internal use)
type Conversion struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"session_id"`
	InputFormat string            `json:"input_format"`
	Status      string            `json:"status"`
	Progress    int               `json:"progress"`
	InputS3Key  *string           `json:"input_s3_key,omitempty"`
	OutputS3Key *string           `json:"output_s3_key,omitempty"`
	ErrorMsg    *string           `json:"error_message,omitempty"`
	Metadata    EquipmentMetadata `json:"metadata"`
	Options     ConversionOptions `json:"options"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// ConversionOptions tunes how waveform inputs are analyzed
type ConversionOptions struct {
	MaxOrder         int     `json:"max_order,omitempty" yaml:"max_order" minimum:"1" maximum:"200" doc:"Highest harmonic order extracted from waveforms (default 40)"`
	CurrentScale     float64 `json:"current_scale,omitempty" yaml:"current_scale" doc:"Amperes per full-scale sample for waveform inputs (default 1)"`
	VoltageScale     float64 `json:"voltage_scale,omitempty" yaml:"voltage_scale" doc:"Volts per full-scale sample for waveform inputs (default 1)"`
	IncludeWaveforms bool    `json:"include_waveforms,omitempty" yaml:"include_waveforms" doc:"Store raw waveforms in the PANDA file"`
}

// ConversionResult represents the stored conversion results
type ConversionResult struct {
	ID               string          `json:"id"`
	ConversionID     string          `json:"conversion_id"`
	CurrentHarmonics []HarmonicPoint `json:"current_harmonics"`
	VoltageHarmonics []HarmonicPoint `json:"voltage_harmonics"`
	CurrentTHD       *float64        `json:"current_thd,omitempty"`
	VoltageTHD       *float64        `json:"voltage_thd,omitempty"`
	HasWaveforms     bool            `json:"has_waveforms"`
	CreatedAt        time.Time       `json:"created_at"`
}

// HarmonicPoint represents a single harmonic component
type HarmonicPoint struct {
	Order     float64 `json:"order" doc:"Harmonic order (1 = fundamental)"`
	Magnitude float64 `json:"magnitude" doc:"RMS magnitude in A or V"`
	Phase     float64 `json:"phase" doc:"Phase angle in degrees"`
}

// HarmonicPoints converts a spectrum into API points
func HarmonicPoints(s panda.Spectrum) []HarmonicPoint {
	points := make([]HarmonicPoint, len(s))
	for i, h := range s {
		points[i] = HarmonicPoint{Order: h.Order, Magnitude: h.Magnitude, Phase: h.Phase}
	}
	return points
}

// Spectrum converts API points back into a spectrum
func Spectrum(points []HarmonicPoint) panda.Spectrum {
	s := make(panda.Spectrum, len(points))
	for i, p := range points {
		s[i] = panda.Harmonic{Order: p.Order, Magnitude: p.Magnitude, Phase: p.Phase}
	}
	return s
}

// NewConversionResult summarizes a converted file
func NewConversionResult(id, conversionID string, f *panda.File, createdAt time.Time) *ConversionResult {
	result := &ConversionResult{
		ID:               id,
		ConversionID:     conversionID,
		CurrentHarmonics: HarmonicPoints(f.Harmonics.Current.NonZero()),
		VoltageHarmonics: HarmonicPoints(f.Harmonics.Voltage.NonZero()),
		HasWaveforms:     f.Waveforms != nil,
		CreatedAt:        createdAt,
	}
	if thd, ok := panda.THD(f.Harmonics.Current); ok {
		result.CurrentTHD = &thd
	}
	if thd, ok := panda.THD(f.Harmonics.Voltage); ok {
		result.VoltageTHD = &thd
	}
	return result
}
