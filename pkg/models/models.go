package models

import (
	"time"

	"github.com/RMahshie/panda/pkg/panda"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Body struct {
		Status  string    `json:"status" example:"healthy" doc:"Service health status"`
		Version string    `json:"version" example:"1.0.0" doc:"API version"`
		Time    time.Time `json:"time" doc:"Current server time"`
	}
}

// CreateConversionRequest represents a request to create a new conversion
type CreateConversionRequest struct {
	Body CreateConversionRequestBody
}

// CreateConversionRequestBody is the body of the create conversion request
type CreateConversionRequestBody struct {
	SessionID   string             `json:"session_id" minLength:"10" maxLength:"50" doc:"Client session identifier"`
	InputFormat string             `json:"input_format" enum:"csv,json,yaml,wav,flac,aiff" doc:"Format of the uploaded measurement"`
	FileSize    int64              `json:"file_size" minimum:"1" maximum:"104857600" doc:"Input file size in bytes"`
	Metadata    EquipmentMetadata  `json:"metadata" doc:"User and equipment details written to the PANDA file"`
	Options     *ConversionOptions `json:"options,omitempty" doc:"Waveform analysis options"`
}

// CreateConversionResponse represents the response from creating a conversion
type CreateConversionResponse struct {
	Body CreateConversionResponseBody
}

// CreateConversionResponseBody is the body of the create conversion response
type CreateConversionResponseBody struct {
	ID        string `json:"id" doc:"Conversion unique identifier"`
	UploadURL string `json:"upload_url" doc:"Pre-signed S3 URL for input upload"`
	ExpiresIn int    `json:"expires_in" doc:"URL expiration time in seconds"`
}

// GetConversionStatusRequest represents a request to get conversion status
type GetConversionStatusRequest struct {
	ID string `path:"id" doc:"Conversion ID"`
}

// GetConversionStatusResponse represents the current status of a conversion
type GetConversionStatusResponse struct {
	Body GetConversionStatusResponseBody
}

// GetConversionStatusResponseBody is the body of the status response
type GetConversionStatusResponseBody struct {
	ID       string  `json:"id" doc:"Conversion ID"`
	Status   string  `json:"status" enum:"pending,processing,completed,failed" doc:"Conversion status"`
	Progress int     `json:"progress" minimum:"0" maximum:"100" doc:"Conversion progress percentage"`
	Message  string  `json:"message,omitempty" doc:"Human-readable status message"`
	Error    *string `json:"error,omitempty" doc:"Failure reason when the conversion failed"`
	ResultID *string `json:"result_id,omitempty" doc:"Result ID when the conversion completes"`
}

// GetConversionResultRequest represents a request to get conversion results
type GetConversionResultRequest struct {
	ID string `path:"id" doc:"Conversion ID"`
}

// GetConversionResultResponse represents the complete conversion result
type GetConversionResultResponse struct {
	Body GetConversionResultResponseBody
}

// GetConversionResultResponseBody is the body of the result response
type GetConversionResultResponseBody struct {
	ID               string            `json:"id" doc:"Result ID"`
	ConversionID     string            `json:"conversion_id" doc:"Conversion ID"`
	Metadata         EquipmentMetadata `json:"metadata" doc:"Equipment details"`
	CurrentHarmonics []HarmonicPoint   `json:"current_harmonics" doc:"Current harmonic spectrum"`
	VoltageHarmonics []HarmonicPoint   `json:"voltage_harmonics" doc:"Voltage harmonic spectrum"`
	CurrentTHD       *float64          `json:"current_thd,omitempty" doc:"Current THD in percent"`
	VoltageTHD       *float64          `json:"voltage_thd,omitempty" doc:"Voltage THD in percent"`
	HasWaveforms     bool              `json:"has_waveforms" doc:"Whether the PANDA file contains raw waveforms"`
	DownloadURL      string            `json:"download_url" doc:"Pre-signed S3 URL of the PANDA file"`
	CreatedAt        time.Time         `json:"created_at" doc:"Result creation timestamp"`
}

// ListSessionConversionsRequest lists the conversions created by one client session
type ListSessionConversionsRequest struct {
	SessionID string `path:"sessionID" minLength:"10" maxLength:"50" doc:"Client session identifier"`
}

// ListSessionConversionsResponse holds the conversions of a session, newest first
type ListSessionConversionsResponse struct {
	Body ListSessionConversionsResponseBody
}

// ListSessionConversionsResponseBody is the body of the session listing response
type ListSessionConversionsResponseBody struct {
	Conversions []ConversionSummary `json:"conversions" doc:"Conversions of the session, newest first"`
}

// ConversionSummary is one entry of a session listing
type ConversionSummary struct {
	ID          string     `json:"id" doc:"Conversion ID"`
	InputFormat string     `json:"input_format" doc:"Input format"`
	UniqueID    string     `json:"unique_id" doc:"Unique ID of the equipment under test"`
	Status      string     `json:"status" enum:"pending,processing,completed,failed" doc:"Conversion status"`
	Progress    int        `json:"progress" minimum:"0" maximum:"100" doc:"Conversion progress percentage"`
	Message     string     `json:"message,omitempty" doc:"Human-readable status message"`
	CreatedAt   time.Time  `json:"created_at" doc:"Creation timestamp"`
	CompletedAt *time.Time `json:"completed_at,omitempty" doc:"Completion timestamp"`
}

// StartProcessingRequest represents a request to start processing an uploaded input
type StartProcessingRequest struct {
	ID string `path:"id" doc:"Conversion ID"`
}

// StartProcessingResponse represents the response from starting processing
type StartProcessingResponse struct {
	Body StartProcessingResponseBody
}

// StartProcessingResponseBody is the body of the start processing response
type StartProcessingResponseBody struct {
	Message string `json:"message" doc:"Confirmation message"`
}

// WaveformData holds raw waveforms in API requests and responses
type WaveformData struct {
	SamplingRate int       `json:"sampling_rate" minimum:"1" doc:"Sampling rate in samples/s"`
	Current      []float64 `json:"current" doc:"Current samples in A"`
	Voltage      []float64 `json:"voltage" doc:"Voltage samples in V"`
}

// EncodeRequest represents a synchronous request to build a PANDA file
type EncodeRequest struct {
	Body EncodeRequestBody
}

// EncodeRequestBody is the body of the encode request
type EncodeRequestBody struct {
	Metadata         EquipmentMetadata `json:"metadata" doc:"User and equipment details"`
	CurrentHarmonics []HarmonicPoint   `json:"current_harmonics" minItems:"1" doc:"Current harmonic spectrum"`
	VoltageHarmonics []HarmonicPoint   `json:"voltage_harmonics" minItems:"1" doc:"Voltage harmonic spectrum"`
	Waveforms        *WaveformData     `json:"waveforms,omitempty" doc:"Optional raw waveforms"`
}

// EncodeResponse carries a PANDA file
type EncodeResponse struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

// DecodeRequest carries a PANDA file to parse
type DecodeRequest struct {
	RawBody []byte `contentType:"text/plain"`
}

// DecodeResponse represents a parsed PANDA file
type DecodeResponse struct {
	Body DecodeResponseBody
}

// DecodeResponseBody is the body of the decode response
type DecodeResponseBody struct {
	Version          string            `json:"version" doc:"PANDA format version"`
	Metadata         EquipmentMetadata `json:"metadata" doc:"User and equipment details"`
	CurrentHarmonics []HarmonicPoint   `json:"current_harmonics" doc:"Current harmonic spectrum"`
	VoltageHarmonics []HarmonicPoint   `json:"voltage_harmonics" doc:"Voltage harmonic spectrum"`
	CurrentTHD       *float64          `json:"current_thd,omitempty" doc:"Current THD in percent"`
	VoltageTHD       *float64          `json:"voltage_thd,omitempty" doc:"Voltage THD in percent"`
	Waveforms        *WaveformData     `json:"waveforms,omitempty" doc:"Raw waveforms when present"`
}

// NewDecodeResponseBody describes a decoded PANDA file
func NewDecodeResponseBody(f *panda.File) DecodeResponseBody {
	body := DecodeResponseBody{
		Version:          panda.Version,
		Metadata:         MetadataFromFile(f),
		CurrentHarmonics: HarmonicPoints(f.Harmonics.Current),
		VoltageHarmonics: HarmonicPoints(f.Harmonics.Voltage),
	}
	if thd, ok := panda.THD(f.Harmonics.Current); ok {
		body.CurrentTHD = &thd
	}
	if thd, ok := panda.THD(f.Harmonics.Voltage); ok {
		body.VoltageTHD = &thd
	}
	if f.Waveforms != nil {
		body.Waveforms = &WaveformData{
			SamplingRate: f.Waveforms.SamplingRate,
			Current:      f.Waveforms.Current,
			Voltage:      f.Waveforms.Voltage,
		}
	}
	return body
}

// CategoriesResponse lists the PANDA enumerations
type CategoriesResponse struct {
	Body CategoriesResponseBody
}

// CategoriesResponseBody is the body of the categories response
type CategoriesResponseBody struct {
	Categories    []CategoryInfo `json:"categories" doc:"Equipment categories with their subcategories"`
	SupplySources []EnumEntry    `json:"supply_sources" doc:"Supply source types"`
}

// CategoryInfo describes a category and its subcategories
type CategoryInfo struct {
	ID            int         `json:"id"`
	Name          string      `json:"name"`
	SubCategories []EnumEntry `json:"sub_categories"`
}

// EnumEntry is an identifier with a display name
type EnumEntry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
