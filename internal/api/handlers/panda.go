package handlers

import (
	"bytes"
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/panda/internal/storage"
	"github.com/RMahshie/panda/pkg/models"
	"github.com/RMahshie/panda/pkg/panda"
)

// PandaHandler serves synchronous PANDA encoding and decoding
type PandaHandler struct{}

// NewPandaHandler creates a new PANDA handler
func NewPandaHandler() *PandaHandler {
	return &PandaHandler{}
}

// Encode builds a PANDA file from metadata and spectra
func (h *PandaHandler) Encode(ctx context.Context, req *models.EncodeRequest) (*models.EncodeResponse, error) {
	body := req.Body

	var waveforms *panda.Waveforms
	if body.Waveforms != nil {
		waveforms = &panda.Waveforms{
			SamplingRate: body.Waveforms.SamplingRate,
			Current:      body.Waveforms.Current,
			Voltage:      body.Waveforms.Voltage,
		}
	}

	f, err := panda.New(
		body.Metadata.UserDetail(),
		body.Metadata.EUT(),
		panda.Harmonics{
			Current: models.Spectrum(body.CurrentHarmonics),
			Voltage: models.Spectrum(body.VoltageHarmonics),
		},
		waveforms,
	)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error(), err)
	}

	var out bytes.Buffer
	if err := f.Encode(&out); err != nil {
		return nil, huma.Error500InternalServerError("Failed to encode PANDA file", err)
	}

	log.Info().
		Str("uniqueID", f.EUT.UniqueID).
		Int("bytes", out.Len()).
		Msg("Encoded PANDA file")

	return &models.EncodeResponse{
		ContentType:        storage.ContentTypePANDA,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", fileName(f.EUT.UniqueID)),
		Body:               out.Bytes(),
	}, nil
}

// Decode parses a PANDA file into structured JSON
func (h *PandaHandler) Decode(ctx context.Context, req *models.DecodeRequest) (*models.DecodeResponse, error) {
	if len(req.RawBody) == 0 {
		return nil, huma.Error400BadRequest("Request body is empty", nil)
	}

	f, err := panda.Decode(bytes.NewReader(req.RawBody))
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error(), err)
	}

	return &models.DecodeResponse{Body: models.NewDecodeResponseBody(f)}, nil
}

// Categories lists the categories, subcategories and supply sources
func (h *PandaHandler) Categories(ctx context.Context, _ *struct{}) (*models.CategoriesResponse, error) {
	resp := &models.CategoriesResponse{}
	for _, c := range panda.Categories() {
		info := models.CategoryInfo{ID: int(c), Name: c.String()}
		for _, sub := range c.SubCategories() {
			info.SubCategories = append(info.SubCategories, models.EnumEntry{ID: sub.Index, Name: sub.String()})
		}
		resp.Body.Categories = append(resp.Body.Categories, info)
	}
	for _, s := range panda.SupplySources() {
		resp.Body.SupplySources = append(resp.Body.SupplySources, models.EnumEntry{ID: int(s), Name: s.String()})
	}
	return resp, nil
}

func fileName(uniqueID string) string {
	if uniqueID == "" {
		return "panda.txt"
	}
	return uniqueID + ".txt"
}
