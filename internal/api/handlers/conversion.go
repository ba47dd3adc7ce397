package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/panda/internal/processing"
	"github.com/RMahshie/panda/internal/repository"
	"github.com/RMahshie/panda/internal/storage"
	"github.com/RMahshie/panda/pkg/models"
)

const uploadURLExpiry = 15 * time.Minute

// ConversionHandler handles conversion-related HTTP requests
type ConversionHandler struct {
	repo          repository.ConversionRepository
	s3Service     storage.S3Service
	processingSvc processing.ProcessingService
}

// NewConversionHandler creates a new conversion handler
func NewConversionHandler(repo repository.ConversionRepository, s3Service storage.S3Service, processingSvc processing.ProcessingService) *ConversionHandler {
	return &ConversionHandler{
		repo:          repo,
		s3Service:     s3Service,
		processingSvc: processingSvc,
	}
}

// CreateConversion validates the metadata, creates a conversion and returns an upload URL
func (h *ConversionHandler) CreateConversion(ctx context.Context, req *models.CreateConversionRequest) (*models.CreateConversionResponse, error) {
	body := req.Body
	log.Info().
		Str("sessionID", body.SessionID).
		Str("format", body.InputFormat).
		Int64("fileSize", body.FileSize).
		Msg("Creating new conversion")

	if err := validateMetadata(body.Metadata); err != nil {
		return nil, huma.Error400BadRequest(err.Error(), err)
	}

	contentType, err := storage.ContentTypeForFormat(body.InputFormat)
	if err != nil {
		return nil, huma.Error400BadRequest("Input format not supported", err)
	}

	conversionID := uuid.New()
	inputKey := storage.InputKey(conversionID.String(), body.InputFormat)

	uploadURL, err := h.s3Service.GenerateUploadURL(ctx, inputKey, contentType)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to prepare upload", err)
	}

	var opts models.ConversionOptions
	if body.Options != nil {
		opts = *body.Options
	}

	now := time.Now()
	conversion := &models.Conversion{
		ID:          conversionID.String(),
		SessionID:   body.SessionID,
		InputFormat: body.InputFormat,
		Status:      models.StatusPending,
		Progress:    0,
		InputS3Key:  &inputKey,
		Metadata:    body.Metadata,
		Options:     opts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.repo.Create(ctx, conversion); err != nil {
		return nil, huma.Error500InternalServerError("Failed to create conversion", err)
	}

	log.Info().Str("conversionID", conversion.ID).Str("inputKey", inputKey).Msg("Conversion created")
	return &models.CreateConversionResponse{
		Body: models.CreateConversionResponseBody{
			ID:        conversion.ID,
			UploadURL: uploadURL,
			ExpiresIn: int(uploadURLExpiry.Seconds()),
		},
	}, nil
}

// StartProcessing starts converting an uploaded input in the background
func (h *ConversionHandler) StartProcessing(ctx context.Context, req *models.StartProcessingRequest) (*models.StartProcessingResponse, error) {
	conversionID, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid conversion ID", err)
	}

	conversion, err := h.repo.GetByID(ctx, conversionID)
	if err != nil {
		return nil, notFoundOr500(err)
	}
	if conversion.Status != models.StatusPending {
		return nil, huma.Error409Conflict("Conversion already started",
			fmt.Errorf("conversion status is %s", conversion.Status))
	}
	if err := h.repo.ClaimPending(ctx, conversionID); err != nil {
		if errors.Is(err, repository.ErrNotPending) {
			return nil, huma.Error409Conflict("Conversion already started", err)
		}
		return nil, notFoundOr500(err)
	}

	log.Info().Str("conversionID", conversionID.String()).Msg("Starting background processing")
	go func() {
		if err := h.processingSvc.ProcessConversion(context.Background(), conversionID); err != nil {
			log.Error().Err(err).Str("conversionID", conversionID.String()).Msg("Processing failed")
			if err := h.repo.UpdateError(context.Background(), conversionID, fmt.Sprintf("Processing failed: %v", err)); err != nil {
				log.Error().Err(err).Str("conversionID", conversionID.String()).Msg("Failed to record processing error")
			}
		}
	}()

	return &models.StartProcessingResponse{
		Body: models.StartProcessingResponseBody{
			Message: "Processing started successfully",
		},
	}, nil
}

// GetConversionStatus returns the current status of a conversion
func (h *ConversionHandler) GetConversionStatus(ctx context.Context, req *models.GetConversionStatusRequest) (*models.GetConversionStatusResponse, error) {
	conversionID, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid conversion ID", err)
	}

	conversion, err := h.repo.GetByID(ctx, conversionID)
	if err != nil {
		return nil, notFoundOr500(err)
	}

	var resultID *string
	if conversion.Status == models.StatusCompleted {
		if result, err := h.repo.GetResult(ctx, conversionID); err == nil && result != nil {
			resultID = &result.ID
		}
	}

	return &models.GetConversionStatusResponse{
		Body: models.GetConversionStatusResponseBody{
			ID:       conversion.ID,
			Status:   conversion.Status,
			Progress: conversion.Progress,
			Message:  statusMessage(conversion.Status, conversion.Progress),
			Error:    conversion.ErrorMsg,
			ResultID: resultID,
		},
	}, nil
}

// GetConversionResult returns the harmonics of a completed conversion and a download URL
func (h *ConversionHandler) GetConversionResult(ctx context.Context, req *models.GetConversionResultRequest) (*models.GetConversionResultResponse, error) {
	conversionID, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid conversion ID", err)
	}

	conversion, err := h.repo.GetByID(ctx, conversionID)
	if err != nil {
		return nil, notFoundOr500(err)
	}
	if conversion.Status != models.StatusCompleted {
		return nil, huma.Error409Conflict("Conversion not yet completed",
			fmt.Errorf("conversion status is %s", conversion.Status))
	}
	if conversion.OutputS3Key == nil {
		return nil, huma.Error500InternalServerError("Conversion has no output file", nil)
	}

	result, err := h.repo.GetResult(ctx, conversionID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get result", err)
	}

	downloadURL, err := h.s3Service.GenerateDownloadURL(ctx, *conversion.OutputS3Key)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to prepare download", err)
	}

	return &models.GetConversionResultResponse{
		Body: models.GetConversionResultResponseBody{
			ID:               result.ID,
			ConversionID:     conversion.ID,
			Metadata:         conversion.Metadata,
			CurrentHarmonics: result.CurrentHarmonics,
			VoltageHarmonics: result.VoltageHarmonics,
			CurrentTHD:       result.CurrentTHD,
			VoltageTHD:       result.VoltageTHD,
			HasWaveforms:     result.HasWaveforms,
			DownloadURL:      downloadURL,
			CreatedAt:        result.CreatedAt,
		},
	}, nil
}

func validateMetadata(m models.EquipmentMetadata) error {
	if err := m.UserDetail().Validate(); err != nil {
		return err
	}
	return m.EUT().Validate()
}

// ListSessionConversions returns the conversions created by a session, newest first
func (h *ConversionHandler) ListSessionConversions(ctx context.Context, req *models.ListSessionConversionsRequest) (*models.ListSessionConversionsResponse, error) {
	conversions, err := h.repo.GetBySessionID(ctx, req.SessionID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list conversions", err)
	}

	resp := &models.ListSessionConversionsResponse{}
	resp.Body.Conversions = make([]models.ConversionSummary, 0, len(conversions))
	for _, c := range conversions {
		resp.Body.Conversions = append(resp.Body.Conversions, models.ConversionSummary{
			ID:          c.ID,
			InputFormat: c.InputFormat,
			UniqueID:    c.Metadata.UniqueID,
			Status:      c.Status,
			Progress:    c.Progress,
			Message:     statusMessage(c.Status, c.Progress),
			CreatedAt:   c.CreatedAt,
			CompletedAt: c.CompletedAt,
		})
	}
	return resp, nil
}

func notFoundOr500(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return huma.Error404NotFound("Conversion not found", err)
	}
	return huma.Error500InternalServerError("Failed to get conversion", err)
}

// statusMessage creates a human-readable status message
func statusMessage(status string, progress int) string {
	switch status {
	case models.StatusPending:
		return "Waiting for upload..."
	case models.StatusProcessing:
		switch {
		case progress < 20:
			return "Starting conversion..."
		case progress < 50:
			return "Downloading input file..."
		case progress < 80:
			return "Extracting harmonics..."
		default:
			return "Writing PANDA file..."
		}
	case models.StatusCompleted:
		return "Conversion complete!"
	case models.StatusFailed:
		return "Conversion failed."
	default:
		return "Unknown status"
	}
}
