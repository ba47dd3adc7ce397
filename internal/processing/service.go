package processing

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/panda/internal/conversion"
	"github.com/RMahshie/panda/internal/repository"
	"github.com/RMahshie/panda/internal/spectrum"
	"github.com/RMahshie/panda/internal/storage"
	"github.com/RMahshie/panda/pkg/models"
)

type ProcessingService interface {
	ProcessConversion(ctx context.Context, conversionID uuid.UUID) error
}

type processingService struct {
	s3              storage.S3Service
	repository      repository.ConversionRepository
	converter       *conversion.Converter
	defaultMaxOrder int
}

// NewProcessingService creates the service that runs uploaded conversions.
// defaultMaxOrder applies to waveform inputs that do not set a max order.
func NewProcessingService(s3Service storage.S3Service, repo repository.ConversionRepository, converter *conversion.Converter, defaultMaxOrder int) ProcessingService {
	if converter == nil {
		converter = conversion.NewConverter(nil)
	}
	return &processingService{
		s3:              s3Service,
		repository:      repo,
		converter:       converter,
		defaultMaxOrder: defaultMaxOrder,
	}
}

// ProcessConversion downloads the input, converts it and uploads the PANDA file.
// Problems with the input mark the conversion failed and return nil; storage and
// database failures are returned.
func (s *processingService) ProcessConversion(ctx context.Context, conversionID uuid.UUID) error {
	logger := log.With().Str("conversionID", conversionID.String()).Logger()

	// Step 1: Update to processing status
	if err := s.repository.UpdateStatus(ctx, conversionID, models.StatusProcessing, 10); err != nil {
		return err
	}

	// Step 2: Get conversion details
	c, err := s.repository.GetByID(ctx, conversionID)
	if err != nil {
		return err
	}
	if c.InputS3Key == nil {
		return s.fail(ctx, conversionID, "Conversion has no uploaded input")
	}

	// Step 3: Download the input
	if err := s.repository.UpdateStatus(ctx, conversionID, models.StatusProcessing, 20); err != nil {
		return err
	}
	logger.Info().Str("key", *c.InputS3Key).Msg("Downloading input")

	data, err := s.s3.DownloadFile(ctx, *c.InputS3Key)
	if err != nil {
		logger.Error().Err(err).Msg("Input download failed")
		return s.fail(ctx, conversionID, "Failed to download input")
	}

	// Step 4: Convert
	if err := s.repository.UpdateStatus(ctx, conversionID, models.StatusProcessing, 50); err != nil {
		return err
	}

	opts := spectrum.NewOptions(c.Metadata.NominalFrequency, c.Options)
	if opts.MaxOrder == 0 {
		opts.MaxOrder = s.defaultMaxOrder
	}

	file, err := s.converter.Convert(ctx, bytes.NewReader(data), c.InputFormat, c.Metadata, opts)
	if err != nil {
		logger.Warn().Err(err).Str("format", c.InputFormat).Msg("Conversion failed")
		return s.fail(ctx, conversionID, err.Error())
	}

	// Step 5: Upload the PANDA file
	if err := s.repository.UpdateStatus(ctx, conversionID, models.StatusProcessing, 80); err != nil {
		return err
	}

	var out bytes.Buffer
	if err := file.Encode(&out); err != nil {
		return fmt.Errorf("failed to encode PANDA file: %w", err)
	}

	outputKey := storage.OutputKey(c.ID)
	if err := s.s3.UploadFile(ctx, outputKey, out.Bytes(), storage.ContentTypePANDA); err != nil {
		return err
	}
	if err := s.repository.SetOutputKey(ctx, conversionID, outputKey); err != nil {
		return err
	}

	// Step 6: Store the result summary
	if err := s.repository.UpdateStatus(ctx, conversionID, models.StatusProcessing, 90); err != nil {
		return err
	}

	result := models.NewConversionResult(uuid.New().String(), c.ID, file, time.Now())
	if err := s.repository.StoreResult(ctx, result); err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}

	// Step 7: Mark as completed
	if err := s.repository.UpdateStatus(ctx, conversionID, models.StatusCompleted, 100); err != nil {
		return err
	}

	// The upload is only needed until the PANDA file exists
	if err := s.s3.DeleteFile(ctx, *c.InputS3Key); err != nil {
		logger.Warn().Err(err).Str("key", *c.InputS3Key).Msg("Failed to delete input")
	}

	logger.Info().
		Str("outputKey", outputKey).
		Int("bytes", out.Len()).
		Msg("Conversion completed")

	return nil
}

func (s *processingService) fail(ctx context.Context, conversionID uuid.UUID, msg string) error {
	if err := s.repository.UpdateError(ctx, conversionID, msg); err != nil {
		return fmt.Errorf("failed to record conversion error: %w", err)
	}
	return nil
}
