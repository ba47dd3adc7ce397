// Package mocks provides testify mocks of the service interfaces.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/RMahshie/panda/pkg/models"
)

// ConversionRepository implements repository.ConversionRepository for testing
type ConversionRepository struct {
	mock.Mock
}

func (m *ConversionRepository) Create(ctx context.Context, conversion *models.Conversion) error {
	args := m.Called(ctx, conversion)
	return args.Error(0)
}

func (m *ConversionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversion, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*models.Conversion)
	return c, args.Error(1)
}

func (m *ConversionRepository) GetBySessionID(ctx context.Context, sessionID string) ([]*models.Conversion, error) {
	args := m.Called(ctx, sessionID)
	cs, _ := args.Get(0).([]*models.Conversion)
	return cs, args.Error(1)
}

func (m *ConversionRepository) ClaimPending(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *ConversionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error {
	args := m.Called(ctx, id, status, progress)
	return args.Error(0)
}

func (m *ConversionRepository) UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	args := m.Called(ctx, id, errorMsg)
	return args.Error(0)
}

func (m *ConversionRepository) SetOutputKey(ctx context.Context, id uuid.UUID, key string) error {
	args := m.Called(ctx, id, key)
	return args.Error(0)
}

func (m *ConversionRepository) StoreResult(ctx context.Context, result *models.ConversionResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *ConversionRepository) GetResult(ctx context.Context, conversionID uuid.UUID) (*models.ConversionResult, error) {
	args := m.Called(ctx, conversionID)
	r, _ := args.Get(0).(*models.ConversionResult)
	return r, args.Error(1)
}

// S3Service implements storage.S3Service for testing
type S3Service struct {
	mock.Mock
}

func (m *S3Service) GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error) {
	args := m.Called(ctx, key, contentType)
	return args.String(0), args.Error(1)
}

func (m *S3Service) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *S3Service) UploadFile(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func (m *S3Service) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *S3Service) DeleteFile(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// ProcessingService implements processing.ProcessingService for testing
type ProcessingService struct {
	mock.Mock
}

func (m *ProcessingService) ProcessConversion(ctx context.Context, conversionID uuid.UUID) error {
	args := m.Called(ctx, conversionID)
	return args.Error(0)
}
