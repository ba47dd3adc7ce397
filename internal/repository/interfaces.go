package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/RMahshie/panda/pkg/models"
)

// ErrNotFound is returned when a conversion or result does not exist
var ErrNotFound = errors.New("not found")

// ErrNotPending is returned when a conversion can no longer be claimed for processing
var ErrNotPending = errors.New("conversion is not pending")

// ConversionRepository defines the interface for conversion data operations
type ConversionRepository interface {
	Create(ctx context.Context, conversion *models.Conversion) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversion, error)
	GetBySessionID(ctx context.Context, sessionID string) ([]*models.Conversion, error)
	ClaimPending(ctx context.Context, id uuid.UUID) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error
	UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error
	SetOutputKey(ctx context.Context, id uuid.UUID, key string) error
	StoreResult(ctx context.Context, result *models.ConversionResult) error
	GetResult(ctx context.Context, conversionID uuid.UUID) (*models.ConversionResult, error)
}
