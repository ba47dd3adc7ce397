package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/RMahshie/panda/internal/repository"
	"github.com/RMahshie/panda/pkg/models"
)

// PostgresConversionRepository implements ConversionRepository for PostgreSQL
type PostgresConversionRepository struct {
	db *sql.DB
}

// NewPostgresConversionRepository creates a new PostgreSQL conversion repository
func NewPostgresConversionRepository(db *sql.DB) repository.ConversionRepository {
	return &PostgresConversionRepository{db: db}
}

const conversionColumns = `id, session_id, input_format, status, progress, input_s3_key, output_s3_key,
	error_message, metadata, options, created_at, updated_at, completed_at`

// Create inserts a new conversion record
func (r *PostgresConversionRepository) Create(ctx context.Context, c *models.Conversion) error {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	options, err := json.Marshal(c.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}

	query := `
		INSERT INTO conversions (id, session_id, input_format, status, progress, input_s3_key, metadata, options, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.db.ExecContext(ctx, query,
		c.ID,
		c.SessionID,
		c.InputFormat,
		c.Status,
		c.Progress,
		c.InputS3Key,
		string(metadata),
		string(options),
		c.CreatedAt,
		c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert conversion: %w", err)
	}

	return nil
}

// GetByID retrieves a conversion by ID
func (r *PostgresConversionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversion, error) {
	query := `SELECT ` + conversionColumns + ` FROM conversions WHERE id = $1`

	c, err := scanConversion(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversion %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	return c, nil
}

// GetBySessionID retrieves conversions by session ID, newest first
func (r *PostgresConversionRepository) GetBySessionID(ctx context.Context, sessionID string) ([]*models.Conversion, error) {
	query := `SELECT ` + conversionColumns + ` FROM conversions WHERE session_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversions: %w", err)
	}
	defer rows.Close()

	var conversions []*models.Conversion
	for rows.Next() {
		c, err := scanConversion(rows)
		if err != nil {
			return nil, err
		}
		conversions = append(conversions, c)
	}

	return conversions, rows.Err()
}

// UpdateStatus updates the status and progress of a conversion
func (r *PostgresConversionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error {
	query := `
		UPDATE conversions
		SET status = $1, progress = $2, updated_at = NOW(),
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END
		WHERE id = $3`

	return r.exec(ctx, id, query, status, progress, id)
}

// ClaimPending moves a pending conversion to processing. Only one caller can
// claim a given conversion.
func (r *PostgresConversionRepository) ClaimPending(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE conversions
		SET status = 'processing', progress = 10, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	err := r.exec(ctx, id, query, id)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("conversion %s: %w", id, repository.ErrNotPending)
	}
	return err
}

// UpdateError marks a conversion failed with the given message
func (r *PostgresConversionRepository) UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	query := `
		UPDATE conversions
		SET status = 'failed', error_message = $1, updated_at = NOW()
		WHERE id = $2`

	return r.exec(ctx, id, query, errorMsg, id)
}

// SetOutputKey records where the PANDA file was stored
func (r *PostgresConversionRepository) SetOutputKey(ctx context.Context, id uuid.UUID, key string) error {
	query := `
		UPDATE conversions
		SET output_s3_key = $1, updated_at = NOW()
		WHERE id = $2`

	return r.exec(ctx, id, query, key, id)
}

func (r *PostgresConversionRepository) exec(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update conversion: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update conversion: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("conversion %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

// StoreResult stores the summary of a finished conversion
func (r *PostgresConversionRepository) StoreResult(ctx context.Context, result *models.ConversionResult) error {
	current, err := json.Marshal(result.CurrentHarmonics)
	if err != nil {
		return fmt.Errorf("failed to marshal current harmonics: %w", err)
	}
	voltage, err := json.Marshal(result.VoltageHarmonics)
	if err != nil {
		return fmt.Errorf("failed to marshal voltage harmonics: %w", err)
	}

	query := `
		INSERT INTO conversion_results (id, conversion_id, current_harmonics, voltage_harmonics, current_thd, voltage_thd, has_waveforms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.ExecContext(ctx, query,
		result.ID,
		result.ConversionID,
		string(current),
		string(voltage),
		result.CurrentTHD,
		result.VoltageTHD,
		result.HasWaveforms,
		result.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert conversion result: %w", err)
	}

	return nil
}

// GetResult retrieves the result of a conversion
func (r *PostgresConversionRepository) GetResult(ctx context.Context, conversionID uuid.UUID) (*models.ConversionResult, error) {
	query := `
		SELECT id, conversion_id, current_harmonics, voltage_harmonics, current_thd, voltage_thd, has_waveforms, created_at
		FROM conversion_results
		WHERE conversion_id = $1`

	var result models.ConversionResult
	var current, voltage string
	var currentTHD, voltageTHD sql.NullFloat64

	err := r.db.QueryRowContext(ctx, query, conversionID).Scan(
		&result.ID,
		&result.ConversionID,
		&current,
		&voltage,
		&currentTHD,
		&voltageTHD,
		&result.HasWaveforms,
		&result.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("result for conversion %s: %w", conversionID, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversion result: %w", err)
	}

	if err := json.Unmarshal([]byte(current), &result.CurrentHarmonics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal current harmonics: %w", err)
	}
	if err := json.Unmarshal([]byte(voltage), &result.VoltageHarmonics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal voltage harmonics: %w", err)
	}
	if currentTHD.Valid {
		result.CurrentTHD = &currentTHD.Float64
	}
	if voltageTHD.Valid {
		result.VoltageTHD = &voltageTHD.Float64
	}

	return &result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversion(row scanner) (*models.Conversion, error) {
	var c models.Conversion
	var inputKey, outputKey, errorMsg sql.NullString
	var metadata, options string
	var completedAt sql.NullTime

	err := row.Scan(
		&c.ID,
		&c.SessionID,
		&c.InputFormat,
		&c.Status,
		&c.Progress,
		&inputKey,
		&outputKey,
		&errorMsg,
		&metadata,
		&options,
		&c.CreatedAt,
		&c.UpdatedAt,
		&completedAt)
	if err != nil {
		return nil, err
	}

	if inputKey.Valid {
		c.InputS3Key = &inputKey.String
	}
	if outputKey.Valid {
		c.OutputS3Key = &outputKey.String
	}
	if errorMsg.Valid {
		c.ErrorMsg = &errorMsg.String
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	if err := json.Unmarshal([]byte(metadata), &c.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(options), &c.Options); err != nil {
		return nil, fmt.Errorf("failed to unmarshal options: %w", err)
	}

	return &c, nil
}
