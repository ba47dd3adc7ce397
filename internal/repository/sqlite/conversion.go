// Package sqlite stores conversions in SQLite for local runs and tests.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/RMahshie/panda/internal/repository"
	"github.com/RMahshie/panda/migrations"
	"github.com/RMahshie/panda/pkg/models"
)

// SQLiteConversionRepository implements ConversionRepository for SQLite
type SQLiteConversionRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteConversionRepository creates a new SQLite conversion repository
func NewSQLiteConversionRepository(db *sql.DB) repository.ConversionRepository {
	return &SQLiteConversionRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Open opens a SQLite database at path and applies the schema. Use ":memory:" for
// a private in-memory database.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path + "?_foreign_keys=on&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one writer, and ":memory:" databases are per connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if err := migrations.Up(ctx, db, migrations.SQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}

	return db, nil
}

const conversionColumns = `id, session_id, input_format, status, progress, input_s3_key, output_s3_key,
	error_message, metadata, options, created_at, updated_at, completed_at`

// Create inserts a new conversion record
func (r *SQLiteConversionRepository) Create(ctx context.Context, c *models.Conversion) error {
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		c.ID,
		c.SessionID,
		c.InputFormat,
		c.Status,
		c.Progress,
		c.InputS3Key,
		string(metadata),
		string(options),
		c.CreatedAt.UTC(),
		c.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert conversion: %w", err)
	}

	return nil
}

// GetByID retrieves a conversion by ID
func (r *SQLiteConversionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversion, error) {
	query := `SELECT ` + conversionColumns + ` FROM conversions WHERE id = ?`

	c, err := scanConversion(r.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversion %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	return c, nil
}

// GetBySessionID retrieves conversions by session ID, newest first
func (r *SQLiteConversionRepository) GetBySessionID(ctx context.Context, sessionID string) ([]*models.Conversion, error) {
	query := `SELECT ` + conversionColumns + ` FROM conversions WHERE session_id = ? ORDER BY created_at DESC`

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
func (r *SQLiteConversionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error {
	now := r.now()
	var completedAt any
	if status == models.StatusCompleted {
		completedAt = now
	}

	query := `
		UPDATE conversions
		SET status = ?, progress = ?, updated_at = ?, completed_at = COALESCE(?, completed_at)
		WHERE id = ?`

	return r.exec(ctx, id, query, status, progress, now, completedAt, id.String())
}

// ClaimPending moves a pending conversion to processing. Only one caller can
// claim a given conversion.
func (r *SQLiteConversionRepository) ClaimPending(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE conversions
		SET status = 'processing', progress = 10, updated_at = ?
		WHERE id = ? AND status = 'pending'`

	err := r.exec(ctx, id, query, r.now(), id.String())
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("conversion %s: %w", id, repository.ErrNotPending)
	}
	return err
}

// UpdateError marks a conversion failed with the given message
func (r *SQLiteConversionRepository) UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	query := `
		UPDATE conversions
		SET status = 'failed', error_message = ?, updated_at = ?
		WHERE id = ?`

	return r.exec(ctx, id, query, errorMsg, r.now(), id.String())
}

// SetOutputKey records where the PANDA file was stored
func (r *SQLiteConversionRepository) SetOutputKey(ctx context.Context, id uuid.UUID, key string) error {
	query := `
		UPDATE conversions
		SET output_s3_key = ?, updated_at = ?
		WHERE id = ?`

	return r.exec(ctx, id, query, key, r.now(), id.String())
}

func (r *SQLiteConversionRepository) exec(ctx context.Context, id uuid.UUID, query string, args ...any) error {
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
func (r *SQLiteConversionRepository) StoreResult(ctx context.Context, result *models.ConversionResult) error {
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		result.ID,
		result.ConversionID,
		string(current),
		string(voltage),
		result.CurrentTHD,
		result.VoltageTHD,
		result.HasWaveforms,
		result.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert conversion result: %w", err)
	}

	return nil
}

// GetResult retrieves the result of a conversion
func (r *SQLiteConversionRepository) GetResult(ctx context.Context, conversionID uuid.UUID) (*models.ConversionResult, error) {
	query := `
		SELECT id, conversion_id, current_harmonics, voltage_harmonics, current_thd, voltage_thd, has_waveforms, created_at
		FROM conversion_results
		WHERE conversion_id = ?`

	var result models.ConversionResult
	var current, voltage string
	var currentTHD, voltageTHD sql.NullFloat64

	err := r.db.QueryRowContext(ctx, query, conversionID.String()).Scan(
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
