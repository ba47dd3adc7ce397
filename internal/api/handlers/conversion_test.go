package handlers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/panda/internal/mocks"
	"github.com/RMahshie/panda/internal/repository"
	"github.com/RMahshie/panda/pkg/models"
)

func validMetadata() models.EquipmentMetadata {
	return models.EquipmentMetadata{
		LabID:            "1234",
		UserID:           "12",
		Category:         2,
		SubCategory:      2,
		UniqueID:         "LT-001",
		Manufacturer:     "Example Corp",
		ProductCode:      "X1 Carbon",
		SellCountry:      "DE",
		SellYear:         "2020",
		NominalFrequency: 50,
		NominalVoltage:   230,
		SupplySource:     1,
		Description:      "Laptop charging with screen on",
	}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var se huma.StatusError
	require.True(t, errors.As(err, &se), "expected a huma status error, got %v", err)
	return se.GetStatus()
}

func newHandler() (*ConversionHandler, *mocks.ConversionRepository, *mocks.S3Service, *mocks.ProcessingService) {
	repo := &mocks.ConversionRepository{}
	s3 := &mocks.S3Service{}
	proc := &mocks.ProcessingService{}
	return NewConversionHandler(repo, s3, proc), repo, s3, proc
}

func TestCreateConversion(t *testing.T) {
	tests := []struct {
		name      string
		format    string
		metadata  func(*models.EquipmentMetadata)
		mockSetup func(*mocks.ConversionRepository, *mocks.S3Service)
		wantCode  int
	}{
		{
			name:   "valid csv upload",
			format: models.FormatCSV,
			mockSetup: func(repo *mocks.ConversionRepository, s3 *mocks.S3Service) {
				s3.On("GenerateUploadURL", mock.Anything, mock.AnythingOfType("string"), "text/csv").Return("https://example.com/upload", nil)
				repo.On("Create", mock.Anything, mock.MatchedBy(func(c *models.Conversion) bool {
					return c.Status == models.StatusPending &&
						c.InputFormat == models.FormatCSV &&
						c.InputS3Key != nil && *c.InputS3Key == "inputs/"+c.ID+".csv"
				})).Return(nil)
			},
			wantCode: 200,
		},
		{
			name:   "valid wav upload",
			format: models.FormatWAV,
			mockSetup: func(repo *mocks.ConversionRepository, s3 *mocks.S3Service) {
				s3.On("GenerateUploadURL", mock.Anything, mock.AnythingOfType("string"), "audio/wav").Return("https://example.com/upload", nil)
				repo.On("Create", mock.Anything, mock.AnythingOfType("*models.Conversion")).Return(nil)
			},
			wantCode: 200,
		},
		{
			name:     "subcategory outside category",
			format:   models.FormatCSV,
			metadata: func(m *models.EquipmentMetadata) { m.Category, m.SubCategory = 5, 10 },
			wantCode: 400,
		},
		{
			name:     "lab id with letters",
			format:   models.FormatCSV,
			metadata: func(m *models.EquipmentMetadata) { m.LabID = "12a" },
			wantCode: 400,
		},
		{
			name:     "unsupported format",
			format:   "mp3",
			wantCode: 400,
		},
		{
			name:   "presign failure",
			format: models.FormatJSON,
			mockSetup: func(repo *mocks.ConversionRepository, s3 *mocks.S3Service) {
				s3.On("GenerateUploadURL", mock.Anything, mock.Anything, "application/json").Return("", assert.AnError)
			},
			wantCode: 500,
		},
		{
			name:   "database failure",
			format: models.FormatYAML,
			mockSetup: func(repo *mocks.ConversionRepository, s3 *mocks.S3Service) {
				s3.On("GenerateUploadURL", mock.Anything, mock.Anything, "application/yaml").Return("https://example.com/upload", nil)
				repo.On("Create", mock.Anything, mock.Anything).Return(assert.AnError)
			},
			wantCode: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, repo, s3, proc := newHandler()
			if tt.mockSetup != nil {
				tt.mockSetup(repo, s3)
			}

			meta := validMetadata()
			if tt.metadata != nil {
				tt.metadata(&meta)
			}
			req := &models.CreateConversionRequest{
				Body: models.CreateConversionRequestBody{
					SessionID:   "test-session-123",
					InputFormat: tt.format,
					FileSize:    2048,
					Metadata:    meta,
				},
			}

			resp, err := handler.CreateConversion(context.Background(), req)

			if tt.wantCode >= 400 {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, statusOf(t, err))
			} else {
				require.NoError(t, err)
				assert.NotEmpty(t, resp.Body.ID)
				assert.Equal(t, "https://example.com/upload", resp.Body.UploadURL)
				assert.Equal(t, 900, resp.Body.ExpiresIn)
			}

			repo.AssertExpectations(t)
			s3.AssertExpectations(t)
			proc.AssertExpectations(t)
		})
	}
}

func TestCreateConversion_StoresOptions(t *testing.T) {
	handler, repo, s3, _ := newHandler()
	s3.On("GenerateUploadURL", mock.Anything, mock.Anything, "audio/flac").Return("https://example.com/upload", nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(c *models.Conversion) bool {
		return c.Options.MaxOrder == 50 && c.Options.CurrentScale == 20 && c.Options.IncludeWaveforms
	})).Return(nil)

	_, err := handler.CreateConversion(context.Background(), &models.CreateConversionRequest{
		Body: models.CreateConversionRequestBody{
			SessionID:   "test-session-123",
			InputFormat: models.FormatFLAC,
			FileSize:    4096,
			Metadata:    validMetadata(),
			Options: &models.ConversionOptions{
				MaxOrder:         50,
				CurrentScale:     20,
				IncludeWaveforms: true,
			},
		},
	})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestStartProcessing(t *testing.T) {
	t.Run("starts background processing", func(t *testing.T) {
		handler, repo, _, proc := newHandler()
		id := uuid.New()
		done := make(chan struct{})

		repo.On("GetByID", mock.Anything, id).Return(&models.Conversion{ID: id.String(), Status: models.StatusPending}, nil)
		repo.On("ClaimPending", mock.Anything, id).Return(nil)
		proc.On("ProcessConversion", mock.Anything, id).Return(nil).Run(func(mock.Arguments) { close(done) })

		resp, err := handler.StartProcessing(context.Background(), &models.StartProcessingRequest{ID: id.String()})
		require.NoError(t, err)
		assert.Equal(t, "Processing started successfully", resp.Body.Message)

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("processing was not started")
		}
		proc.AssertExpectations(t)
	})

	t.Run("records processing errors", func(t *testing.T) {
		handler, repo, _, proc := newHandler()
		id := uuid.New()
		done := make(chan struct{})

		repo.On("GetByID", mock.Anything, id).Return(&models.Conversion{ID: id.String(), Status: models.StatusPending}, nil)
		repo.On("ClaimPending", mock.Anything, id).Return(nil)
		proc.On("ProcessConversion", mock.Anything, id).Return(errors.New("bucket unavailable"))
		repo.On("UpdateError", mock.Anything, id, "Processing failed: bucket unavailable").Return(nil).
			Run(func(mock.Arguments) { close(done) })

		_, err := handler.StartProcessing(context.Background(), &models.StartProcessingRequest{ID: id.String()})
		require.NoError(t, err)

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("processing error was not recorded")
		}
		repo.AssertExpectations(t)
	})

	t.Run("already started", func(t *testing.T) {
		handler, repo, _, proc := newHandler()
		id := uuid.New()
		repo.On("GetByID", mock.Anything, id).Return(&models.Conversion{ID: id.String(), Status: models.StatusProcessing}, nil)

		_, err := handler.StartProcessing(context.Background(), &models.StartProcessingRequest{ID: id.String()})
		assert.Equal(t, 409, statusOf(t, err))
		proc.AssertNotCalled(t, "ProcessConversion", mock.Anything, mock.Anything)
	})

	t.Run("second request loses the claim", func(t *testing.T) {
		handler, repo, _, proc := newHandler()
		id := uuid.New()
		release := make(chan struct{})
		done := make(chan struct{})

		repo.On("GetByID", mock.Anything, id).Return(&models.Conversion{ID: id.String(), Status: models.StatusPending}, nil)
		repo.On("ClaimPending", mock.Anything, id).Return(nil).Once()
		repo.On("ClaimPending", mock.Anything, id).Return(fmt.Errorf("conversion %s: %w", id, repository.ErrNotPending)).Once()
		proc.On("ProcessConversion", mock.Anything, id).Return(nil).Run(func(mock.Arguments) {
			<-release
			close(done)
		}).Once()

		_, err := handler.StartProcessing(context.Background(), &models.StartProcessingRequest{ID: id.String()})
		require.NoError(t, err)
		_, err = handler.StartProcessing(context.Background(), &models.StartProcessingRequest{ID: id.String()})
		assert.Equal(t, 409, statusOf(t, err))

		close(release)
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("processing was not started")
		}
		proc.AssertNumberOfCalls(t, "ProcessConversion", 1)
	})

	t.Run("claim fails", func(t *testing.T) {
		handler, repo, _, proc := newHandler()
		id := uuid.New()
		repo.On("GetByID", mock.Anything, id).Return(&models.Conversion{ID: id.String(), Status: models.StatusPending}, nil)
		repo.On("ClaimPending", mock.Anything, id).Return(errors.New("database is locked"))

		_, err := handler.StartProcessing(context.Background(), &models.StartProcessingRequest{ID: id.String()})
		assert.Equal(t, 500, statusOf(t, err))
		proc.AssertNotCalled(t, "ProcessConversion", mock.Anything, mock.Anything)
	})

	t.Run("invalid id", func(t *testing.T) {
		handler, _, _, _ := newHandler()
		_, err := handler.StartProcessing(context.Background(), &models.StartProcessingRequest{ID: "not-a-uuid"})
		assert.Equal(t, 400, statusOf(t, err))
	})

	t.Run("not found", func(t *testing.T) {
		handler, repo, _, _ := newHandler()
		id := uuid.New()
		repo.On("GetByID", mock.Anything, id).Return(nil, fmt.Errorf("conversion %s: %w", id, repository.ErrNotFound))

		_, err := handler.StartProcessing(context.Background(), &models.StartProcessingRequest{ID: id.String()})
		assert.Equal(t, 404, statusOf(t, err))
	})
}

func TestGetConversionStatus(t *testing.T) {
	failure := "invalid Lab_ID: must contain only digits"

	tests := []struct {
		name        string
		conversion  *models.Conversion
		repoErr     error
		withResult  bool
		wantCode    int
		wantMessage string
	}{
		{
			name:        "pending",
			conversion:  &models.Conversion{Status: models.StatusPending},
			wantMessage: "Waiting for upload...",
		},
		{
			name:        "extracting harmonics",
			conversion:  &models.Conversion{Status: models.StatusProcessing, Progress: 50},
			wantMessage: "Extracting harmonics...",
		},
		{
			name:        "completed",
			conversion:  &models.Conversion{Status: models.StatusCompleted, Progress: 100},
			withResult:  true,
			wantMessage: "Conversion complete!",
		},
		{
			name:        "failed",
			conversion:  &models.Conversion{Status: models.StatusFailed, ErrorMsg: &failure},
			wantMessage: "Conversion failed.",
		},
		{
			name:     "not found",
			repoErr:  repository.ErrNotFound,
			wantCode: 404,
		},
		{
			name:     "database failure",
			repoErr:  errors.New("connection refused"),
			wantCode: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, repo, _, _ := newHandler()
			id := uuid.New()
			if tt.conversion != nil {
				tt.conversion.ID = id.String()
			}
			repo.On("GetByID", mock.Anything, id).Return(tt.conversion, tt.repoErr)
			if tt.withResult {
				repo.On("GetResult", mock.Anything, id).Return(&models.ConversionResult{ID: "result-1"}, nil)
			}

			resp, err := handler.GetConversionStatus(context.Background(), &models.GetConversionStatusRequest{ID: id.String()})

			if tt.wantCode >= 400 {
				assert.Equal(t, tt.wantCode, statusOf(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMessage, resp.Body.Message)
			assert.Equal(t, tt.conversion.ErrorMsg, resp.Body.Error)
			if tt.withResult {
				require.NotNil(t, resp.Body.ResultID)
				assert.Equal(t, "result-1", *resp.Body.ResultID)
			} else {
				assert.Nil(t, resp.Body.ResultID)
			}
		})
	}
}

func TestGetConversionResult(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		handler, repo, s3, _ := newHandler()
		id := uuid.New()
		outputKey := "outputs/" + id.String() + ".txt"
		thd := 3.2

		repo.On("GetByID", mock.Anything, id).Return(&models.Conversion{
			ID:          id.String(),
			Status:      models.StatusCompleted,
			OutputS3Key: &outputKey,
			Metadata:    validMetadata(),
		}, nil)
		repo.On("GetResult", mock.Anything, id).Return(&models.ConversionResult{
			ID:               "result-1",
			ConversionID:     id.String(),
			CurrentHarmonics: []models.HarmonicPoint{{Order: 1, Magnitude: 0.4, Phase: -12}},
			VoltageHarmonics: []models.HarmonicPoint{{Order: 1, Magnitude: 230}},
			CurrentTHD:       &thd,
		}, nil)
		s3.On("GenerateDownloadURL", mock.Anything, outputKey).Return("https://example.com/download", nil)

		resp, err := handler.GetConversionResult(context.Background(), &models.GetConversionResultRequest{ID: id.String()})
		require.NoError(t, err)
		assert.Equal(t, "result-1", resp.Body.ID)
		assert.Equal(t, "https://example.com/download", resp.Body.DownloadURL)
		assert.Equal(t, "LT-001", resp.Body.Metadata.UniqueID)
		assert.Len(t, resp.Body.CurrentHarmonics, 1)
		assert.Equal(t, &thd, resp.Body.CurrentTHD)
		assert.Nil(t, resp.Body.VoltageTHD)
	})

	t.Run("not completed", func(t *testing.T) {
		handler, repo, s3, _ := newHandler()
		id := uuid.New()
		repo.On("GetByID", mock.Anything, id).Return(&models.Conversion{ID: id.String(), Status: models.StatusProcessing}, nil)

		_, err := handler.GetConversionResult(context.Background(), &models.GetConversionResultRequest{ID: id.String()})
		assert.Equal(t, 409, statusOf(t, err))
		s3.AssertNotCalled(t, "GenerateDownloadURL", mock.Anything, mock.Anything)
	})

	t.Run("result missing", func(t *testing.T) {
		handler, repo, _, _ := newHandler()
		id := uuid.New()
		outputKey := "outputs/" + id.String() + ".txt"
		repo.On("GetByID", mock.Anything, id).Return(&models.Conversion{ID: id.String(), Status: models.StatusCompleted, OutputS3Key: &outputKey}, nil)
		repo.On("GetResult", mock.Anything, id).Return(nil, repository.ErrNotFound)

		_, err := handler.GetConversionResult(context.Background(), &models.GetConversionResultRequest{ID: id.String()})
		assert.Equal(t, 500, statusOf(t, err))
	})

	t.Run("invalid id", func(t *testing.T) {
		handler, _, _, _ := newHandler()
		_, err := handler.GetConversionResult(context.Background(), &models.GetConversionResultRequest{ID: "123"})
		assert.Equal(t, 400, statusOf(t, err))
	})
}

func TestListSessionConversions(t *testing.T) {
	t.Run("lists newest first", func(t *testing.T) {
		handler, repo, _, _ := newHandler()
		done := time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)
		older := &models.Conversion{
			ID:          uuid.NewString(),
			InputFormat: models.FormatCSV,
			Status:      models.StatusCompleted,
			Progress:    100,
			Metadata:    validMetadata(),
			CreatedAt:   time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			CompletedAt: &done,
		}
		newer := &models.Conversion{
			ID:          uuid.NewString(),
			InputFormat: models.FormatWAV,
			Status:      models.StatusPending,
			Metadata:    validMetadata(),
			CreatedAt:   time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC),
		}
		repo.On("GetBySessionID", mock.Anything, "browser-session-42").Return([]*models.Conversion{newer, older}, nil)

		resp, err := handler.ListSessionConversions(context.Background(), &models.ListSessionConversionsRequest{SessionID: "browser-session-42"})
		require.NoError(t, err)
		require.Len(t, resp.Body.Conversions, 2)
		assert.Equal(t, newer.ID, resp.Body.Conversions[0].ID)
		assert.Equal(t, "Waiting for upload...", resp.Body.Conversions[0].Message)
		assert.Equal(t, "Conversion complete!", resp.Body.Conversions[1].Message)
		assert.Equal(t, &done, resp.Body.Conversions[1].CompletedAt)
		assert.Equal(t, validMetadata().UniqueID, resp.Body.Conversions[1].UniqueID)
	})

	t.Run("empty session", func(t *testing.T) {
		handler, repo, _, _ := newHandler()
		repo.On("GetBySessionID", mock.Anything, "browser-session-00").Return(nil, nil)

		resp, err := handler.ListSessionConversions(context.Background(), &models.ListSessionConversionsRequest{SessionID: "browser-session-00"})
		require.NoError(t, err)
		assert.NotNil(t, resp.Body.Conversions)
		assert.Empty(t, resp.Body.Conversions)
	})

	t.Run("repository failure", func(t *testing.T) {
		handler, repo, _, _ := newHandler()
		repo.On("GetBySessionID", mock.Anything, "browser-session-13").Return(nil, errors.New("connection reset"))

		_, err := handler.ListSessionConversions(context.Background(), &models.ListSessionConversionsRequest{SessionID: "browser-session-13"})
		assert.Equal(t, 500, statusOf(t, err))
	})
}
