package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/RMahshie/panda/internal/api/handlers"
	"github.com/RMahshie/panda/internal/processing"
	"github.com/RMahshie/panda/internal/repository"
	"github.com/RMahshie/panda/internal/storage"
	"github.com/RMahshie/panda/pkg/models"
)

// Version is reported by the health endpoint and the OpenAPI document
const Version = "1.0.0"

// RegisterRoutes sets up all API routes
func RegisterRoutes(api huma.API, repo repository.ConversionRepository, s3Service storage.S3Service, processingSvc processing.ProcessingService) {
	conversionHandler := handlers.NewConversionHandler(repo, s3Service, processingSvc)
	pandaHandler := handlers.NewPandaHandler()

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service",
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{}
		resp.Body.Status = "healthy"
		resp.Body.Version = Version
		resp.Body.Time = time.Now()
		return resp, nil
	})

	// Conversion routes
	huma.Register(api, huma.Operation{
		OperationID: "createConversion",
		Method:      http.MethodPost,
		Path:        "/api/conversions",
		Summary:     "Create a new conversion",
		Description: "Validates equipment metadata, creates a conversion record and returns an upload URL",
		Tags:        []string{"Conversion"},
	}, conversionHandler.CreateConversion)

	huma.Register(api, huma.Operation{
		OperationID: "startProcessing",
		Method:      http.MethodPost,
		Path:        "/api/conversions/{id}/process",
		Summary:     "Start processing a conversion",
		Description: "Starts converting an uploaded measurement into a PANDA file",
		Tags:        []string{"Conversion"},
	}, conversionHandler.StartProcessing)

	huma.Register(api, huma.Operation{
		OperationID: "getConversionStatus",
		Method:      http.MethodGet,
		Path:        "/api/conversions/{id}/status",
		Summary:     "Get conversion status",
		Description: "Returns the current status and progress of a conversion",
		Tags:        []string{"Conversion"},
	}, conversionHandler.GetConversionStatus)

	huma.Register(api, huma.Operation{
		OperationID: "getConversionResult",
		Method:      http.MethodGet,
		Path:        "/api/conversions/{id}/result",
		Summary:     "Get conversion result",
		Description: "Returns the extracted harmonics and a download URL for the PANDA file",
		Tags:        []string{"Conversion"},
	}, conversionHandler.GetConversionResult)

	huma.Register(api, huma.Operation{
		OperationID: "listSessionConversions",
		Method:      http.MethodGet,
		Path:        "/api/sessions/{sessionID}/conversions",
		Summary:     "List session conversions",
		Description: "Returns the conversions created by a client session, newest first",
		Tags:        []string{"Conversion"},
	}, conversionHandler.ListSessionConversions)

	// Synchronous PANDA routes
	huma.Register(api, huma.Operation{
		OperationID: "listCategories",
		Method:      http.MethodGet,
		Path:        "/api/categories",
		Summary:     "List equipment categories",
		Description: "Returns the PANDA categories, subcategories and supply sources",
		Tags:        []string{"PANDA"},
	}, pandaHandler.Categories)

	huma.Register(api, huma.Operation{
		OperationID: "encodePanda",
		Method:      http.MethodPost,
		Path:        "/api/panda/encode",
		Summary:     "Encode a PANDA file",
		Description: "Builds a PANDA file from equipment metadata and harmonic spectra",
		Tags:        []string{"PANDA"},
	}, pandaHandler.Encode)

	huma.Register(api, huma.Operation{
		OperationID:  "decodePanda",
		Method:       http.MethodPost,
		Path:         "/api/panda/decode",
		Summary:      "Decode a PANDA file",
		Description:  "Parses and validates a PANDA file and returns its contents",
		Tags:         []string{"PANDA"},
		MaxBodyBytes: 64 << 20,
	}, pandaHandler.Decode)
}
