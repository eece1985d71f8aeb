package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datadict/pkg/models"
	"github.com/ekaya-inc/ekaya-datadict/pkg/services"
)

// ExtractResponse wraps a full schema extraction.
type ExtractResponse struct {
	Status     string                  `json:"status"`
	DBType     string                  `json:"db_type"`
	TableCount int                     `json:"table_count"`
	Data       models.ExtractionResult `json:"data"`
}

// DatasourceTypesResponse lists the engines compiled into the binary.
type DatasourceTypesResponse struct {
	Types []datasource.ConnectorInfo `json:"types"`
}

// ExtractHandler serves schema extraction endpoints.
type ExtractHandler struct {
	datasources *services.DatasourceService
	extractor   *services.SchemaExtractor
	logger      *zap.Logger
}

// NewExtractHandler creates a new extract handler.
func NewExtractHandler(datasources *services.DatasourceService, extractor *services.SchemaExtractor, logger *zap.Logger) *ExtractHandler {
	return &ExtractHandler{
		datasources: datasources,
		extractor:   extractor,
		logger:      logger,
	}
}

// RegisterRoutes registers the extract handler's routes on the given mux.
func (h *ExtractHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/datasources/types", h.Types)
	mux.HandleFunc("GET /api/extract/all", h.ExtractAll)
	mux.HandleFunc("POST /api/extract/connect", h.ExtractWithConnection)
}

// Types handles GET /api/datasources/types.
func (h *ExtractHandler) Types(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusOK, DatasourceTypesResponse{Types: h.datasources.Types()}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ExtractAll handles GET /api/extract/all against the default database.
func (h *ExtractHandler) ExtractAll(w http.ResponseWriter, r *http.Request) {
	h.extract(w, r, h.datasources.OpenDefault)
}

// ExtractWithConnection handles POST /api/extract/connect.
// The body is a services.ConnectionRequest.
func (h *ExtractHandler) ExtractWithConnection(w http.ResponseWriter, r *http.Request) {
	var req services.ConnectionRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	if req.DBType == "" && req.DatabaseURL == "" {
		badRequest(w, h.logger, "missing_db_type", "db_type or database_url is required")
		return
	}

	h.extract(w, r, func(ctx context.Context) (datasource.Connector, error) {
		return h.datasources.Open(ctx, req)
	})
}

func (h *ExtractHandler) extract(w http.ResponseWriter, r *http.Request, open func(context.Context) (datasource.Connector, error)) {
	ctx := r.Context()

	conn, err := open(ctx)
	if err != nil {
		WriteError(w, h.logger, "schema extraction", err)
		return
	}
	defer conn.Close()

	result, err := h.extractor.ExtractAll(ctx, conn)
	if err != nil {
		WriteError(w, h.logger, "schema extraction", err)
		return
	}

	response := ExtractResponse{
		Status:     "ok",
		DBType:     conn.Type(),
		TableCount: len(result),
		Data:       result,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
