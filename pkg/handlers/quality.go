package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datadict/pkg/audit"
	"github.com/ekaya-inc/ekaya-datadict/pkg/middleware"
	"github.com/ekaya-inc/ekaya-datadict/pkg/models"
	"github.com/ekaya-inc/ekaya-datadict/pkg/services"
)

// DefaultAnalyzeLimit is the row limit of POST /api/quality/analyze when
// the request omits one.
const DefaultAnalyzeLimit = 1000

// QualityRequest is the body of POST /api/quality/analyze. Connection
// fields are optional; without them the default database is used.
type QualityRequest struct {
	services.ConnectionRequest
	TableName string `json:"table_name"`
	Limit     int    `json:"limit"`
}

// QualityResponse wraps table quality metrics.
type QualityResponse struct {
	Status  string                 `json:"status"`
	Table   string                 `json:"table"`
	Metrics *models.QualityMetrics `json:"metrics"`
}

// QualityHandler serves data quality endpoints.
type QualityHandler struct {
	datasources *services.DatasourceService
	analyzer    *services.QualityAnalyzer
	auditor     *audit.SecurityAuditor
	logger      *zap.Logger
}

// NewQualityHandler creates a new quality handler.
func NewQualityHandler(datasources *services.DatasourceService, analyzer *services.QualityAnalyzer, auditor *audit.SecurityAuditor, logger *zap.Logger) *QualityHandler {
	return &QualityHandler{
		datasources: datasources,
		analyzer:    analyzer,
		auditor:     auditor,
		logger:      logger,
	}
}

// RegisterRoutes registers the quality handler's routes on the given mux.
func (h *QualityHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/quality/table/{table}", h.AnalyzeTable)
	mux.HandleFunc("POST /api/quality/analyze", h.Analyze)
}

// AnalyzeTable handles GET /api/quality/table/{table}?sample=N.
// A sample outside [1, 10000] falls back to the default of 500.
func (h *QualityHandler) AnalyzeTable(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	if err := h.auditor.CheckTableName(r.Context(), "quality.table", table, middleware.ClientIP(r)); err != nil {
		WriteError(w, h.logger, "quality analysis", err)
		return
	}

	sample := services.DefaultSampleSize
	if raw := r.URL.Query().Get("sample"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(w, h.logger, "invalid_sample", "sample must be an integer")
			return
		}
		sample = n
	}

	h.analyze(w, r, table, sample, h.datasources.OpenDefault)
}

// Analyze handles POST /api/quality/analyze. Unlike the GET route, a limit
// outside [1, 10000] is rejected.
func (h *QualityHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req QualityRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	if err := h.auditor.CheckTableName(r.Context(), "quality.analyze", req.TableName, middleware.ClientIP(r)); err != nil {
		WriteError(w, h.logger, "quality analysis", err)
		return
	}
	if req.Limit == 0 {
		req.Limit = DefaultAnalyzeLimit
	}
	if req.Limit < services.MinSampleSize || req.Limit > services.MaxSampleSize {
		badRequest(w, h.logger, "invalid_limit", "limit must be between 1 and 10000")
		return
	}

	open := h.datasources.OpenDefault
	if req.DBType != "" || req.DatabaseURL != "" {
		open = func(ctx context.Context) (datasource.Connector, error) {
			return h.datasources.Open(ctx, req.ConnectionRequest)
		}
	}
	h.analyze(w, r, req.TableName, req.Limit, open)
}

func (h *QualityHandler) analyze(w http.ResponseWriter, r *http.Request, table string, sample int, open func(context.Context) (datasource.Connector, error)) {
	ctx := r.Context()

	conn, err := open(ctx)
	if err != nil {
		WriteError(w, h.logger, "quality analysis", err)
		return
	}
	defer conn.Close()

	metrics, err := h.analyzer.AnalyzeTable(ctx, conn, table, sample)
	if err != nil {
		WriteError(w, h.logger, "quality analysis", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, QualityResponse{Status: "ok", Table: table, Metrics: metrics}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
