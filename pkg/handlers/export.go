package handlers

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datadict/pkg/audit"
	"github.com/ekaya-inc/ekaya-datadict/pkg/middleware"
	"github.com/ekaya-inc/ekaya-datadict/pkg/models"
	"github.com/ekaya-inc/ekaya-datadict/pkg/services"
)

// ExportResponse reports a written artifact.
type ExportResponse struct {
	Status   string           `json:"status"`
	Path     string           `json:"path"`
	Artifact *models.Artifact `json:"artifact"`
}

// ExportHandler writes data-dictionary artifacts for the default database.
type ExportHandler struct {
	datasources *services.DatasourceService
	extractor   *services.SchemaExtractor
	artifacts   *services.ArtifactService
	auditor     *audit.SecurityAuditor
	logger      *zap.Logger
}

// NewExportHandler creates a new export handler.
func NewExportHandler(datasources *services.DatasourceService, extractor *services.SchemaExtractor, artifacts *services.ArtifactService, auditor *audit.SecurityAuditor, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{
		datasources: datasources,
		extractor:   extractor,
		artifacts:   artifacts,
		auditor:     auditor,
		logger:      logger,
	}
}

// RegisterRoutes registers the export handler's routes on the given mux.
func (h *ExportHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/export/markdown/{table}", h.Markdown)
	mux.HandleFunc("GET /api/export/json", h.JSON)
	mux.HandleFunc("GET /api/export/yaml", h.YAML)
}

// Markdown handles GET /api/export/markdown/{table}. A table the database
// does not know is a 404.
func (h *ExportHandler) Markdown(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	if err := h.auditor.CheckTableName(r.Context(), "export.markdown", table, middleware.ClientIP(r)); err != nil {
		WriteError(w, h.logger, "markdown export", err)
		return
	}

	ctx := r.Context()
	conn, err := h.datasources.OpenDefault(ctx)
	if err != nil {
		WriteError(w, h.logger, "markdown export", err)
		return
	}
	defer conn.Close()

	schema, err := conn.GetTableSchema(ctx, table)
	if err != nil {
		WriteError(w, h.logger, "markdown export", err)
		return
	}
	if len(schema.Columns) == 0 {
		if err := ErrorResponse(w, http.StatusNotFound, "not_found", fmt.Sprintf("table %s not found", table)); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	artifact, err := h.artifacts.WriteMarkdown(*schema)
	h.writeArtifact(w, "markdown export", artifact, err)
}

// JSON handles GET /api/export/json: the full extraction as one JSON file.
func (h *ExportHandler) JSON(w http.ResponseWriter, r *http.Request) {
	h.exportAll(w, r, "json export", h.artifacts.WriteJSON)
}

// YAML handles GET /api/export/yaml: the full extraction as one YAML file.
func (h *ExportHandler) YAML(w http.ResponseWriter, r *http.Request) {
	h.exportAll(w, r, "yaml export", h.artifacts.WriteYAML)
}

func (h *ExportHandler) exportAll(w http.ResponseWriter, r *http.Request, operation string, write func(string, any) (*models.Artifact, error)) {
	ctx := r.Context()
	result, dbType, err := h.extractDefault(ctx)
	if err != nil {
		WriteError(w, h.logger, operation, err)
		return
	}

	artifact, err := write("data_dictionary_"+dbType, result)
	h.writeArtifact(w, operation, artifact, err)
}

func (h *ExportHandler) extractDefault(ctx context.Context) (models.ExtractionResult, string, error) {
	conn, err := h.datasources.OpenDefault(ctx)
	if err != nil {
		return nil, "", err
	}
	defer conn.Close()

	result, err := h.extractor.ExtractAll(ctx, conn)
	if err != nil {
		return nil, "", err
	}
	return result, conn.Type(), nil
}

func (h *ExportHandler) writeArtifact(w http.ResponseWriter, operation string, artifact *models.Artifact, err error) {
	if err != nil {
		WriteError(w, h.logger, operation, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ExportResponse{Status: "ok", Path: artifact.Path, Artifact: artifact}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
