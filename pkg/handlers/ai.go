package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datadict/pkg/models"
	"github.com/ekaya-inc/ekaya-datadict/pkg/services"
)

// SummarizeRequest is the body of POST /api/ai/summarize.
type SummarizeRequest struct {
	Schema map[string]any `json:"schema"`
}

// QueryRequest is the body of POST /api/ai/query.
type QueryRequest struct {
	Data map[string]any `json:"data"`
}

// JSONMetadataRequest is the body of POST /api/ai/json-metadata.
type JSONMetadataRequest struct {
	JSONData  map[string]any `json:"json_data"`
	TableName string         `json:"table_name"`
}

// SummaryResponse is returned by POST /api/ai/summarize and /api/ai/query.
type SummaryResponse struct {
	Status  string               `json:"status"`
	Summary *models.TableSummary `json:"summary"`
}

// JSONMetadataResponse is returned by POST /api/ai/json-metadata.
type JSONMetadataResponse struct {
	Status   string                       `json:"status"`
	Metadata *services.JSONMetadataResult `json:"metadata"`
}

// DictionaryResponse is returned by POST /api/ai/dictionary.
type DictionaryResponse struct {
	Status    string                `json:"status"`
	DBType    string                `json:"db_type"`
	Summaries []models.TableSummary `json:"summaries"`
}

// AIHandler serves the LLM-backed documentation endpoints.
type AIHandler struct {
	summarizer  *services.SummarizationService
	datasources *services.DatasourceService
	extractor   *services.SchemaExtractor
	logger      *zap.Logger
}

// NewAIHandler creates a new AI handler.
func NewAIHandler(summarizer *services.SummarizationService, datasources *services.DatasourceService, extractor *services.SchemaExtractor, logger *zap.Logger) *AIHandler {
	return &AIHandler{
		summarizer:  summarizer,
		datasources: datasources,
		extractor:   extractor,
		logger:      logger,
	}
}

// RegisterRoutes registers the AI handler's routes on the given mux.
func (h *AIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ai/summarize", h.Summarize)
	mux.HandleFunc("POST /api/ai/query", h.Query)
	mux.HandleFunc("POST /api/ai/json-metadata", h.JSONMetadata)
	mux.HandleFunc("POST /api/ai/dictionary", h.Dictionary)
}

// Summarize handles POST /api/ai/summarize.
func (h *AIHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	var req SummarizeRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	if len(req.Schema) == 0 {
		badRequest(w, h.logger, "missing_schema", "schema is required")
		return
	}

	summary, err := h.summarizer.SummarizeSchema(r.Context(), req.Schema)
	h.writeSummary(w, summary, err)
}

// Query handles POST /api/ai/query.
func (h *AIHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	if len(req.Data) == 0 {
		badRequest(w, h.logger, "missing_data", "data is required")
		return
	}

	summary, err := h.summarizer.Query(r.Context(), req.Data)
	h.writeSummary(w, summary, err)
}

// JSONMetadata handles POST /api/ai/json-metadata.
func (h *AIHandler) JSONMetadata(w http.ResponseWriter, r *http.Request) {
	var req JSONMetadataRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	if len(req.JSONData) == 0 {
		badRequest(w, h.logger, "missing_json_data", "json_data is required")
		return
	}

	result, err := h.summarizer.GenerateJSONMetadata(r.Context(), req.JSONData, req.TableName)
	if err != nil {
		h.writeLLMError(w, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, JSONMetadataResponse{Status: "ok", Metadata: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Dictionary handles POST /api/ai/dictionary: it extracts every table of
// the requested database and summarizes each one. An empty body targets
// the default database.
func (h *AIHandler) Dictionary(w http.ResponseWriter, r *http.Request) {
	var req services.ConnectionRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, h.logger, &req) {
		return
	}

	open := h.datasources.OpenDefault
	if req.DBType != "" || req.DatabaseURL != "" {
		open = func(ctx context.Context) (datasource.Connector, error) {
			return h.datasources.Open(ctx, req)
		}
	}

	ctx := r.Context()
	conn, err := open(ctx)
	if err != nil {
		WriteError(w, h.logger, "data dictionary", err)
		return
	}
	defer conn.Close()

	result, err := h.extractor.ExtractAll(ctx, conn)
	if err != nil {
		WriteError(w, h.logger, "data dictionary", err)
		return
	}

	summaries, err := h.summarizer.SummarizeExtraction(ctx, result)
	if err != nil {
		h.writeLLMError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, DictionaryResponse{Status: "ok", DBType: conn.Type(), Summaries: summaries}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *AIHandler) writeSummary(w http.ResponseWriter, summary *models.TableSummary, err error) {
	if err != nil {
		h.writeLLMError(w, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, SummaryResponse{Status: "ok", Summary: summary}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeLLMError reports a provider failure as 502: the request was valid
// but the upstream model rejected or failed it.
func (h *AIHandler) writeLLMError(w http.ResponseWriter, err error) {
	h.logger.Error("LLM request failed", zap.Error(err))
	if err := ErrorResponse(w, http.StatusBadGateway, "llm_failure", "Summarization provider request failed"); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
