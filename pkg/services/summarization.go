package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datadict/pkg/llm"
	"github.com/ekaya-inc/ekaya-datadict/pkg/logging"
	"github.com/ekaya-inc/ekaya-datadict/pkg/models"
)

// LocalSummaryPrefix marks text produced without an LLM.
const LocalSummaryPrefix = "[LOCAL STUB SUMMARY]"

const summarySystemMessage = `You are a data dictionary assistant. Describe database tables for analysts: ` +
	`what each table represents, what its important columns mean, and any data quality concerns. ` +
	`Be concise and factual.`

const metadataPrompt = `You are a data dictionary generator. Analyze the following JSON data and generate a metadata description in this exact JSON format:

{
  "tableType": "TABLE",
  "tableName": "<table_name>",
  "description": "<brief description of what this data represents>",
  "primaryKeys": ["<if there's an obvious primary key field>"],
  "foreignKeys": [],
  "columns": [
    {
      "columnName": "<field_name>",
      "dataType": "<inferred data type like VARCHAR, INTEGER, DATE, JSON, etc.>",
      "description": "<what this field represents>",
      "nullable": <true/false>,
      "isUnique": <true/false if field appears to have unique values>,
      "sampleValues": ["<2-3 example values from the data>"]
    }
  ]
}

Generate this metadata for the following JSON data:
`

// JSONMetadataResult is the outcome of GenerateJSONMetadata. Raw holds the
// model output; Metadata is set when it parsed as a TableMetadata object.
type JSONMetadataResult struct {
	Raw      string                `json:"raw"`
	Metadata *models.TableMetadata `json:"metadata,omitempty"`
	Provider string                `json:"provider"`
	Fallback bool                  `json:"fallback"`
}

// SummarizationService produces natural-language documentation. With no
// LLM client, or when the provider is unreachable, it answers with a
// deterministic local summary instead of failing.
type SummarizationService struct {
	client      llm.LLMClient
	pool        *llm.WorkerPool
	temperature float64
	logger      *zap.Logger
}

// NewSummarizationService creates a service. client may be nil.
func NewSummarizationService(client llm.LLMClient, pool *llm.WorkerPool, temperature float64, logger *zap.Logger) *SummarizationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pool == nil {
		pool = llm.NewWorkerPool(llm.DefaultWorkerPoolConfig(), logger)
	}
	return &SummarizationService{
		client:      client,
		pool:        pool,
		temperature: temperature,
		logger:      logger.Named("summarization"),
	}
}

// Enabled reports whether an LLM provider is configured.
func (s *SummarizationService) Enabled() bool {
	return s.client != nil
}

// SummarizeSchema describes a table schema supplied as free-form JSON.
func (s *SummarizationService) SummarizeSchema(ctx context.Context, schema map[string]any) (*models.TableSummary, error) {
	name, _ := schema["table_name"].(string)
	return s.summarize(ctx, name, formatJSON(schema))
}

// SummarizeTable describes an extracted table schema.
func (s *SummarizationService) SummarizeTable(ctx context.Context, schema models.TableSchema) (*models.TableSummary, error) {
	return s.summarize(ctx, schema.TableName, formatTableSchema(schema))
}

// Query sends arbitrary JSON data through the summarization prompt.
func (s *SummarizationService) Query(ctx context.Context, data map[string]any) (*models.TableSummary, error) {
	return s.summarize(ctx, "", formatJSON(data))
}

// SummarizeExtraction describes every table of result, in table-name order.
// Tables are summarized concurrently on the worker pool; the first failure
// is returned after all calls finish.
func (s *SummarizationService) SummarizeExtraction(ctx context.Context, result models.ExtractionResult) ([]models.TableSummary, error) {
	names := result.TableNames()
	items := make([]llm.WorkItem[*models.TableSummary], len(names))
	for i, name := range names {
		schema := result[name]
		items[i] = llm.WorkItem[*models.TableSummary]{
			ID: name,
			Execute: func(ctx context.Context) (*models.TableSummary, error) {
				return s.SummarizeTable(ctx, schema)
			},
		}
	}

	results := llm.Process(ctx, s.pool, items, nil)
	summaries := make([]models.TableSummary, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			return nil, fmt.Errorf("summarize %s: %w", r.ID, r.Err)
		}
		summaries = append(summaries, *r.Result)
	}
	return summaries, nil
}

// GenerateJSONMetadata asks the LLM for a data-dictionary entry describing
// data. Without a provider the entry is inferred locally from the values.
func (s *SummarizationService) GenerateJSONMetadata(ctx context.Context, data map[string]any, tableName string) (*JSONMetadataResult, error) {
	if tableName == "" {
		tableName = "data"
	}

	local := func() *JSONMetadataResult {
		metadata := InferMetadata(data, tableName)
		raw, _ := json.MarshalIndent(metadata, "", "  ")
		return &JSONMetadataResult{Raw: string(raw), Metadata: metadata, Provider: "local", Fallback: true}
	}
	if s.client == nil {
		return local(), nil
	}

	prompt := fmt.Sprintf("%s\n\nTable Name: %s\n\nData:\n%s", metadataPrompt, tableName, formatJSON(data))
	resp, err := s.client.GenerateResponse(ctx, prompt, "", s.temperature)
	if err != nil {
		if s.shouldFallBack(err) {
			return local(), nil
		}
		return nil, err
	}

	out := &JSONMetadataResult{Raw: llm.StripThinking(resp.Content), Provider: s.client.GetProvider()}
	if metadata, err := llm.ParseJSONResponse[models.TableMetadata](resp.Content); err == nil {
		out.Metadata = &metadata
	} else {
		s.logger.Debug("LLM metadata was not valid JSON", zap.Error(err))
	}
	return out, nil
}

func (s *SummarizationService) summarize(ctx context.Context, tableName, text string) (*models.TableSummary, error) {
	if s.client == nil {
		return s.localSummary(tableName, text), nil
	}

	resp, err := s.client.GenerateResponse(ctx, text, summarySystemMessage, s.temperature)
	if err != nil {
		if s.shouldFallBack(err) {
			return s.localSummary(tableName, text), nil
		}
		return nil, err
	}

	return &models.TableSummary{
		TableName: tableName,
		Summary:   llm.StripThinking(resp.Content),
		Provider:  s.client.GetProvider(),
		Model:     s.client.GetModel(),
	}, nil
}

// shouldFallBack reports whether err means the provider could not be
// reached at all. HTTP errors from a reachable provider are returned.
func (s *SummarizationService) shouldFallBack(err error) bool {
	if errors.Is(err, llm.ErrCircuitOpen) {
		return true
	}
	var llmErr *llm.Error
	if !errors.As(err, &llmErr) {
		return false
	}
	fallBack := llmErr.Type == llm.ErrorTypeEndpoint && llmErr.StatusCode == 0
	if fallBack {
		s.logger.Warn("LLM provider unreachable, using local summary",
			zap.String("error", logging.SanitizeError(err)))
	}
	return fallBack
}

func (s *SummarizationService) localSummary(tableName, text string) *models.TableSummary {
	return &models.TableSummary{
		TableName: tableName,
		Summary:   LocalSummary(text),
		Provider:  "local",
		Fallback:  true,
	}
}

// LocalSummary produces a deterministic description of text. JSON arrays
// of objects are summarized by record count, keys and the first examples;
// anything else by a preview and its length.
func LocalSummary(text string) string {
	var data any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &data); err == nil {
		switch v := data.(type) {
		case []any:
			examples := v
			if len(examples) > 3 {
				examples = examples[:3]
			}
			exampleJSON, _ := json.Marshal(examples)
			return fmt.Sprintf("%s records=%d | columns=%v | examples=%s",
				LocalSummaryPrefix, len(v), recordKeysOf(v), exampleJSON)
		case map[string]any:
			sample, _ := json.Marshal(v)
			return fmt.Sprintf("%s object_keys=%v | sample=%s",
				LocalSummaryPrefix, sortedKeys(v), logging.TruncateString(string(sample), 400))
		}
	}

	preview := []rune(text)
	if len(preview) > 200 {
		preview = preview[:200]
	}
	return fmt.Sprintf("%s preview=%s | length=%d", LocalSummaryPrefix, string(preview), len(text))
}

func recordKeysOf(records []any) []string {
	seen := map[string]bool{}
	for _, r := range records {
		if obj, ok := r.(map[string]any); ok {
			for k := range obj {
				seen[k] = true
			}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatJSON(v any) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(out)
}

func formatTableSchema(schema models.TableSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s\nColumns:\n", schema.TableName)
	for _, c := range schema.Columns {
		nullable := "NOT NULL"
		if c.IsNullable {
			nullable = "NULL"
		}
		fmt.Fprintf(&b, "- %s %s %s\n", c.ColumnName, c.DataType, nullable)
	}
	return b.String()
}
