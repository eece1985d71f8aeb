package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-datadict/pkg/llm"
	"github.com/ekaya-inc/ekaya-datadict/pkg/services"
)

func TestAIHandler_SummarizeLocalFallback(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := serve(env, http.MethodPost, "/api/ai/summarize", `{"schema": {"table_name": "customers", "columns": ["id"]}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SummaryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Summary.Fallback)
	assert.True(t, strings.HasPrefix(resp.Summary.Summary, services.LocalSummaryPrefix))
}

func TestAIHandler_SummarizeWithProvider(t *testing.T) {
	mock := llm.NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (*llm.GenerateResponseResult, error) {
		return &llm.GenerateResponseResult{Content: "Stores customers."}, nil
	}
	env := newTestEnv(t, mock)

	rec := serve(env, http.MethodPost, "/api/ai/query", `{"data": {"rows": [1, 2]}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SummaryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Stores customers.", resp.Summary.Summary)
	assert.Equal(t, 1, env.llm.Calls())
}

func TestAIHandler_ProviderFailure(t *testing.T) {
	mock := llm.NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (*llm.GenerateResponseResult, error) {
		return nil, llm.NewErrorWithContext(llm.ErrorTypeAuth, "authentication failed", false, nil, "m", "", 401)
	}
	env := newTestEnv(t, mock)

	rec := serve(env, http.MethodPost, "/api/ai/summarize", `{"schema": {"a": 1}}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "llm_failure", decodeError(t, rec)["error"])
}

func TestAIHandler_Validation(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		path      string
		body      string
		wantError string
	}{
		{"/api/ai/summarize", `{}`, "missing_schema"},
		{"/api/ai/query", `{"data": {}}`, "missing_data"},
		{"/api/ai/json-metadata", `{"table_name": "x"}`, "missing_json_data"},
		{"/api/ai/query", `not json`, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.path+" "+tt.wantError, func(t *testing.T) {
			rec := serve(env, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantError, decodeError(t, rec)["error"])
		})
	}
}

func TestAIHandler_JSONMetadata(t *testing.T) {
	env := newTestEnv(t, nil)

	body := `{"json_data": {"users": [{"id": 1, "email": "a@example.com"}, {"id": 2, "email": null}]}, "table_name": "users"}`
	rec := serve(env, http.MethodPost, "/api/ai/json-metadata", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp JSONMetadataResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Metadata.Metadata)
	assert.Equal(t, "users", resp.Metadata.Metadata.TableName)
	assert.Equal(t, []string{"id"}, resp.Metadata.Metadata.PrimaryKeys)
	assert.True(t, resp.Metadata.Fallback)
}

func TestAIHandler_Dictionary(t *testing.T) {
	mock := llm.NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (*llm.GenerateResponseResult, error) {
		return &llm.GenerateResponseResult{Content: "described"}, nil
	}
	env := newTestEnv(t, mock)

	rec := serve(env, http.MethodPost, "/api/ai/dictionary", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp DictionaryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "sqlite", resp.DBType)
	require.Len(t, resp.Summaries, 2)
	assert.Equal(t, "customers", resp.Summaries[0].TableName)
	assert.Equal(t, "orders", resp.Summaries[1].TableName)
	assert.Equal(t, 2, mock.Calls())
}
