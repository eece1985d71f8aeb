package handlers

import (
	"net/http"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource/all"
	"github.com/ekaya-inc/ekaya-datadict/pkg/audit"
	"github.com/ekaya-inc/ekaya-datadict/pkg/config"
	"github.com/ekaya-inc/ekaya-datadict/pkg/llm"
	"github.com/ekaya-inc/ekaya-datadict/pkg/services"
	"github.com/ekaya-inc/ekaya-datadict/pkg/testhelpers"
)

// testEnv wires every handler against a seeded SQLite default database.
type testEnv struct {
	mux          *http.ServeMux
	artifactsDir string
	sqlitePath   string
	llm          *llm.MockLLMClient
}

func newTestEnv(t *testing.T, client llm.LLMClient) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	env := &testEnv{
		mux:          http.NewServeMux(),
		artifactsDir: filepath.Join(t.TempDir(), "artifacts"),
		sqlitePath:   testhelpers.SQLiteFixture(t),
	}
	if mock, ok := client.(*llm.MockLLMClient); ok {
		env.llm = mock
	}

	cfg := &config.Config{Version: "test", Env: "test"}
	cfg.SQLite.Path = env.sqlitePath
	cfg.Datasource.DefaultType = "sqlite"

	connMgr := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{TTLMinutes: 5, MaxConnections: 5}, logger)
	t.Cleanup(func() { _ = connMgr.Close() })

	factory := datasource.NewConnectorFactory(datasource.ConnectorDeps{ConnMgr: connMgr, Logger: logger})
	datasources := services.NewDatasourceService(factory, cfg, logger)
	extractor := services.NewSchemaExtractor(logger)
	auditor := audit.NewSecurityAuditor(logger)
	summarizer := services.NewSummarizationService(client, nil, 0.2, logger)
	artifacts := services.NewArtifactService(env.artifactsDir, logger)

	NewHealthHandler(cfg, connMgr, logger).RegisterRoutes(env.mux)
	NewExtractHandler(datasources, extractor, logger).RegisterRoutes(env.mux)
	NewQualityHandler(datasources, services.NewQualityAnalyzer(logger), auditor, logger).RegisterRoutes(env.mux)
	NewAIHandler(summarizer, datasources, extractor, logger).RegisterRoutes(env.mux)
	NewExportHandler(datasources, extractor, artifacts, auditor, logger).RegisterRoutes(env.mux)
	return env
}
