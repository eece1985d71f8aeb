// Package app assembles the service: connection management, the data
// dictionary services, the HTTP API and the MCP endpoint.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource/all"
	"github.com/ekaya-inc/ekaya-datadict/pkg/audit"
	"github.com/ekaya-inc/ekaya-datadict/pkg/auth"
	"github.com/ekaya-inc/ekaya-datadict/pkg/config"
	"github.com/ekaya-inc/ekaya-datadict/pkg/handlers"
	"github.com/ekaya-inc/ekaya-datadict/pkg/llm"
	"github.com/ekaya-inc/ekaya-datadict/pkg/mcp"
	"github.com/ekaya-inc/ekaya-datadict/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-datadict/pkg/middleware"
	"github.com/ekaya-inc/ekaya-datadict/pkg/services"
)

// shutdownTimeout bounds how long in-flight requests get to finish.
const shutdownTimeout = 15 * time.Second

// App holds the wired services. Commands that do not serve HTTP use the
// services directly.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	ConnManager *datasource.ConnectionManager
	Executor    *datasource.BlockingExecutor
	Datasources *services.DatasourceService
	Extractor   *services.SchemaExtractor
	Analyzer    *services.QualityAnalyzer
	Summarizer  *services.SummarizationService
	Artifacts   *services.ArtifactService
	Auditor     *audit.SecurityAuditor
}

// New wires the services for cfg. A missing LLM API key is not an error:
// summaries fall back to the local stub.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	connManager := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{
		TTLMinutes:     cfg.Datasource.ConnectionTTLMinutes,
		MaxConnections: cfg.Datasource.MaxConnections,
		PoolMaxConns:   cfg.Datasource.PoolMaxConns,
		PoolMinConns:   cfg.Datasource.PoolMinConns,
	}, logger)
	executor := datasource.NewBlockingExecutor(cfg.Datasource.BlockingWorkers, logger)

	factory := datasource.NewConnectorFactory(datasource.ConnectorDeps{
		ConnMgr:      connManager,
		Executor:     executor,
		Logger:       logger,
		QueryTimeout: time.Duration(cfg.Datasource.QueryTimeoutSeconds) * time.Second,
	})

	llmClient, err := llm.NewClientFromConfig(&llm.Config{
		Provider:  cfg.LLM.Provider,
		Endpoint:  cfg.LLM.Endpoint,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey,
		MaxTokens: cfg.LLM.MaxTokens,
	}, logger)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		logger.Info("No LLM API key configured, summaries use the local stub",
			zap.String("provider", cfg.LLM.Provider))
		llmClient = nil
	case err != nil:
		_ = connManager.Close()
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	return &App{
		Config:      cfg,
		Logger:      logger,
		ConnManager: connManager,
		Executor:    executor,
		Datasources: services.NewDatasourceService(factory, cfg, logger),
		Extractor:   services.NewSchemaExtractor(logger),
		Analyzer:    services.NewQualityAnalyzer(logger),
		Summarizer:  services.NewSummarizationService(llmClient, nil, cfg.LLM.Temperature, logger),
		Artifacts:   services.NewArtifactService(cfg.Artifacts.Dir, logger),
		Auditor:     audit.NewSecurityAuditor(logger),
	}, nil
}

// Close releases pooled database connections.
func (a *App) Close() error {
	return a.ConnManager.Close()
}

// Handler builds the HTTP handler: health routes, the REST API and the MCP
// endpoint at /mcp. Background cleanup for the rate limiter stops with ctx.
func (a *App) Handler(ctx context.Context, jwks auth.JWKSClientInterface) http.Handler {
	healthMux := http.NewServeMux()
	handlers.NewHealthHandler(a.Config, a.ConnManager, a.Logger).RegisterRoutes(healthMux)

	apiMux := http.NewServeMux()
	handlers.NewExtractHandler(a.Datasources, a.Extractor, a.Logger).RegisterRoutes(apiMux)
	handlers.NewQualityHandler(a.Datasources, a.Analyzer, a.Auditor, a.Logger).RegisterRoutes(apiMux)
	handlers.NewAIHandler(a.Summarizer, a.Datasources, a.Extractor, a.Logger).RegisterRoutes(apiMux)
	handlers.NewExportHandler(a.Datasources, a.Extractor, a.Artifacts, a.Auditor, a.Logger).RegisterRoutes(apiMux)
	apiMux.Handle("/mcp", middleware.MCPRequestLogger(a.Logger)(a.mcpHandler()))

	var api http.Handler = apiMux
	if a.Config.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
			UnauthenticatedPerMin: a.Config.RateLimit.UnauthenticatedPerMin,
			AuthenticatedPerMin:   a.Config.RateLimit.AuthenticatedPerMin,
			IdleTTL:               time.Duration(a.Config.RateLimit.ClientIdleTTLMinutes) * time.Minute,
		}, a.Logger)
		limiter.StartCleanup(ctx)
		api = limiter.Middleware(apiMux)
	}

	root := http.NewServeMux()
	root.Handle("/healthz", healthMux)
	root.Handle("/health", healthMux)
	root.Handle("/ping", healthMux)
	root.Handle("/", api)

	return middleware.Chain(root,
		middleware.SecurityHeaders(),
		middleware.RequestID(),
		middleware.RequestLogger(a.Logger),
		auth.NewMiddleware(jwks, a.Logger).OptionalAuth,
	)
}

func (a *App) mcpHandler() http.Handler {
	auditLogger := mcp.NewAuditLogger(a.Logger)
	srv := mcp.NewServer(handlers.ServiceName, a.Config.Version, a.Logger,
		mcpserver.WithHooks(auditLogger.Hooks()))

	tools.RegisterDataDictTools(srv.MCP(), &tools.DataDictToolDeps{
		Datasources: a.Datasources,
		Extractor:   a.Extractor,
		Analyzer:    a.Analyzer,
		Summarizer:  a.Summarizer,
		Auditor:     a.Auditor,
		Logger:      a.Logger.Named("mcp-tools"),
	})
	return srv.NewStreamableHTTPServer()
}

// Serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func (a *App) Serve(ctx context.Context) error {
	jwks, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: a.Config.Auth.EnableVerification,
		JWKSEndpoints:      a.Config.Auth.JWKSEndpoints,
	})
	if err != nil {
		return fmt.Errorf("create jwks client: %w", err)
	}
	defer jwks.Close()

	srv := &http.Server{
		Addr:              a.Config.ListenAddr(),
		Handler:           a.Handler(ctx, jwks),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		a.Logger.Info("Starting data dictionary server",
			zap.String("addr", srv.Addr),
			zap.String("version", a.Config.Version),
			zap.String("env", a.Config.Env),
			zap.String("default_db", a.Config.Datasource.DefaultType),
			zap.Bool("llm_enabled", a.Summarizer.Enabled()))
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		a.Logger.Info("Shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
