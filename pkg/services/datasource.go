package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xo/dburl"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datadict/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datadict/pkg/config"
	"github.com/ekaya-inc/ekaya-datadict/pkg/logging"
)

// ConnectionRequest is a caller-supplied connection target. Empty fields
// fall back to the configured defaults for the engine, then to the
// engine's built-in defaults. Configured credentials only fill in when the
// request targets the configured server.
type ConnectionRequest struct {
	DBType      string `json:"db_type"`
	DatabaseURL string `json:"database_url,omitempty"`
	Host        string `json:"host,omitempty"`
	Port        int    `json:"port,omitempty"`
	User        string `json:"user,omitempty"`
	Password    string `json:"password,omitempty"`
	Database    string `json:"database,omitempty"`
	Schema      string `json:"schema,omitempty"`
	// Options carries engine-specific fields: account, warehouse and role
	// for Snowflake, path for SQLite, ssl_mode, auth_method and so on.
	Options map[string]any `json:"options,omitempty"`
}

// DatasourceService turns connection requests into connected connectors.
type DatasourceService struct {
	factory     datasource.ConnectorFactory
	defaults    map[string]map[string]any
	defaultURL  string
	defaultType string
	logger      *zap.Logger
}

// NewDatasourceService creates a service using per-engine defaults from cfg.
func NewDatasourceService(factory datasource.ConnectorFactory, cfg *config.Config, logger *zap.Logger) *DatasourceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &DatasourceService{
		factory:     factory,
		defaults:    map[string]map[string]any{},
		defaultType: "postgres",
		logger:      logger.Named("datasource"),
	}
	if cfg != nil {
		s.defaults = DefaultsFromConfig(cfg)
		s.defaultURL = cfg.DatabaseURL
		if cfg.Datasource.DefaultType != "" {
			s.defaultType = cfg.Datasource.DefaultType
		}
	}
	return s
}

// DefaultsFromConfig maps the engine sections of cfg to connector config
// maps keyed by canonical engine type.
func DefaultsFromConfig(cfg *config.Config) map[string]map[string]any {
	return map[string]map[string]any{
		"postgres": {
			"host":     cfg.Postgres.Host,
			"port":     cfg.Postgres.Port,
			"user":     cfg.Postgres.User,
			"password": cfg.Postgres.Password,
			"database": cfg.Postgres.Database,
			"ssl_mode": cfg.Postgres.SSLMode,
		},
		"mysql": {
			"host":     cfg.MySQL.Host,
			"port":     cfg.MySQL.Port,
			"user":     cfg.MySQL.User,
			"password": cfg.MySQL.Password,
			"database": cfg.MySQL.Database,
		},
		"snowflake": {
			"account":   cfg.Snowflake.Account,
			"user":      cfg.Snowflake.User,
			"password":  cfg.Snowflake.Password,
			"database":  cfg.Snowflake.Database,
			"schema":    cfg.Snowflake.Schema,
			"warehouse": cfg.Snowflake.Warehouse,
			"role":      cfg.Snowflake.Role,
		},
		"mssql": {
			"host":     cfg.SQLServer.Host,
			"port":     cfg.SQLServer.Port,
			"user":     cfg.SQLServer.User,
			"password": cfg.SQLServer.Password,
			"database": cfg.SQLServer.Database,
		},
		"sqlite": {
			"path": cfg.SQLite.Path,
		},
	}
}

// Types lists the registered engines.
func (s *DatasourceService) Types() []datasource.ConnectorInfo {
	return s.factory.ListTypes()
}

// Resolve computes the engine type and connector config for req without
// touching the network.
func (s *DatasourceService) Resolve(req ConnectionRequest) (string, map[string]any, error) {
	request := map[string]any{
		"host":     req.Host,
		"port":     req.Port,
		"user":     req.User,
		"password": req.Password,
		"database": req.Database,
		"schema":   req.Schema,
	}
	for k, v := range req.Options {
		request[k] = v
	}

	dbType := datasource.CanonicalType(req.DBType)

	rawURL := req.DatabaseURL
	// Accept a connection URL in the database field, as older clients sent one there.
	if rawURL == "" && strings.Contains(req.Database, "://") {
		rawURL = req.Database
		request["database"] = ""
	}
	if rawURL != "" {
		urlType, fields, err := parseDatabaseURL(rawURL)
		if err != nil {
			return "", nil, err
		}
		if dbType == "" {
			dbType = urlType
		} else if dbType != urlType {
			return "", nil, fmt.Errorf("%w: db_type %q does not match database_url scheme %q",
				apperrors.ErrUnsupportedDatabase, req.DBType, urlType)
		}
		for k, v := range fields {
			if isEmpty(request[k]) {
				request[k] = v
			}
		}
	}

	if dbType == "" {
		return "", nil, fmt.Errorf("%w: db_type is required", apperrors.ErrUnsupportedDatabase)
	}

	defaults := s.defaults[dbType]
	if targetsOtherServer(dbType, request, defaults) {
		defaults = withoutCredentials(defaults)
	}
	return dbType, datasource.ResolveConnectionConfig(request, defaults), nil
}

// credentialKeys are the default fields only sent to the configured server.
var credentialKeys = []string{"user", "password"}

// targetsOtherServer reports whether request names a server other than the
// configured default for dbType: a different host (account for Snowflake)
// or a verbatim DSN.
func targetsOtherServer(dbType string, request, defaults map[string]any) bool {
	if dsn, _ := request["dsn"].(string); dsn != "" {
		return true
	}
	key := "host"
	if dbType == "snowflake" {
		key = "account"
	}
	requested, _ := request[key].(string)
	if requested == "" {
		return false
	}
	configured, _ := defaults[key].(string)
	return !strings.EqualFold(strings.TrimSpace(requested), strings.TrimSpace(configured))
}

func withoutCredentials(defaults map[string]any) map[string]any {
	trimmed := make(map[string]any, len(defaults))
	for k, v := range defaults {
		trimmed[k] = v
	}
	for _, k := range credentialKeys {
		delete(trimmed, k)
	}
	return trimmed
}

// Open resolves req, creates the connector and connects it. The caller
// must Close the returned connector.
func (s *DatasourceService) Open(ctx context.Context, req ConnectionRequest) (datasource.Connector, error) {
	dbType, cfg, err := s.Resolve(req)
	if err != nil {
		return nil, err
	}

	conn, err := s.factory.NewConnector(dbType, cfg)
	if err != nil {
		return nil, err
	}

	if err := conn.Connect(ctx); err != nil {
		s.logger.Warn("Datasource connection failed",
			zap.String("db_type", dbType),
			zap.String("kind", apperrors.Kind(err)),
			zap.String("error", logging.SanitizeError(err)))
		_ = conn.Close()
		return nil, err
	}

	s.logger.Debug("Datasource connected", zap.String("db_type", dbType))
	return conn, nil
}

// OpenDefault connects to the configured default database: DATABASE_URL
// when set, otherwise the config section of the default engine type.
func (s *DatasourceService) OpenDefault(ctx context.Context) (datasource.Connector, error) {
	if s.defaultURL != "" {
		return s.Open(ctx, ConnectionRequest{DatabaseURL: s.defaultURL})
	}
	return s.Open(ctx, ConnectionRequest{DBType: s.defaultType})
}

// parseDatabaseURL splits a connection URL into an engine type and
// connector fields using dburl's scheme aliases (pg, my, ms, sf, sq ...).
func parseDatabaseURL(raw string) (string, map[string]any, error) {
	u, err := dburl.Parse(raw)
	if err != nil {
		return "", nil, fmt.Errorf("invalid database_url: %w", err)
	}

	dbType := datasource.CanonicalType(u.Driver)
	fields := map[string]any{}

	switch dbType {
	case "postgres":
		pgURL := u.URL
		pgURL.Scheme = "postgres"
		fields["dsn"] = pgURL.String()
		return dbType, fields, nil
	case "sqlite":
		fields["path"] = u.DSN
		return dbType, fields, nil
	}

	host := u.Hostname()
	if dbType == "snowflake" {
		fields["account"] = host
	} else {
		fields["host"] = host
	}
	if port, err := strconv.Atoi(u.Port()); err == nil {
		fields["port"] = port
	}
	if u.User != nil {
		fields["user"] = u.User.Username()
		if password, ok := u.User.Password(); ok {
			fields["password"] = password
		}
	}

	path := strings.Trim(u.Path, "/")
	if dbType == "snowflake" {
		database, schema, _ := strings.Cut(path, "/")
		fields["database"] = database
		fields["schema"] = schema
	} else {
		fields["database"] = path
	}
	for key, values := range u.Query() {
		if len(values) > 0 {
			fields[strings.ToLower(key)] = values[0]
		}
	}
	return dbType, fields, nil
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case int:
		return val == 0
	}
	return false
}
