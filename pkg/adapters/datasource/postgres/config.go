package postgres

import (
	"fmt"
	"net/url"

	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datadict/pkg/config"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Schema   string // preferred schema when a table name exists in several
	SSLMode  string // "disable", "require", "verify-ca", "verify-full"
	// DSN, when set, is used verbatim instead of the individual fields.
	DSN string
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSSLMode returns the default SSL mode.
func DefaultSSLMode() string {
	return "require"
}

// FromMap creates a Config from a generic config map, applying built-in
// defaults for every field the map leaves out.
func FromMap(m map[string]any) (*Config, error) {
	cfg := &Config{
		Host:     "localhost",
		Port:     DefaultPort(),
		User:     "postgres",
		Database: "postgres",
		Schema:   "public",
		SSLMode:  DefaultSSLMode(),
	}

	if dsn, ok := datasource.GetString(m, "dsn", "database_url"); ok {
		if _, err := url.Parse(dsn); err != nil {
			return nil, fmt.Errorf("invalid postgres dsn: %w", err)
		}
		cfg.DSN = dsn
	}
	if host, ok := datasource.GetString(m, "host"); ok {
		cfg.Host = host
	}
	if port, ok := datasource.GetInt(m, "port"); ok {
		if port <= 0 || port > 65535 {
			return nil, fmt.Errorf("port out of range: %d", port)
		}
		cfg.Port = port
	}
	if user, ok := datasource.GetString(m, "user", "username"); ok {
		cfg.User = user
	}
	if password, ok := datasource.GetString(m, "password"); ok {
		cfg.Password = password
	}
	if database, ok := datasource.GetString(m, "database", "name"); ok {
		cfg.Database = database
	}
	if schema, ok := datasource.GetString(m, "schema"); ok {
		cfg.Schema = schema
	}
	if sslMode, ok := datasource.GetString(m, "ssl_mode", "sslmode"); ok {
		cfg.SSLMode = sslMode
	}

	return cfg, nil
}

// buildConnectionString builds a PostgreSQL URL with proper escaping.
// All user-provided fields are URL-escaped so passwords containing @, /, # or ?
// cannot break URL parsing. When running in Docker, localhost is resolved to
// host.docker.internal to reach databases on the host machine.
func buildConnectionString(cfg *Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = DefaultSSLMode()
	}

	host := config.ResolveHostForDocker(cfg.Host)

	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		host,
		cfg.Port,
		url.QueryEscape(cfg.Database),
		url.QueryEscape(sslMode),
	)
}
