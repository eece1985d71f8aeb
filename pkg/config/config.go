package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultConfigPath is read when present. Its absence is not an error; the
// service can be configured entirely from the environment.
const DefaultConfigPath = "config.yaml"

// Config holds all configuration for ekaya-datadict.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// DatabaseURL is the default target for GET /api/extract/all.
	// Takes precedence over the discrete Postgres fields when set.
	DatabaseURL string `yaml:"-" env:"DATABASE_URL"`

	// Per-engine connection defaults, used when a request omits a field.
	Postgres  PostgresConfig  `yaml:"postgres"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Snowflake SnowflakeConfig `yaml:"snowflake"`
	SQLServer SQLServerConfig `yaml:"sqlserver"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`

	// Datasource connection management configuration
	Datasource DatasourceConfig `yaml:"datasource"`

	LLM       LLMConfig       `yaml:"llm"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
}

// PostgresConfig holds PostgreSQL connection defaults.
type PostgresConfig struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"postgres"`
	Password string `yaml:"-" env:"POSTGRES_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"POSTGRES_DB" env-default:"postgres"`
	SSLMode  string `yaml:"ssl_mode" env:"POSTGRES_SSLMODE" env-default:"disable"`
}

// MySQLConfig holds MySQL connection defaults.
type MySQLConfig struct {
	Host     string `yaml:"host" env:"MYSQL_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"MYSQL_PORT" env-default:"3306"`
	User     string `yaml:"user" env:"MYSQL_USER" env-default:"root"`
	Password string `yaml:"-" env:"MYSQL_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"MYSQL_DATABASE" env-default:"information_schema"`
}

// SnowflakeConfig holds Snowflake connection defaults.
type SnowflakeConfig struct {
	Account   string `yaml:"account" env:"SNOWFLAKE_ACCOUNT"`
	User      string `yaml:"user" env:"SNOWFLAKE_USER"`
	Password  string `yaml:"-" env:"SNOWFLAKE_PASSWORD"` // Secret - not in YAML
	Database  string `yaml:"database" env:"SNOWFLAKE_DATABASE"`
	Schema    string `yaml:"schema" env:"SNOWFLAKE_SCHEMA" env-default:"PUBLIC"`
	Warehouse string `yaml:"warehouse" env:"SNOWFLAKE_WAREHOUSE"`
	Role      string `yaml:"role" env:"SNOWFLAKE_ROLE"`
}

// SQLServerConfig holds SQL Server connection defaults.
type SQLServerConfig struct {
	Host     string `yaml:"host" env:"SQLSERVER_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"SQLSERVER_PORT" env-default:"1433"`
	User     string `yaml:"user" env:"SQLSERVER_USER" env-default:"sa"`
	Password string `yaml:"-" env:"SQLSERVER_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"SQLSERVER_DATABASE" env-default:"master"`
}

// SQLiteConfig holds the default SQLite database path.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"SQLITE_PATH" env-default:"datadict.db"`
}

// DatasourceConfig holds datasource connection management settings.
type DatasourceConfig struct {
	// DefaultType is the engine used by routes that take no connection
	// request, such as GET /api/extract/all.
	DefaultType string `yaml:"default_type" env:"DATASOURCE_DEFAULT_TYPE" env-default:"postgres"`
	// ConnectionTTLMinutes is how long idle datasource connections are kept alive.
	ConnectionTTLMinutes int `yaml:"connection_ttl_minutes" env:"DATASOURCE_CONNECTION_TTL_MINUTES" env-default:"5"`
	// MaxConnections caps the number of distinct pools held by the connection manager.
	MaxConnections int `yaml:"max_connections" env:"DATASOURCE_MAX_CONNECTIONS" env-default:"20"`
	// PoolMaxConns is the maximum number of connections per datasource pool.
	PoolMaxConns int32 `yaml:"pool_max_conns" env:"DATASOURCE_POOL_MAX_CONNS" env-default:"10"`
	// PoolMinConns is the minimum number of connections per datasource pool.
	PoolMinConns int32 `yaml:"pool_min_conns" env:"DATASOURCE_POOL_MIN_CONNS" env-default:"1"`
	// BlockingWorkers bounds concurrent calls into blocking drivers (Snowflake, SQL Server).
	BlockingWorkers int `yaml:"blocking_workers" env:"DATASOURCE_BLOCKING_WORKERS" env-default:"8"`
	// QueryTimeoutSeconds applies to every connector call. 0 disables the timeout.
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds" env:"DATASOURCE_QUERY_TIMEOUT_SECONDS" env-default:"30"`
}

// LLMConfig holds the summarization provider settings.
type LLMConfig struct {
	// Provider is "groq" (any OpenAI-compatible endpoint) or "anthropic".
	Provider    string  `yaml:"provider" env:"LLM_PROVIDER" env-default:"groq"`
	Endpoint    string  `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:"https://api.groq.com/openai/v1"`
	Model       string  `yaml:"model" env:"MODEL_NAME" env-default:"llama-3.3-70b-versatile"`
	Temperature float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.7"`
	MaxTokens   int     `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"1024"`
	// APIKey falls back to GROQ_API_KEY or ANTHROPIC_API_KEY depending on provider.
	APIKey string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
}

// AuthConfig holds authentication-related configuration.
// Authentication is optional: it only selects the higher rate-limit tier.
type AuthConfig struct {
	// EnableVerification controls whether JWT signatures are validated.
	// Set to false for local development without an auth server.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`
}

// RateLimitConfig holds per-client request limits.
type RateLimitConfig struct {
	Enabled               bool `yaml:"enabled" env:"RATE_LIMIT_ENABLED" env-default:"true"`
	UnauthenticatedPerMin int  `yaml:"unauthenticated_per_min" env:"RATE_LIMIT_UNAUTHENTICATED" env-default:"10"`
	AuthenticatedPerMin   int  `yaml:"authenticated_per_min" env:"RATE_LIMIT_AUTHENTICATED" env-default:"100"`
	ClientIdleTTLMinutes  int  `yaml:"client_idle_ttl_minutes" env:"RATE_LIMIT_CLIENT_TTL_MINUTES" env-default:"10"`
}

// ArtifactsConfig controls where exported dictionaries are written.
type ArtifactsConfig struct {
	Dir string `yaml:"dir" env:"ARTIFACTS_DIR" env-default:"artifacts"`
}

// Load reads configuration from config.yaml (if present) with environment
// variable overrides. The version parameter is injected at build time and
// set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFrom(DefaultConfigPath, version)
}

// LoadFrom is Load with an explicit config file path.
func LoadFrom(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	cfg.parseComplexFields()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() {
	c.Auth.JWKSEndpoints = parseJWKSEndpoints(c.Auth.JWKSEndpointsStr)

	if c.LLM.APIKey == "" {
		switch strings.ToLower(c.LLM.Provider) {
		case "anthropic":
			c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		default:
			c.LLM.APIKey = os.Getenv("GROQ_API_KEY")
		}
	}
}

func (c *Config) validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "groq", "openai", "anthropic":
	default:
		return fmt.Errorf("llm provider must be groq, openai or anthropic, got %q", c.LLM.Provider)
	}
	if c.Datasource.PoolMinConns > c.Datasource.PoolMaxConns {
		return fmt.Errorf("datasource pool_min_conns (%d) exceeds pool_max_conns (%d)",
			c.Datasource.PoolMinConns, c.Datasource.PoolMaxConns)
	}
	if c.RateLimit.Enabled && (c.RateLimit.UnauthenticatedPerMin <= 0 || c.RateLimit.AuthenticatedPerMin <= 0) {
		return fmt.Errorf("rate limits must be positive when rate limiting is enabled")
	}
	return nil
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	pairs := strings.Split(value, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) == 2 {
			endpoints[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return endpoints
}

// IsLocal reports whether the service runs in a developer environment.
func (c *Config) IsLocal() bool {
	return c.Env == "" || c.Env == "local" || c.Env == "dev" || c.Env == "development"
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return c.BindAddr + ":" + c.Port
}
