package mssql

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datadict/pkg/config"
)

const (
	AuthSQL              = "sql"
	AuthServicePrincipal = "service_principal"
)

// Config contains SQL Server-specific connection options.
type Config struct {
	Host     string
	Port     int
	Database string
	Schema   string

	// AuthMethod determines which authentication to use: "sql" or "service_principal".
	AuthMethod string

	// SQL Authentication fields
	Username string
	Password string

	// Service Principal (Azure AD) fields
	TenantID     string
	ClientID     string
	ClientSecret string

	// Connection options
	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// FromMap creates a Config from a generic config map and auto-detects the
// auth method: a client_id selects service principal, anything else SQL auth.
func FromMap(m map[string]any) (*Config, error) {
	cfg := &Config{
		Host:              "localhost",
		Port:              DefaultPort(),
		Database:          "master",
		Schema:            "dbo",
		Username:          "sa",
		Encrypt:           true,
		ConnectionTimeout: DefaultConnectionTimeout(),
	}

	if host, ok := datasource.GetString(m, "host"); ok {
		cfg.Host = host
	}
	if port, ok := datasource.GetInt(m, "port"); ok {
		cfg.Port = port
	}
	if database, ok := datasource.GetString(m, "database", "name"); ok {
		cfg.Database = database
	}
	if schema, ok := datasource.GetString(m, "schema"); ok {
		cfg.Schema = schema
	}

	switch encrypt := m["encrypt"].(type) {
	case bool:
		cfg.Encrypt = encrypt
	case string:
		// Support string values: "true", "false", "strict"
		cfg.Encrypt = encrypt == "true" || encrypt == "strict"
	}
	if trust, ok := m["trust_server_certificate"].(bool); ok {
		cfg.TrustServerCertificate = trust
	}
	if timeout, ok := datasource.GetInt(m, "connection_timeout"); ok {
		cfg.ConnectionTimeout = timeout
	}

	if authMethod, ok := datasource.GetString(m, "auth_method"); ok {
		cfg.AuthMethod = authMethod
	} else if _, hasClientID := datasource.GetString(m, "client_id"); hasClientID {
		cfg.AuthMethod = AuthServicePrincipal
	} else {
		cfg.AuthMethod = AuthSQL
	}

	switch cfg.AuthMethod {
	case AuthSQL:
		if username, ok := datasource.GetString(m, "username", "user"); ok {
			cfg.Username = username
		}
		// Password can be empty for some scenarios
		if password, ok := datasource.GetString(m, "password"); ok {
			cfg.Password = password
		}
	case AuthServicePrincipal:
		cfg.Username = ""
		cfg.TenantID, _ = datasource.GetString(m, "tenant_id")
		cfg.ClientID, _ = datasource.GetString(m, "client_id")
		cfg.ClientSecret, _ = datasource.GetString(m, "client_secret")
	default:
		return nil, fmt.Errorf("invalid auth method: %s (must be sql or service_principal)", cfg.AuthMethod)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the config has all required fields for the selected auth method.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.AuthMethod {
	case AuthSQL:
		if c.Username == "" {
			return fmt.Errorf("username is required for SQL authentication")
		}
	case AuthServicePrincipal:
		if c.TenantID == "" {
			return fmt.Errorf("tenant_id is required for service principal")
		}
		if c.ClientID == "" {
			return fmt.Errorf("client_id is required for service principal")
		}
		if c.ClientSecret == "" {
			return fmt.Errorf("client_secret is required for service principal")
		}
	default:
		return fmt.Errorf("invalid auth method: %s", c.AuthMethod)
	}

	return nil
}

// DriverName returns the database/sql driver for the auth method.
// Azure AD logins need the azuresql driver from the azuread package.
func (c *Config) DriverName() string {
	if c.AuthMethod == AuthServicePrincipal {
		return "azuresql"
	}
	return "sqlserver"
}

// buildDSN builds a sqlserver:// URL for the configured auth method.
func buildDSN(cfg *Config) string {
	query := url.Values{}
	query.Add("database", cfg.Database)

	if cfg.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}
	if cfg.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if cfg.ConnectionTimeout > 0 {
		query.Add("connection timeout", strconv.Itoa(cfg.ConnectionTimeout))
	}

	host := config.ResolveHostForDocker(cfg.Host)

	if cfg.AuthMethod == AuthServicePrincipal {
		query.Add("fedauth", "ActiveDirectoryServicePrincipal")
		query.Add("user id", cfg.ClientID+"@"+cfg.TenantID)
		query.Add("password", cfg.ClientSecret)
		return fmt.Sprintf("sqlserver://%s:%d?%s", host, cfg.Port, query.Encode())
	}

	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(cfg.Username),
		url.QueryEscape(cfg.Password),
		host,
		cfg.Port,
		query.Encode(),
	)
}
