package snowflake

import (
	"fmt"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
)

// Config contains Snowflake connection options. Database, schema, warehouse
// and role become session defaults, so SHOW TABLES and DESCRIBE TABLE
// resolve against them.
type Config struct {
	Account      string
	User         string
	Password     string
	Database     string
	Schema       string
	Warehouse    string
	Role         string
	LoginTimeout time.Duration
}

// FromMap creates a Config from a generic config map.
func FromMap(m map[string]any) (*Config, error) {
	cfg := &Config{
		Schema:       "PUBLIC",
		LoginTimeout: 60 * time.Second,
	}

	cfg.Account, _ = datasource.GetString(m, "account", "host")
	cfg.User, _ = datasource.GetString(m, "user", "username")
	cfg.Password, _ = datasource.GetString(m, "password")
	cfg.Database, _ = datasource.GetString(m, "database", "name")
	if schema, ok := datasource.GetString(m, "schema"); ok {
		cfg.Schema = schema
	}
	cfg.Warehouse, _ = datasource.GetString(m, "warehouse")
	cfg.Role, _ = datasource.GetString(m, "role")
	if seconds, ok := datasource.GetInt(m, "login_timeout"); ok && seconds > 0 {
		cfg.LoginTimeout = time.Duration(seconds) * time.Second
	}

	// Accounts are often pasted as the full host name.
	cfg.Account = strings.TrimSuffix(cfg.Account, ".snowflakecomputing.com")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields Snowflake needs to authenticate.
func (c *Config) Validate() error {
	if c.Account == "" {
		return fmt.Errorf("account is required")
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	return nil
}
