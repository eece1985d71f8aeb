package mysql

import (
	"fmt"
	"time"

	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
)

// ServerWideDatabase is the default database. Connecting to it lists tables
// across every non-system schema instead of a single database.
const ServerWideDatabase = "information_schema"

// Config contains MySQL-specific connection options.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	ConnectTimeout time.Duration
	MaxIdleConns   int
	MaxOpenConns   int
}

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
}

// FromMap creates a Config from a generic config map, applying built-in
// defaults for every field the map leaves out.
func FromMap(m map[string]any) (*Config, error) {
	cfg := &Config{
		Host:           "localhost",
		Port:           DefaultPort(),
		User:           "root",
		Database:       ServerWideDatabase,
		ConnectTimeout: 5 * time.Second,
		MaxIdleConns:   5,
		MaxOpenConns:   10,
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
	if seconds, ok := datasource.GetInt(m, "connect_timeout"); ok && seconds > 0 {
		cfg.ConnectTimeout = time.Duration(seconds) * time.Second
	}

	return cfg, nil
}

// ServerWide reports whether the connector spans every user schema.
func (c *Config) ServerWide() bool {
	return c.Database == ServerWideDatabase
}
