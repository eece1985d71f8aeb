package sqlite

import (
	"strings"

	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Config contains SQLite connection options.
type Config struct {
	Path string
}

// FromMap creates a Config from a generic config map. The path may be
// given as "path", "database" or "file"; it defaults to datadict.db.
func FromMap(m map[string]any) (*Config, error) {
	cfg := &Config{Path: "datadict.db"}
	if path, ok := datasource.GetString(m, "path", "database", "file"); ok {
		cfg.Path = path
	}
	return cfg, nil
}

// InMemory reports whether the database lives only in process memory.
func (c *Config) InMemory() bool {
	return c.Path == MemoryPath || strings.Contains(c.Path, "mode=memory")
}

func (c *Config) dsn() string {
	if strings.HasPrefix(c.Path, "file:") {
		return c.Path
	}
	return "file:" + c.Path
}
