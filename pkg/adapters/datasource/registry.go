package datasource

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ConnectorInfo describes a registered engine for discovery endpoints.
type ConnectorInfo struct {
	Type        string   `json:"type"`         // "postgres", "mssql", "snowflake"
	DisplayName string   `json:"display_name"` // "PostgreSQL", "Microsoft SQL Server"
	Description string   `json:"description"`
	DriverName  string   `json:"driver"` // database/sql driver name checked at Connect
	Blocking    bool     `json:"blocking"`
	Aliases     []string `json:"aliases,omitempty"`
	Available   bool     `json:"available"`
}

// ConnectorDeps are the shared services handed to every connector factory.
// All fields are optional.
type ConnectorDeps struct {
	ConnMgr  *ConnectionManager
	Executor *BlockingExecutor
	Logger   *zap.Logger
	// QueryTimeout bounds each data operation. Zero means no extra bound.
	QueryTimeout time.Duration
}

// NamedLogger returns a child of Logger, or a no-op logger when unset.
func (d ConnectorDeps) NamedLogger(name string) *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger.Named(name)
}

// WithQueryTimeout derives the context for one data operation.
func (d ConnectorDeps) WithQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.QueryTimeout)
}

// ConnectorRegistration contains info plus the factory for an engine.
type ConnectorRegistration struct {
	Info    ConnectorInfo
	Factory func(config map[string]any, deps ConnectorDeps) (Connector, error)
}

// KnownTypes lists every engine this module ships. A known type that is
// not registered was excluded from the build.
var KnownTypes = []string{"mssql", "mysql", "postgres", "snowflake", "sqlite"}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]ConnectorRegistration)
	aliases    = make(map[string]string)
)

// Register is called by each engine's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg ConnectorRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
	for _, alias := range reg.Info.Aliases {
		aliases[strings.ToLower(alias)] = reg.Info.Type
	}
}

// RegisteredConnectors returns info for all registered engines sorted by type.
// Available reports whether the engine's driver is linked into the binary.
func RegisteredConnectors() []ConnectorInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]ConnectorInfo, 0, len(registry))
	for _, reg := range registry {
		info := reg.Info
		info.Available = DriverAvailable(info.DriverName)
		result = append(result, info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// CanonicalType maps a user-supplied engine name or alias to its registered
// type. Unknown names are returned lower-cased.
func CanonicalType(dbType string) string {
	name := strings.ToLower(strings.TrimSpace(dbType))
	registryMu.RLock()
	defer registryMu.RUnlock()
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	return name
}

// GetFactory returns the factory for an engine type.
// Returns nil if the type is not registered.
func GetFactory(dbType string) func(config map[string]any, deps ConnectorDeps) (Connector, error) {
	canonical := CanonicalType(dbType)
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[canonical]; ok {
		return reg.Factory
	}
	return nil
}

// IsRegistered checks if an engine type is available.
func IsRegistered(dbType string) bool {
	return GetFactory(dbType) != nil
}

func isKnownType(dbType string) bool {
	for _, t := range KnownTypes {
		if t == dbType {
			return true
		}
	}
	return false
}
