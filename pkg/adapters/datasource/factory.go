package datasource

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-datadict/pkg/apperrors"
)

// ConnectorFactory creates connectors from the registry.
type ConnectorFactory interface {
	// NewConnector returns a disconnected connector for dbType.
	NewConnector(dbType string, config map[string]any) (Connector, error)

	// ListTypes returns info for all registered engine types.
	ListTypes() []ConnectorInfo
}

type registryFactory struct {
	deps ConnectorDeps
}

// NewConnectorFactory returns a factory that uses the global registry.
func NewConnectorFactory(deps ConnectorDeps) ConnectorFactory {
	return &registryFactory{deps: deps}
}

func (f *registryFactory) NewConnector(dbType string, config map[string]any) (Connector, error) {
	canonical := CanonicalType(dbType)
	factory := GetFactory(canonical)
	if factory == nil {
		if isKnownType(canonical) {
			return nil, fmt.Errorf("%w: %w: datasource type %s (not compiled in)",
				apperrors.ErrConnectionFailure, apperrors.ErrDriverUnavailable, canonical)
		}
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedDatabase, dbType)
	}
	return factory(config, f.deps)
}

func (f *registryFactory) ListTypes() []ConnectorInfo {
	return RegisteredConnectors()
}

// Ensure registryFactory implements ConnectorFactory at compile time.
var _ ConnectorFactory = (*registryFactory)(nil)
