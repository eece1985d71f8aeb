package datasource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-datadict/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datadict/pkg/models"
)

type stubConnector struct {
	dbType string
	config map[string]any
}

func (s *stubConnector) Connect(ctx context.Context) error { return nil }
func (s *stubConnector) ListTables(ctx context.Context) ([]TableRecord, error) {
	return nil, nil
}
func (s *stubConnector) GetTableSchema(ctx context.Context, table string) (*models.TableSchema, error) {
	return &models.TableSchema{TableName: table, Columns: []models.ColumnInfo{}}, nil
}
func (s *stubConnector) FetchRows(ctx context.Context, table string, limit int) (models.RowSample, error) {
	return models.RowSample{}, nil
}
func (s *stubConnector) Type() string { return s.dbType }
func (s *stubConnector) Close() error { return nil }

func init() {
	Register(ConnectorRegistration{
		Info: ConnectorInfo{
			Type:        "stubdb",
			DisplayName: "Stub",
			DriverName:  "stubdb-driver",
			Aliases:     []string{"StubAlias"},
		},
		Factory: func(config map[string]any, deps ConnectorDeps) (Connector, error) {
			return &stubConnector{dbType: "stubdb", config: config}, nil
		},
	})
}

func TestFactory_NewConnector_ByAlias(t *testing.T) {
	f := NewConnectorFactory(ConnectorDeps{})

	c, err := f.NewConnector("stubalias", map[string]any{"host": "h"})
	require.NoError(t, err)
	assert.Equal(t, "stubdb", c.Type())
	assert.Equal(t, "h", c.(*stubConnector).config["host"])
}

func TestFactory_NewConnector_Unsupported(t *testing.T) {
	f := NewConnectorFactory(ConnectorDeps{})

	_, err := f.NewConnector("oracle", nil)
	require.ErrorIs(t, err, apperrors.ErrUnsupportedDatabase)
	assert.Equal(t, apperrors.KindUnsupportedDatabase, apperrors.Kind(err))
}

func TestFactory_NewConnector_KnownButNotCompiledIn(t *testing.T) {
	// Engine packages are not imported by this package's tests.
	f := NewConnectorFactory(ConnectorDeps{})

	_, err := f.NewConnector("snowflake", nil)
	require.ErrorIs(t, err, apperrors.ErrDriverUnavailable)
	require.ErrorIs(t, err, apperrors.ErrConnectionFailure)
	assert.Contains(t, err.Error(), "not compiled in")
}

func TestRegisteredConnectors_ReportsAvailability(t *testing.T) {
	var found bool
	for _, info := range RegisteredConnectors() {
		if info.Type == "stubdb" {
			found = true
			assert.False(t, info.Available)
		}
	}
	assert.True(t, found)
}

func TestCanonicalType(t *testing.T) {
	assert.Equal(t, "stubdb", CanonicalType("  STUBALIAS "))
	assert.Equal(t, "oracle", CanonicalType("Oracle"))
}

func TestTableRecord_Name(t *testing.T) {
	tests := []struct {
		name   string
		record TableRecord
		want   string
		ok     bool
	}{
		{"snake", TableRecord{"table_schema": "public", "table_name": "users"}, "users", true},
		{"upper", TableRecord{"TABLE_NAME": "ORDERS"}, "ORDERS", true},
		{"snowflake show", TableRecord{"name": "EVENTS", "kind": "TABLE"}, "EVENTS", true},
		{"pg_tables", TableRecord{"tablename": "t1"}, "t1", true},
		{"bytes", TableRecord{"TABLE_NAME": []byte("raw")}, "raw", true},
		{"priority", TableRecord{"name": "second", "table_name": "first"}, "first", true},
		{"empty skipped", TableRecord{"table_name": "", "name": "fallback"}, "fallback", true},
		{"missing", TableRecord{"schema": "public"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.record.Name()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
