// Package datasource defines the engine-agnostic connector contract and the
// shared plumbing engines use: the registry, pooled connection management,
// driver probing, row normalization and the blocking executor.
package datasource

import (
	"context"

	"github.com/ekaya-inc/ekaya-datadict/pkg/models"
)

// Connector gives uniform access to one database engine.
//
// A connector starts disconnected. Every data operation issued before a
// successful Connect fails with apperrors.ErrNotConnected. Connect may be
// called again to replace the underlying connection.
type Connector interface {
	// Connect establishes the connection. Failures wrap apperrors.ErrConnectionFailure,
	// and a driver that is not compiled in additionally wraps apperrors.ErrDriverUnavailable.
	Connect(ctx context.Context) error

	// ListTables returns one record per user table. Records keep the
	// backend's native column names; TableRecord.Name finds the table name.
	ListTables(ctx context.Context) ([]TableRecord, error)

	// GetTableSchema returns the ordered columns of table. A table the
	// backend does not know yields an empty column list, not an error.
	GetTableSchema(ctx context.Context, table string) (*models.TableSchema, error)

	// FetchRows returns at most limit rows of table. The name is validated
	// before it reaches SQL. A limit of zero or less returns an empty sample.
	FetchRows(ctx context.Context, table string, limit int) (models.RowSample, error)

	// Type returns the canonical engine name ("postgres", "mysql", ...).
	Type() string

	// Close releases the connection unless it is owned by a ConnectionManager.
	Close() error
}

// TableRecord is one row of a backend's table listing.
type TableRecord map[string]any

// TableNameKeys are the record keys that may hold a table's name, in lookup order.
var TableNameKeys = []string{"table_name", "TABLE_NAME", "name", "NAME", "tablename"}

// Name returns the table name under the first matching key in TableNameKeys.
func (r TableRecord) Name() (string, bool) {
	for _, key := range TableNameKeys {
		v, ok := r[key]
		if !ok || v == nil {
			continue
		}
		switch name := v.(type) {
		case string:
			if name != "" {
				return name, true
			}
		case []byte:
			if len(name) > 0 {
				return string(name), true
			}
		}
	}
	return "", false
}
