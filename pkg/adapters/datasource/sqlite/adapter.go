// Package sqlite implements the SQLite connector on modernc.org/sqlite.
package sqlite

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datadict/pkg/models"
)

// DriverName is the database/sql driver whose presence gates Connect.
const DriverName = "sqlite"

// Connector provides access to one SQLite database file.
type Connector struct {
	config     *Config
	deps       datasource.ConnectorDeps
	driverName string
	handle     datasource.SQLHandle
	logger     *zap.Logger
}

// NewConnector creates a disconnected SQLite connector.
func NewConnector(cfg *Config, deps datasource.ConnectorDeps) *Connector {
	return &Connector{
		config:     cfg,
		deps:       deps,
		driverName: DriverName,
		logger:     deps.NamedLogger("sqlite"),
	}
}

// Type returns "sqlite".
func (c *Connector) Type() string { return "sqlite" }

// Connect opens the database file. In-memory databases are never shared
// through the connection manager and are held on a single connection so
// every query sees the same data.
func (c *Connector) Connect(ctx context.Context) error {
	if err := datasource.RequireDriver(c.Type(), c.driverName); err != nil {
		return err
	}

	connMgr := c.deps.ConnMgr
	settings := datasource.SQLPoolSettings{}
	if c.config.InMemory() {
		connMgr = nil
		settings.MaxOpenConns = 1
	}

	db, owned, err := datasource.OpenSQL(ctx, connMgr, c.Type(), c.driverName, c.config.dsn(), settings)
	if err != nil {
		c.logger.Warn("open failed", zap.String("path", c.config.Path), zap.Error(err))
		return datasource.ConnectError(c.Type(), err)
	}
	c.handle.Set(db, owned)
	return nil
}

// ListTables returns the "name" of every user table.
func (c *Connector) ListTables(ctx context.Context) ([]datasource.TableRecord, error) {
	const query = `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

	sample, err := c.query(ctx, "list tables", query)
	if err != nil {
		return nil, err
	}
	return datasource.TableRecords(sample), nil
}

// GetTableSchema reads pragma_table_info, which takes the table name as a
// bound argument.
func (c *Connector) GetTableSchema(ctx context.Context, table string) (*models.TableSchema, error) {
	const query = `SELECT name, type, "notnull" FROM pragma_table_info(?) ORDER BY cid`

	sample, err := c.query(ctx, "get table schema", query, table)
	if err != nil {
		return nil, err
	}

	schema := &models.TableSchema{TableName: table, Columns: make([]models.ColumnInfo, 0, len(sample))}
	for _, row := range sample {
		name, _ := row["name"].(string)
		dataType, _ := row["type"].(string)
		notNull, _ := row["notnull"].(int64)
		schema.Columns = append(schema.Columns, models.ColumnInfo{
			ColumnName: name,
			DataType:   dataType,
			IsNullable: notNull == 0,
		})
	}
	return schema, nil
}

// FetchRows returns up to limit rows of table in rowid order.
func (c *Connector) FetchRows(ctx context.Context, table string, limit int) (models.RowSample, error) {
	if _, err := c.handle.DB(); err != nil {
		return nil, err
	}
	skip, err := datasource.CheckFetch(table, limit)
	if err != nil {
		return nil, err
	}
	if skip {
		return models.RowSample{}, nil
	}

	return c.query(ctx, "fetch rows", fmt.Sprintf("SELECT * FROM %s LIMIT ?", quoteIdentifier(table)), limit)
}

func (c *Connector) query(ctx context.Context, op, query string, args ...any) (models.RowSample, error) {
	ctx, cancel := c.deps.WithQueryTimeout(ctx)
	defer cancel()

	sample, err := c.handle.Query(ctx, query, args...)
	if err != nil {
		return nil, datasource.QueryError(op, err)
	}
	return sample, nil
}

// Exec runs a statement against the open database. Used to seed local
// dictionaries and fixtures.
func (c *Connector) Exec(ctx context.Context, statement string, args ...any) error {
	db, err := c.handle.DB()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, statement, args...); err != nil {
		return datasource.QueryError("exec", err)
	}
	return nil
}

// Close releases the database if this connector opened it.
func (c *Connector) Close() error {
	return c.handle.Close()
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Ensure Connector implements datasource.Connector at compile time.
var _ datasource.Connector = (*Connector)(nil)
