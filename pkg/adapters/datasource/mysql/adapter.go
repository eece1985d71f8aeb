// Package mysql implements the MySQL connector on go-sql-driver/mysql.
package mysql

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datadict/pkg/logging"
	"github.com/ekaya-inc/ekaya-datadict/pkg/models"
)

// DriverName is the database/sql driver whose presence gates Connect.
const DriverName = "mysql"

const systemSchemas = `('information_schema', 'mysql', 'performance_schema', 'sys')`

// Connector provides MySQL access through a database/sql pool.
type Connector struct {
	config     *Config
	deps       datasource.ConnectorDeps
	driverName string
	handle     datasource.SQLHandle
	logger     *zap.Logger
}

// NewConnector creates a disconnected MySQL connector.
func NewConnector(cfg *Config, deps datasource.ConnectorDeps) *Connector {
	return &Connector{
		config:     cfg,
		deps:       deps,
		driverName: DriverName,
		logger:     deps.NamedLogger("mysql"),
	}
}

// Type returns "mysql".
func (c *Connector) Type() string { return "mysql" }

// Connect opens (or reuses) the pool and pings it within ConnectTimeout.
func (c *Connector) Connect(ctx context.Context) error {
	if err := datasource.RequireDriver(c.Type(), c.driverName); err != nil {
		return err
	}

	db, owned, err := datasource.OpenSQL(ctx, c.deps.ConnMgr, c.Type(), c.driverName, formatDSN(c.config), datasource.SQLPoolSettings{
		MaxOpenConns: c.config.MaxOpenConns,
		MaxIdleConns: c.config.MaxIdleConns,
		PingTimeout:  c.config.ConnectTimeout,
	})
	if err != nil {
		c.logger.Warn("connect failed",
			zap.String("host", c.config.Host),
			zap.String("error", logging.SanitizeError(err)))
		return datasource.ConnectError(c.Type(), err)
	}

	c.handle.Set(db, owned)
	return nil
}

// ListTables returns TABLE_SCHEMA and TABLE_NAME for base tables in the
// connected database, or in every user schema when connected to
// information_schema.
func (c *Connector) ListTables(ctx context.Context) ([]datasource.TableRecord, error) {
	query := `
		SELECT TABLE_SCHEMA, TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE' AND ` + c.schemaPredicate() + `
		ORDER BY TABLE_SCHEMA, TABLE_NAME`

	sample, err := c.query(ctx, "list tables", query)
	if err != nil {
		return nil, err
	}
	return datasource.TableRecords(sample), nil
}

// GetTableSchema returns COLUMN_TYPE (e.g. "varchar(64)") as the data type.
func (c *Connector) GetTableSchema(ctx context.Context, table string) (*models.TableSchema, error) {
	schemaName, err := c.resolveSchema(ctx, table)
	if err != nil {
		return nil, err
	}

	schema := &models.TableSchema{TableName: table, Columns: []models.ColumnInfo{}}
	if schemaName == "" {
		return schema, nil
	}

	const query = `
		SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`

	sample, err := c.query(ctx, "get table schema", query, schemaName, table)
	if err != nil {
		return nil, err
	}
	for _, row := range sample {
		name, _ := row["COLUMN_NAME"].(string)
		dataType, _ := row["COLUMN_TYPE"].(string)
		nullable, _ := row["IS_NULLABLE"].(string)
		schema.Columns = append(schema.Columns, models.ColumnInfo{
			ColumnName: name,
			DataType:   dataType,
			IsNullable: nullable == "YES",
		})
	}
	return schema, nil
}

// FetchRows returns up to limit rows of table.
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

	target := quoteIdentifier(table)
	if c.config.ServerWide() {
		schemaName, err := c.resolveSchema(ctx, table)
		if err != nil {
			return nil, err
		}
		if schemaName == "" {
			return nil, datasource.QueryError("fetch rows", fmt.Errorf("table %q not found", table))
		}
		target = quoteIdentifier(schemaName) + "." + target
	}

	return c.query(ctx, "fetch rows", fmt.Sprintf("SELECT * FROM %s LIMIT ?", target), limit)
}

// resolveSchema returns the schema holding table: the connected database,
// or in server-wide mode the alphabetically first user schema that has it.
// An empty result means the table does not exist.
func (c *Connector) resolveSchema(ctx context.Context, table string) (string, error) {
	query := `
		SELECT MIN(TABLE_SCHEMA) AS TABLE_SCHEMA
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_NAME = ? AND ` + c.schemaPredicate()

	sample, err := c.query(ctx, "resolve schema", query, table)
	if err != nil {
		return "", err
	}
	if len(sample) == 0 {
		return "", nil
	}
	name, _ := sample[0]["TABLE_SCHEMA"].(string)
	return name, nil
}

func (c *Connector) schemaPredicate() string {
	if c.config.ServerWide() {
		return "TABLE_SCHEMA NOT IN " + systemSchemas
	}
	return "TABLE_SCHEMA = DATABASE()"
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

// Close releases the pool if this connector created it.
func (c *Connector) Close() error {
	return c.handle.Close()
}

// quoteIdentifier wraps name in backticks, doubling embedded backticks.
func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Ensure Connector implements datasource.Connector at compile time.
var _ datasource.Connector = (*Connector)(nil)
