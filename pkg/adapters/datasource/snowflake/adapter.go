// Package snowflake implements the Snowflake connector on gosnowflake.
//
// gosnowflake blocks the calling goroutine for each round trip, so every
// call runs on the shared datasource.BlockingExecutor.
package snowflake

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datadict/pkg/logging"
	"github.com/ekaya-inc/ekaya-datadict/pkg/models"
	"github.com/ekaya-inc/ekaya-datadict/pkg/sql"
)

// DriverName is the database/sql driver whose presence gates Connect.
const DriverName = "snowflake"

// Connector provides Snowflake access.
type Connector struct {
	config     *Config
	deps       datasource.ConnectorDeps
	driverName string
	handle     datasource.SQLHandle
	logger     *zap.Logger
}

// NewConnector creates a disconnected Snowflake connector.
func NewConnector(cfg *Config, deps datasource.ConnectorDeps) *Connector {
	return &Connector{
		config:     cfg,
		deps:       deps,
		driverName: DriverName,
		logger:     deps.NamedLogger("snowflake"),
	}
}

// Type returns "snowflake".
func (c *Connector) Type() string { return "snowflake" }

// Connect logs in and pings the warehouse. Blocks on the executor.
func (c *Connector) Connect(ctx context.Context) error {
	if err := datasource.RequireDriver(c.Type(), c.driverName); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return datasource.ConnectError(c.Type(), err)
	}

	dsn, err := formatDSN(c.config)
	if err != nil {
		return datasource.ConnectError(c.Type(), err)
	}

	settings := datasource.SQLPoolSettings{MaxOpenConns: datasource.DefaultPoolMaxConns}
	if c.deps.ConnMgr != nil {
		settings.MaxOpenConns = int(c.deps.ConnMgr.Config().PoolMaxConns)
	}

	_, err = datasource.RunBlocking(ctx, c.deps.Executor, func(ctx context.Context) (struct{}, error) {
		db, owned, err := datasource.OpenSQL(ctx, c.deps.ConnMgr, c.Type(), c.driverName, dsn, settings)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, c.handle.SetIfActive(ctx, db, owned)
	})
	if err != nil {
		c.logger.Warn("connect failed",
			zap.String("account", c.config.Account),
			zap.String("error", logging.SanitizeError(err)))
		return datasource.ConnectError(c.Type(), err)
	}
	return nil
}

// ListTables runs SHOW TABLES in the session's database and schema.
// Descriptors carry the raw SHOW columns; the table name is under "name".
func (c *Connector) ListTables(ctx context.Context) ([]datasource.TableRecord, error) {
	sample, err := c.query(ctx, "list tables", "SHOW TABLES")
	if err != nil {
		return nil, err
	}

	records := make([]datasource.TableRecord, 0, len(sample))
	for _, row := range sample {
		if schema, _ := row["schema_name"].(string); strings.EqualFold(schema, "INFORMATION_SCHEMA") {
			continue
		}
		records = append(records, datasource.TableRecord(row))
	}
	return records, nil
}

// GetTableSchema runs DESCRIBE TABLE. A table that does not exist (or is
// hidden from the role) yields an empty column list.
func (c *Connector) GetTableSchema(ctx context.Context, table string) (*models.TableSchema, error) {
	if _, err := c.handle.DB(); err != nil {
		return nil, err
	}
	// DESCRIBE cannot take a bind parameter, so the name is allow-listed
	// before it is quoted into the statement.
	if err := sql.ValidateTableName(table); err != nil {
		return nil, datasource.QueryError("get table schema", err)
	}

	schema := &models.TableSchema{TableName: table, Columns: []models.ColumnInfo{}}
	sample, err := c.query(ctx, "get table schema", "DESCRIBE TABLE "+quoteIdentifier(table))
	if err != nil {
		if isObjectMissing(err) {
			return schema, nil
		}
		return nil, err
	}

	for _, row := range sample {
		if kind, ok := row["kind"].(string); ok && kind != "COLUMN" {
			continue
		}
		name, _ := row["name"].(string)
		dataType, _ := row["type"].(string)
		nullable, _ := row["null?"].(string)
		schema.Columns = append(schema.Columns, models.ColumnInfo{
			ColumnName: name,
			DataType:   dataType,
			IsNullable: nullable == "Y",
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

	return c.query(ctx, "fetch rows", fmt.Sprintf("SELECT * FROM %s LIMIT ?", quoteIdentifier(table)), limit)
}

func (c *Connector) query(ctx context.Context, op, query string, args ...any) (models.RowSample, error) {
	if _, err := c.handle.DB(); err != nil {
		return nil, err
	}
	ctx, cancel := c.deps.WithQueryTimeout(ctx)
	defer cancel()

	sample, err := datasource.RunBlocking(ctx, c.deps.Executor, func(ctx context.Context) (models.RowSample, error) {
		return c.handle.Query(ctx, query, args...)
	})
	if err != nil {
		return nil, datasource.QueryError(op, err)
	}
	return sample, nil
}

// Close releases the pool if this connector created it.
func (c *Connector) Close() error {
	return c.handle.Close()
}

// quoteIdentifier double-quotes name. Quoted Snowflake identifiers are case
// sensitive, so names must be passed exactly as SHOW TABLES reports them.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Ensure Connector implements datasource.Connector at compile time.
var _ datasource.Connector = (*Connector)(nil)
