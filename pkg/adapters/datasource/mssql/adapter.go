// Package mssql implements the SQL Server connector on go-mssqldb.
//
// The driver performs each round trip synchronously on the calling
// goroutine, so every connector call is dispatched onto the shared
// datasource.BlockingExecutor and returns as soon as its context ends.
package mssql

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datadict/pkg/logging"
	"github.com/ekaya-inc/ekaya-datadict/pkg/models"
)

// Connector provides SQL Server access with SQL or service principal authentication.
type Connector struct {
	config     *Config
	deps       datasource.ConnectorDeps
	driverName string
	handle     datasource.SQLHandle
	logger     *zap.Logger
}

// NewConnector creates a disconnected SQL Server connector.
func NewConnector(cfg *Config, deps datasource.ConnectorDeps) *Connector {
	return &Connector{
		config:     cfg,
		deps:       deps,
		driverName: cfg.DriverName(),
		logger:     deps.NamedLogger("mssql"),
	}
}

// Type returns "mssql".
func (c *Connector) Type() string { return "mssql" }

// Connect opens (or reuses) the pool and pings it. Blocks on the executor.
func (c *Connector) Connect(ctx context.Context) error {
	if err := datasource.RequireDriver(c.Type(), c.driverName); err != nil {
		return err
	}

	settings := datasource.SQLPoolSettings{MaxOpenConns: datasource.DefaultPoolMaxConns}
	if c.deps.ConnMgr != nil {
		settings.MaxOpenConns = int(c.deps.ConnMgr.Config().PoolMaxConns)
	}

	_, err := datasource.RunBlocking(ctx, c.deps.Executor, func(ctx context.Context) (struct{}, error) {
		db, owned, err := datasource.OpenSQL(ctx, c.deps.ConnMgr, c.Type(), c.driverName, buildDSN(c.config), settings)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, c.handle.SetIfActive(ctx, db, owned)
	})
	if err != nil {
		c.logger.Warn("connect failed",
			zap.String("auth_method", c.config.AuthMethod),
			zap.String("error", logging.SanitizeError(err)))
		return datasource.ConnectError(c.Type(), err)
	}
	return nil
}

// ListTables returns TABLE_SCHEMA and TABLE_NAME for every base table outside sys.
func (c *Connector) ListTables(ctx context.Context) ([]datasource.TableRecord, error) {
	const query = `
		SELECT TABLE_SCHEMA, TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA <> 'sys'
		ORDER BY TABLE_SCHEMA, TABLE_NAME
	`
	sample, err := c.query(ctx, "list tables", query)
	if err != nil {
		return nil, err
	}
	return datasource.TableRecords(sample), nil
}

// GetTableSchema returns the columns of table in the schema that owns it.
func (c *Connector) GetTableSchema(ctx context.Context, table string) (*models.TableSchema, error) {
	schemaName, err := c.resolveSchema(ctx, table)
	if err != nil {
		return nil, err
	}
	if schemaName == "" {
		return &models.TableSchema{TableName: table, Columns: []models.ColumnInfo{}}, nil
	}

	const query = `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION
	`
	sample, err := c.query(ctx, "get table schema", query, schemaName, table)
	if err != nil {
		return nil, err
	}

	schema := &models.TableSchema{TableName: table, Columns: make([]models.ColumnInfo, 0, len(sample))}
	for _, row := range sample {
		name, _ := row["COLUMN_NAME"].(string)
		dataType, _ := row["DATA_TYPE"].(string)
		nullable, _ := row["IS_NULLABLE"].(string)
		schema.Columns = append(schema.Columns, models.ColumnInfo{
			ColumnName: name,
			DataType:   dataType,
			IsNullable: nullable == "YES",
		})
	}
	return schema, nil
}

// FetchRows returns up to limit rows using SELECT TOP.
func (c *Connector) FetchRows(ctx context.Context, table string, limit int) (models.RowSample, error) {
	if !c.handle.Connected() {
		_, err := c.handle.DB()
		return nil, err
	}
	skip, err := datasource.CheckFetch(table, limit)
	if err != nil {
		return nil, err
	}
	if skip {
		return models.RowSample{}, nil
	}

	schemaName, err := c.resolveSchema(ctx, table)
	if err != nil {
		return nil, err
	}
	if schemaName == "" {
		return nil, datasource.QueryError("fetch rows", fmt.Errorf("table %q not found", table))
	}

	query := fmt.Sprintf("SELECT TOP (@p1) * FROM %s", buildFullyQualifiedName(schemaName, table))
	return c.query(ctx, "fetch rows", query, limit)
}

// resolveSchema returns the schema holding table: the configured schema when
// it has one, otherwise the alphabetically first schema that does.
// An empty result means the table does not exist.
func (c *Connector) resolveSchema(ctx context.Context, table string) (string, error) {
	const query = `
		SELECT TOP (1) TABLE_SCHEMA
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_NAME = @p1 AND TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA <> 'sys'
		ORDER BY CASE WHEN TABLE_SCHEMA = @p2 THEN 0 ELSE 1 END, TABLE_SCHEMA
	`
	sample, err := c.query(ctx, "resolve schema", query, table, c.config.Schema)
	if err != nil {
		return "", err
	}
	if len(sample) == 0 {
		return "", nil
	}
	name, _ := sample[0]["TABLE_SCHEMA"].(string)
	return name, nil
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

// Ensure Connector implements datasource.Connector at compile time.
var _ datasource.Connector = (*Connector)(nil)
