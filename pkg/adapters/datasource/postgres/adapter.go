// Package postgres implements the PostgreSQL connector on pgxpool.
// Calls never block beyond the network round trip they wait on; the pool
// is shared through the datasource.ConnectionManager when one is supplied.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-datadict/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datadict/pkg/logging"
	"github.com/ekaya-inc/ekaya-datadict/pkg/models"
)

// DriverName is the database/sql driver whose presence gates Connect.
const DriverName = "pgx"

// Connector provides PostgreSQL access.
type Connector struct {
	config     *Config
	deps       datasource.ConnectorDeps
	driverName string
	logger     *zap.Logger

	mu        sync.RWMutex
	pool      *pgxpool.Pool
	ownedPool bool // true if we created the pool outside the connection manager
}

// NewConnector creates a disconnected PostgreSQL connector.
func NewConnector(cfg *Config, deps datasource.ConnectorDeps) *Connector {
	return &Connector{
		config:     cfg,
		deps:       deps,
		driverName: DriverName,
		logger:     deps.NamedLogger("postgres"),
	}
}

// Type returns "postgres".
func (c *Connector) Type() string { return "postgres" }

// Connect creates or reuses a pool and verifies it with a ping.
func (c *Connector) Connect(ctx context.Context) error {
	if err := datasource.RequireDriver(c.Type(), c.driverName); err != nil {
		return err
	}

	connStr := buildConnectionString(c.config)
	var (
		pool  *pgxpool.Pool
		owned bool
	)

	if c.deps.ConnMgr == nil {
		// Fallback for direct instantiation (tests, CLI one-shots)
		conn, err := datasource.CreatePostgresPool(ctx, connStr, datasource.ConnectionManagerConfig{
			TTLMinutes:   datasource.DefaultConnectionTTLMinutes,
			PoolMaxConns: datasource.DefaultPoolMaxConns,
			PoolMinConns: datasource.DefaultPoolMinConns,
		})
		if err != nil {
			return c.connectFailed(err)
		}
		pool, _ = datasource.GetPostgresPool(conn)
		owned = true
	} else {
		connMgr := c.deps.ConnMgr
		conn, err := connMgr.GetOrCreate(ctx, c.Type(), connStr, func(ctx context.Context) (datasource.PoolConnector, error) {
			return datasource.CreatePostgresPool(ctx, connStr, connMgr.Config())
		})
		if err != nil {
			return c.connectFailed(err)
		}
		pool, err = datasource.GetPostgresPool(conn)
		if err != nil {
			return c.connectFailed(err)
		}
	}

	c.mu.Lock()
	prev, prevOwned := c.pool, c.ownedPool
	c.pool, c.ownedPool = pool, owned
	c.mu.Unlock()
	if prevOwned && prev != nil && prev != pool {
		prev.Close()
	}

	c.logger.Debug("connected",
		zap.String("host", c.config.Host),
		zap.String("database", c.config.Database))
	return nil
}

func (c *Connector) connectFailed(err error) error {
	c.logger.Warn("connect failed", zap.String("error", logging.SanitizeError(err)))
	return datasource.ConnectError(c.Type(), err)
}

func (c *Connector) getPool() (*pgxpool.Pool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pool == nil {
		return nil, apperrors.ErrNotConnected
	}
	return c.pool, nil
}

// ListTables returns table_schema and table_name for every base table
// outside the system schemas.
func (c *Connector) ListTables(ctx context.Context) ([]datasource.TableRecord, error) {
	pool, err := c.getPool()
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.deps.WithQueryTimeout(ctx)
	defer cancel()

	const query = `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		  AND table_schema NOT IN ` + systemSchemas + `
		ORDER BY table_schema, table_name
	`

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, datasource.QueryError("list tables", err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, datasource.QueryError("list tables", err)
	}

	records := make([]datasource.TableRecord, len(maps))
	for i, m := range maps {
		records[i] = datasource.TableRecord(normalizeRow(m))
	}
	return records, nil
}

// GetTableSchema returns the columns of table in the schema that owns it.
func (c *Connector) GetTableSchema(ctx context.Context, table string) (*models.TableSchema, error) {
	pool, err := c.getPool()
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.deps.WithQueryTimeout(ctx)
	defer cancel()

	schema := &models.TableSchema{TableName: table, Columns: []models.ColumnInfo{}}
	schemaName, err := resolveSchema(ctx, pool, c.config.Schema, table)
	if err != nil {
		return nil, err
	}
	if schemaName == "" {
		return schema, nil
	}

	const query = `
		SELECT column_name, data_type, is_nullable = 'YES' AS is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := pool.Query(ctx, query, schemaName, table)
	if err != nil {
		return nil, datasource.QueryError("get table schema", err)
	}
	defer rows.Close()

	for rows.Next() {
		var col models.ColumnInfo
		if err := rows.Scan(&col.ColumnName, &col.DataType, &col.IsNullable); err != nil {
			return nil, datasource.QueryError("scan column", err)
		}
		schema.Columns = append(schema.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, datasource.QueryError("iterate columns", err)
	}
	return schema, nil
}

// FetchRows returns up to limit rows of table in storage order.
func (c *Connector) FetchRows(ctx context.Context, table string, limit int) (models.RowSample, error) {
	pool, err := c.getPool()
	if err != nil {
		return nil, err
	}
	skip, err := datasource.CheckFetch(table, limit)
	if err != nil {
		return nil, err
	}
	if skip {
		return models.RowSample{}, nil
	}
	ctx, cancel := c.deps.WithQueryTimeout(ctx)
	defer cancel()

	schemaName, err := resolveSchema(ctx, pool, c.config.Schema, table)
	if err != nil {
		return nil, err
	}
	if schemaName == "" {
		return nil, datasource.QueryError("fetch rows", fmt.Errorf("table %q not found", table))
	}

	query := fmt.Sprintf("SELECT * FROM %s LIMIT $1", qualifiedTableName(schemaName, table))
	rows, err := pool.Query(ctx, query, limit)
	if err != nil {
		return nil, datasource.QueryError("fetch rows", err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, datasource.QueryError("fetch rows", err)
	}

	sample := make(models.RowSample, len(maps))
	for i, m := range maps {
		sample[i] = normalizeRow(m)
	}
	return sample, nil
}

// Close releases the pool if this connector created it.
// Managed pools are left to the connection manager's TTL.
func (c *Connector) Close() error {
	c.mu.Lock()
	pool, owned := c.pool, c.ownedPool
	c.pool, c.ownedPool = nil, false
	c.mu.Unlock()

	if owned && pool != nil {
		pool.Close()
	}
	return nil
}

const systemSchemas = "('pg_catalog', 'information_schema', 'pg_toast')"

// resolveSchema returns the schema holding table: the preferred schema when
// it has one, otherwise the alphabetically first user schema that does.
// An empty result means the table does not exist.
func resolveSchema(ctx context.Context, pool *pgxpool.Pool, preferred, table string) (string, error) {
	const query = `
		SELECT table_schema
		FROM information_schema.tables
		WHERE table_name = $1
		  AND table_type = 'BASE TABLE'
		  AND table_schema NOT IN ` + systemSchemas + `
		ORDER BY table_schema::text = $2::text DESC, table_schema
		LIMIT 1
	`

	var schemaName string
	err := pool.QueryRow(ctx, query, table, preferred).Scan(&schemaName)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", datasource.QueryError("resolve schema", err)
	}
	return schemaName, nil
}

// qualifiedTableName returns a properly quoted schema.table identifier.
func qualifiedTableName(schemaName, tableName string) string {
	quotedTable := pgx.Identifier{tableName}.Sanitize()
	if schemaName == "" {
		return quotedTable
	}
	return pgx.Identifier{schemaName}.Sanitize() + "." + quotedTable
}

func normalizeRow(m map[string]any) models.Row {
	row := make(models.Row, len(m))
	for k, v := range m {
		row[k] = datasource.NormalizeValue(v)
	}
	return row
}

// Ensure Connector implements datasource.Connector at compile time.
var _ datasource.Connector = (*Connector)(nil)
