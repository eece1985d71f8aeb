package datasource

import (
	"context"
	"database/sql"
	"sync"

	"github.com/ekaya-inc/ekaya-datadict/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datadict/pkg/models"
)

// SQLHandle holds the database/sql pool of a connector. The zero value is
// disconnected. It is safe for concurrent use.
type SQLHandle struct {
	mu    sync.RWMutex
	db    *sql.DB
	owned bool
}

// Set installs db, closing the previous pool when the handle owned it.
func (h *SQLHandle) Set(db *sql.DB, owned bool) {
	h.mu.Lock()
	prev, prevOwned := h.db, h.owned
	h.db, h.owned = db, owned
	h.mu.Unlock()

	if prevOwned && prev != nil && prev != db {
		_ = prev.Close()
	}
}

// SetIfActive installs db unless ctx has already ended. A pool opened for a
// caller that gave up is closed here when owned, since no Close will follow.
// The check runs under the same lock as Close, so a pool is either installed
// before a concurrent Close or discarded.
func (h *SQLHandle) SetIfActive(ctx context.Context, db *sql.DB, owned bool) error {
	h.mu.Lock()
	if err := ctx.Err(); err != nil {
		h.mu.Unlock()
		if owned && db != nil {
			_ = db.Close()
		}
		return err
	}
	prev, prevOwned := h.db, h.owned
	h.db, h.owned = db, owned
	h.mu.Unlock()

	if prevOwned && prev != nil && prev != db {
		_ = prev.Close()
	}
	return nil
}

// DB returns the pool or apperrors.ErrNotConnected.
func (h *SQLHandle) DB() (*sql.DB, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.db == nil {
		return nil, apperrors.ErrNotConnected
	}
	return h.db, nil
}

// Connected reports whether a pool is installed.
func (h *SQLHandle) Connected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.db != nil
}

// Close disconnects, closing the pool only when the handle owns it.
func (h *SQLHandle) Close() error {
	h.mu.Lock()
	db, owned := h.db, h.owned
	h.db, h.owned = nil, false
	h.mu.Unlock()

	if owned && db != nil {
		return db.Close()
	}
	return nil
}

// Query runs query on the installed pool and returns every row.
func (h *SQLHandle) Query(ctx context.Context, query string, args ...any) (models.RowSample, error) {
	db, err := h.DB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return ScanRows(rows)
}

// OpenSQL obtains a pool for dsn, through connMgr when one is given.
// The returned flag reports whether the caller owns (and must close) the pool.
func OpenSQL(ctx context.Context, connMgr *ConnectionManager, dbType, driverName, dsn string, settings SQLPoolSettings) (*sql.DB, bool, error) {
	open := func(ctx context.Context) (PoolConnector, error) {
		return OpenSQLPool(ctx, dbType, driverName, dsn, settings)
	}

	if connMgr == nil {
		conn, err := open(ctx)
		if err != nil {
			return nil, false, err
		}
		db, err := GetSQLDB(conn)
		return db, true, err
	}

	conn, err := connMgr.GetOrCreate(ctx, dbType, dsn, open)
	if err != nil {
		return nil, false, err
	}
	db, err := GetSQLDB(conn)
	return db, false, err
}
