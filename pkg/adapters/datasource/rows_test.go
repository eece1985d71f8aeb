package datasource

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/ekaya-inc/ekaya-datadict/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datadict/pkg/models"
)

func TestNormalizeValue(t *testing.T) {
	id := uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.Nil(t, NormalizeValue(nil))
	assert.Equal(t, "hello", NormalizeValue([]byte("hello")))
	assert.Equal(t, "/w==", NormalizeValue([]byte{0xff}))
	assert.Equal(t, id.String(), NormalizeValue([16]byte(id)))
	assert.Equal(t, id.String(), NormalizeValue(id))
	assert.Equal(t, now, NormalizeValue(now))
	assert.Equal(t, int64(7), NormalizeValue(int64(7)))
	assert.Nil(t, NormalizeValue(sql.NullString{}))
	assert.Equal(t, "x", NormalizeValue(sql.NullString{String: "x", Valid: true}))
}

func openTempSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "rows.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestScanRows(t *testing.T) {
	db := openTempSQLite(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `CREATE TABLE users (id INTEGER, email TEXT)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO users VALUES (1, 'a@x.io'), (2, NULL)`)
	require.NoError(t, err)

	rows, err := db.QueryContext(ctx, `SELECT id, email FROM users ORDER BY id`)
	require.NoError(t, err)
	sample, err := ScanRows(rows)
	require.NoError(t, err)

	require.Len(t, sample, 2)
	assert.Equal(t, int64(1), sample[0]["id"])
	assert.Equal(t, "a@x.io", sample[0]["email"])
	assert.Contains(t, sample[1], "email")
	assert.Nil(t, sample[1]["email"])
}

func TestScanRows_EmptyIsNotNil(t *testing.T) {
	db := openTempSQLite(t)
	rows, err := db.QueryContext(context.Background(), `SELECT 1 AS one WHERE 1 = 0`)
	require.NoError(t, err)

	sample, err := ScanRows(rows)
	require.NoError(t, err)
	assert.NotNil(t, sample)
	assert.Empty(t, sample)
}

func TestSQLHandle_Lifecycle(t *testing.T) {
	var h SQLHandle
	_, err := h.DB()
	require.ErrorIs(t, err, apperrors.ErrNotConnected)

	first := openTempSQLite(t)
	h.Set(first, true)
	assert.True(t, h.Connected())

	second := openTempSQLite(t)
	h.Set(second, false)
	assert.Error(t, first.PingContext(context.Background()), "owned pool closed on replace")

	require.NoError(t, h.Close())
	assert.NoError(t, second.PingContext(context.Background()), "unowned pool left open")
	assert.False(t, h.Connected())
}

func TestSQLHandle_SetIfActive(t *testing.T) {
	t.Run("installs while the caller waits", func(t *testing.T) {
		var h SQLHandle
		db := openTempSQLite(t)
		require.NoError(t, h.SetIfActive(context.Background(), db, true))
		assert.True(t, h.Connected())
		require.NoError(t, h.Close())
		assert.Error(t, db.PingContext(context.Background()))
	})

	t.Run("closes an owned pool once the caller gave up", func(t *testing.T) {
		var h SQLHandle
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		db := openTempSQLite(t)
		err := h.SetIfActive(ctx, db, true)
		require.ErrorIs(t, err, context.Canceled)
		assert.False(t, h.Connected())
		assert.Error(t, db.PingContext(context.Background()), "abandoned pool closed")
	})

	t.Run("leaves a managed pool open once the caller gave up", func(t *testing.T) {
		var h SQLHandle
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		db := openTempSQLite(t)
		require.ErrorIs(t, h.SetIfActive(ctx, db, false), context.Canceled)
		assert.False(t, h.Connected())
		assert.NoError(t, db.PingContext(context.Background()))
	})
}

func TestOpenSQL_ThroughManager(t *testing.T) {
	cm := newTestManager(t, ConnectionManagerConfig{})
	dsn := filepath.Join(t.TempDir(), "managed.db")

	db1, owned, err := OpenSQL(context.Background(), cm, "sqlite", "sqlite", dsn, SQLPoolSettings{})
	require.NoError(t, err)
	assert.False(t, owned)
	db2, _, err := OpenSQL(context.Background(), cm, "sqlite", "sqlite", dsn, SQLPoolSettings{})
	require.NoError(t, err)
	assert.Same(t, db1, db2)
}

func TestRequireDriver(t *testing.T) {
	require.NoError(t, RequireDriver("sqlite", "sqlite"))

	err := RequireDriver("snowflake", "no-such-driver")
	require.ErrorIs(t, err, apperrors.ErrDriverUnavailable)
	require.ErrorIs(t, err, apperrors.ErrConnectionFailure)
	assert.Equal(t, apperrors.KindDriverUnavailable, apperrors.Kind(err))
}

func TestCheckFetch(t *testing.T) {
	skip, err := CheckFetch("users", 0)
	require.NoError(t, err)
	assert.True(t, skip)

	skip, err = CheckFetch("users", 10)
	require.NoError(t, err)
	assert.False(t, skip)

	_, err = CheckFetch("users; DROP TABLE x", 10)
	require.ErrorIs(t, err, apperrors.ErrInvalidTableName)
	require.ErrorIs(t, err, apperrors.ErrQueryFailure)
}

func TestTableRecords(t *testing.T) {
	records := TableRecords(models.RowSample{
		{"table_schema": "main", "table_name": "users"},
		{"TABLE_NAME": "orders"},
	})
	require.Len(t, records, 2)

	name, ok := records[0].Name()
	assert.True(t, ok)
	assert.Equal(t, "users", name)
	name, ok = records[1].Name()
	assert.True(t, ok)
	assert.Equal(t, "orders", name)

	assert.NotNil(t, TableRecords(nil))
	assert.Empty(t, TableRecords(nil))
}
