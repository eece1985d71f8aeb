package datasource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-datadict/pkg/retry"
)

type fakePool struct {
	dbType  string
	pingErr error
	closed  atomic.Bool
}

func (p *fakePool) Ping(ctx context.Context) error { return p.pingErr }
func (p *fakePool) Close() error                   { p.closed.Store(true); return nil }
func (p *fakePool) GetType() string                { return p.dbType }

func newTestManager(t *testing.T, cfg ConnectionManagerConfig) *ConnectionManager {
	t.Helper()
	if cfg.Retry == nil {
		cfg.Retry = retry.NoRetry()
	}
	cm := NewConnectionManager(cfg, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = cm.Close() })
	return cm
}

func TestConnectionManager_GetOrCreate_Reuse(t *testing.T) {
	cm := newTestManager(t, ConnectionManagerConfig{})
	ctx := context.Background()

	var created int
	create := func(ctx context.Context) (PoolConnector, error) {
		created++
		return &fakePool{dbType: "mysql"}, nil
	}

	c1, err := cm.GetOrCreate(ctx, "mysql", "root:pw@tcp(db:3306)/app", create)
	require.NoError(t, err)
	c2, err := cm.GetOrCreate(ctx, "mysql", "root:pw@tcp(db:3306)/app", create)
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	assert.Equal(t, 1, created)

	stats := cm.GetStats()
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, 1, stats.ConnectionsByType["mysql"])
}

func TestConnectionManager_GetOrCreate_DistinctConnStrings(t *testing.T) {
	cm := newTestManager(t, ConnectionManagerConfig{})
	ctx := context.Background()
	create := func(ctx context.Context) (PoolConnector, error) { return &fakePool{dbType: "postgres"}, nil }

	c1, err := cm.GetOrCreate(ctx, "postgres", "postgresql://a@h/db1", create)
	require.NoError(t, err)
	c2, err := cm.GetOrCreate(ctx, "postgres", "postgresql://a@h/db2", create)
	require.NoError(t, err)

	assert.NotSame(t, c1, c2)
	assert.Equal(t, 2, cm.GetStats().TotalConnections)
}

func TestConnectionManager_RecreatesUnhealthy(t *testing.T) {
	cm := newTestManager(t, ConnectionManagerConfig{})
	ctx := context.Background()

	first := &fakePool{dbType: "postgres"}
	second := &fakePool{dbType: "postgres"}
	pools := []*fakePool{first, second}
	create := func(ctx context.Context) (PoolConnector, error) {
		p := pools[0]
		pools = pools[1:]
		return p, nil
	}

	_, err := cm.GetOrCreate(ctx, "postgres", "conn", create)
	require.NoError(t, err)

	first.pingErr = errors.New("connection reset by peer")
	got, err := cm.GetOrCreate(ctx, "postgres", "conn", create)
	require.NoError(t, err)

	assert.Same(t, second, got)
	assert.True(t, first.closed.Load())
}

func TestConnectionManager_MaxConnections(t *testing.T) {
	cm := newTestManager(t, ConnectionManagerConfig{MaxConnections: 2})
	ctx := context.Background()
	create := func(ctx context.Context) (PoolConnector, error) { return &fakePool{dbType: "sqlite"}, nil }

	for i := 0; i < 2; i++ {
		_, err := cm.GetOrCreate(ctx, "sqlite", fmt.Sprintf("db%d", i), create)
		require.NoError(t, err)
	}
	_, err := cm.GetOrCreate(ctx, "sqlite", "db3", create)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum pooled connections reached (2)")
}

func TestConnectionManager_CreateErrorNotCached(t *testing.T) {
	cm := newTestManager(t, ConnectionManagerConfig{})
	ctx := context.Background()

	_, err := cm.GetOrCreate(ctx, "mysql", "conn", func(ctx context.Context) (PoolConnector, error) {
		return nil, errors.New("access denied")
	})
	require.Error(t, err)
	assert.Equal(t, 0, cm.GetStats().TotalConnections)
}

func TestConnectionManager_CleanupExpired(t *testing.T) {
	cm := newTestManager(t, ConnectionManagerConfig{TTLMinutes: 1})
	ctx := context.Background()
	pool := &fakePool{dbType: "mysql"}

	_, err := cm.GetOrCreate(ctx, "mysql", "conn", func(ctx context.Context) (PoolConnector, error) { return pool, nil })
	require.NoError(t, err)

	cm.performCleanup(time.Now().Add(30 * time.Second))
	assert.Equal(t, 1, cm.GetStats().TotalConnections)

	cm.performCleanup(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 0, cm.GetStats().TotalConnections)
	assert.True(t, pool.closed.Load())
}

func TestConnectionManager_CloseIdempotent(t *testing.T) {
	cm := NewConnectionManager(ConnectionManagerConfig{Retry: retry.NoRetry()}, zaptest.NewLogger(t))
	pool := &fakePool{dbType: "mysql"}
	_, err := cm.GetOrCreate(context.Background(), "mysql", "conn", func(ctx context.Context) (PoolConnector, error) { return pool, nil })
	require.NoError(t, err)

	require.NoError(t, cm.Close())
	require.NoError(t, cm.Close())
	assert.True(t, pool.closed.Load())

	_, err = cm.GetOrCreate(context.Background(), "mysql", "other", func(ctx context.Context) (PoolConnector, error) { return pool, nil })
	assert.Error(t, err)
}

func TestConnectionManager_ConcurrentCreateOnce(t *testing.T) {
	cm := newTestManager(t, ConnectionManagerConfig{})
	var created atomic.Int32
	create := func(ctx context.Context) (PoolConnector, error) {
		created.Add(1)
		return &fakePool{dbType: "postgres"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cm.GetOrCreate(context.Background(), "postgres", "shared", create)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
}

func TestConnectionKey_HidesCredentials(t *testing.T) {
	key := ConnectionKey("postgres", "postgresql://admin:s3cret@db:5432/app")
	assert.NotContains(t, key, "s3cret")
	assert.Equal(t, key, ConnectionKey("postgres", "postgresql://admin:s3cret@db:5432/app"))
	assert.NotEqual(t, key, ConnectionKey("mysql", "postgresql://admin:s3cret@db:5432/app"))
}
