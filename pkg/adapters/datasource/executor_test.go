package datasource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBlocking_ReturnsResult(t *testing.T) {
	e := NewBlockingExecutor(2, nil)

	v, err := RunBlocking(context.Background(), e, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestRunBlocking_PropagatesError(t *testing.T) {
	e := NewBlockingExecutor(1, nil)
	boom := errors.New("boom")

	_, err := RunBlocking(context.Background(), e, func(ctx context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestRunBlocking_BoundsConcurrency(t *testing.T) {
	e := NewBlockingExecutor(3, nil)
	var current, peak atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = RunBlocking(context.Background(), e, func(ctx context.Context) (struct{}, error) {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				current.Add(-1)
				return struct{}{}, nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, 0, e.InFlight())
}

func TestRunBlocking_CancelWhileWaitingForSlot(t *testing.T) {
	e := NewBlockingExecutor(1, nil)
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _ = RunBlocking(context.Background(), e, func(ctx context.Context) (int, error) {
			close(started)
			<-release
			return 0, nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := RunBlocking(ctx, e, func(ctx context.Context) (int, error) {
		t.Error("should not run")
		return 0, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestRunBlocking_CallerReturnsOnCancel(t *testing.T) {
	e := NewBlockingExecutor(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	unblock := make(chan struct{})
	defer close(unblock)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := RunBlocking(ctx, e, func(ctx context.Context) (int, error) {
		<-unblock
		return 1, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunBlocking_NilExecutorRunsInline(t *testing.T) {
	v, err := RunBlocking(context.Background(), nil, func(ctx context.Context) (string, error) {
		return "inline", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "inline", v)
}
