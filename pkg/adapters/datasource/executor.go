package datasource

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

// DefaultBlockingWorkers bounds concurrent calls into blocking drivers.
const DefaultBlockingWorkers = 8

// BlockingExecutor runs calls into drivers that block the calling goroutine
// for the whole round trip (Snowflake, SQL Server) on a bounded set of slots,
// so a slow warehouse cannot tie up an unbounded number of request goroutines.
type BlockingExecutor struct {
	sem      chan struct{}
	inFlight atomic.Int64
	logger   *zap.Logger
}

// NewBlockingExecutor creates an executor with the given number of slots.
func NewBlockingExecutor(workers int, logger *zap.Logger) *BlockingExecutor {
	if workers < 1 {
		workers = DefaultBlockingWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlockingExecutor{
		sem:    make(chan struct{}, workers),
		logger: logger.Named("blocking-executor"),
	}
}

// Capacity returns the number of slots.
func (e *BlockingExecutor) Capacity() int {
	return cap(e.sem)
}

// InFlight returns the number of calls currently holding a slot.
func (e *BlockingExecutor) InFlight() int {
	return int(e.inFlight.Load())
}

// RunBlocking executes fn on a slot of e and waits for its result.
//
// Waiting for a slot and waiting for the result both honor ctx. When ctx
// ends first the caller gets ctx.Err() immediately; fn keeps its slot until
// the driver returns, which it does promptly because fn receives ctx too.
// A nil executor runs fn inline on the calling goroutine.
func RunBlocking[T any](ctx context.Context, e *BlockingExecutor, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if e == nil {
		return fn(ctx)
	}

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	e.inFlight.Add(1)

	go func() {
		defer func() {
			e.inFlight.Add(-1)
			<-e.sem // Release slot when done
		}()
		v, err := fn(ctx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		e.logger.Debug("caller abandoned blocking call", zap.Error(ctx.Err()))
		return zero, ctx.Err()
	}
}
