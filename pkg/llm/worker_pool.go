package llm

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// WorkerPoolConfig configures the LLM worker pool.
type WorkerPoolConfig struct {
	MaxConcurrent int // Maximum concurrent LLM calls (default: 4)
}

// DefaultWorkerPoolConfig returns the default pool size. Hosted providers
// rate limit aggressively, so the default stays small.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{MaxConcurrent: 4}
}

// WorkerPool runs independent LLM calls (one per table) with bounded parallelism.
type WorkerPool struct {
	config WorkerPoolConfig
	logger *zap.Logger
}

// NewWorkerPool creates a new LLM worker pool.
func NewWorkerPool(config WorkerPoolConfig, logger *zap.Logger) *WorkerPool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultWorkerPoolConfig().MaxConcurrent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		config: config,
		logger: logger.Named("llm-worker-pool"),
	}
}

// WorkItem represents a unit of work to be processed.
type WorkItem[T any] struct {
	ID      string // Table name or other key, for logging
	Execute func(ctx context.Context) (T, error)
}

// WorkResult represents the result of a work item.
type WorkResult[T any] struct {
	ID     string
	Result T
	Err    error
}

// Process executes all items and returns their results in submission order.
// A failed item does not stop the others. Items still waiting for a slot
// when ctx ends report ctx.Err().
func Process[T any](
	ctx context.Context,
	pool *WorkerPool,
	items []WorkItem[T],
	onProgress func(completed, total int),
) []WorkResult[T] {
	results := make([]WorkResult[T], len(items))
	if len(items) == 0 {
		return results
	}

	sem := make(chan struct{}, pool.config.MaxConcurrent)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)

	for i, item := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()

			results[i].ID = item.ID
			select {
			case sem <- struct{}{}:
				results[i].Result, results[i].Err = item.Execute(ctx)
				<-sem
			case <-ctx.Done():
				results[i].Err = ctx.Err()
			}

			if results[i].Err != nil {
				pool.logger.Debug("work item failed", zap.String("id", item.ID), zap.Error(results[i].Err))
			}

			mu.Lock()
			completed++
			if onProgress != nil {
				onProgress(completed, len(items))
			}
			mu.Unlock()
		}()
	}

	wg.Wait()
	return results
}
