// Package scheduler runs a batch of independent tasks under a concurrency
// limit and collects every outcome.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"archivist/internal/workpool"
	"archivist/pkg/logger"
)

// Result is the outcome of one task
type Result[T, R any] struct {
	Key      string
	Item     T
	Value    R
	Err      error
	Duration time.Duration
}

// Run executes task for every item with at most limit running at once.
// Every item runs to completion: a failed task is recorded on its Result
// and does not cancel the others. Results come back in completion order;
// match them by Key.
func Run[T, R any](limit int, items []T, key func(T) string, task func(context.Context, T) (R, error)) []Result[T, R] {
	return RunWithLogger(nil, limit, items, key, task)
}

// RunWithLogger is Run with worker pool activity logged to log
func RunWithLogger[T, R any](log logger.Logger, limit int, items []T, key func(T) string, task func(context.Context, T) (R, error)) []Result[T, R] {
	if len(items) == 0 {
		return nil
	}
	if limit > len(items) {
		limit = len(items)
	}

	pool := workpool.New(limit, func(ctx context.Context, workerID int, item T) Result[T, R] {
		return execute(ctx, item, key, task)
	}, log)
	pool.Start()

	go func() {
		for _, item := range items {
			// Submit only fails after Stop, which happens below
			_ = pool.Submit(item)
		}
		pool.Stop()
	}()

	results := make([]Result[T, R], 0, len(items))
	for r := range pool.Results() {
		results = append(results, r)
	}
	if log != nil {
		log.DebugWithFields("Batch finished", map[string]interface{}{
			"workers":   pool.Workers(),
			"processed": pool.Processed(),
		})
	}
	return results
}

func execute[T, R any](ctx context.Context, item T, key func(T) string, task func(context.Context, T) (R, error)) (res Result[T, R]) {
	start := time.Now()
	res = Result[T, R]{Key: key(item), Item: item}
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("task %s panicked: %v", res.Key, p)
		}
		res.Duration = time.Since(start)
	}()

	res.Value, res.Err = task(ctx, item)
	return res
}

// Split separates successful results from failed ones
func Split[T, R any](results []Result[T, R]) (ok, failed []Result[T, R]) {
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		} else {
			ok = append(ok, r)
		}
	}
	return ok, failed
}
