package workpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"archivist/pkg/logger"
)

func TestPoolProcessesEveryJob(t *testing.T) {
	var handled int32
	pool := New(3, func(ctx context.Context, workerID int, job int) int {
		atomic.AddInt32(&handled, 1)
		time.Sleep(time.Millisecond)
		return job * 2
	}, logger.NewTestLogger())

	pool.Start()
	go func() {
		for i := 1; i <= 20; i++ {
			if err := pool.Submit(i); err != nil {
				t.Errorf("Submit failed: %v", err)
			}
		}
		pool.Stop()
	}()

	sum := 0
	count := 0
	for r := range pool.Results() {
		sum += r
		count++
	}

	if count != 20 {
		t.Errorf("Expected 20 results, got %d", count)
	}
	if sum != 420 {
		t.Errorf("Expected doubled sum 420, got %d", sum)
	}
	if pool.Processed() != 20 {
		t.Errorf("Expected 20 processed, got %d", pool.Processed())
	}
}

func TestPoolWorkerCount(t *testing.T) {
	var current, peak int32
	pool := New(2, func(ctx context.Context, workerID int, job int) struct{} {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return struct{}{}
	}, nil)

	pool.Start()
	go func() {
		for i := 0; i < 10; i++ {
			pool.Submit(i)
		}
		pool.Stop()
	}()
	for range pool.Results() {
	}

	if peak > 2 {
		t.Errorf("Expected at most 2 concurrent jobs, saw %d", peak)
	}
	if pool.Workers() != 2 {
		t.Errorf("Expected 2 workers, got %d", pool.Workers())
	}
}

func TestSubmitAfterStop(t *testing.T) {
	pool := New(1, func(ctx context.Context, workerID int, job int) int { return job }, nil)
	pool.Start()
	pool.Stop()

	if err := pool.Submit(1); err == nil {
		t.Error("Expected submit on a stopped pool to fail")
	}
}
