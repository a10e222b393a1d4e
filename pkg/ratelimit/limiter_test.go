package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTokenBucket(t *testing.T) {
	tb := NewTokenBucket(5, 200*time.Millisecond)

	for i := 0; i < 5; i++ {
		if !tb.Allow() {
			t.Errorf("Expected token %d to be available", i+1)
		}
	}

	if tb.Allow() {
		t.Error("Expected no more tokens to be available")
	}

	time.Sleep(250 * time.Millisecond)
	if !tb.Allow() {
		t.Error("Expected tokens to be refilled after waiting")
	}

	tb.tokens = 0
	tb.Reset()
	if tb.tokens != tb.capacity {
		t.Error("Expected tokens to be reset to capacity")
	}
}

func TestTokenBucketWaitHonoursContext(t *testing.T) {
	tb := NewTokenBucket(1, time.Hour)
	tb.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := tb.Wait(ctx); err == nil {
		t.Error("Expected Wait to give up when the context expires")
	}
}

func TestPerMinuteDisabled(t *testing.T) {
	if PerMinute(0) != nil {
		t.Error("Zero requests per minute should disable pacing")
	}
	if PerMinute(30) == nil {
		t.Error("Expected a bucket for 30 requests per minute")
	}
}

func TestSemaphoreBound(t *testing.T) {
	sem := NewSemaphore(2)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(context.Background()); err != nil {
				t.Error(err)
				return
			}
			time.Sleep(10 * time.Millisecond)
			sem.Release()
		}()
	}
	wg.Wait()

	stats := sem.Stats()
	if stats.MaxInFlight > 2 {
		t.Errorf("Observed %d in flight with a limit of 2", stats.MaxInFlight)
	}
	if stats.InFlight != 0 {
		t.Errorf("Expected every slot released, %d still held", stats.InFlight)
	}
	if stats.Acquired != 10 {
		t.Errorf("Expected 10 acquisitions, got %d", stats.Acquired)
	}
}

func TestSemaphoreAcquireCancelled(t *testing.T) {
	sem := NewSemaphore(1)
	if err := sem.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sem.Acquire(ctx); err == nil {
		t.Error("Expected acquire on a full semaphore with a cancelled context to fail")
	}
	if sem.Stats().InFlight != 1 {
		t.Error("Failed acquire must not count as in flight")
	}
}

func TestNewSemaphoreMinimum(t *testing.T) {
	if NewSemaphore(0).Limit() != 1 {
		t.Error("Expected a minimum of one slot")
	}
}
