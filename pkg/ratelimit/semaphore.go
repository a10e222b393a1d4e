package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Stats is a snapshot of a Semaphore's usage
type Stats struct {
	Limit       int
	InFlight    int
	MaxInFlight int
	Acquired    int64
}

// Semaphore caps the number of operations in flight and records the
// highest concurrency it has observed.
type Semaphore struct {
	limit int
	sem   *semaphore.Weighted

	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	acquired    int64
}

// NewSemaphore creates a semaphore with n slots (at least one)
func NewSemaphore(n int) *Semaphore {
	if n < 1 {
		n = 1
	}
	return &Semaphore{limit: n, sem: semaphore.NewWeighted(int64(n))}
}

// Acquire blocks until a slot is free or ctx is done
func (s *Semaphore) Acquire(ctx context.Context) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	s.mu.Lock()
	s.inFlight++
	s.acquired++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.mu.Unlock()
	return nil
}

// Release frees a slot taken by Acquire
func (s *Semaphore) Release() {
	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	s.sem.Release(1)
}

func (s *Semaphore) Limit() int {
	return s.limit
}

func (s *Semaphore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Limit:       s.limit,
		InFlight:    s.inFlight,
		MaxInFlight: s.maxInFlight,
		Acquired:    s.acquired,
	}
}
