package retry

import (
	"context"
	"math/rand"
	"time"
)

// BackoffStrategy returns the wait before the next attempt
type BackoffStrategy interface {
	// NextDelay returns the delay after the given failed attempt (1-based)
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows the delay by Multiplier after every failed
// attempt, up to MaxDelay, then spreads it by ±JitterFactor.
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// DefaultExponentialBackoff starts at one second and stops growing at 30
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return spread(eb.grow(attempt), eb.JitterFactor)
}

// grow multiplies the base delay attempt-1 times, stopping early once the
// cap is reached.
func (eb *ExponentialBackoff) grow(attempt int) float64 {
	limit := float64(eb.MaxDelay)
	delay := float64(eb.BaseDelay)
	for i := 1; i < attempt; i++ {
		if limit > 0 && delay >= limit {
			break
		}
		delay *= eb.Multiplier
	}
	if limit > 0 && delay > limit {
		return limit
	}
	return delay
}

// spread moves delay uniformly within ±factor of itself, never below zero
func spread(delay, factor float64) time.Duration {
	if factor > 0 {
		delay *= 1 + factor*(2*rand.Float64()-1)
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}

// ConstantBackoff waits the same Delay after every failure
type ConstantBackoff struct {
	Delay time.Duration
}

func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait sleeps for delay unless ctx ends first. A non-positive delay only
// reports the context state.
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(delay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
