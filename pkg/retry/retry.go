package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "archivist/pkg/errors"
	"archivist/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func(attempt int) error

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the total number of tries, the first one included
	MaxAttempts int
	// Backoff is used between attempts
	Backoff BackoffStrategy
	// RateLimitBackoff replaces Backoff after a rate_limit error when set
	RateLimitBackoff BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each backoff wait
	OnRetry func(attempt int, err error, delay time.Duration)
	Logger  logger.Logger
}

// DefaultConfig returns three attempts with exponential backoff
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RateLimitBackoff: &ExponentialBackoff{
			BaseDelay:    10 * time.Second,
			MaxDelay:     2 * time.Minute,
			Multiplier:   2.0,
			JitterFactor: 0.3,
		},
		RetryIf: DefaultRetryIf,
		Logger:  logger.NewNopLogger(),
	}
}

// DefaultRetryIf retries typed errors marked retryable and anything
// untyped except context cancellation.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}

	return true
}

// ExhaustedError is returned when every attempt failed with a retryable error
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("max retry attempts (%d) exceeded: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Do runs op until it succeeds, returns a non-retryable error, or runs out
// of attempts. The wait between attempts honours ctx.
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := op(attempt)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		if !retryIf(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		delay := cfg.delayFor(attempt, err)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		if err := Wait(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}

	log.WithError(lastErr).DebugWithFields("max retry attempts exceeded", map[string]interface{}{
		"attempts": maxAttempts,
	})
	return &ExhaustedError{Attempts: maxAttempts, Last: lastErr}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op func(attempt int) (T, error), cfg *Config) (T, error) {
	var result T

	err := Do(ctx, func(attempt int) error {
		var opErr error
		result, opErr = op(attempt)
		return opErr
	}, cfg)

	return result, err
}

func (c *Config) delayFor(attempt int, err error) time.Duration {
	if c.RateLimitBackoff != nil && errs.IsType(err, errs.ErrorTypeRateLimit) {
		return c.RateLimitBackoff.NextDelay(attempt)
	}
	if c.Backoff == nil {
		return 0
	}
	return c.Backoff.NextDelay(attempt)
}
