// Package retry provides exponential backoff and retry logic for transient
// failures in platform API calls and file downloads.
//
// Typed errors from pkg/errors decide what is retried: network, server and
// rate-limit errors are; auth, schema and client errors are not. Rate-limit
// responses may use a slower backoff than other transient failures.
//
//	err := retry.Do(ctx, func(attempt int) error {
//		return fetchOnce(ctx, url)
//	}, &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.DefaultExponentialBackoff(),
//	})
//
// When every attempt fails, Do returns *ExhaustedError wrapping the last cause.
package retry
