// Package ratelimit bounds how hard the archiver hits a platform.
//
// Semaphore caps concurrent requests. It wraps golang.org/x/sync/semaphore
// and keeps the highest in-flight count it has seen, which tests use to
// check the concurrency bound.
//
// TokenBucket optionally paces requests per minute on top of that cap:
//
//	sem := ratelimit.NewSemaphore(5)
//	pace := ratelimit.PerMinute(120)
//
//	if err := sem.Acquire(ctx); err != nil {
//	    return err
//	}
//	defer sem.Release()
//	if pace != nil {
//	    if err := pace.Wait(ctx); err != nil {
//	        return err
//	    }
//	}
package ratelimit
