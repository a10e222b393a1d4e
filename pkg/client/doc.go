// Package client provides the rate-limited HTTP client used for every
// platform request and file download.
//
// All requests of a run share one Client. Each attempt takes a slot from a
// counting semaphore, so at most Concurrency requests are in flight no
// matter how many goroutines call in. Transient failures (transport errors,
// 5xx, 429) are retried with exponential backoff; the slot is given back
// before the backoff wait starts.
//
// Downloads stream into a "<dest>.part-<id>" file and are renamed into
// place when complete, so a crashed run never leaves a truncated file
// under its final name.
package client
