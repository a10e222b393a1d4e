package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	errs "archivist/pkg/errors"
	"archivist/pkg/logger"
	"archivist/pkg/ratelimit"
	"archivist/pkg/retry"
)

const (
	DefaultConcurrency = 5
	DefaultMaxAttempts = 3
	DefaultTimeout     = 60 * time.Second
)

// Options configures a Client
type Options struct {
	Identity    Identity
	Concurrency int
	MaxAttempts int
	Backoff     retry.BackoffStrategy
	// RequestsPerMinute paces requests on top of the concurrency cap; 0 disables it
	RequestsPerMinute int
	Overwrite         bool
	Timeout           time.Duration
	HTTPClient        *http.Client
	Logger            logger.Logger
}

// Client is an HTTP client shared by every request of a run. Each attempt
// holds one semaphore slot for the duration of the request only.
type Client struct {
	httpClient *http.Client
	identity   Identity
	sem        *ratelimit.Semaphore
	pace       *ratelimit.TokenBucket
	retry      *retry.Config
	overwrite  bool
	logger     logger.Logger
}

// New creates a Client, filling unset options with defaults
func New(opts Options) *Client {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Backoff == nil {
		opts.Backoff = retry.DefaultExponentialBackoff()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if opts.Identity.UserAgent == "" {
		opts.Identity.UserAgent = DefaultUserAgent
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	c := &Client{
		httpClient: httpClient,
		identity:   opts.Identity,
		sem:        ratelimit.NewSemaphore(opts.Concurrency),
		pace:       ratelimit.PerMinute(opts.RequestsPerMinute),
		overwrite:  opts.Overwrite,
		logger:     opts.Logger,
	}
	c.retry = &retry.Config{
		MaxAttempts: opts.MaxAttempts,
		Backoff:     opts.Backoff,
		RetryIf:     retry.DefaultRetryIf,
		Logger:      opts.Logger,
	}
	return c
}

// Overwrite reports whether downloads replace existing files
func (c *Client) Overwrite() bool {
	return c.overwrite
}

// Concurrency is the number of requests allowed in flight
func (c *Client) Concurrency() int {
	return c.sem.Limit()
}

func (c *Client) Stats() ratelimit.Stats {
	return c.sem.Stats()
}

// Fetch GETs url and returns the body of a 2xx response
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	return retry.DoWithResult(ctx, func(attempt int) ([]byte, error) {
		return c.fetchOnce(ctx, url)
	}, c.retryConfig(url))
}

// FetchJSON fetches url and decodes the body into v
func (c *Client) FetchJSON(ctx context.Context, url string, v any) error {
	body, err := c.Fetch(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("Failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return errs.Wrap(errs.ErrorTypeParsing, err, "decode "+url)
	}
	return nil
}

// Download streams url into dest through a temporary sibling file that is
// renamed into place once complete. An existing dest is left untouched
// unless overwrite is enabled.
func (c *Client) Download(ctx context.Context, url, dest string) error {
	if !c.overwrite {
		if _, err := os.Stat(dest); err == nil {
			return nil
		}
	}

	return retry.Do(ctx, func(attempt int) error {
		return c.downloadOnce(ctx, url, dest)
	}, c.retryConfig(url))
}

func (c *Client) retryConfig(url string) *retry.Config {
	cfg := *c.retry
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.LogRetry(c.logger, url, attempt, delay, err)
	}
	return &cfg
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	resp, release, err := c.do(ctx, url)
	if err != nil {
		return nil, err
	}
	defer release()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "read body of "+url)
	}
	return body, nil
}

func (c *Client) downloadOnce(ctx context.Context, url, dest string) error {
	resp, release, err := c.do(ctx, url)
	if err != nil {
		return err
	}
	defer release()
	defer resp.Body.Close()

	suffix, err := gonanoid.New()
	if err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "generate temp name")
	}
	tmp := dest + ".part-" + suffix

	f, err := os.Create(tmp)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "create "+tmp)
	}

	written, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.ErrorTypeNetwork, copyErr, "stream "+url)
	}
	if closeErr != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.ErrorTypeStorage, closeErr, "close "+tmp)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.ErrorTypeStorage, err, "rename to "+dest)
	}

	c.logger.DebugWithFields("Downloaded file", map[string]interface{}{
		"url":  url,
		"path": dest,
		"size": written,
	})
	return nil
}

// do sends one GET while holding a semaphore slot. On success the caller
// must invoke release after consuming the body.
func (c *Client) do(ctx context.Context, url string) (*http.Response, func(), error) {
	if err := c.sem.Acquire(ctx); err != nil {
		return nil, nil, err
	}
	release := c.sem.Release

	if c.pace != nil {
		if err := c.pace.Wait(ctx); err != nil {
			release()
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		release()
		return nil, nil, errs.Wrap(errs.ErrorTypeClient, err, "build request")
	}
	c.identity.apply(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		release()
		c.logger.WithError(err).DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":      url,
			"duration": time.Since(start),
		})
		return nil, nil, errs.Wrap(errs.ErrorTypeNetwork, err, "GET "+url)
	}
	logger.LogRequest(c.logger, req.Method, url, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		release()
		return nil, nil, errs.FromStatus(resp.StatusCode, fmt.Sprintf("GET %s returned %d", url, resp.StatusCode))
	}

	return resp, release, nil
}
