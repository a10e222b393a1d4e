package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "archivist/pkg/errors"
	"archivist/pkg/logger"
	"archivist/pkg/retry"
)

func newTestClient(t *testing.T, opts Options) *Client {
	t.Helper()
	if opts.Backoff == nil {
		opts.Backoff = &retry.ConstantBackoff{Delay: time.Millisecond}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewTestLogger()
	}
	return New(opts)
}

func TestFetchSendsIdentityHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{"body":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, Options{Identity: FanboxIdentity("abc123", "")})
	body, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, `{"body":[]}`, string(body))
	assert.Equal(t, "FANBOXSESSID=abc123", got.Get("Cookie"))
	assert.Equal(t, FanboxOrigin, got.Get("Origin"))
	assert.Equal(t, DefaultUserAgent, got.Get("User-Agent"))
}

func TestIdentityPrefix(t *testing.T) {
	assert.Equal(t, "FANBOXSESSID=x", FanboxIdentity("FANBOXSESSID=x", "").Cookie)
	assert.Equal(t, "session_id=y", PatreonIdentity(" y ", "").Cookie)
	assert.Equal(t, "", FanboxIdentity("", "").Cookie)
	assert.Equal(t, PatreonOrigin, PatreonIdentity("y", "").Origin)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	log := logger.NewTestLogger()
	c := newTestClient(t, Options{MaxAttempts: 3, Logger: log})
	body, err := c.Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Len(t, log.GetMessagesByLevel("WARN"), 2, "one retry notice per failed attempt")
	assert.Len(t, log.GetMessagesByLevel("ERROR"), 2, "one server error line per 502")
}

func TestFetchRetriesRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newTestClient(t, Options{})
	_, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   errs.ErrorType
	}{
		{"not found", http.StatusNotFound, errs.ErrorTypeNotFound},
		{"unauthorized", http.StatusUnauthorized, errs.ErrorTypeAuth},
		{"forbidden", http.StatusForbidden, errs.ErrorTypeAuth},
		{"bad request", http.StatusBadRequest, errs.ErrorTypeClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := newTestClient(t, Options{MaxAttempts: 5})
			_, err := c.Fetch(context.Background(), srv.URL)

			require.Error(t, err)
			assert.Equal(t, tt.want, errs.TypeOf(err))
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		})
	}
}

func TestFetchGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, Options{MaxAttempts: 2})
	_, err := c.Fetch(context.Background(), srv.URL)

	var exhausted *retry.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, errs.ErrorTypeServerError, errs.TypeOf(err))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchJSONParsingError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := newTestClient(t, Options{})
	var v map[string]any
	err := c.FetchJSON(context.Background(), srv.URL, &v)

	require.Error(t, err)
	assert.True(t, errs.IsSchema(err))
}

func TestConcurrencyBound(t *testing.T) {
	var current, peak int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newTestClient(t, Options{Concurrency: 2})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Fetch(context.Background(), srv.URL)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	stats := c.Stats()
	assert.LessOrEqual(t, stats.MaxInFlight, 2)
	assert.Equal(t, int64(10), stats.Acquired)
	assert.Equal(t, 0, stats.InFlight)
}

func TestDownloadWritesFileAtomically(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "a.png")

	c := newTestClient(t, Options{})
	require.NoError(t, c.Download(context.Background(), srv.URL, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "image bytes", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp file may remain")
}

func TestDownloadSkipsExistingFile(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte("new"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0644))

	c := newTestClient(t, Options{})
	require.NoError(t, c.Download(context.Background(), srv.URL, dest))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	data, _ := os.ReadFile(dest)
	assert.Equal(t, "old", string(data))

	over := newTestClient(t, Options{Overwrite: true})
	assert.True(t, over.Overwrite())
	require.NoError(t, over.Download(context.Background(), srv.URL, dest))
	data, _ = os.ReadFile(dest)
	assert.Equal(t, "new", string(data))
}

func TestDownloadFailureLeavesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := newTestClient(t, Options{})
	err := c.Download(context.Background(), srv.URL, filepath.Join(dir, "gone.png"))

	assert.True(t, errs.IsType(err, errs.ErrorTypeNotFound))
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestFetchCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(t, Options{MaxAttempts: 5})
	_, err := c.Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}
