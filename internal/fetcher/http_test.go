package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func fastFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		Timeout:    2 * time.Second,
		MaxRetries: 3,
		HostRates:  map[string]rate.Limit{},
	})
}

func TestHTTPDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "leadscout/1.0", r.Header.Get("User-Agent"))
		w.Write([]byte("name,title\nAhmed Hassan,IT Director\n"))
	}))
	defer srv.Close()

	f := fastFetcher()
	body, err := f.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Ahmed Hassan")
}

func TestHTTPDownload_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := fastFetcher()
	body, err := f.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer body.Close()
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPDownload_NotFoundIsFatal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := fastFetcher()
	_, err := f.Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "4xx must not retry")
}

func TestHTTPDownload_RateLimitReducesRate(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := fastFetcher()
	lim := f.limiterFor(srv.URL)
	before := lim.Limit()

	body, err := f.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer body.Close()

	// One 429 then one success: halved, then +20%.
	assert.Less(t, float64(lim.Limit()), float64(before))
}

func TestHTTPDownloadToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f := fastFetcher()
	path := filepath.Join(t.TempDir(), "out.csv")
	n, err := f.DownloadToFile(context.Background(), srv.URL, path)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestLimiterFor_KnownHostsSlower(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{})

	google := f.limiterFor("https://www.google.com/search?q=x")
	other := f.limiterFor("https://example.com/page")

	assert.Equal(t, rate.Limit(0.2), google.Limit())
	assert.Equal(t, fallbackHostRate, other.Limit())

	// Same host returns the same limiter instance.
	again := f.limiterFor("https://www.google.com/search?q=y")
	assert.Same(t, google, again)
}

func TestAdaptiveLimiter(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 10)

	lim.OnRateLimit()
	assert.Equal(t, rate.Limit(5), lim.Limit())

	// Floor at a quarter of the initial rate.
	lim.OnRateLimit()
	lim.OnRateLimit()
	lim.OnRateLimit()
	assert.Equal(t, rate.Limit(2.5), lim.Limit())

	// Recovery is capped at twice the initial rate.
	for i := 0; i < 20; i++ {
		lim.OnSuccess()
	}
	assert.Equal(t, rate.Limit(20), lim.Limit())
}
