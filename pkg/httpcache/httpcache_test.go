package httpcache

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := NewWithPath(time.Hour, t.TempDir())
	if err != nil {
		t.Fatalf("NewWithPath() error = %v", err)
	}
	t.Cleanup(func() { c.Close() }) //nolint:errcheck // test cleanup
	return c
}

func fetch(t *testing.T, c Cacher, rawURL string, validator ResponseValidator) ([]byte, error) {
	t.Helper()
	req, err := NewRequest(context.Background(), rawURL)
	if err != nil {
		t.Fatal(err)
	}
	return FetchURLWithValidator(context.Background(), c, NewClient(), req, nil, validator)
}

func TestFetchURLCachesBody(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("User-Agent") != UserAgent {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte("hello")) //nolint:errcheck // test helper
	}))
	defer server.Close()

	c := newTestCache(t)
	for range 2 {
		body, err := fetch(t, c, server.URL+"/page", nil)
		if err != nil || string(body) != "hello" {
			t.Fatalf("fetch() = %q, %v", body, err)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestFetchURLCachesHTTPErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestCache(t)
	for range 2 {
		_, err := fetch(t, c, server.URL+"/missing?key=secret", nil)
		var httpErr *HTTPError
		if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
			t.Fatalf("error = %v, want HTTP 404", err)
		}
		if strings.Contains(err.Error(), "secret") {
			t.Errorf("error message leaks query string: %v", err)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestFetchURLDoesNotCacheNetworkErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("back")) //nolint:errcheck // test helper
	}))
	target := server.URL + "/flaky"
	server.Close()

	c := newTestCache(t)
	if _, err := fetch(t, c, target, nil); err == nil {
		t.Fatal("expected connection error")
	}

	// The failure must not be remembered: a retry goes to the network again
	// and fails the same way rather than returning a cached error marker.
	_, err := fetch(t, c, target, nil)
	var httpErr *HTTPError
	if err == nil || errors.As(err, &httpErr) {
		t.Errorf("second fetch error = %v, want a network error", err)
	}
}

func TestFetchURLValidatorSkipsCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("<html>captcha</html>")) //nolint:errcheck // test helper
	}))
	defer server.Close()

	c := newTestCache(t)
	reject := func(body []byte) bool { return !strings.Contains(string(body), "captcha") }
	for range 2 {
		body, err := fetch(t, c, server.URL+"/search", reject)
		if err != nil || !strings.Contains(string(body), "captcha") {
			t.Fatalf("fetch() = %q, %v; want body returned uncached", body, err)
		}
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("server hit %d times, want 2", n)
	}
}

func TestHostLimiterPerHost(t *testing.T) {
	h := newHostLimiter(1, 1)
	if h.bucket("Example.com") != h.bucket("example.com") {
		t.Error("host buckets should be case-insensitive")
	}
	if h.bucket("a.example.com") == h.bucket("b.example.com") {
		t.Error("different hosts should not share a bucket")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.bucket("slow.example.com").Allow() // drain the single token
	if err := h.Wait(ctx, "slow.example.com", slog.Default()); err == nil {
		t.Error("Wait() on canceled context should fail once the bucket is empty")
	}
}

func TestTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("connection reset by peer"), true},
		{&HTTPError{StatusCode: http.StatusTooManyRequests}, true},
		{&HTTPError{StatusCode: http.StatusBadGateway}, true},
		{&HTTPError{StatusCode: http.StatusNotFound}, false},
		{&HTTPError{StatusCode: http.StatusForbidden}, false},
		{context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		if got := transient(tt.err); got != tt.want {
			t.Errorf("transient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
