package httpcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// UserAgent is the browser User-Agent string sent by every fetcher.
const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:146.0) Gecko/20100101 Firefox/146.0"

// DefaultTimeout bounds a single outbound request, retries included.
const DefaultTimeout = 15 * time.Second

// maxBody caps how much of a response is read. The registry CSV is the
// largest payload and sits well under this.
const maxBody = 64 << 20

// statusPrefix marks a cached HTTP error status in place of a body.
var statusPrefix = []byte("\x00httpcache-status:")

// HTTPError is a non-200 upstream response.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, redact(e.URL))
}

// redact drops the query string, which may carry an API key.
func redact(rawURL string) string {
	base, _, found := strings.Cut(rawURL, "?")
	if !found {
		return rawURL
	}
	return base + "?…"
}

// ResponseValidator reports whether a 200 body is worth caching. Block and
// captcha pages fail validation: they are returned to the caller once but
// never stored.
type ResponseValidator func(body []byte) bool

// FetchURL fetches req through cache. See FetchURLWithValidator.
func FetchURL(ctx context.Context, cache Cacher, client *http.Client, req *http.Request, logger *slog.Logger) ([]byte, error) {
	return FetchURLWithValidator(ctx, cache, client, req, logger, nil)
}

// FetchURLWithValidator fetches req through cache, making at most one
// upstream call per key at a time.
//
// Non-200 statuses are cached as an HTTPError so a dead endpoint is not
// asked again until the entry expires. Transport errors and timeouts are
// not cached. A nil cache fetches directly.
func FetchURLWithValidator(
	ctx context.Context,
	cache Cacher,
	client *http.Client,
	req *http.Request,
	logger *slog.Logger,
	validator ResponseValidator,
) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		misses.Add(1)
		return get(ctx, client, req, logger)
	}

	fetched := false
	data, err := cache.GetSet(ctx, URLToKey(requestKey(client, req)), func(ctx context.Context) ([]byte, error) {
		fetched = true
		misses.Add(1)
		logger.DebugContext(ctx, "cache miss", "url", redact(req.URL.String()))

		body, err := get(ctx, client, req, logger)
		var httpErr *HTTPError
		switch {
		case errors.As(err, &httpErr):
			return append(bytes.Clone(statusPrefix), strconv.Itoa(httpErr.StatusCode)...), nil
		case err != nil:
			return nil, err
		case validator != nil && !validator(body):
			logger.DebugContext(ctx, "response failed validation, not caching", "url", redact(req.URL.String()))
			return nil, &uncacheable{body: body}
		}
		return body, nil
	}, cache.TTL())

	if !fetched {
		hits.Add(1)
		logger.DebugContext(ctx, "cache hit", "url", redact(req.URL.String()))
	}

	var skip *uncacheable
	if errors.As(err, &skip) {
		return skip.body, nil
	}
	if err != nil {
		return nil, err
	}
	if code, ok := bytes.CutPrefix(data, statusPrefix); ok {
		status, _ := strconv.Atoi(string(code)) //nolint:errcheck // 0 for a corrupt entry
		return nil, &HTTPError{URL: req.URL.String(), StatusCode: status}
	}
	return data, nil
}

// requestKey identifies a response. Requests carrying credentials or
// cookies get their own entries so an authenticated page is never served
// to an anonymous request or the other way round.
func requestKey(client *http.Client, req *http.Request) string {
	var b strings.Builder
	b.WriteString(req.Method)
	b.WriteByte(' ')
	b.WriteString(req.URL.String())
	if auth := req.Header.Get("Authorization"); auth != "" {
		b.WriteString("|auth:")
		b.WriteString(URLToKey(auth))
	}
	if req.Header.Get("Cookie") != "" || (client.Jar != nil && len(client.Jar.Cookies(req.URL)) > 0) {
		b.WriteString("|cookies")
	}
	return b.String()
}

type uncacheable struct{ body []byte }

func (*uncacheable) Error() string { return "response failed validation" }

// get performs the request with rate limiting and one retry on transient
// failures.
func get(ctx context.Context, client *http.Client, req *http.Request, logger *slog.Logger) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	return retry.DoWithData(
		func() ([]byte, error) {
			if err := limiter.Wait(ctx, req.URL.Host, logger); err != nil {
				return nil, err
			}
			resp, err := client.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close() //nolint:errcheck // body is drained below

			if resp.StatusCode != http.StatusOK {
				return nil, &HTTPError{URL: req.URL.String(), StatusCode: resp.StatusCode}
			}
			return io.ReadAll(io.LimitReader(resp.Body, maxBody))
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(200*time.Millisecond),
		retry.MaxJitter(100*time.Millisecond),
		retry.RetryIf(transient),
		retry.OnRetry(func(n uint, err error) {
			logger.DebugContext(ctx, "retrying request", "attempt", n+1, "url", redact(req.URL.String()), "error", err)
		}),
	)
}

// transient reports whether err is worth one more attempt: network
// failures, 429 and 5xx. Other 4xx answers are final.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return true
	}
	return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= http.StatusInternalServerError
}

// NewRequest builds a GET request carrying the standard browser headers.
func NewRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	return req, nil
}

// NewClient returns an *http.Client with the package default timeout.
func NewClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}
