package httpcache

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// DefaultRate is the sustained request rate allowed per host.
const DefaultRate = 5

// hostLimiter hands out one token bucket per host.
type hostLimiter struct {
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
}

var limiter = newHostLimiter(DefaultRate, DefaultRate)

func newHostLimiter(rps float64, burst int) *hostLimiter {
	return &hostLimiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Limit(rps),
		burst:   burst,
	}
}

// SetRate replaces the per-host rate. A non-positive rps disables limiting.
func SetRate(rps float64, burst int) {
	if rps <= 0 {
		limiter.set(rate.Inf, 1)
		return
	}
	if burst < 1 {
		burst = 1
	}
	limiter.set(rate.Limit(rps), burst)
}

func (h *hostLimiter) set(l rate.Limit, burst int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.limit = l
	h.burst = burst
	clear(h.buckets)
}

func (h *hostLimiter) bucket(host string) *rate.Limiter {
	host = strings.ToLower(host)
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.buckets[host]
	if !ok {
		b = rate.NewLimiter(h.limit, h.burst)
		h.buckets[host] = b
	}
	return b
}

// Wait blocks until a request to host is allowed or ctx is done.
func (h *hostLimiter) Wait(ctx context.Context, host string, logger *slog.Logger) error {
	b := h.bucket(host)
	if r := b.Reserve(); r.OK() {
		delay := r.Delay()
		r.Cancel()
		if delay > 0 {
			logger.DebugContext(ctx, "rate limiting", "host", host, "wait", delay)
		}
	}
	return b.Wait(ctx)
}
