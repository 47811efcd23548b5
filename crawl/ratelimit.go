package crawl

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxCrawlDelay caps a robots.txt Crawl-delay.
const maxCrawlDelay = 30 * time.Second

// HostLimiter spaces requests to the same host at least interval apart
// while requests to different hosts proceed concurrently. A host can be
// slowed further with SlowDown. The lock guards only the map and is never
// held while waiting.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval time.Duration
}

// NewHostLimiter creates a HostLimiter. A non-positive interval leaves
// hosts unlimited unless slowed down.
func NewHostLimiter(interval time.Duration) *HostLimiter {
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
	}
}

// Wait blocks until a request to host is allowed or ctx is done.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	h.mu.Lock()
	l, ok := h.limiters[host]
	if !ok && h.interval > 0 {
		l = rate.NewLimiter(rate.Every(h.interval), 1)
		h.limiters[host] = l
	}
	h.mu.Unlock()

	if l == nil {
		return ctx.Err()
	}
	return l.Wait(ctx)
}

// SlowDown raises host's interval to d, capped at 30s. Shorter intervals
// than the current one are ignored.
func (h *HostLimiter) SlowDown(host string, d time.Duration) {
	d = min(d, maxCrawlDelay)
	if d <= h.interval {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.limiters[host]
	if !ok {
		h.limiters[host] = rate.NewLimiter(rate.Every(d), 1)
		return
	}
	if every := rate.Every(d); every < l.Limit() {
		l.SetLimit(every)
	}
}

// Interval returns the spacing currently enforced for host.
func (h *HostLimiter) Interval(host string) time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.limiters[host]
	if !ok || l.Limit() == rate.Inf || l.Limit() <= 0 {
		return max(h.interval, 0)
	}
	return time.Duration(math.Round(float64(time.Second) / float64(l.Limit())))
}
