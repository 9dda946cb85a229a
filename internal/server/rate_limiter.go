package server

import (
	"sync"
	"time"

	"github.com/smallbiznis/groupledger/internal/clock"
)

// rateLimiter counts requests per tenant in fixed windows.
type rateLimiter struct {
	limit  int
	window time.Duration
	clock  clock.Clock
	mu     sync.Mutex
	items  map[string]*rateLimitEntry
}

type rateLimitEntry struct {
	windowStart time.Time
	count       int
}

func newRateLimiter(limit int, window time.Duration, clk clock.Clock) *rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	return &rateLimiter{
		limit:  limit,
		window: window,
		clock:  clk,
		items:  make(map[string]*rateLimitEntry),
	}
}

// Allow records one request for key. When the window is exhausted it returns
// false and the time left until the window resets. A nil limiter allows
// everything.
func (r *rateLimiter) Allow(key string) (bool, time.Duration) {
	if r == nil {
		return true, 0
	}
	if key == "" {
		return false, r.window
	}

	now := r.clock.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.items[key]
	if entry == nil || now.Sub(entry.windowStart) >= r.window {
		entry = &rateLimitEntry{windowStart: now}
		r.items[key] = entry
	}

	if entry.count >= r.limit {
		return false, entry.windowStart.Add(r.window).Sub(now)
	}

	entry.count++
	return true, 0
}
