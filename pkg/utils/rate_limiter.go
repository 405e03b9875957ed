package utils

import (
	"sync"
	"time"
)

// windowState tracks one client's current fixed window.
type windowState struct {
	start time.Time
	count int
}

// RateLimiter implements a fixed-window rate limit keyed by an arbitrary
// client key (the gateway uses the caller's IP). When a window ends the
// counter resets; there is no carry-over between windows.
type RateLimiter struct {
	limit   int
	period  time.Duration
	mu      sync.Mutex
	windows map[string]*windowState
}

// NewRateLimiter creates a limiter allowing limit requests per period.
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		period:  period,
		windows: make(map[string]*windowState),
	}
}

// Allow reports whether the keyed client may make a request now.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.allowAt(key, time.Now())
}

func (rl *RateLimiter) allowAt(key string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, exists := rl.windows[key]
	if !exists || now.Sub(w.start) >= rl.period {
		rl.windows[key] = &windowState{start: now, count: 1}
		rl.pruneLocked(now)
		return true
	}

	if w.count >= rl.limit {
		return false
	}
	w.count++
	return true
}

// pruneLocked drops windows that ended, keeping the map from growing with
// one entry per client ever seen. Callers hold the mutex.
func (rl *RateLimiter) pruneLocked(now time.Time) {
	for key, w := range rl.windows {
		if now.Sub(w.start) >= rl.period {
			delete(rl.windows, key)
		}
	}
}
