package app

import (
	"sync"
	"time"

	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

// RateLimiter is a per-session sliding window counter.
type RateLimiter struct {
	mu       sync.Mutex
	clock    core.Clock
	history  map[domain.SessionID][]time.Time
	limit    int
	interval time.Duration
}

func NewRateLimiter(clock core.Clock, limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		clock:    clock,
		history:  make(map[domain.SessionID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

// Allow records an attempt and reports whether it fits the window.
// A non-positive limit disables limiting.
func (rl *RateLimiter) Allow(sid domain.SessionID) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[sid]
	fresh := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		rl.history[sid] = fresh
		return false
	}
	rl.history[sid] = append(fresh, now)
	return true
}

func (rl *RateLimiter) Forget(sid domain.SessionID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, sid)
}
