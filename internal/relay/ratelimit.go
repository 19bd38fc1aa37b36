package relay

import (
	"sync"
	"time"
)

// RateLimiter enforces a per-user sliding window over message timestamps.
//
// State is in-memory only and resets on restart. Eviction is lazy: expired
// timestamps are pruned whenever a user is checked, and Sweep removes users
// whose every timestamp has expired so the map cannot grow without bound.
type RateLimiter struct {
	Window      time.Duration
	MaxRequests int
	Clock       func() time.Time

	mu      sync.Mutex
	entries map[int64][]time.Time
}

// NewRateLimiter returns a limiter admitting at most maxRequests messages
// per user within the trailing window.
func NewRateLimiter(window time.Duration, maxRequests int) *RateLimiter {
	return &RateLimiter{
		Window:      window,
		MaxRequests: maxRequests,
		entries:     make(map[int64][]time.Time),
	}
}

// Allow reports whether the user may send another message now, recording
// the attempt when admitted. A rejected attempt records nothing, so being
// rate limited never extends the limited period.
//
// A timestamp exactly one window old counts as expired.
func (r *RateLimiter) Allow(userID int64) bool {
	if r == nil || r.MaxRequests <= 0 || r.Window <= 0 {
		return true
	}

	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries == nil {
		r.entries = make(map[int64][]time.Time)
	}

	recent := prune(r.entries[userID], now, r.Window)
	if len(recent) >= r.MaxRequests {
		r.entries[userID] = recent
		return false
	}

	r.entries[userID] = append(recent, now)
	return true
}

// Sweep drops users whose every recorded timestamp has expired and
// returns how many were removed. Run periodically from a ticker.
func (r *RateLimiter) Sweep() int {
	if r == nil {
		return 0
	}

	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for userID, stamps := range r.entries {
		recent := prune(stamps, now, r.Window)
		if len(recent) == 0 {
			delete(r.entries, userID)
			removed++
			continue
		}
		r.entries[userID] = recent
	}
	return removed
}

// TrackedUsers returns the number of users currently holding state.
func (r *RateLimiter) TrackedUsers() int {
	if r == nil {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// prune keeps timestamps still strictly inside the window.
func prune(stamps []time.Time, now time.Time, window time.Duration) []time.Time {
	if len(stamps) == 0 {
		return nil
	}

	recent := stamps[:0]
	for _, ts := range stamps {
		if now.Sub(ts) < window {
			recent = append(recent, ts)
		}
	}
	return recent
}

func (r *RateLimiter) now() time.Time {
	if r != nil && r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}
