package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(window time.Duration, max int) (*RateLimiter, *fakeClock) {
	clock := newFakeClock()
	limiter := NewRateLimiter(window, max)
	limiter.Clock = clock.Now
	return limiter, clock
}

func TestRateLimiterFirstRequestAdmitted(t *testing.T) {
	limiter, _ := newTestLimiter(time.Minute, 1)
	require.True(t, limiter.Allow(42))
}

func TestRateLimiterRejectsAtLimit(t *testing.T) {
	limiter, _ := newTestLimiter(time.Minute, 3)

	for i := 0; i < 3; i++ {
		require.True(t, limiter.Allow(42), "request %d should be admitted", i+1)
	}
	require.False(t, limiter.Allow(42))
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	limiter, clock := newTestLimiter(time.Minute, 2)

	require.True(t, limiter.Allow(42))
	require.True(t, limiter.Allow(42))
	require.False(t, limiter.Allow(42))

	clock.Advance(time.Minute)
	require.True(t, limiter.Allow(42))
}

func TestRateLimiterBoundaryTimestampExpired(t *testing.T) {
	limiter, clock := newTestLimiter(time.Minute, 1)

	require.True(t, limiter.Allow(42))

	// exactly one window later the old entry no longer counts
	clock.Advance(time.Minute)
	require.True(t, limiter.Allow(42))
}

func TestRateLimiterJustInsideWindowStillCounts(t *testing.T) {
	limiter, clock := newTestLimiter(time.Minute, 1)

	require.True(t, limiter.Allow(42))

	clock.Advance(time.Minute - time.Millisecond)
	require.False(t, limiter.Allow(42))
}

func TestRateLimiterRejectionsDoNotExtendWindow(t *testing.T) {
	limiter, clock := newTestLimiter(time.Minute, 1)

	require.True(t, limiter.Allow(42))

	// hammer while limited; none of these may push the window out
	for i := 0; i < 10; i++ {
		clock.Advance(5 * time.Second)
		require.False(t, limiter.Allow(42))
	}

	clock.Advance(10 * time.Second)
	require.True(t, limiter.Allow(42))
}

func TestRateLimiterUsersIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(time.Minute, 1)

	require.True(t, limiter.Allow(1))
	require.False(t, limiter.Allow(1))
	require.True(t, limiter.Allow(2))
}

func TestRateLimiterSweep(t *testing.T) {
	limiter, clock := newTestLimiter(time.Minute, 5)

	require.True(t, limiter.Allow(1))
	require.True(t, limiter.Allow(2))
	require.Equal(t, 2, limiter.TrackedUsers())

	clock.Advance(30 * time.Second)
	require.True(t, limiter.Allow(2))

	clock.Advance(45 * time.Second)
	removed := limiter.Sweep()
	require.Equal(t, 1, removed)
	require.Equal(t, 1, limiter.TrackedUsers())

	clock.Advance(time.Minute)
	require.Equal(t, 1, limiter.Sweep())
	require.Equal(t, 0, limiter.TrackedUsers())
}

func TestRateLimiterDisabledWhenUnconfigured(t *testing.T) {
	limiter := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, limiter.Allow(42))
	}
}

func TestRateLimiterConcurrentAccess(t *testing.T) {
	limiter, _ := newTestLimiter(time.Minute, 50)

	var wg sync.WaitGroup
	admitted := make([]int, 10)
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if limiter.Allow(42) {
					admitted[g]++
				}
			}
		}(g)
	}
	wg.Wait()

	total := 0
	for _, n := range admitted {
		total += n
	}
	require.Equal(t, 50, total)
}
