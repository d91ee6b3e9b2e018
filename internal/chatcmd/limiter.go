package chatcmd

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// playerLimiter hands each player a token bucket. Idle buckets are swept.
type playerLimiter struct {
	mu          sync.Mutex
	limit       rate.Limit
	burst       int
	entries     map[string]*limiterEntry
	ttl         time.Duration
	lastCleanup time.Time
}

func newPlayerLimiter(perMinute float64, burst int) *playerLimiter {
	if perMinute <= 0 || burst <= 0 {
		return nil
	}
	return &playerLimiter{
		limit:       rate.Limit(perMinute / 60),
		burst:       burst,
		entries:     map[string]*limiterEntry{},
		ttl:         15 * time.Minute,
		lastCleanup: time.Now(),
	}
}

func (l *playerLimiter) allow(player string, now time.Time) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastCleanup) >= l.ttl/3 {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > l.ttl {
				delete(l.entries, k)
			}
		}
		l.lastCleanup = now
	}

	e, ok := l.entries[player]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[player] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}
