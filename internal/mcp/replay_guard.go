package mcp

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const replayCacheSize = 65536

// replayGuard rejects a signature seen again within ttl. The LRU bounds
// memory under high-cardinality traffic.
type replayGuard struct {
	mu   sync.Mutex
	seen *lru.Cache[string, time.Time]
	ttl  time.Duration
}

func newReplayGuard(ttl time.Duration) *replayGuard {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	// lru.New only fails on a non-positive size.
	seen, _ := lru.New[string, time.Time](replayCacheSize)
	return &replayGuard{seen: seen, ttl: ttl}
}

func (g *replayGuard) allow(agentID, signature string, now time.Time) bool {
	if g == nil || signature == "" {
		return true
	}
	key := agentID + "|" + signature
	g.mu.Lock()
	defer g.mu.Unlock()
	if at, ok := g.seen.Get(key); ok && now.Sub(at) < g.ttl {
		return false
	}
	g.seen.Add(key, now)
	return true
}
