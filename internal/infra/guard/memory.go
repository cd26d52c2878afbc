package guard

import (
	"context"
	"sync"
	"time"
)

// MemoryGuard is the single-process guard used when Redis is not configured.
type MemoryGuard struct {
	mu   sync.Mutex
	keys map[string]time.Time // key -> expiry
	now  func() time.Time
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{keys: make(map[string]time.Time), now: time.Now}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.sweep(now)
	if _, held := g.keys[key]; held {
		return false, nil
	}
	g.keys[key] = now.Add(ttl)
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
	return nil
}

// Len returns the number of unexpired keys.
func (g *MemoryGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweep(g.now())
	return len(g.keys)
}

func (g *MemoryGuard) sweep(now time.Time) {
	for k, exp := range g.keys {
		if !now.Before(exp) {
			delete(g.keys, k)
		}
	}
}
