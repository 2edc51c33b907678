// Package cache keeps the active rule version close to the engine. Rule
// versions change rarely and are read on every evaluation, so a small TTL
// cache removes a store round-trip from the hot path. The cache is
// best-effort: misses and backend failures fall through to the store.
package cache

import (
	"context"
	"sync"
	"time"

	"lendgate/internal/domain"
)

// VersionCache caches the active rule version per rule set.
type VersionCache interface {
	Get(ctx context.Context, ruleSet string) *domain.RuleVersion
	Set(ctx context.Context, version domain.RuleVersion)
	Invalidate(ctx context.Context, ruleSet string)
}

type memoryEntry struct {
	version  domain.RuleVersion
	storedAt time.Time
}

// InMemoryCache is a TTL cache for single-process deployments.
type InMemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

func NewInMemoryCache(ttl time.Duration) *InMemoryCache {
	return &InMemoryCache{ttl: ttl, entries: make(map[string]memoryEntry)}
}

func (c *InMemoryCache) Get(_ context.Context, ruleSet string) *domain.RuleVersion {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[ruleSet]
	if !ok || time.Since(entry.storedAt) >= c.ttl {
		return nil
	}
	copied := entry.version
	return &copied
}

func (c *InMemoryCache) Set(_ context.Context, version domain.RuleVersion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[version.RuleSet] = memoryEntry{version: version, storedAt: time.Now()}
}

func (c *InMemoryCache) Invalidate(_ context.Context, ruleSet string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, ruleSet)
}
