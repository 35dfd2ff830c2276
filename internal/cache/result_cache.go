// Package cache provides an in-memory TTL cache for serving-layer results.
// Each cache type carries its own TTL tuned to how fast the underlying data
// moves. Reads are self-policing: an expired entry is a miss and is dropped
// on the spot, so correctness never depends on the background sweeper.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dkrasnow/worldmood/internal/config"
	"github.com/dkrasnow/worldmood/internal/metrics"
)

// Type names one cached result family. Each type has its own TTL.
type Type string

const (
	TypeWorldView      Type = "worldview"
	TypeCountryEmotion Type = "country_emotion"
	TypeCountryStats   Type = "country_stats"
	TypeGlobalStats    Type = "global_stats"
	TypeCountryPosts   Type = "country_posts"
)

type cacheKey struct {
	typ Type
	id  string
}

// TTL applied to cache types without a configured one.
const fallbackTTL = time.Minute

type entry struct {
	value     any
	storedAt  time.Time
	expiresAt time.Time
}

// Stats is the cache's operational snapshot.
type Stats struct {
	Entries   int            `json:"entries"`
	PerType   map[string]int `json:"per_type"`
	OldestAge time.Duration  `json:"oldest_age_ns"`
}

// Cache is a typed TTL cache safe for concurrent use.
type Cache struct {
	clock         clockwork.Clock
	ttls          map[Type]time.Duration
	sweepInterval time.Duration

	mu      sync.RWMutex
	entries map[cacheKey]entry
}

// New creates a cache with per-type TTLs taken from the config.
func New(cfg config.CacheConfig, clock clockwork.Clock) *Cache {
	return &Cache{
		clock: clock,
		ttls: map[Type]time.Duration{
			TypeWorldView:      cfg.WorldViewTTL,
			TypeCountryEmotion: cfg.CountryEmotionTTL,
			TypeCountryStats:   cfg.CountryStatsTTL,
			TypeGlobalStats:    cfg.GlobalStatsTTL,
			TypeCountryPosts:   cfg.CountryPostsTTL,
		},
		sweepInterval: cfg.SweepInterval,
		entries:       make(map[cacheKey]entry),
	}
}

// Get returns the cached value for (typ, id) if present and fresh. An expired
// entry is removed and reported as a miss.
func (c *Cache) Get(typ Type, id string) (any, bool) {
	key := cacheKey{typ: typ, id: id}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		metrics.CacheRequestsTotal.WithLabelValues(string(typ), "miss").Inc()
		return nil, false
	}

	if !c.clock.Now().Before(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a Set may have raced us.
		if current, still := c.entries[key]; still && current.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		metrics.CacheRequestsTotal.WithLabelValues(string(typ), "expired").Inc()
		return nil, false
	}

	metrics.CacheRequestsTotal.WithLabelValues(string(typ), "hit").Inc()
	return e.value, true
}

// Set stores a value under (typ, id) with the type's TTL. An unknown type
// falls back to a one-minute TTL.
func (c *Cache) Set(typ Type, id string, value any) {
	ttl, ok := c.ttls[typ]
	if !ok || ttl <= 0 {
		ttl = fallbackTTL
	}

	key := cacheKey{typ: typ, id: id}
	now := c.clock.Now()

	c.mu.Lock()
	c.entries[key] = entry{value: value, storedAt: now, expiresAt: now.Add(ttl)}
	metrics.CacheSize.Set(float64(len(c.entries)))
	c.mu.Unlock()
}

// Invalidate drops one entry, if present.
func (c *Cache) Invalidate(typ Type, id string) {
	c.mu.Lock()
	delete(c.entries, cacheKey{typ: typ, id: id})
	metrics.CacheSize.Set(float64(len(c.entries)))
	c.mu.Unlock()
}

// InvalidateCountry drops every per-country entry for the given country along
// with the aggregate views they feed.
func (c *Cache) InvalidateCountry(country string) {
	c.mu.Lock()
	delete(c.entries, cacheKey{typ: TypeCountryEmotion, id: country})
	delete(c.entries, cacheKey{typ: TypeCountryStats, id: country})
	delete(c.entries, cacheKey{typ: TypeCountryPosts, id: country})
	delete(c.entries, cacheKey{typ: TypeWorldView, id: ""})
	delete(c.entries, cacheKey{typ: TypeGlobalStats, id: ""})
	metrics.CacheSize.Set(float64(len(c.entries)))
	c.mu.Unlock()
}

// ClearExpired removes every expired entry and returns how many were dropped.
func (c *Cache) ClearExpired() int {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		metrics.CacheEvictionsTotal.Add(float64(removed))
	}
	metrics.CacheSize.Set(float64(len(c.entries)))
	return removed
}

// Stats returns entry counts, total and per type.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.clock.Now()
	perType := make(map[string]int, len(c.ttls))
	var oldest time.Duration
	for key, e := range c.entries {
		perType[string(key.typ)]++
		if age := now.Sub(e.storedAt); age > oldest {
			oldest = age
		}
	}
	return Stats{Entries: len(c.entries), PerType: perType, OldestAge: oldest}
}

// Run drives the periodic sweep until the context is cancelled.
func (c *Cache) Run(ctx context.Context) {
	ticker := c.clock.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if removed := c.ClearExpired(); removed > 0 {
				slog.Debug("swept expired cache entries", "removed", removed)
			}
		}
	}
}
