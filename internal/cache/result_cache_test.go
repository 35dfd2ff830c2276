package cache

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkrasnow/worldmood/internal/config"
)

func testCacheConfig() config.CacheConfig {
	return config.CacheConfig{
		WorldViewTTL:      30 * time.Second,
		CountryEmotionTTL: 120 * time.Second,
		CountryStatsTTL:   60 * time.Second,
		GlobalStatsTTL:    30 * time.Second,
		CountryPostsTTL:   180 * time.Second,
		SweepInterval:     time.Minute,
	}
}

func TestGetMissOnEmpty(t *testing.T) {
	c := New(testCacheConfig(), clockwork.NewFakeClock())

	_, ok := c.Get(TypeCountryEmotion, "US")
	assert.False(t, ok)
}

func TestSetAndGet(t *testing.T) {
	c := New(testCacheConfig(), clockwork.NewFakeClock())

	c.Set(TypeCountryEmotion, "US", "joy")

	got, ok := c.Get(TypeCountryEmotion, "US")
	require.True(t, ok)
	assert.Equal(t, "joy", got)
}

func TestGetExpiredIsMiss(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(testCacheConfig(), clock)

	c.Set(TypeWorldView, "", "snapshot")

	clock.Advance(29 * time.Second)
	_, ok := c.Get(TypeWorldView, "")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get(TypeWorldView, "")
	assert.False(t, ok)

	// The expired read dropped the entry.
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestPerTypeTTLs(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(testCacheConfig(), clock)

	c.Set(TypeWorldView, "", 1)
	c.Set(TypeCountryEmotion, "US", 2)

	clock.Advance(60 * time.Second)

	_, ok := c.Get(TypeWorldView, "")
	assert.False(t, ok, "worldview should expire after 30s")

	_, ok = c.Get(TypeCountryEmotion, "US")
	assert.True(t, ok, "country emotion should live for 120s")
}

func TestSetRefreshesTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(testCacheConfig(), clock)

	c.Set(TypeWorldView, "", "old")
	clock.Advance(25 * time.Second)
	c.Set(TypeWorldView, "", "new")
	clock.Advance(25 * time.Second)

	got, ok := c.Get(TypeWorldView, "")
	require.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestInvalidateCountry(t *testing.T) {
	c := New(testCacheConfig(), clockwork.NewFakeClock())

	c.Set(TypeCountryEmotion, "US", 1)
	c.Set(TypeCountryStats, "US", 2)
	c.Set(TypeCountryEmotion, "DE", 3)
	c.Set(TypeWorldView, "", 4)

	c.InvalidateCountry("US")

	_, ok := c.Get(TypeCountryEmotion, "US")
	assert.False(t, ok)
	_, ok = c.Get(TypeWorldView, "")
	assert.False(t, ok, "worldview aggregates stale US data")
	_, ok = c.Get(TypeCountryEmotion, "DE")
	assert.True(t, ok, "other countries stay cached")
}

func TestClearExpired(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(testCacheConfig(), clock)

	c.Set(TypeWorldView, "", 1)        // 30s TTL
	c.Set(TypeCountryPosts, "US", 2)   // 180s TTL
	c.Set(TypeCountryEmotion, "US", 3) // 120s TTL

	clock.Advance(121 * time.Second)

	removed := c.ClearExpired()
	assert.Equal(t, 2, removed)

	stats := c.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 1, stats.PerType[string(TypeCountryPosts)])
}

func TestUnknownTypeFallbackTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(testCacheConfig(), clock)

	c.Set(Type("trend"), "US", "worsening")

	clock.Advance(59 * time.Second)
	_, ok := c.Get(Type("trend"), "US")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get(Type("trend"), "US")
	assert.False(t, ok)
}

func TestStatsOldestAge(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(testCacheConfig(), clock)

	c.Set(TypeCountryPosts, "US", 1)
	clock.Advance(10 * time.Second)
	c.Set(TypeCountryPosts, "DE", 2)
	clock.Advance(5 * time.Second)

	assert.Equal(t, 15*time.Second, c.Stats().OldestAge)
}

func TestStats(t *testing.T) {
	c := New(testCacheConfig(), clockwork.NewFakeClock())

	assert.Equal(t, 0, c.Stats().Entries)

	c.Set(TypeCountryEmotion, "US", 1)
	c.Set(TypeCountryEmotion, "DE", 2)
	c.Set(TypeGlobalStats, "", 3)

	stats := c.Stats()
	assert.Equal(t, 3, stats.Entries)
	assert.Equal(t, 2, stats.PerType[string(TypeCountryEmotion)])
	assert.Equal(t, 1, stats.PerType[string(TypeGlobalStats)])
}
