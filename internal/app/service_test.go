package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkrasnow/worldmood/internal/cache"
	"github.com/dkrasnow/worldmood/internal/config"
	"github.com/dkrasnow/worldmood/internal/domain"
	"github.com/dkrasnow/worldmood/internal/resource"
	"github.com/dkrasnow/worldmood/internal/scheduler"
)

// --- fakes ---

type fakeCounter struct {
	mu      sync.Mutex
	stored  map[string]int
	pending int
	calls   int
}

func (f *fakeCounter) StoredPostCount(_ context.Context, country string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.stored[country], nil
}

func (f *fakeCounter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeCounter) PendingCount(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending, nil
}

type fakeObservations struct {
	mu    sync.Mutex
	byCty map[string][]domain.Observation
	calls int
}

func (f *fakeObservations) ListObservations(_ context.Context, country string, _ int) ([]domain.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.byCty[country], nil
}

func (f *fakeObservations) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeResults struct {
	mu      sync.Mutex
	results map[string]domain.AggregationResult
	upserts int
}

func (f *fakeResults) UpsertResult(_ context.Context, result domain.AggregationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.results == nil {
		f.results = make(map[string]domain.AggregationResult)
	}
	f.results[result.Country] = result
	f.upserts++
	return nil
}

func (f *fakeResults) GetResult(_ context.Context, country string) (*domain.AggregationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result, ok := f.results[country]
	if !ok {
		return nil, domain.ErrResultNotFound
	}
	return &result, nil
}

func (f *fakeResults) ListResults(_ context.Context) ([]domain.AggregationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AggregationResult, 0, len(f.results))
	for _, result := range f.results {
		out = append(out, result)
	}
	return out, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.AggregationResult
	fail   bool
}

func (f *fakePublisher) PublishCountryUpdated(_ context.Context, result domain.AggregationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("redis down")
	}
	f.events = append(f.events, result)
	return nil
}

type fakeBroadcaster struct {
	mu      sync.Mutex
	results []domain.AggregationResult
}

func (f *fakeBroadcaster) Broadcast(result domain.AggregationResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
}

type noopAcquirer struct{}

func (noopAcquirer) Acquire(context.Context) error { return nil }
func (noopAcquirer) Release(context.Context) error { return nil }

type failingAcquirer struct{}

func (failingAcquirer) Acquire(context.Context) error { return errors.New("model load failed") }
func (failingAcquirer) Release(context.Context) error { return nil }

// --- harness ---

type harness struct {
	clock        *clockwork.FakeClock
	service      *Service
	scheduler    *scheduler.Scheduler
	observations *fakeObservations
	results      *fakeResults
	publisher    *fakePublisher
	broadcaster  *fakeBroadcaster
	counter      *fakeCounter
}

func appTestConfig(countries ...string) *config.Config {
	return &config.Config{
		Countries:  countries,
		Importance: config.ImportanceConfig{Default: 1.0},
		Scheduler: config.SchedulerConfig{
			DataNeedWeight:     2.0,
			ImportanceWeight:   1.5,
			TimeDecayWeight:    1.0,
			DataNeedHigh:       100,
			DataNeedMedium:     50,
			DataNeedLow:        20,
			FailureStreakLimit: 3,
			NeverFetchedBoost:  5.0,
			TimeDecayCapHours:  3.0,
			ActivityBoostCap:   2.0,
			UrgentThreshold:    15.0,
			SkipThreshold:      5.0,
			OptimalBatchSize:   3,
			MaxBatchSize:       10,
			MinInterval:        30 * time.Second,
			MaxInterval:        10 * time.Minute,
		},
		Resource: config.ResourceConfig{
			IdleTimeout:  10 * time.Minute,
			ReapInterval: time.Minute,
		},
		Cache: config.CacheConfig{
			WorldViewTTL:      30 * time.Second,
			CountryEmotionTTL: 120 * time.Second,
			CountryStatsTTL:   60 * time.Second,
			GlobalStatsTTL:    30 * time.Second,
			CountryPostsTTL:   180 * time.Second,
			SweepInterval:     time.Minute,
		},
		Coordinator: config.CoordinatorConfig{
			FetchWorkers:    4,
			FetchTimeout:    30 * time.Second,
			FetchRatePerSec: 1000,
		},
	}
}

func newHarness(t *testing.T, acquirer domain.ResourceAcquirer, countries ...string) *harness {
	t.Helper()

	cfg := appTestConfig(countries...)
	clock := clockwork.NewFakeClock()
	counter := &fakeCounter{stored: map[string]int{}}
	sched := scheduler.New(cfg, counter, clock)
	resultCache := cache.New(cfg.Cache, clock)
	manager := resource.NewManager(cfg.Resource, acquirer, clock)
	observations := &fakeObservations{byCty: map[string][]domain.Observation{}}
	results := &fakeResults{}
	publisher := &fakePublisher{}
	broadcaster := &fakeBroadcaster{}

	service := NewService(cfg, clock, resultCache, sched, manager,
		observations, results, publisher, broadcaster)

	return &harness{
		clock:        clock,
		service:      service,
		scheduler:    sched,
		observations: observations,
		results:      results,
		publisher:    publisher,
		broadcaster:  broadcaster,
		counter:      counter,
	}
}

// --- tests ---

func TestCountryEmotionUnknownCountry(t *testing.T) {
	h := newHarness(t, noopAcquirer{}, "US")

	_, err := h.service.CountryEmotion(context.Background(), "ZZ")
	assert.ErrorIs(t, err, domain.ErrCountryUnknown)
}

func TestCountryEmotionComputesAndPropagates(t *testing.T) {
	h := newHarness(t, noopAcquirer{}, "US")
	h.observations.byCty["US"] = []domain.Observation{
		{Country: "US", Label: "joy", Confidence: 0.9},
		{Country: "US", Label: "joy", Confidence: 0.8},
	}

	result, err := h.service.CountryEmotion(context.Background(), "US")
	require.NoError(t, err)
	assert.Equal(t, "US", result.Country)
	assert.Equal(t, "joy", result.DominantLabel)
	assert.Equal(t, 2, result.PostCount)

	assert.Equal(t, 1, h.results.upserts)
	assert.Len(t, h.publisher.events, 1)
	assert.Len(t, h.broadcaster.results, 1)
}

func TestCountryEmotionServedFromCache(t *testing.T) {
	h := newHarness(t, noopAcquirer{}, "US")
	ctx := context.Background()

	_, err := h.service.CountryEmotion(ctx, "US")
	require.NoError(t, err)
	_, err = h.service.CountryEmotion(ctx, "US")
	require.NoError(t, err)

	assert.Equal(t, 1, h.observations.callCount())
	assert.Equal(t, 1, h.results.upserts)
}

func TestCountryEmotionRecomputesAfterTTL(t *testing.T) {
	h := newHarness(t, noopAcquirer{}, "US")
	ctx := context.Background()

	_, err := h.service.CountryEmotion(ctx, "US")
	require.NoError(t, err)

	// The result expires at 120s but the observation slice lives 180s, so
	// the first recompute reuses it without a second read.
	h.clock.Advance(121 * time.Second)
	_, err = h.service.CountryEmotion(ctx, "US")
	require.NoError(t, err)
	assert.Equal(t, 2, h.results.upserts)
	assert.Equal(t, 1, h.observations.callCount())

	// Past both TTLs the observations are read again.
	h.clock.Advance(121 * time.Second)
	_, err = h.service.CountryEmotion(ctx, "US")
	require.NoError(t, err)
	assert.Equal(t, 3, h.results.upserts)
	assert.Equal(t, 2, h.observations.callCount())
}

func TestCountryEmotionNoObservationsIsNeutral(t *testing.T) {
	h := newHarness(t, noopAcquirer{}, "US")

	result, err := h.service.CountryEmotion(context.Background(), "US")
	require.NoError(t, err)
	assert.Equal(t, "neutral", result.DominantLabel)
	assert.Zero(t, result.Confidence)
	assert.Zero(t, result.PostCount)
}

func TestCountryEmotionResourceFailure(t *testing.T) {
	h := newHarness(t, failingAcquirer{}, "US")

	_, err := h.service.CountryEmotion(context.Background(), "US")
	assert.ErrorIs(t, err, domain.ErrResourceUnavailable)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	h := newHarness(t, noopAcquirer{}, "US")
	h.publisher.fail = true

	result, err := h.service.CountryEmotion(context.Background(), "US")
	require.NoError(t, err)
	assert.Equal(t, "US", result.Country)
	assert.Equal(t, 1, h.results.upserts)
}

func TestRefreshCountryBypassesCache(t *testing.T) {
	h := newHarness(t, noopAcquirer{}, "US")
	ctx := context.Background()

	_, err := h.service.CountryEmotion(ctx, "US")
	require.NoError(t, err)

	h.observations.byCty["US"] = []domain.Observation{
		{Country: "US", Label: "anger", Confidence: 0.9},
	}
	result, err := h.service.RefreshCountry(ctx, "US")
	require.NoError(t, err)
	assert.Equal(t, "anger", result.DominantLabel)

	// The follow-up read sees the refreshed result.
	cached, err := h.service.CountryEmotion(ctx, "US")
	require.NoError(t, err)
	assert.Equal(t, "anger", cached.DominantLabel)
	assert.Equal(t, 2, h.observations.callCount())
}

func TestWorldViewCachesResults(t *testing.T) {
	h := newHarness(t, noopAcquirer{}, "US", "DE")
	ctx := context.Background()

	_, err := h.service.RefreshCountry(ctx, "US")
	require.NoError(t, err)
	_, err = h.service.RefreshCountry(ctx, "DE")
	require.NoError(t, err)

	view, err := h.service.WorldView(ctx)
	require.NoError(t, err)
	assert.Len(t, view, 2)

	// Served from cache even though the repo changed underneath.
	h.results.results = map[string]domain.AggregationResult{}
	view, err = h.service.WorldView(ctx)
	require.NoError(t, err)
	assert.Len(t, view, 2)
}

func TestTrendFromHistory(t *testing.T) {
	h := newHarness(t, noopAcquirer{}, "US")
	ctx := context.Background()

	trend, err := h.service.Trend("US")
	require.NoError(t, err)
	assert.Equal(t, "insufficient_data", trend)

	h.observations.byCty["US"] = []domain.Observation{{Country: "US", Label: "sadness", Confidence: 0.9}}
	_, err = h.service.RefreshCountry(ctx, "US")
	require.NoError(t, err)

	h.observations.byCty["US"] = []domain.Observation{{Country: "US", Label: "joy", Confidence: 0.9}}
	_, err = h.service.RefreshCountry(ctx, "US")
	require.NoError(t, err)

	trend, err = h.service.Trend("US")
	require.NoError(t, err)
	assert.Equal(t, "improving", trend)
}

func TestTrendUnknownCountry(t *testing.T) {
	h := newHarness(t, noopAcquirer{}, "US")

	_, err := h.service.Trend("ZZ")
	assert.ErrorIs(t, err, domain.ErrCountryUnknown)
}

func TestSchedulerStatsServedFromCache(t *testing.T) {
	h := newHarness(t, noopAcquirer{}, "US", "DE")
	ctx := context.Background()

	stats, err := h.service.SchedulerStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalCountries)
	scoring := h.counter.callCount()

	// A second call within the TTL does not re-score the countries.
	_, err = h.service.SchedulerStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, scoring, h.counter.callCount())

	h.clock.Advance(31 * time.Second)
	_, err = h.service.SchedulerStats(ctx)
	require.NoError(t, err)
	assert.Greater(t, h.counter.callCount(), scoring)
}

func TestCountryStats(t *testing.T) {
	h := newHarness(t, noopAcquirer{}, "US")
	ctx := context.Background()

	stats, err := h.service.CountryStats(ctx, "US")
	require.NoError(t, err)
	assert.Equal(t, "US", stats.Country)
	assert.Equal(t, 1.0, stats.SuccessRate)
	// Never fetched, nothing stored: 10*2 + 1*1.5 + 5*1.
	assert.InDelta(t, 26.5, stats.PriorityScore, 1e-9)

	// Cached: a changed post count is not visible until the TTL lapses.
	h.counter.mu.Lock()
	h.counter.stored["US"] = 150
	h.counter.mu.Unlock()

	stats, err = h.service.CountryStats(ctx, "US")
	require.NoError(t, err)
	assert.InDelta(t, 26.5, stats.PriorityScore, 1e-9)

	h.clock.Advance(61 * time.Second)
	stats, err = h.service.CountryStats(ctx, "US")
	require.NoError(t, err)
	assert.InDelta(t, 8.5, stats.PriorityScore, 1e-9)
}

func TestCountryStatsUnknownCountry(t *testing.T) {
	h := newHarness(t, noopAcquirer{}, "US")

	_, err := h.service.CountryStats(context.Background(), "ZZ")
	assert.ErrorIs(t, err, domain.ErrCountryUnknown)
}
