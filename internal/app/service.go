// Package app orchestrates the read side (cached consensus results) and the
// collection loop that feeds it.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/dkrasnow/worldmood/internal/cache"
	"github.com/dkrasnow/worldmood/internal/config"
	"github.com/dkrasnow/worldmood/internal/domain"
	"github.com/dkrasnow/worldmood/internal/emotion"
	"github.com/dkrasnow/worldmood/internal/logging"
	"github.com/dkrasnow/worldmood/internal/metrics"
	"github.com/dkrasnow/worldmood/internal/resource"
	"github.com/dkrasnow/worldmood/internal/scheduler"
)

// observationLimit caps how many recent observations feed one aggregation.
const observationLimit = 1000

// trendHistoryLimit caps how many past results are kept per country for trend
// classification.
const trendHistoryLimit = 24

// Broadcaster pushes a fresh result to connected live-map clients.
type Broadcaster interface {
	Broadcast(result domain.AggregationResult)
}

// Service answers the serving layer's questions and recomputes consensus
// results on demand. Concurrent requests for the same country collapse into
// one computation.
type Service struct {
	cfg          *config.Config
	clock        clockwork.Clock
	cache        *cache.Cache
	scheduler    *scheduler.Scheduler
	resources    *resource.Manager
	observations domain.ObservationSource
	results      domain.ResultRepository
	publisher    domain.EventPublisher
	broadcaster  Broadcaster
	group        singleflight.Group

	historyMu sync.Mutex
	history   map[string][]domain.AggregationResult

	known map[string]bool
}

func NewService(
	cfg *config.Config,
	clock clockwork.Clock,
	resultCache *cache.Cache,
	sched *scheduler.Scheduler,
	resources *resource.Manager,
	observations domain.ObservationSource,
	results domain.ResultRepository,
	publisher domain.EventPublisher,
	broadcaster Broadcaster,
) *Service {
	known := make(map[string]bool, len(cfg.Countries))
	for _, country := range cfg.Countries {
		known[country] = true
	}
	return &Service{
		cfg:          cfg,
		clock:        clock,
		cache:        resultCache,
		scheduler:    sched,
		resources:    resources,
		observations: observations,
		results:      results,
		publisher:    publisher,
		broadcaster:  broadcaster,
		history:      make(map[string][]domain.AggregationResult),
		known:        known,
	}
}

// CountryEmotion returns the current consensus result for a country, from
// cache when fresh, recomputed otherwise.
func (s *Service) CountryEmotion(ctx context.Context, country string) (domain.AggregationResult, error) {
	if !s.known[country] {
		return domain.AggregationResult{}, fmt.Errorf("country %q: %w", country, domain.ErrCountryUnknown)
	}

	if cached, ok := s.cache.Get(cache.TypeCountryEmotion, country); ok {
		return cached.(domain.AggregationResult), nil
	}

	return s.recompute(ctx, country)
}

// RefreshCountry recomputes a country's result, bypassing the cache. The
// coordinator calls this after a fetch stores new posts.
func (s *Service) RefreshCountry(ctx context.Context, country string) (domain.AggregationResult, error) {
	if !s.known[country] {
		return domain.AggregationResult{}, fmt.Errorf("country %q: %w", country, domain.ErrCountryUnknown)
	}
	s.cache.InvalidateCountry(country)
	return s.recompute(ctx, country)
}

// recompute aggregates a country's observations into a fresh result and
// propagates it: cache, repository, event channel, live map.
func (s *Service) recompute(ctx context.Context, country string) (domain.AggregationResult, error) {
	value, err, _ := s.group.Do(country, func() (any, error) {
		observations, err := s.countryObservations(ctx, country)
		if err != nil {
			return nil, fmt.Errorf("list observations: %w", err)
		}

		if err := s.resources.EnsureLoaded(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrResourceUnavailable, err)
		}
		defer s.resources.Done()

		start := s.clock.Now()
		result := emotion.Aggregate(country, observations, s.clock.Now())
		metrics.AggregationsTotal.Inc()
		metrics.AggregationDurationSeconds.Observe(s.clock.Now().Sub(start).Seconds())
		metrics.AggregationObservations.Observe(float64(len(observations)))

		s.cache.Set(cache.TypeCountryEmotion, country, result)
		s.recordHistory(result)

		if err := s.results.UpsertResult(ctx, result); err != nil {
			return nil, fmt.Errorf("persist result: %w", err)
		}

		// A lost event only delays the live map until the next refresh; the
		// result itself is already persisted.
		if err := s.publisher.PublishCountryUpdated(ctx, result); err != nil {
			logging.WithCountry(country).Warn("publish country update failed", "error", err)
		}
		if s.broadcaster != nil {
			s.broadcaster.Broadcast(result)
		}

		return result, nil
	})
	if err != nil {
		return domain.AggregationResult{}, err
	}
	return value.(domain.AggregationResult), nil
}

// countryObservations returns a country's recent observations, reading the
// database only when the cached slice has expired. RefreshCountry invalidates
// the entry first, so results after a fetch always see the new posts.
func (s *Service) countryObservations(ctx context.Context, country string) ([]domain.Observation, error) {
	if cached, ok := s.cache.Get(cache.TypeCountryPosts, country); ok {
		return cached.([]domain.Observation), nil
	}

	observations, err := s.observations.ListObservations(ctx, country, observationLimit)
	if err != nil {
		return nil, err
	}
	s.cache.Set(cache.TypeCountryPosts, country, observations)
	return observations, nil
}

// WorldView returns the current result for every country that has one.
func (s *Service) WorldView(ctx context.Context) ([]domain.AggregationResult, error) {
	if cached, ok := s.cache.Get(cache.TypeWorldView, ""); ok {
		return cached.([]domain.AggregationResult), nil
	}

	results, err := s.results.ListResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	s.cache.Set(cache.TypeWorldView, "", results)
	return results, nil
}

// Trend classifies the recent emotional direction for a country from its
// in-memory result history.
func (s *Service) Trend(country string) (string, error) {
	if !s.known[country] {
		return "", fmt.Errorf("country %q: %w", country, domain.ErrCountryUnknown)
	}

	s.historyMu.Lock()
	history := make([]domain.AggregationResult, len(s.history[country]))
	copy(history, s.history[country])
	s.historyMu.Unlock()

	return emotion.ClassifyTrend(history), nil
}

func (s *Service) recordHistory(result domain.AggregationResult) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	history := append(s.history[result.Country], result)
	if len(history) > trendHistoryLimit {
		history = history[len(history)-trendHistoryLimit:]
	}
	s.history[result.Country] = history
}

// SchedulerStats exposes the scheduler's operational snapshot. The snapshot
// re-scores every country, so it is cached briefly.
func (s *Service) SchedulerStats(ctx context.Context) (domain.SchedulerStats, error) {
	if cached, ok := s.cache.Get(cache.TypeGlobalStats, ""); ok {
		return cached.(domain.SchedulerStats), nil
	}

	stats, err := s.scheduler.Stats(ctx)
	if err != nil {
		return domain.SchedulerStats{}, err
	}
	s.cache.Set(cache.TypeGlobalStats, "", stats)
	return stats, nil
}

// CountryStats pairs a country's scheduling state with its current priority
// score.
type CountryStats struct {
	domain.CountryMetrics
	PriorityScore float64 `json:"priority_score"`
}

// CountryStats returns one country's scheduling snapshot, cached per country.
func (s *Service) CountryStats(ctx context.Context, country string) (CountryStats, error) {
	if !s.known[country] {
		return CountryStats{}, fmt.Errorf("country %q: %w", country, domain.ErrCountryUnknown)
	}

	if cached, ok := s.cache.Get(cache.TypeCountryStats, country); ok {
		return cached.(CountryStats), nil
	}

	score, err := s.scheduler.Score(ctx, country)
	if err != nil {
		return CountryStats{}, fmt.Errorf("score %s: %w", country, err)
	}

	stats := CountryStats{PriorityScore: score}
	for _, m := range s.scheduler.CountryMetrics() {
		if m.Country == country {
			stats.CountryMetrics = m
			break
		}
	}

	s.cache.Set(cache.TypeCountryStats, country, stats)
	return stats, nil
}

// CacheStats exposes the result cache's operational snapshot.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// Countries returns the configured country set.
func (s *Service) Countries() []string {
	return s.cfg.Countries
}
