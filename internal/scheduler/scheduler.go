// Package scheduler decides which countries to fetch next and how often. It
// scores every country from storage pressure, static importance, and fetch
// staleness, then shapes each cycle's batch and pacing from the urgency it
// finds.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dkrasnow/worldmood/internal/config"
	"github.com/dkrasnow/worldmood/internal/domain"
	"github.com/dkrasnow/worldmood/internal/metrics"
)

const (
	failureDecay    = 0.9
	successRecovery = 1.1

	hoursPerDecayDay = 24.0
	postRateDivisor  = 10.0
)

// Priority bucket labels and boundaries for the stats endpoint.
const (
	bucketCritical = "critical"
	bucketHigh     = "high"
	bucketMedium   = "medium"
	bucketLow      = "low"

	criticalScore = 20.0
	highScore     = 10.0
	mediumScore   = 5.0
)

// Scheduler ranks countries by collection priority and adapts batch size and
// cycle interval to the observed urgency. Safe for concurrent use.
type Scheduler struct {
	cfg     config.SchedulerConfig
	clock   clockwork.Clock
	store   *metricsStore
	counter domain.PostCounter
}

// scored pairs a country with its priority score for one planning pass.
type scored struct {
	country string
	score   float64
}

// New creates a scheduler tracking the given countries. Importance comes from
// the importance tiers in the config.
func New(cfg *config.Config, counter domain.PostCounter, clock clockwork.Clock) *Scheduler {
	s := &Scheduler{
		cfg:     cfg.Scheduler,
		clock:   clock,
		store:   newMetricsStore(clock),
		counter: counter,
	}
	for _, country := range cfg.Countries {
		s.store.register(country, cfg.ImportanceFor(country))
	}
	return s
}

// Score computes the current priority score for one country.
func (s *Scheduler) Score(ctx context.Context, country string) (float64, error) {
	state, ok := s.store.view(country)
	if !ok {
		return 0, fmt.Errorf("score %s: %w", country, domain.ErrCountryUnknown)
	}

	stored, err := s.counter.StoredPostCount(ctx, country)
	if err != nil {
		return 0, fmt.Errorf("stored post count for %s: %w", country, err)
	}

	return s.scoreFrom(state, stored), nil
}

func (s *Scheduler) scoreFrom(state countryState, stored int) float64 {
	base := s.dataNeed(stored)*s.cfg.DataNeedWeight +
		state.importance*s.cfg.ImportanceWeight +
		s.timeDecay(state.lastFetchAt)*s.cfg.TimeDecayWeight

	penalty := state.successRate
	if state.consecutiveFailures > s.cfg.FailureStreakLimit {
		penalty *= 0.5
	}

	boost := 1.0 + min(state.postRate/postRateDivisor, s.cfg.ActivityBoostCap)

	return base * penalty * boost
}

// dataNeed maps the stored post count to a need tier. Fewer posts means a
// stronger pull toward collection.
func (s *Scheduler) dataNeed(stored int) float64 {
	switch {
	case stored >= s.cfg.DataNeedHigh:
		return 1.0
	case stored >= s.cfg.DataNeedMedium:
		return 4.0
	case stored >= s.cfg.DataNeedLow:
		return 7.0
	default:
		return 10.0
	}
}

// timeDecay rewards staleness. Never-fetched countries get a fixed boost so
// they are visited early.
func (s *Scheduler) timeDecay(lastFetchAt *time.Time) float64 {
	if lastFetchAt == nil {
		return s.cfg.NeverFetchedBoost
	}
	hours := s.clock.Now().Sub(*lastFetchAt).Hours()
	return min(hours/hoursPerDecayDay, s.cfg.TimeDecayCapHours)
}

// scoreAll computes scores for every registered country, descending.
func (s *Scheduler) scoreAll(ctx context.Context) ([]scored, error) {
	countries := s.store.countries()
	out := make([]scored, 0, len(countries))

	for _, country := range countries {
		state, ok := s.store.view(country)
		if !ok {
			continue
		}
		stored, err := s.counter.StoredPostCount(ctx, country)
		if err != nil {
			return nil, fmt.Errorf("stored post count for %s: %w", country, err)
		}
		out = append(out, scored{country: country, score: s.scoreFrom(state, stored)})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].country < out[j].country
	})
	return out, nil
}

func (s *Scheduler) urgentCount(scores []scored) int {
	count := 0
	for _, sc := range scores {
		if sc.score > s.cfg.UrgentThreshold {
			count++
		}
	}
	return count
}

// NextBatch returns the countries to fetch this cycle, highest priority
// first. Batch size grows with the number of urgent countries.
func (s *Scheduler) NextBatch(ctx context.Context) ([]string, error) {
	scores, err := s.scoreAll(ctx)
	if err != nil {
		return nil, err
	}

	urgent := s.urgentCount(scores)

	var size int
	switch {
	case urgent > 10:
		size = s.cfg.MaxBatchSize
	case urgent > 5:
		size = 6
	case urgent > 0:
		size = s.cfg.OptimalBatchSize
	default:
		size = 2
	}
	if size > len(scores) {
		size = len(scores)
	}

	batch := make([]string, 0, size)
	for _, sc := range scores[:size] {
		batch = append(batch, sc.country)
	}

	metrics.SchedulerBatchSize.Observe(float64(len(batch)))
	metrics.SchedulerUrgentCountries.Set(float64(urgent))

	slog.Debug("planned fetch batch", "batch_size", len(batch), "urgent_countries", urgent)
	return batch, nil
}

// Interval returns how long to sleep before the next cycle, shrinking under
// urgency or backlog pressure.
func (s *Scheduler) Interval(ctx context.Context) (time.Duration, error) {
	scores, err := s.scoreAll(ctx)
	if err != nil {
		return 0, err
	}
	urgent := s.urgentCount(scores)

	backlog, err := s.counter.PendingCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("pending count: %w", err)
	}

	var interval time.Duration
	switch {
	case urgent > 20 || backlog > 200:
		interval = s.cfg.MinInterval
	case urgent > 10 || backlog > 100:
		interval = 60 * time.Second
	case urgent > 5 || backlog > 50:
		interval = 120 * time.Second
	default:
		interval = s.cfg.MaxInterval
	}

	metrics.SchedulerIntervalSeconds.Set(interval.Seconds())
	return interval, nil
}

// ShouldSkipCycle reports whether nothing currently justifies a fetch round.
func (s *Scheduler) ShouldSkipCycle(ctx context.Context) (bool, error) {
	scores, err := s.scoreAll(ctx)
	if err != nil {
		return false, err
	}
	if len(scores) == 0 {
		return true, nil
	}
	return scores[0].score < s.cfg.SkipThreshold, nil
}

// RecordOutcome feeds one fetch result back into the country's metrics.
func (s *Scheduler) RecordOutcome(outcome domain.FetchOutcome) {
	s.store.recordOutcome(outcome)

	result := "success"
	switch {
	case outcome.Erred:
		result = "error"
	case outcome.PostsStored == 0:
		result = "empty"
	}
	metrics.FetchOutcomesTotal.WithLabelValues(result).Inc()
}

// CountryMetrics returns a read-only snapshot of every country's state.
func (s *Scheduler) CountryMetrics() []domain.CountryMetrics {
	return s.store.snapshot()
}

// Stats summarizes the scheduler's view for the operational endpoint.
func (s *Scheduler) Stats(ctx context.Context) (domain.SchedulerStats, error) {
	scores, err := s.scoreAll(ctx)
	if err != nil {
		return domain.SchedulerStats{}, err
	}

	distribution := map[string]int{
		bucketCritical: 0,
		bucketHigh:     0,
		bucketMedium:   0,
		bucketLow:      0,
	}
	for _, sc := range scores {
		switch {
		case sc.score > criticalScore:
			distribution[bucketCritical]++
		case sc.score > highScore:
			distribution[bucketHigh]++
		case sc.score > mediumScore:
			distribution[bucketMedium]++
		default:
			distribution[bucketLow]++
		}
	}

	interval, err := s.Interval(ctx)
	if err != nil {
		return domain.SchedulerStats{}, err
	}

	var rateSum float64
	snapshot := s.store.snapshot()
	for _, m := range snapshot {
		rateSum += m.SuccessRate
	}
	avgRate := 0.0
	if len(snapshot) > 0 {
		avgRate = rateSum / float64(len(snapshot))
	}

	return domain.SchedulerStats{
		TotalCountries:       len(scores),
		PriorityDistribution: distribution,
		CurrentInterval:      interval,
		AvgSuccessRate:       avgRate,
	}, nil
}
