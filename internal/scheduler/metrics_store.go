package scheduler

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dkrasnow/worldmood/internal/domain"
)

// countryState holds the mutable scheduling metrics for one country. All
// access goes through the store's lock.
type countryState struct {
	importance          float64
	lastFetchAt         *time.Time
	successRate         float64
	consecutiveFailures int
	postRate            float64
}

// metricsStore owns the per-country scheduling state. Countries are registered
// once at startup; outcome feedback and score reads may happen concurrently.
type metricsStore struct {
	mu     sync.RWMutex
	clock  clockwork.Clock
	states map[string]*countryState
}

func newMetricsStore(clock clockwork.Clock) *metricsStore {
	return &metricsStore{
		clock:  clock,
		states: make(map[string]*countryState),
	}
}

// register adds a country with its static importance. A country registered
// twice keeps its accumulated state.
func (s *metricsStore) register(country string, importance float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.states[country]; ok {
		existing.importance = importance
		return
	}

	s.states[country] = &countryState{
		importance:  importance,
		successRate: 1.0,
	}
}

// countries returns the registered country codes in unspecified order.
func (s *metricsStore) countries() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.states))
	for country := range s.states {
		out = append(out, country)
	}
	return out
}

// view returns a copy of one country's state, or false if unregistered.
func (s *metricsStore) view(country string) (countryState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[country]
	if !ok {
		return countryState{}, false
	}
	return *state, true
}

// recordOutcome applies one fetch outcome to a country's state. An errored
// fetch decays the success rate, a productive fetch recovers it and refreshes
// the post rate, and a clean fetch that stored nothing counts as a soft
// failure. The fetch timestamp advances in every case.
func (s *metricsStore) recordOutcome(outcome domain.FetchOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[outcome.Country]
	if !ok {
		return
	}

	now := s.clock.Now()

	switch {
	case outcome.Erred:
		state.consecutiveFailures++
		state.successRate *= failureDecay

	case outcome.PostsStored > 0:
		state.consecutiveFailures = 0
		state.successRate = min(state.successRate*successRecovery, 1.0)
		if state.lastFetchAt != nil {
			elapsed := now.Sub(*state.lastFetchAt).Hours()
			if elapsed > 0 {
				state.postRate = float64(outcome.PostsStored) / elapsed
			}
		}

	default:
		// Fetched cleanly but stored nothing. Counts against the streak so
		// persistently empty countries sink, without decaying the rate.
		state.consecutiveFailures++
	}

	state.lastFetchAt = &now
}

// snapshot returns read-only metrics for every registered country.
func (s *metricsStore) snapshot() []domain.CountryMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CountryMetrics, 0, len(s.states))
	for country, state := range s.states {
		metrics := domain.CountryMetrics{
			Country:             country,
			Importance:          state.importance,
			SuccessRate:         state.successRate,
			ConsecutiveFailures: state.consecutiveFailures,
			PostRate:            state.postRate,
		}
		if state.lastFetchAt != nil {
			t := *state.lastFetchAt
			metrics.LastFetchAt = &t
		}
		out = append(out, metrics)
	}
	return out
}
