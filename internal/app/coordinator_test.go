package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkrasnow/worldmood/internal/domain"
)

type fakeFetcher struct {
	mu       sync.Mutex
	stored   map[string]int
	erred    map[string]bool
	fetched  []string
	maxInUse int
	inUse    int
}

func (f *fakeFetcher) Fetch(_ context.Context, country string) domain.FetchOutcome {
	f.mu.Lock()
	f.fetched = append(f.fetched, country)
	f.inUse++
	if f.inUse > f.maxInUse {
		f.maxInUse = f.inUse
	}
	f.mu.Unlock()

	time.Sleep(time.Millisecond)

	f.mu.Lock()
	f.inUse--
	outcome := domain.FetchOutcome{
		Country:     country,
		PostsStored: f.stored[country],
		Erred:       f.erred[country],
	}
	f.mu.Unlock()
	return outcome
}

func (f *fakeFetcher) fetchedCountries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

func TestRunCycleFetchesBatchAndRefreshes(t *testing.T) {
	h := newHarness(t, noopAcquirer{}, "US", "DE", "FR")
	fetcher := &fakeFetcher{stored: map[string]int{"US": 5}, erred: map[string]bool{"DE": true}}
	coord := NewCoordinator(appTestConfig("US", "DE", "FR").Coordinator, h.clock, h.scheduler, fetcher, h.service)

	coord.runCycle(context.Background())

	// All three never-fetched countries are urgent, so the whole set runs.
	assert.ElementsMatch(t, []string{"US", "DE", "FR"}, fetcher.fetchedCountries())

	// Only the country that stored posts got a fresh aggregation.
	require.Len(t, h.results.results, 1)
	assert.Contains(t, h.results.results, "US")

	// Outcomes fed back: the errored country carries a failure streak.
	for _, m := range h.scheduler.CountryMetrics() {
		switch m.Country {
		case "DE":
			assert.Equal(t, 1, m.ConsecutiveFailures)
		case "US":
			assert.Equal(t, 0, m.ConsecutiveFailures)
			assert.NotNil(t, m.LastFetchAt)
		}
	}
}

func TestRunCycleSkipsQuietSystem(t *testing.T) {
	h := newHarness(t, noopAcquirer{}, "US")
	h.counter.stored["US"] = 150
	h.scheduler.RecordOutcome(domain.FetchOutcome{Country: "US", PostsStored: 10})

	fetcher := &fakeFetcher{stored: map[string]int{}, erred: map[string]bool{}}
	coord := NewCoordinator(appTestConfig("US").Coordinator, h.clock, h.scheduler, fetcher, h.service)

	coord.runCycle(context.Background())

	assert.Empty(t, fetcher.fetchedCountries())
}

func TestRunCycleBoundsParallelism(t *testing.T) {
	countries := make([]string, 12)
	for i := range countries {
		countries[i] = string(rune('A'+i)) + string(rune('A'+i))
	}

	h := newHarness(t, noopAcquirer{}, countries...)
	fetcher := &fakeFetcher{stored: map[string]int{}, erred: map[string]bool{}}

	cfg := appTestConfig(countries...).Coordinator
	cfg.FetchWorkers = 2
	coord := NewCoordinator(cfg, h.clock, h.scheduler, fetcher, h.service)

	coord.runCycle(context.Background())

	assert.NotEmpty(t, fetcher.fetchedCountries())
	assert.LessOrEqual(t, fetcher.maxInUse, 2)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	h := newHarness(t, noopAcquirer{}, "US")
	fetcher := &fakeFetcher{stored: map[string]int{}, erred: map[string]bool{}}
	coord := NewCoordinator(appTestConfig("US").Coordinator, h.clock, h.scheduler, fetcher, h.service)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		coord.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("coordinator did not stop on context cancel")
	}
}
