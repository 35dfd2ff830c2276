package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/dkrasnow/worldmood/internal/config"
	"github.com/dkrasnow/worldmood/internal/domain"
	"github.com/dkrasnow/worldmood/internal/logging"
	"github.com/dkrasnow/worldmood/internal/metrics"
	"github.com/dkrasnow/worldmood/internal/scheduler"
)

// Coordinator runs the collection loop: ask the scheduler what to fetch,
// dispatch fetches with bounded parallelism, feed outcomes back, refresh
// aggregations for countries that produced posts, sleep the adaptive
// interval, repeat.
type Coordinator struct {
	cfg       config.CoordinatorConfig
	clock     clockwork.Clock
	scheduler *scheduler.Scheduler
	fetcher   domain.FetchExecutor
	service   *Service
	limiter   *rate.Limiter
}

func NewCoordinator(
	cfg config.CoordinatorConfig,
	clock clockwork.Clock,
	sched *scheduler.Scheduler,
	fetcher domain.FetchExecutor,
	service *Service,
) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		clock:     clock,
		scheduler: sched,
		fetcher:   fetcher,
		service:   service,
		limiter:   rate.NewLimiter(rate.Limit(cfg.FetchRatePerSec), 1),
	}
}

// Run drives collection cycles until the context is cancelled. Any
// per-country failure is recorded and logged, never fatal to the loop.
func (c *Coordinator) Run(ctx context.Context) {
	slog.Info("coordinator started", "fetch_workers", c.cfg.FetchWorkers)

	for {
		c.runCycle(ctx)

		interval, err := c.scheduler.Interval(ctx)
		if err != nil {
			slog.Error("computing cycle interval failed", "error", err)
			interval = time.Minute
		}

		select {
		case <-ctx.Done():
			slog.Info("coordinator stopped")
			return
		case <-c.clock.After(interval):
		}
	}
}

func (c *Coordinator) runCycle(ctx context.Context) {
	cycleID := uuid.NewString()
	log := logging.WithCycle(cycleID)

	skip, err := c.scheduler.ShouldSkipCycle(ctx)
	if err != nil {
		log.Error("skip check failed", "error", err)
		metrics.SchedulerCyclesTotal.WithLabelValues("error").Inc()
		return
	}
	if skip {
		log.Debug("skipping cycle, no country above threshold")
		metrics.SchedulerCyclesTotal.WithLabelValues("skipped").Inc()
		return
	}

	batch, err := c.scheduler.NextBatch(ctx)
	if err != nil {
		log.Error("batch planning failed", "error", err)
		metrics.SchedulerCyclesTotal.WithLabelValues("error").Inc()
		return
	}

	sem := make(chan struct{}, c.cfg.FetchWorkers)
	var wg sync.WaitGroup
	for _, country := range batch {
		wg.Add(1)
		go func(country string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			c.fetchOne(ctx, log, country)
		}(country)
	}
	wg.Wait()

	metrics.SchedulerCyclesTotal.WithLabelValues("run").Inc()
	log.Info("cycle complete", "batch_size", len(batch))
}

func (c *Coordinator) fetchOne(ctx context.Context, log *slog.Logger, country string) {
	if err := c.limiter.Wait(ctx); err != nil {
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	start := c.clock.Now()
	outcome := c.fetcher.Fetch(fetchCtx, country)
	metrics.FetchDurationSeconds.Observe(c.clock.Now().Sub(start).Seconds())

	// A timed-out fetch counts as an error even if the executor did not say so.
	if fetchCtx.Err() != nil && !outcome.Erred {
		outcome.Erred = true
	}
	outcome.Country = country

	c.scheduler.RecordOutcome(outcome)

	switch {
	case outcome.Erred:
		log.Warn("fetch failed", "country", country)
	case outcome.PostsStored > 0:
		log.Debug("fetch stored posts", "country", country, "posts_stored", outcome.PostsStored)
		if _, err := c.service.RefreshCountry(ctx, country); err != nil {
			log.Error("refreshing aggregation failed", "country", country, "error", err)
		}
	default:
		log.Debug("fetch stored nothing", "country", country)
	}
}
