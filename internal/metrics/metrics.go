// Package metrics declares the Prometheus instruments for the collection
// scheduler, consensus engine, result cache, and resource lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scheduler metrics
var (
	SchedulerCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_cycles_total",
			Help: "Completed scheduling cycles by outcome (run/skipped)",
		},
		[]string{"outcome"},
	)

	SchedulerBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_batch_size",
			Help:    "Number of countries selected per cycle",
			Buckets: []float64{1, 2, 3, 6, 10},
		},
	)

	SchedulerUrgentCountries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_urgent_countries",
			Help: "Countries currently scoring above the urgent threshold",
		},
	)

	SchedulerIntervalSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_interval_seconds",
			Help: "Sleep interval chosen for the next cycle",
		},
	)

	FetchOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_outcomes_total",
			Help: "Fetch outcomes by result (success/empty/error)",
		},
		[]string{"result"},
	)

	FetchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetch_duration_seconds",
			Help:    "Duration of individual country fetches",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
)

// Aggregation metrics
var (
	AggregationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregations_total",
			Help: "Country-level consensus aggregations computed",
		},
	)

	AggregationDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aggregation_duration_seconds",
			Help:    "Duration of consensus aggregation including observation load",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		},
	)

	AggregationObservations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aggregation_observations",
			Help:    "Observations per aggregation",
			Buckets: []float64{0, 1, 10, 50, 100, 500, 1000},
		},
	)
)

// Result cache metrics
var (
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "result_cache_requests_total",
			Help: "Result cache lookups by cache type and outcome (hit/miss)",
		},
		[]string{"type", "outcome"},
	)

	CacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "result_cache_evictions_total",
			Help: "Entries evicted from the result cache",
		},
	)

	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "result_cache_entries",
			Help: "Current result cache entries, including not-yet-swept expired ones",
		},
	)
)

// Resource lifecycle metrics
var (
	ResourceLoadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resource_loads_total",
			Help: "Inference resource load operations",
		},
	)

	ResourceUnloadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resource_unloads_total",
			Help: "Inference resource unloads by the idle reaper",
		},
	)

	ResourceLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "resource_loaded",
			Help: "Whether the inference resources are currently loaded (0/1)",
		},
	)

	ResourceLoadDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resource_load_duration_seconds",
			Help:    "Duration of inference resource acquisition",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60},
		},
	)
)

// Event publishing metrics
var (
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "country.updated events published by status",
		},
		[]string{"status"},
	)

	BroadcastClientsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcast_clients_connected",
			Help: "WebSocket map clients currently connected",
		},
	)

	BroadcastSlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_slow_clients_evicted_total",
			Help: "WebSocket clients evicted because their send buffer filled",
		},
	)
)
