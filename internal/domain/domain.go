package domain

import (
	"context"
	"time"
)

// --- Model types ---

// Observation is one classified post reduced to what aggregation needs.
// Immutable once created.
type Observation struct {
	Country    string  `json:"country"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// FetchOutcome reports the result of one fetch attempt for one country.
// Consumed once by the scheduler's feedback step, then discarded.
type FetchOutcome struct {
	Country     string
	PostsStored int
	Erred       bool
}

// AggregationResult is the consensus verdict for one country at one point in
// time. The next computation for the same country supersedes it entirely.
type AggregationResult struct {
	Country        string             `json:"country"`
	DominantLabel  string             `json:"dominant_emotion"`
	Confidence     float64            `json:"confidence"`
	PostCount      int                `json:"post_count"`
	Distribution   map[string]int     `json:"emotion_distribution"`
	AlgorithmVotes map[string]string  `json:"algorithm_votes"`
	WeightedScores map[string]float64 `json:"weighted_scores"`
	AvgConfidence  float64            `json:"average_confidence"`
	ComputedAt     time.Time          `json:"computed_at"`
}

// CountryMetrics is a read-only snapshot of one country's scheduling state.
type CountryMetrics struct {
	Country             string     `json:"country"`
	Importance          float64    `json:"importance"`
	LastFetchAt         *time.Time `json:"last_fetch_at,omitempty"`
	SuccessRate         float64    `json:"success_rate"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	PostRate            float64    `json:"post_rate"`
}

// SchedulerStats is the operational snapshot exposed by the serving layer.
type SchedulerStats struct {
	TotalCountries       int            `json:"total_countries"`
	PriorityDistribution map[string]int `json:"priority_distribution"`
	CurrentInterval      time.Duration  `json:"current_interval"`
	AvgSuccessRate       float64        `json:"avg_success_rate"`
}

// --- Interfaces to external collaborators ---

// FetchExecutor performs the actual upstream fetch for one country. The
// scheduler never inspects fetched content, only the outcome.
type FetchExecutor interface {
	Fetch(ctx context.Context, country string) FetchOutcome
}

// PostCounter exposes the storage-side counts the scheduler reads.
type PostCounter interface {
	StoredPostCount(ctx context.Context, country string) (int, error)
	PendingCount(ctx context.Context) (int, error)
}

// ObservationSource supplies the classified observations for a country.
type ObservationSource interface {
	ListObservations(ctx context.Context, country string, limit int) ([]Observation, error)
}

// ResultRepository persists aggregation results for the serving layer.
type ResultRepository interface {
	UpsertResult(ctx context.Context, result AggregationResult) error
	GetResult(ctx context.Context, country string) (*AggregationResult, error)
	ListResults(ctx context.Context) ([]AggregationResult, error)
}

// EventPublisher announces a fresh aggregation result to downstream consumers.
type EventPublisher interface {
	PublishCountryUpdated(ctx context.Context, result AggregationResult) error
}

// ResourceAcquirer loads and releases the expensive inference resources. The
// mechanics (model loading etc.) are out of scope for this service.
type ResourceAcquirer interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}
