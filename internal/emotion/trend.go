package emotion

import "github.com/dkrasnow/worldmood/internal/domain"

// Trend direction over a sequence of aggregation results.
const (
	TrendWorsening    = "worsening"
	TrendImproving    = "improving"
	TrendStable       = "stable"
	TrendInsufficient = "insufficient_data"
)

// ClassifyTrend compares the count of negative dominant labels in the most
// recent third of the sequence against the earliest third. The input must be
// ordered by time window, oldest first.
func ClassifyTrend(results []domain.AggregationResult) string {
	if len(results) < 2 {
		return TrendInsufficient
	}

	third := len(results) / 3
	if third == 0 {
		third = 1
	}

	early := countNegative(results[:third])
	recent := countNegative(results[len(results)-third:])

	switch {
	case recent > early:
		return TrendWorsening
	case recent < early:
		return TrendImproving
	default:
		return TrendStable
	}
}

func countNegative(results []domain.AggregationResult) int {
	var n int
	for _, r := range results {
		if IsNegative(r.DominantLabel) {
			n++
		}
	}
	return n
}
