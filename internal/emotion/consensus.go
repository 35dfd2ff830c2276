package emotion

import (
	"sort"
	"time"

	"github.com/dkrasnow/worldmood/internal/domain"
)

// Algorithm names, in declaration order. The order matters: a complete
// four-way split is broken by the first algorithm's vote. That tie-break is
// arbitrary, not meaningful.
const (
	algMajority  = "majority"
	algWeighted  = "weighted"
	algIntensity = "intensity"
	algMedian    = "median"
)

var algorithmOrder = []string{algMajority, algWeighted, algIntensity, algMedian}

// Consensus weighting between inter-observation agreement and raw classifier
// confidence.
const (
	agreementWeight  = 0.6
	confidenceWeight = 0.4
)

// Aggregate reconciles a country's observations into a single verdict by
// running four independent voting algorithms and taking the plurality of
// their winners. It is pure and safe to call concurrently.
//
// With no observations it returns a defined neutral result with zero
// confidence — "no data yet" is an expected state, not an error.
func Aggregate(country string, observations []domain.Observation, now time.Time) domain.AggregationResult {
	if len(observations) == 0 {
		return domain.AggregationResult{
			Country:        country,
			DominantLabel:  Neutral,
			Confidence:     0,
			Distribution:   map[string]int{},
			AlgorithmVotes: map[string]string{},
			WeightedScores: map[string]float64{},
			ComputedAt:     now,
		}
	}

	distribution := make(map[string]int, len(Labels))
	var confidenceSum float64
	for _, obs := range observations {
		distribution[obs.Label]++
		confidenceSum += obs.Confidence
	}
	meanConfidence := confidenceSum / float64(len(observations))

	votes := map[string]string{
		algMajority:  majorityVote(distribution),
		algWeighted:  weightedVote(observations, len(observations)),
		algIntensity: intensityVote(observations),
		algMedian:    medianVote(observations),
	}

	dominant := consensusLabel(votes)

	agreement := float64(distribution[dominant]) / float64(len(observations))
	confidence := agreement*agreementWeight + meanConfidence*confidenceWeight
	if confidence > 1 {
		confidence = 1
	}

	return domain.AggregationResult{
		Country:        country,
		DominantLabel:  dominant,
		Confidence:     confidence,
		PostCount:      len(observations),
		Distribution:   distribution,
		AlgorithmVotes: votes,
		WeightedScores: weightedScores(observations),
		AvgConfidence:  meanConfidence,
		ComputedAt:     now,
	}
}

// majorityVote picks the label with the highest raw count.
func majorityVote(distribution map[string]int) string {
	best, bestCount := "", -1
	for _, label := range sortedKeys(distribution) {
		if distribution[label] > bestCount {
			best, bestCount = label, distribution[label]
		}
	}
	return best
}

// weightedVote scores each label by avgConfidence(label) * share(label).
func weightedVote(observations []domain.Observation, total int) string {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, obs := range observations {
		sums[obs.Label] += obs.Confidence
		counts[obs.Label]++
	}

	best, bestScore := "", -1.0
	for _, label := range sortedKeys(counts) {
		avg := sums[label] / float64(counts[label])
		score := avg * float64(counts[label]) / float64(total)
		if score > bestScore {
			best, bestScore = label, score
		}
	}
	return best
}

// intensityVote sums intensity * confidence per label and picks the argmax,
// so a handful of high-arousal observations can outweigh a larger placid
// majority.
func intensityVote(observations []domain.Observation) string {
	perLabel := map[string]float64{}
	for _, obs := range observations {
		perLabel[obs.Label] += Intensity(obs.Label) * obs.Confidence
	}

	best, bestScore := "", -1.0
	for _, label := range sortedKeys(perLabel) {
		if perLabel[label] > bestScore {
			best, bestScore = label, perLabel[label]
		}
	}
	return best
}

// medianVote scores each label by the median of its intensity * confidence
// scores and picks the argmax. Taking the median instead of the sum keeps a
// few extreme scores inside one label from inflating it.
func medianVote(observations []domain.Observation) string {
	perLabel := map[string][]float64{}
	for _, obs := range observations {
		perLabel[obs.Label] = append(perLabel[obs.Label], Intensity(obs.Label)*obs.Confidence)
	}

	best, bestScore := "", -1.0
	for _, label := range sortedKeys(perLabel) {
		if m := median(perLabel[label]); m > bestScore {
			best, bestScore = label, m
		}
	}
	return best
}

// median averages the two middle values for even-sized inputs.
func median(scores []float64) float64 {
	sort.Float64s(scores)
	n := len(scores)
	if n%2 == 1 {
		return scores[n/2]
	}
	return (scores[n/2-1] + scores[n/2]) / 2
}

// consensusLabel takes the plurality of the four algorithm winners. On a
// complete four-way split every label has one vote, so the scan order over
// algorithmOrder makes the first algorithm win.
func consensusLabel(votes map[string]string) string {
	counts := map[string]int{}
	for _, label := range votes {
		counts[label]++
	}

	best, bestCount := "", 0
	for _, alg := range algorithmOrder {
		label := votes[alg]
		if counts[label] > bestCount {
			best, bestCount = label, counts[label]
		}
	}
	return best
}

// weightedScores reports the mean of confidence * intensity per label, part of
// the audit trail alongside the raw distribution and per-algorithm votes.
func weightedScores(observations []domain.Observation) map[string]float64 {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, obs := range observations {
		sums[obs.Label] += obs.Confidence * Intensity(obs.Label)
		counts[obs.Label]++
	}

	scores := make(map[string]float64, len(sums))
	for label, sum := range sums {
		scores[label] = sum / float64(counts[label])
	}
	return scores
}

// sortedKeys makes map iteration deterministic so argmax ties resolve the
// same way on every run.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
