package emotion

// The fixed label set produced by the upstream classifiers.
const (
	Anger    = "anger"
	Fear     = "fear"
	Disgust  = "disgust"
	Sadness  = "sadness"
	Surprise = "surprise"
	Joy      = "joy"
	Neutral  = "neutral"
)

// Labels lists the taxonomy in a stable order.
var Labels = []string{Anger, Fear, Disgust, Sadness, Surprise, Joy, Neutral}

// defaultIntensity is used for labels outside the taxonomy, so a classifier
// emitting an unexpected label degrades gracefully instead of being dropped.
const defaultIntensity = 0.5

// intensityWeights express how attention-worthy an emotion is, independent of
// classifier confidence. High-arousal negative emotions rank highest.
var intensityWeights = map[string]float64{
	Anger:    0.95,
	Fear:     0.90,
	Disgust:  0.85,
	Sadness:  0.70,
	Surprise: 0.60,
	Joy:      0.80,
	Neutral:  0.30,
}

// negativeLabels is the subset counted by trend classification.
var negativeLabels = map[string]struct{}{
	Anger:   {},
	Fear:    {},
	Disgust: {},
	Sadness: {},
}

// Intensity returns the fixed intensity weight for a label.
func Intensity(label string) float64 {
	if w, ok := intensityWeights[label]; ok {
		return w
	}
	return defaultIntensity
}

// IsNegative reports whether a label belongs to the negative subset.
func IsNegative(label string) bool {
	_, ok := negativeLabels[label]
	return ok
}

// IsValid reports whether a label belongs to the taxonomy.
func IsValid(label string) bool {
	_, ok := intensityWeights[label]
	return ok
}
