package domain

import "math"

// Expression is one label/probability pair reported for a detected face.
type Expression struct {
	Label       Mood
	Probability float64
}

// ExpressionSample holds the expression probabilities of a single face, in the
// order the inference engine enumerated them.
type ExpressionSample []Expression

// MoodResult is the dominant expression of a sample.
type MoodResult struct {
	Mood        Mood
	Probability float64
}

// Dominant returns the label with the highest probability. On an exact tie the
// earliest entry wins. NaN probabilities never win. ok is false when the
// sample holds no usable entry.
func (s ExpressionSample) Dominant() (MoodResult, bool) {
	var best MoodResult
	found := false
	for _, e := range s {
		if math.IsNaN(e.Probability) {
			continue
		}
		if !found || e.Probability > best.Probability {
			best = MoodResult{Mood: e.Label, Probability: e.Probability}
			found = true
		}
	}
	return best, found
}
