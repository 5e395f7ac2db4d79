package domain

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Mood is one of the facial expressions the detector can report.
type Mood string

const (
	MoodNeutral   Mood = "neutral"
	MoodHappy     Mood = "happy"
	MoodSad       Mood = "sad"
	MoodAngry     Mood = "angry"
	MoodFearful   Mood = "fearful"
	MoodDisgusted Mood = "disgusted"
	MoodSurprised Mood = "surprised"
)

// Moods lists every known mood in the expression classifier's output order.
var Moods = []Mood{
	MoodNeutral,
	MoodHappy,
	MoodSad,
	MoodAngry,
	MoodFearful,
	MoodDisgusted,
	MoodSurprised,
}

// ParseMood normalizes a label to its lowercase form and checks it is known.
func ParseMood(label string) (Mood, error) {
	m := Mood(strings.ToLower(strings.TrimSpace(label)))
	if !m.Valid() {
		return "", errors.Wrapf(ErrUnknownMood, "%q", label)
	}
	return m, nil
}

// Valid reports whether m is one of Moods.
func (m Mood) Valid() bool {
	for _, known := range Moods {
		if m == known {
			return true
		}
	}
	return false
}

func (m Mood) String() string { return string(m) }
