package domain

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Track represents a song returned by the recommendation feed.
type Track struct {
	ID       string // optional, assigned by the catalog
	Title    string
	Artist   string
	AudioURL string
	Mood     Mood
}

// SongList is one published result: the tracks for a mood, in the order the
// feed returned them. Lists are replaced wholesale, never merged.
type SongList struct {
	Mood        Mood
	Tracks      []Track
	Generation  uint64
	PublishedAt time.Time
}

// defaultHeading is shown before any list has been published.
const defaultHeading = "Mood"

// Heading returns the mood of the first track, falling back to "Mood".
func (l SongList) Heading() string {
	if len(l.Tracks) > 0 && l.Tracks[0].Mood != "" {
		return string(l.Tracks[0].Mood)
	}
	return defaultHeading
}

// Len returns the number of tracks.
func (l SongList) Len() int { return len(l.Tracks) }

// Validate checks the fields a catalog entry must carry.
func (t Track) Validate() error {
	switch {
	case strings.TrimSpace(t.Title) == "":
		return errors.Wrap(ErrInvalidTrack, "title is required")
	case strings.TrimSpace(t.AudioURL) == "":
		return errors.Wrap(ErrInvalidTrack, "audio url is required")
	case !t.Mood.Valid():
		return errors.Wrapf(ErrUnknownMood, "track mood %q", t.Mood)
	}
	return nil
}
