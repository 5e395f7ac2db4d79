package ports

import "github.com/ewilliams-labs/moodplayer/internal/core/domain"

// AudioEventKind names a signal raised by an audio surface.
type AudioEventKind int

const (
	EventPlay AudioEventKind = iota
	EventPause
	EventTimeUpdate
	EventLoadedMetadata
	EventEnded
)

func (k AudioEventKind) String() string {
	switch k {
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventTimeUpdate:
		return "timeupdate"
	case EventLoadedMetadata:
		return "loadedmetadata"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// AudioEvent carries the position and duration, in seconds, at the time of the
// signal. Either may be zero when unknown.
type AudioEvent struct {
	Kind     AudioEventKind
	Position float64
	Duration float64
}

// AudioHandle controls one track's audio surface. Positions are in seconds.
// Play and Seek may block while the source loads; the other methods must not.
type AudioHandle interface {
	Play() error
	Pause()
	Playing() bool
	Seek(position float64) error
	Position() float64
	Duration() float64
	Close() error
}

// AudioFactory opens audio handles. emit receives unsolicited signals (time
// updates, natural end, external play/pause); it is never invoked synchronously
// from Open, Play, Pause or Seek.
type AudioFactory interface {
	Open(track domain.Track, emit func(AudioEvent)) (AudioHandle, error)
}
