// Package headless provides a video render target for running without a
// display: it binds one camera stream, tracks decodability and keeps the
// latest frame for detection.
package headless

import (
	"context"
	"image"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
	"github.com/ewilliams-labs/moodplayer/internal/core/ports"
)

var (
	// ErrNotAttached is returned when no stream is bound.
	ErrNotAttached = errors.New("headless: no stream attached")
	// ErrNotPlaying is returned by Frame before Play succeeded.
	ErrNotPlaying = errors.New("headless: surface not playing")
)

// Surface is a ports.VideoSurface without a display.
type Surface struct {
	log zerolog.Logger

	mu        sync.Mutex
	onLost    func(streamID string)
	stream    ports.MediaStream
	latest    image.Image
	decodable bool
	playing   bool
	metadata  chan struct{}
	stop      chan struct{}
}

// compile-time interface assertion
var _ ports.VideoSurface = (*Surface)(nil)

// NewSurface constructs an unbound surface.
func NewSurface(log zerolog.Logger) *Surface {
	return &Surface{log: log.With().Str("component", "surface").Logger()}
}

// OnLost registers fn to be called with the stream ID when a bound stream
// ends without being detached first.
func (s *Surface) OnLost(fn func(streamID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLost = fn
}

// Attach binds stream, dropping any previous binding.
func (s *Surface) Attach(stream ports.MediaStream) error {
	if stream == nil {
		return errors.New("headless: nil stream")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.detachLocked()
	s.stream = stream
	s.metadata = make(chan struct{})
	s.stop = make(chan struct{})
	go s.pump(stream, s.stop)
	s.log.Debug().Str("stream", stream.ID()).Msg("stream attached")
	return nil
}

// AwaitMetadata blocks until the first frame of the bound stream arrives.
func (s *Surface) AwaitMetadata(ctx context.Context) error {
	s.mu.Lock()
	stream, metadata, stop := s.stream, s.metadata, s.stop
	s.mu.Unlock()
	if stream == nil {
		return ErrNotAttached
	}

	select {
	case <-metadata:
		return nil
	case <-stream.Done():
		return &domain.CaptureError{Reason: domain.CaptureDisconnected, Err: errors.New("stream ended before first frame")}
	case <-stop:
		return ErrNotAttached
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Play starts rendering the bound stream. The stream must be decodable.
func (s *Surface) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return ErrNotAttached
	}
	if !s.decodable {
		return errors.New("headless: play before metadata loaded")
	}
	s.playing = true
	return nil
}

// Frame returns the most recent frame while playing.
func (s *Surface) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing || s.latest == nil {
		return nil, ErrNotPlaying
	}
	return s.latest, nil
}

// Detach unbinds the current stream, if any.
func (s *Surface) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()
}

// ShowsPlaceholder reports whether the placeholder image is shown instead of
// the live feed.
func (s *Surface) ShowsPlaceholder() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.playing
}

// Snapshot returns the frame to display: the live frame while playing and
// nil when the placeholder is shown.
func (s *Surface) Snapshot() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return nil
	}
	return s.latest
}

func (s *Surface) detachLocked() {
	if s.stream == nil {
		return
	}
	close(s.stop)
	s.log.Debug().Str("stream", s.stream.ID()).Msg("stream detached")
	s.stream = nil
	s.latest = nil
	s.decodable = false
	s.playing = false
	s.metadata = nil
	s.stop = nil
}

func (s *Surface) pump(stream ports.MediaStream, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-stream.Done():
			s.lost(stream, stop)
			return
		case img := <-stream.Frames():
			s.mu.Lock()
			if s.stream == stream && img != nil {
				s.latest = img
				if !s.decodable {
					s.decodable = true
					close(s.metadata)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *Surface) lost(stream ports.MediaStream, stop <-chan struct{}) {
	s.mu.Lock()
	select {
	case <-stop:
		s.mu.Unlock()
		return
	default:
	}
	s.playing = false
	onLost := s.onLost
	s.mu.Unlock()

	s.log.Warn().Str("stream", stream.ID()).Msg("stream ended while attached")
	if onLost != nil {
		onLost(stream.ID())
	}
}
