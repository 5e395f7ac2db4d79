// Package capture owns the camera stream lifecycle: acquire, attach to the
// live-video surface, and release.
package capture

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
	"github.com/ewilliams-labs/moodplayer/internal/core/ports"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateActive
	StateFailed
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateActive:
		return "active"
	case StateFailed:
		return "failed"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ErrSuperseded is returned by Acquire when a Release, Close or newer Acquire
// happened while it was suspended. The stream it obtained has been stopped.
var ErrSuperseded = errors.New("capture: acquire superseded")

// Session holds at most one live stream and binds it to a video surface.
//
// The stream is released before every new acquisition. Close is terminal:
// the session moves to StateReleased and refuses further acquisitions.
type Session struct {
	camera  ports.Camera
	surface ports.VideoSurface
	log     zerolog.Logger

	mu       sync.Mutex
	state    State
	stream   ports.MediaStream
	pending  ports.MediaStream
	attempt  uint64
	closed   bool
	lastErr  error
	observer func(State, error)
}

// NewSession creates an idle session.
func NewSession(camera ports.Camera, surface ports.VideoSurface, log zerolog.Logger) *Session {
	return &Session{
		camera:  camera,
		surface: surface,
		log:     log.With().Str("component", "capture").Logger(),
	}
}

// SetObserver registers fn for unsolicited transitions (a device lost
// mid-session). It is not called for transitions caused by Acquire, Release or
// Close, so callers may hold their own locks around those.
func (s *Session) SetObserver(fn func(State, error)) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error behind the last transition to StateFailed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Frames returns the surface as a frame source while the session is active.
func (s *Session) Frames() (ports.FrameSource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return nil, false
	}
	return s.surface, true
}

// Acquire opens a stream, attaches it, waits until it is decodable and starts
// playback. The session only reports StateActive after all of that succeeded.
func (s *Session) Acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.Wrap(domain.ErrDisposed, "capture: session closed")
	}
	s.releaseLocked()
	s.attempt++
	attempt := s.attempt
	s.state = StateAcquiring
	s.lastErr = nil
	s.mu.Unlock()

	s.log.Debug().Uint64("attempt", attempt).Msg("requesting camera stream")

	stream, err := s.camera.Open(ctx)
	if err != nil {
		return s.fail(attempt, asCaptureError(err, domain.CaptureUnavailable))
	}

	s.mu.Lock()
	if s.closed || s.attempt != attempt {
		s.mu.Unlock()
		stopTracks(stream)
		return ErrSuperseded
	}
	if err := s.surface.Attach(stream); err != nil {
		s.mu.Unlock()
		stopTracks(stream)
		return s.fail(attempt, asCaptureError(err, domain.CaptureUnavailable))
	}
	s.pending = stream
	s.mu.Unlock()

	if err := s.surface.AwaitMetadata(ctx); err != nil {
		return s.fail(attempt, asCaptureError(err, domain.CaptureUnavailable))
	}
	if err := s.surface.Play(ctx); err != nil {
		return s.fail(attempt, asCaptureError(err, domain.CaptureUnavailable))
	}

	s.mu.Lock()
	if s.closed || s.attempt != attempt {
		s.mu.Unlock()
		return ErrSuperseded
	}
	s.stream = stream
	s.pending = nil
	s.state = StateActive
	s.mu.Unlock()

	s.log.Info().Str("stream", stream.ID()).Msg("camera active")
	return nil
}

// Release stops every track of the held stream, detaches it from the surface
// and returns to StateIdle. It cancels an acquisition in progress and is a
// no-op when idle.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.state == StateIdle && s.stream == nil && s.pending == nil {
		return
	}
	s.attempt++
	s.releaseLocked()
	s.state = StateIdle
}

// Close releases the stream and makes the session terminal. Safe to call more
// than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.attempt++
	s.releaseLocked()
	s.state = StateReleased
	s.log.Debug().Msg("capture session closed")
}

// HandleDisconnect forces a release when the stream with the given ID is lost
// while held, and moves the session to StateFailed.
func (s *Session) HandleDisconnect(streamID string) {
	s.mu.Lock()
	if s.closed || s.stream == nil || s.stream.ID() != streamID {
		s.mu.Unlock()
		return
	}
	s.attempt++
	s.releaseLocked()
	err := &domain.CaptureError{Reason: domain.CaptureDisconnected}
	s.state = StateFailed
	s.lastErr = err
	observer := s.observer
	s.mu.Unlock()

	s.log.Warn().Str("stream", streamID).Msg("camera disconnected")
	if observer != nil {
		observer(StateFailed, err)
	}
}

// releaseLocked stops and detaches the held stream and any stream still being
// brought up by an acquisition in progress.
func (s *Session) releaseLocked() {
	if s.pending != nil {
		stopTracks(s.pending)
		s.surface.Detach()
		s.pending = nil
	}
	if s.stream == nil {
		return
	}
	id := s.stream.ID()
	stopTracks(s.stream)
	s.surface.Detach()
	s.stream = nil
	s.log.Debug().Str("stream", id).Msg("camera released")
}

// fail records a failed acquisition when the attempt is still current. A
// superseded attempt has already been cleaned up by whoever superseded it.
func (s *Session) fail(attempt uint64, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.attempt != attempt {
		return ErrSuperseded
	}
	s.releaseLocked()
	s.state = StateFailed
	s.lastErr = err
	s.log.Warn().Err(err).Msg("camera acquisition failed")
	return err
}

func stopTracks(stream ports.MediaStream) {
	for _, t := range stream.Tracks() {
		t.Stop()
	}
}

func asCaptureError(err error, reason domain.CaptureReason) error {
	var ce *domain.CaptureError
	if errors.As(err, &ce) {
		return err
	}
	return &domain.CaptureError{Reason: reason, Err: err}
}
