package ports

import (
	"context"
	"image"
)

// MediaTrack is one track of a captured media stream.
type MediaTrack interface {
	Kind() string
	// Stop ends the track. Calling it more than once has no effect.
	Stop()
}

// MediaStream is a live camera stream. The holder owns it exclusively and must
// stop every track when done.
type MediaStream interface {
	ID() string
	Tracks() []MediaTrack
	// Frames delivers decoded frames until Done is closed. The channel itself
	// is never closed.
	Frames() <-chan image.Image
	// Done is closed when the stream stops, whether stopped or lost.
	Done() <-chan struct{}
}

// Camera acquires video-capable media streams.
type Camera interface {
	// Open returns a live stream or a *domain.CaptureError.
	Open(ctx context.Context) (MediaStream, error)
}

// FrameSource yields the frame currently shown by a live video surface.
type FrameSource interface {
	Frame(ctx context.Context) (image.Image, error)
}

// VideoSurface is the render target a capture stream is bound to.
type VideoSurface interface {
	FrameSource
	// Attach binds the stream. Any previous binding is dropped.
	Attach(stream MediaStream) error
	// AwaitMetadata blocks until the attached source is decodable.
	AwaitMetadata(ctx context.Context) error
	// Play starts rendering the attached source.
	Play(ctx context.Context) error
	// Detach unbinds the current stream, if any.
	Detach()
}
