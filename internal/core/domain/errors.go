package domain

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrCaptureFailure covers permission denial, missing devices and devices
	// that disconnect mid-session.
	ErrCaptureFailure = errors.New("capture failure")
	// ErrModelLoadFailure means the detector resources could not be loaded.
	ErrModelLoadFailure = errors.New("model load failure")
	// ErrFeedFailure is any failed song fetch (network, server or timeout).
	ErrFeedFailure = errors.New("feed failure")

	ErrUnknownMood = errors.New("unknown mood")
	ErrNotFound    = errors.New("not found")
	ErrDisposed    = errors.New("disposed")
	ErrNotReady    = errors.New("models not ready")

	// ErrInvalidTrack is a catalog entry missing a required field.
	ErrInvalidTrack = errors.New("invalid track")
)

// CaptureReason classifies a CaptureError.
type CaptureReason int

const (
	CaptureUnavailable CaptureReason = iota
	CaptureDenied
	CaptureDisconnected
)

func (r CaptureReason) String() string {
	switch r {
	case CaptureDenied:
		return "denied"
	case CaptureDisconnected:
		return "disconnected"
	default:
		return "unavailable"
	}
}

// CaptureError describes why the camera could not be used.
type CaptureError struct {
	Reason CaptureReason
	Err    error
}

func (e *CaptureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("capture %s", e.Reason)
	}
	return fmt.Sprintf("capture %s: %v", e.Reason, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

func (e *CaptureError) Is(target error) bool {
	return target == ErrCaptureFailure
}

// FeedErrorKind classifies a FeedError.
type FeedErrorKind int

const (
	FeedNetwork FeedErrorKind = iota
	FeedServer
	FeedTimeout
)

func (k FeedErrorKind) String() string {
	switch k {
	case FeedServer:
		return "server"
	case FeedTimeout:
		return "timeout"
	default:
		return "network"
	}
}

// FeedError is returned by song feeds. Status is set for server errors that
// carried an HTTP status.
type FeedError struct {
	Kind   FeedErrorKind
	Status int
	Err    error
}

func (e *FeedError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("feed %s error: status %d", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("feed %s error: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("feed %s error", e.Kind)
	}
}

func (e *FeedError) Unwrap() error { return e.Err }

func (e *FeedError) Is(target error) bool {
	return target == ErrFeedFailure
}
