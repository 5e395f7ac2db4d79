package ports

import (
	"context"
	"image"

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
)

// Detection is one face found in a frame.
type Detection struct {
	Score       float64
	Expressions domain.ExpressionSample
}

// InferenceEngine is the face detector and expression classifier.
type InferenceEngine interface {
	// Load fetches and initializes the model bundles at the given URLs.
	Load(ctx context.Context, modelURLs []string) error
	// Detect returns the faces found in frame, in engine order.
	Detect(ctx context.Context, frame image.Image) ([]Detection, error)
}
