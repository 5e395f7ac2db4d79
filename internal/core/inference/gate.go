// Package inference gates face-expression detection behind model readiness.
package inference

import (
	"context"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
	"github.com/ewilliams-labs/moodplayer/internal/core/ports"
)

// Model bundle manifests expected under the models directory.
const (
	FaceDetectorBundle = "tiny_face_detector_model-weights_manifest.json"
	ExpressionBundle   = "face_expression_model-weights_manifest.json"
)

// ModelURLs returns the detector and classifier bundle URLs under dir.
func ModelURLs(dir string) []string {
	dir = strings.TrimRight(dir, "/")
	return []string{dir + "/" + FaceDetectorBundle, dir + "/" + ExpressionBundle}
}

// Readiness is the model-load state. It only moves forward, except through
// Reset.
type Readiness int

const (
	Unloaded Readiness = iota
	Loading
	Ready
	LoadFailed
)

func (r Readiness) String() string {
	switch r {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case LoadFailed:
		return "load_failed"
	default:
		return "unknown"
	}
}

func (r Readiness) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Gate loads the models once and runs single detection passes.
type Gate struct {
	engine ports.InferenceEngine
	models []string
	log    zerolog.Logger

	flight singleflight.Group

	mu      sync.Mutex
	state   Readiness
	loadErr error
}

// NewGate returns an unloaded gate for the given model bundle URLs.
func NewGate(engine ports.InferenceEngine, modelURLs []string, log zerolog.Logger) *Gate {
	return &Gate{
		engine: engine,
		models: modelURLs,
		log:    log.With().Str("component", "inference").Logger(),
	}
}

// Readiness returns the current load state.
func (g *Gate) Readiness() Readiness {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Prepare loads the models. Concurrent calls share one in-flight load. Once
// the load has succeeded or failed, later calls return the recorded outcome
// without touching the engine. A load interrupted by ctx leaves the gate
// unloaded so it can be attempted again.
func (g *Gate) Prepare(ctx context.Context) error {
	g.mu.Lock()
	switch g.state {
	case Ready:
		g.mu.Unlock()
		return nil
	case LoadFailed:
		err := g.loadErr
		g.mu.Unlock()
		return err
	}
	g.mu.Unlock()

	_, err, shared := g.flight.Do("prepare", func() (interface{}, error) {
		return nil, g.load(ctx)
	})
	if shared {
		g.log.Debug().Msg("joined in-flight model load")
	}
	return err
}

func (g *Gate) load(ctx context.Context) error {
	g.mu.Lock()
	switch g.state {
	case Ready:
		g.mu.Unlock()
		return nil
	case LoadFailed:
		err := g.loadErr
		g.mu.Unlock()
		return err
	}
	g.state = Loading
	g.mu.Unlock()

	g.log.Info().Strs("models", g.models).Msg("loading models")
	err := g.engine.Load(ctx, g.models)

	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case err == nil:
		g.state = Ready
		g.log.Info().Msg("models ready")
		return nil
	case ctx.Err() != nil:
		g.state = Unloaded
		return errors.Wrap(ctx.Err(), "inference: load interrupted")
	default:
		g.state = LoadFailed
		g.loadErr = errors.Mark(errors.Wrap(err, "inference: load models"), domain.ErrModelLoadFailure)
		g.log.Error().Err(err).Msg("model load failed")
		return g.loadErr
	}
}

// Reset returns the gate to Unloaded so the next Prepare loads again.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Loading {
		return
	}
	g.state = Unloaded
	g.loadErr = nil
}

// DetectOnce runs one detection on the current frame of src. ok is false when
// no face, or a face without expression data, was found. When several faces
// are found only the first one reported by the engine is used.
func (g *Gate) DetectOnce(ctx context.Context, src ports.FrameSource) (domain.MoodResult, bool, error) {
	if g.Readiness() != Ready {
		return domain.MoodResult{}, false, domain.ErrNotReady
	}

	frame, err := src.Frame(ctx)
	if err != nil {
		return domain.MoodResult{}, false, errors.Wrap(err, "inference: read frame")
	}

	detections, err := g.engine.Detect(ctx, frame)
	if err != nil {
		return domain.MoodResult{}, false, errors.Wrap(err, "inference: detect")
	}
	if len(detections) == 0 {
		g.log.Info().Msg("no face detected")
		return domain.MoodResult{}, false, nil
	}
	if len(detections) > 1 {
		g.log.Debug().Int("faces", len(detections)).Msg("multiple faces, using the first")
	}

	result, ok := detections[0].Expressions.Dominant()
	if !ok {
		g.log.Info().Msg("face has no expression data")
		return domain.MoodResult{}, false, nil
	}
	if !result.Mood.Valid() {
		g.log.Warn().Str("label", string(result.Mood)).Msg("engine reported an unknown expression")
		return domain.MoodResult{}, false, nil
	}

	g.log.Info().
		Str("mood", string(result.Mood)).
		Float64("probability", result.Probability).
		Msg("mood detected")
	return result, true, nil
}
