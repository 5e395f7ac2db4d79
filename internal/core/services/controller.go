// Package services holds the application core: the mood-cycle controller that
// sequences capture, detection, song fetch, publish and cool-down.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ewilliams-labs/moodplayer/internal/core/capture"
	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
	"github.com/ewilliams-labs/moodplayer/internal/core/inference"
	"github.com/ewilliams-labs/moodplayer/internal/core/ports"
	"github.com/ewilliams-labs/moodplayer/internal/metrics"
)

const (
	// DefaultCooldown is the quiescent interval between publishing and
	// re-arming detection.
	DefaultCooldown = 2 * time.Second
	// DefaultFetchTimeout bounds one song feed call.
	DefaultFetchTimeout = 10 * time.Second
)

// Error codes exposed in snapshots. Raw errors never leave the controller.
const (
	CodeCaptureFailed   = "CAPTURE_FAILED"
	CodeModelLoadFailed = "MODEL_LOAD_FAILED"
)

// CaptureSession is the camera lifecycle the controller drives.
type CaptureSession interface {
	Acquire(ctx context.Context) error
	Release()
	Close()
	State() capture.State
	Frames() (ports.FrameSource, bool)
}

// InferenceGate loads the models and runs one detection pass.
type InferenceGate interface {
	Prepare(ctx context.Context) error
	DetectOnce(ctx context.Context, src ports.FrameSource) (domain.MoodResult, bool, error)
	Readiness() inference.Readiness
}

// Publisher receives each published song list. Calls are serialized, made
// without the controller's lock, and never follow a completed Dispose.
type Publisher interface {
	Publish(list domain.SongList)
}

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Snapshot is the externally observable controller state.
type Snapshot struct {
	State      State               `json:"state"`
	Generation uint64              `json:"generation"`
	Capture    capture.State       `json:"capture"`
	Readiness  inference.Readiness `json:"readiness"`
	CanTrigger bool                `json:"can_trigger"`
	Mood       domain.Mood         `json:"mood,omitempty"`
	ErrorCode  string              `json:"error_code,omitempty"`
	Songs      domain.SongList     `json:"-"`
}

// Option configures a MoodCycleController.
type Option func(*MoodCycleController)

// WithCooldown sets the interval between publish and re-arm.
func WithCooldown(d time.Duration) Option {
	return func(c *MoodCycleController) { c.cooldown = d }
}

// WithFetchTimeout bounds each song feed call.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *MoodCycleController) { c.fetchTimeout = d }
}

// WithAfterFunc replaces time.AfterFunc for the cool-down timer.
func WithAfterFunc(fn AfterFunc) Option {
	return func(c *MoodCycleController) { c.afterFunc = fn }
}

// WithLogger sets the controller logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *MoodCycleController) { c.log = log }
}

// MoodCycleController runs the detect → fetch → publish → cool-down loop.
//
// At most one cycle is in flight. Every step that can suspend is tagged with
// the generation it started in; a result arriving after a newer generation
// began, or after Dispose, is discarded.
type MoodCycleController struct {
	capture   CaptureSession
	gate      InferenceGate
	feed      ports.SongFeed
	publisher Publisher

	cooldown     time.Duration
	fetchTimeout time.Duration
	afterFunc    AfterFunc
	log          zerolog.Logger
	now          func() time.Time

	lifetime  context.Context
	shutdown  context.CancelFunc
	wg        sync.WaitGroup
	publishMu sync.Mutex

	mu         sync.Mutex
	state      State
	gen        uint64
	disposed   bool
	stepCtx    context.Context
	cancelStep context.CancelFunc
	timer      Timer
	lastErr    error
	lastMood   domain.Mood
	songs      domain.SongList
	subs       map[uint64]chan Snapshot
	nextSub    uint64
}

// NewMoodCycleController wires the controller. publisher may be nil.
func NewMoodCycleController(cs CaptureSession, gate InferenceGate, feed ports.SongFeed, publisher Publisher, opts ...Option) *MoodCycleController {
	c := &MoodCycleController{
		capture:      cs,
		gate:         gate,
		feed:         feed,
		publisher:    publisher,
		cooldown:     DefaultCooldown,
		fetchTimeout: DefaultFetchTimeout,
		afterFunc:    realAfterFunc,
		log:          zerolog.Nop(),
		now:          time.Now,
		subs:         make(map[uint64]chan Snapshot),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("component", "controller").Logger()
	c.lifetime, c.shutdown = context.WithCancel(context.Background())

	if obs, ok := cs.(interface {
		SetObserver(func(capture.State, error))
	}); ok {
		obs.SetObserver(c.onCaptureLost)
	}
	return c
}

// Start loads the models and acquires the camera. It returns once both have
// settled: nil when armed, the capture error when the camera is unavailable
// (RetryCapture may follow) or the model error, which is terminal.
func (c *MoodCycleController) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return domain.ErrDisposed
	}
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return errors.Newf("controller: cannot start from %s", state)
	}
	gen, stepCtx := c.beginLocked(ctx, StatePreparing)
	c.mu.Unlock()

	return c.prepare(stepCtx, gen)
}

// RetryCapture re-runs preparation after a capture failure.
func (c *MoodCycleController) RetryCapture(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return domain.ErrDisposed
	}
	if c.state != StateCaptureFailed {
		state := c.state
		c.mu.Unlock()
		return errors.Newf("controller: nothing to retry in %s", state)
	}
	gen, stepCtx := c.beginLocked(ctx, StatePreparing)
	c.mu.Unlock()

	return c.prepare(stepCtx, gen)
}

func (c *MoodCycleController) prepare(ctx context.Context, gen uint64) error {
	var modelErr, captureErr error
	var g errgroup.Group
	g.Go(func() error {
		modelErr = c.gate.Prepare(ctx)
		return modelErr
	})
	g.Go(func() error {
		captureErr = c.capture.Acquire(ctx)
		return captureErr
	})
	_ = g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(gen) {
		return domain.ErrDisposed
	}

	switch {
	case modelErr != nil && errors.Is(modelErr, domain.ErrModelLoadFailure):
		c.lastErr = modelErr
		c.capture.Release()
		c.setStateLocked(StateModelFailed)
		c.log.Error().Err(modelErr).Msg("models unavailable, detection disabled")
		return modelErr
	case modelErr != nil:
		c.capture.Release()
		c.setStateLocked(StateIdle)
		return modelErr
	case captureErr != nil:
		c.lastErr = captureErr
		c.setStateLocked(StateCaptureFailed)
		c.log.Warn().Err(captureErr).Msg("camera unavailable")
		return captureErr
	}

	c.lastErr = nil
	c.setStateLocked(StateArmedIdle)
	return nil
}

// Trigger starts a detection cycle. It reports false, changing nothing, unless
// the controller is armed with an active camera.
func (c *MoodCycleController) Trigger() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed || c.state != StateArmedIdle || c.capture.State() != capture.StateActive {
		metrics.TriggersRejected.Inc()
		c.log.Debug().Str("state", c.state.String()).Msg("trigger rejected")
		return false
	}

	gen, ctx := c.beginLocked(c.lifetime, StateDetecting)
	log := c.log.With().Uint64("cycle", gen).Str("cycle_id", uuid.NewString()).Logger()
	log.Info().Msg("running mood detection")

	c.wg.Add(1)
	go c.runCycle(ctx, gen, log)
	return true
}

func (c *MoodCycleController) runCycle(ctx context.Context, gen uint64, log zerolog.Logger) {
	defer c.wg.Done()

	src, ok := c.capture.Frames()
	if !ok {
		c.finishWithoutFetch(gen, metrics.OutcomeCaptureLost)
		return
	}

	result, found, err := c.gate.DetectOnce(ctx, src)
	switch {
	case err != nil:
		metrics.DetectionsTotal.WithLabelValues("error").Inc()
		log.Warn().Err(err).Msg("detection failed")
		c.finishWithoutFetch(gen, metrics.OutcomeDetectFailed)
		return
	case !found:
		metrics.DetectionsTotal.WithLabelValues("none").Inc()
		log.Info().Msg("no mood detected")
		c.finishWithoutFetch(gen, metrics.OutcomeNoFace)
		return
	}
	metrics.DetectionsTotal.WithLabelValues(string(result.Mood)).Inc()

	c.mu.Lock()
	if !c.currentLocked(gen) {
		c.mu.Unlock()
		metrics.CyclesTotal.WithLabelValues(metrics.OutcomeStaleDiscarded).Inc()
		return
	}
	c.lastMood = result.Mood
	c.setStateLocked(StateFetching)
	c.mu.Unlock()

	tracks, err := c.fetch(ctx, result.Mood)

	c.mu.Lock()
	if !c.currentLocked(gen) {
		c.mu.Unlock()
		metrics.CyclesTotal.WithLabelValues(metrics.OutcomeStaleDiscarded).Inc()
		log.Debug().Msg("discarding late feed response")
		return
	}
	if err != nil {
		metrics.CyclesTotal.WithLabelValues(metrics.OutcomeFeedFailed).Inc()
		log.Warn().Err(err).Str("mood", string(result.Mood)).Msg("song fetch failed, cooling down without publishing")
		c.coolDownLocked(ctx, gen)
		c.mu.Unlock()
		return
	}
	c.setStateLocked(StatePublishing)
	list := domain.SongList{
		Mood:        result.Mood,
		Tracks:      tracks,
		Generation:  gen,
		PublishedAt: c.now(),
	}
	c.songs = list
	c.mu.Unlock()

	if !c.publish(gen, list) {
		metrics.CyclesTotal.WithLabelValues(metrics.OutcomeStaleDiscarded).Inc()
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	metrics.CyclesTotal.WithLabelValues(metrics.OutcomePublished).Inc()
	log.Info().Str("mood", string(result.Mood)).Int("tracks", len(tracks)).Msg("song list published")
	if !c.currentLocked(gen) {
		return
	}
	c.coolDownLocked(ctx, gen)
}

// publish hands list to the publisher unless gen was superseded. It runs
// outside c.mu so a slow publisher cannot stall Snapshot or Dispose.
func (c *MoodCycleController) publish(gen uint64, list domain.SongList) bool {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	current := c.currentLocked(gen)
	c.mu.Unlock()
	if !current {
		return false
	}
	if c.publisher != nil {
		c.publisher.Publish(list)
	}
	return true
}

func (c *MoodCycleController) fetch(ctx context.Context, mood domain.Mood) ([]domain.Track, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	start := time.Now()
	tracks, err := c.feed.FetchSongs(ctx, mood)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.FeedRequestDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return append([]domain.Track(nil), tracks...), nil
}

// finishWithoutFetch ends a cycle that produced no mood: straight back to
// armed, with no cool-down.
func (c *MoodCycleController) finishWithoutFetch(gen uint64, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(gen) {
		metrics.CyclesTotal.WithLabelValues(metrics.OutcomeStaleDiscarded).Inc()
		return
	}
	metrics.CyclesTotal.WithLabelValues(outcome).Inc()
	c.armLocked()
}

// coolDownLocked releases the camera and schedules re-arming.
func (c *MoodCycleController) coolDownLocked(ctx context.Context, gen uint64) {
	c.setStateLocked(StateCoolingDown)
	c.capture.Release()

	c.wg.Add(1)
	c.timer = c.afterFunc(c.cooldown, func() {
		defer c.wg.Done()
		c.rearm(ctx, gen)
	})
}

func (c *MoodCycleController) rearm(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if !c.currentLocked(gen) {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()

	err := c.capture.Acquire(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(gen) {
		return
	}
	if err != nil {
		c.lastErr = err
		c.setStateLocked(StateCaptureFailed)
		c.log.Warn().Err(err).Msg("camera re-acquisition failed")
		return
	}
	c.setStateLocked(StateArmedIdle)
}

// armLocked returns to ArmedIdle, or to CaptureFailed when the camera was
// lost during the cycle.
func (c *MoodCycleController) armLocked() {
	if c.capture.State() == capture.StateActive {
		c.setStateLocked(StateArmedIdle)
		return
	}
	c.lastErr = &domain.CaptureError{Reason: domain.CaptureDisconnected}
	c.setStateLocked(StateCaptureFailed)
}

func (c *MoodCycleController) onCaptureLost(state capture.State, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed || state != capture.StateFailed || c.state != StateArmedIdle {
		return
	}
	c.lastErr = err
	c.setStateLocked(StateCaptureFailed)
	c.log.Warn().Err(err).Msg("camera lost while armed")
}

// Dispose cancels any pending step and timer, discards late results and
// releases the camera. Safe to call from any state, more than once.
func (c *MoodCycleController) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	c.gen++
	if c.cancelStep != nil {
		c.cancelStep()
		c.cancelStep = nil
	}
	if c.timer != nil {
		if c.timer.Stop() {
			c.wg.Done()
		}
		c.timer = nil
	}
	c.shutdown()
	c.setStateLocked(StateDisposed)
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	// Wait out a publish that passed its generation check.
	c.publishMu.Lock()
	c.publishMu.Unlock()

	c.capture.Close()
	for _, ch := range subs {
		close(ch)
	}
	c.log.Info().Msg("controller disposed")
}

// Wait blocks until in-flight cycles and armed cool-down timers are done.
func (c *MoodCycleController) Wait() {
	c.wg.Wait()
}

// Snapshot returns the current observable state.
func (c *MoodCycleController) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// LastError returns the error behind the current failure state, if any.
func (c *MoodCycleController) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Songs returns the last published list.
func (c *MoodCycleController) Songs() domain.SongList {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.songs
}

// Subscribe returns a channel receiving the latest snapshot after every
// transition. Slow readers only see the most recent one. The channel is closed
// by cancel or Dispose.
func (c *MoodCycleController) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		ch <- c.snapshotLocked()
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.snapshotLocked()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// beginLocked opens a new generation in state s and cancels the previous step.
func (c *MoodCycleController) beginLocked(parent context.Context, s State) (uint64, context.Context) {
	c.gen++
	if c.cancelStep != nil {
		c.cancelStep()
	}
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(c.lifetime, cancel)
	c.stepCtx = ctx
	c.cancelStep = func() {
		stop()
		cancel()
	}
	c.setStateLocked(s)
	return c.gen, ctx
}

func (c *MoodCycleController) currentLocked(gen uint64) bool {
	return !c.disposed && c.gen == gen
}

func (c *MoodCycleController) setStateLocked(s State) {
	if c.state != s {
		c.log.Debug().Str("from", c.state.String()).Str("to", s.String()).Msg("state changed")
	}
	c.state = s
	c.notifyLocked()
}

func (c *MoodCycleController) notifyLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (c *MoodCycleController) snapshotLocked() Snapshot {
	capState := c.capture.State()
	snap := Snapshot{
		State:      c.state,
		Generation: c.gen,
		Capture:    capState,
		Readiness:  c.gate.Readiness(),
		CanTrigger: !c.disposed && c.state == StateArmedIdle && capState == capture.StateActive,
		Mood:       c.lastMood,
		Songs:      c.songs,
	}
	switch c.state {
	case StateCaptureFailed:
		snap.ErrorCode = CodeCaptureFailed
	case StateModelFailed:
		snap.ErrorCode = CodeModelLoadFailed
	}
	return snap
}
