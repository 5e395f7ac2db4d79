// Package playback keeps the published song list playable: one audio handle per
// slot, at most one slot active, progress and seek bookkeeping.
package playback

import (
	"fmt"
	"math"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
	"github.com/ewilliams-labs/moodplayer/internal/core/ports"
)

// NoActive marks the absence of an active slot.
const NoActive = -1

// Prober resolves a slot's duration in the background and reports it back as
// an EventLoadedMetadata tagged with gen.
type Prober interface {
	Probe(gen uint64, index int, track domain.Track)
}

// Panel owns the audio handles of the current list. Handles are created when a
// list is published and closed when the next one replaces it.
type Panel struct {
	factory ports.AudioFactory
	prober  Prober
	log     zerolog.Logger

	mu       sync.Mutex
	gen      uint64
	list     domain.SongList
	handles  map[int]ports.AudioHandle
	meta     map[int]float64
	active   int
	want     int
	progress float64
	duration float64
	closed   bool
	changed  chan struct{}
}

// NewPanel constructs an empty panel. prober may be nil.
func NewPanel(factory ports.AudioFactory, prober Prober, log zerolog.Logger) *Panel {
	return &Panel{
		factory: factory,
		prober:  prober,
		log:     log.With().Str("component", "playback").Logger(),
		handles: make(map[int]ports.AudioHandle),
		meta:    make(map[int]float64),
		active:  NoActive,
		want:    NoActive,
		changed: make(chan struct{}, 1),
	}
}

// Publish replaces the list wholesale. Handles of the previous list are
// closed and their late events ignored.
func (p *Panel) Publish(list domain.SongList) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	p.closeHandlesLocked()
	p.gen++
	gen := p.gen
	p.list = list
	p.active = NoActive
	p.want = NoActive
	p.progress = 0
	p.duration = 0

	for i, track := range list.Tracks {
		idx := i
		h, err := p.factory.Open(track, func(ev ports.AudioEvent) {
			p.HandleEvent(gen, idx, ev)
		})
		if err != nil {
			p.log.Warn().Err(err).Int("index", idx).Str("title", track.Title).Msg("audio unavailable")
			continue
		}
		p.handles[idx] = h
		if p.prober != nil {
			p.prober.Probe(gen, idx, track)
		}
	}
	p.log.Info().Str("heading", list.Heading()).Int("tracks", len(list.Tracks)).Msg("list published")
	p.signalLocked()
}

// Play starts slot i and pauses every other slot. The panel lock is not held
// while the handle loads, so a later Play, Pause or Publish supersedes this one.
func (p *Panel) Play(i int) error {
	p.mu.Lock()
	h, err := p.handleLocked(i)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	gen := p.gen
	p.want = i
	p.pauseOthersLocked(i)
	p.mu.Unlock()

	playErr := h.Play()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.staleLocked(i, gen); err != nil {
		return err
	}
	if playErr != nil {
		return errors.Wrapf(playErr, "playback: play slot %d", i)
	}
	if p.want != i {
		h.Pause()
		return nil
	}
	p.pauseOthersLocked(i)
	p.activateLocked(i)
	p.signalLocked()
	return nil
}

// Pause pauses slot i. Progress is kept.
func (p *Panel) Pause(i int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	h, err := p.handleLocked(i)
	if err != nil {
		return err
	}
	h.Pause()
	if p.want == i {
		p.want = NoActive
	}
	if p.active == i {
		p.active = NoActive
	}
	p.signalLocked()
	return nil
}

// Toggle pauses slot i if it is active and plays it otherwise.
func (p *Panel) Toggle(i int) error {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()

	if active == i {
		return p.Pause(i)
	}
	return p.Play(i)
}

// Seek moves slot i to pos, clamped into [0, duration]. The displayed
// progress follows when i is the active slot.
func (p *Panel) Seek(i int, pos float64) (float64, error) {
	p.mu.Lock()
	h, err := p.handleLocked(i)
	if err != nil {
		p.mu.Unlock()
		return 0, err
	}
	gen := p.gen
	pos = clamp(pos, p.durationLocked(i, h))
	p.mu.Unlock()

	seekErr := h.Seek(pos)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.staleLocked(i, gen); err != nil {
		return 0, err
	}
	if seekErr != nil {
		return 0, errors.Wrapf(seekErr, "playback: seek slot %d", i)
	}
	if p.active == i {
		p.progress = pos
	}
	p.signalLocked()
	return pos, nil
}

// HandleEvent applies a signal raised by slot i of list generation gen.
func (p *Panel) HandleEvent(gen uint64, i int, ev ports.AudioEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || gen != p.gen {
		return
	}
	h, ok := p.handles[i]
	if !ok {
		return
	}

	switch ev.Kind {
	case ports.EventPlay:
		// Play events arrive after the call that raised them; a slot paused
		// since then must not take over.
		if !h.Playing() {
			return
		}
		p.want = i
		p.pauseOthersLocked(i)
		p.activateLocked(i)
	case ports.EventPause:
		if h.Playing() {
			return
		}
		if p.active == i {
			p.active = NoActive
		}
	case ports.EventTimeUpdate:
		if p.active != i {
			return
		}
		p.progress = finite(ev.Position)
		if d := finite(ev.Duration); d > 0 {
			p.duration = d
		}
	case ports.EventLoadedMetadata:
		d := finite(ev.Duration)
		if d <= 0 {
			return
		}
		p.meta[i] = d
		if p.active == i {
			p.duration = d
		}
	case ports.EventEnded:
		if p.active != i {
			return
		}
		p.active = NoActive
		p.progress = 0
		p.duration = 0
	default:
		return
	}
	p.signalLocked()
}

// Close releases every handle. Later calls are no-ops.
func (p *Panel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.gen++
	p.closeHandlesLocked()
	p.active = NoActive
	close(p.changed)
}

// Changed delivers a signal after every visible change. It is closed by Close.
func (p *Panel) Changed() <-chan struct{} {
	return p.changed
}

// Active returns the active slot, or NoActive.
func (p *Panel) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Generation identifies the current list; events tagged with another value
// are ignored.
func (p *Panel) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

func (p *Panel) handleLocked(i int) (ports.AudioHandle, error) {
	if p.closed {
		return nil, domain.ErrDisposed
	}
	h, ok := p.handles[i]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "playback: slot %d", i)
	}
	return h, nil
}

// staleLocked reports whether the list that held slot i is gone.
func (p *Panel) staleLocked(i int, gen uint64) error {
	if p.closed {
		return domain.ErrDisposed
	}
	if gen != p.gen {
		return errors.Wrapf(domain.ErrNotFound, "playback: slot %d replaced", i)
	}
	return nil
}

func (p *Panel) pauseOthersLocked(i int) {
	for j, h := range p.handles {
		if j != i {
			h.Pause()
		}
	}
}

func (p *Panel) activateLocked(i int) {
	if p.active == i {
		return
	}
	h := p.handles[i]
	p.active = i
	p.progress = finite(h.Position())
	p.duration = p.durationLocked(i, h)
}

func (p *Panel) durationLocked(i int, h ports.AudioHandle) float64 {
	if d, ok := p.meta[i]; ok {
		return d
	}
	return finite(h.Duration())
}

func (p *Panel) closeHandlesLocked() {
	for i, h := range p.handles {
		if err := h.Close(); err != nil {
			p.log.Debug().Err(err).Int("index", i).Msg("close audio handle")
		}
	}
	p.handles = make(map[int]ports.AudioHandle)
	p.meta = make(map[int]float64)
}

func (p *Panel) signalLocked() {
	select {
	case p.changed <- struct{}{}:
	default:
	}
}

func clamp(pos, duration float64) float64 {
	pos = finite(pos)
	if pos < 0 {
		return 0
	}
	if duration <= 0 {
		return 0
	}
	return math.Min(pos, duration)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// FormatTime renders seconds as m:ss. Zero, negative or non-finite input
// renders as 0:00.
func FormatTime(sec float64) string {
	if !(sec > 0) || math.IsInf(sec, 0) {
		return "0:00"
	}
	total := int64(sec)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
