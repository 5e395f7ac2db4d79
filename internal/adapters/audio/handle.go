package audio

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/ewilliams-labs/moodplayer/internal/core/ports"
)

var errClosed = errors.New("audio: handle closed")

// handle is one slot's audio source. Signals are emitted from the ticker or
// speaker goroutines, never from the calling goroutine. Loading holds loadMu
// only, so Pause, Position and Close stay responsive during a download.
type handle struct {
	player *Player
	url    string
	emit   func(ports.AudioEvent)
	ctx    context.Context
	cancel context.CancelFunc

	loadMu sync.Mutex

	mu       sync.Mutex
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	queued   bool
	finished bool
	closed   bool
	stopTick chan struct{}
}

func (h *handle) Play() error {
	if err := h.load(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errClosed
	}
	if err := h.player.ensureSpeaker(); err != nil {
		return err
	}

	speaker.Lock()
	if h.finished {
		_ = h.streamer.Seek(0)
		h.ctrl.Streamer = h.sequence()
		h.finished = false
	}
	h.ctrl.Paused = false
	speaker.Unlock()

	if !h.queued {
		speaker.Play(h.ctrl)
		h.queued = true
	}
	h.startTickerLocked()
	go h.emit(ports.AudioEvent{Kind: ports.EventPlay, Position: h.positionLocked(), Duration: h.durationLocked()})
	return nil
}

func (h *handle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctrl == nil || h.closed {
		return
	}
	h.lockSpeaker()
	h.ctrl.Paused = true
	h.unlockSpeaker()
	h.stopTickerLocked()
}

func (h *handle) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ctrl != nil && !h.closed && !h.finished && !h.ctrl.Paused
}

func (h *handle) Seek(position float64) error {
	if err := h.load(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errClosed
	}

	n := secondsToSamples(h.format.SampleRate, position)
	if limit := h.streamer.Len(); n > limit {
		n = limit
	}
	h.lockSpeaker()
	err := h.streamer.Seek(n)
	h.unlockSpeaker()
	if err != nil {
		return errors.Wrap(err, "audio: seek")
	}
	return nil
}

func (h *handle) Position() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.positionLocked()
}

func (h *handle) Duration() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.durationLocked()
}

func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.cancel()
	h.stopTickerLocked()
	if h.streamer == nil {
		return nil
	}
	h.lockSpeaker()
	if h.ctrl != nil {
		h.ctrl.Paused = true
		h.ctrl.Streamer = nil
	}
	h.unlockSpeaker()
	return h.streamer.Close()
}

// load fetches and decodes the track on first use and announces its
// duration. A handle closed meanwhile discards the result.
func (h *handle) load() error {
	h.loadMu.Lock()
	defer h.loadMu.Unlock()

	h.mu.Lock()
	loaded, closed := h.streamer != nil, h.closed
	h.mu.Unlock()
	switch {
	case closed:
		return errClosed
	case loaded:
		return nil
	}

	data, err := h.player.Fetch(h.ctx, h.url)
	if err != nil {
		return err
	}
	streamer, format, err := decode(data)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = streamer.Close()
		return errClosed
	}
	h.streamer = streamer
	h.format = format
	h.ctrl = &beep.Ctrl{Streamer: h.sequence(), Paused: true}
	duration := h.durationLocked()
	h.mu.Unlock()

	go h.emit(ports.AudioEvent{Kind: ports.EventLoadedMetadata, Duration: duration})
	return nil
}

func (h *handle) sequence() beep.Streamer {
	var s beep.Streamer = h.streamer
	if h.format.SampleRate != h.player.sampleRate {
		s = beep.Resample(resampleQuality, h.format.SampleRate, h.player.sampleRate, s)
	}
	// The callback runs under the speaker lock.
	return beep.Seq(s, beep.Callback(func() { go h.ended() }))
}

func (h *handle) ended() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	// The mixer drops a drained sequence; Play queues it again.
	h.finished = true
	h.queued = false
	h.stopTickerLocked()
	duration := h.durationLocked()
	h.mu.Unlock()

	h.emit(ports.AudioEvent{Kind: ports.EventEnded, Position: duration, Duration: duration})
}

func (h *handle) startTickerLocked() {
	if h.stopTick != nil {
		return
	}
	stop := make(chan struct{})
	h.stopTick = stop
	go func() {
		t := time.NewTicker(h.player.tick)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				h.mu.Lock()
				ev := ports.AudioEvent{Kind: ports.EventTimeUpdate, Position: h.positionLocked(), Duration: h.durationLocked()}
				h.mu.Unlock()
				select {
				case <-stop:
					return
				default:
				}
				h.emit(ev)
			}
		}
	}()
}

// stopTickerLocked signals the ticker without waiting for it.
func (h *handle) stopTickerLocked() {
	if h.stopTick != nil {
		close(h.stopTick)
		h.stopTick = nil
	}
}

func (h *handle) positionLocked() float64 {
	if h.streamer == nil {
		return 0
	}
	h.lockSpeaker()
	n := h.streamer.Position()
	h.unlockSpeaker()
	return samplesToSeconds(h.format.SampleRate, n)
}

func (h *handle) durationLocked() float64 {
	if h.streamer == nil {
		return 0
	}
	return samplesToSeconds(h.format.SampleRate, h.streamer.Len())
}

// lockSpeaker guards streamer access once the speaker may be reading it.
func (h *handle) lockSpeaker() {
	if h.queued {
		speaker.Lock()
	}
}

func (h *handle) unlockSpeaker() {
	if h.queued {
		speaker.Unlock()
	}
}
