// Package audio plays published tracks on the local sound device.
package audio

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
	"github.com/ewilliams-labs/moodplayer/internal/core/ports"
)

const (
	defaultSampleRate = 44100
	resampleQuality   = 4
	maxTrackBytes     = 64 << 20
	defaultTick       = 250 * time.Millisecond
)

// Player opens one handle per track, all mixed into a single speaker.
type Player struct {
	sampleRate beep.SampleRate
	httpClient *http.Client
	tick       time.Duration
	cache      *trackCache
	log        zerolog.Logger

	initOnce sync.Once
	initErr  error
}

// compile-time interface assertion
var _ ports.AudioFactory = (*Player)(nil)

// NewPlayer constructs a player mixing at sampleRate.
func NewPlayer(sampleRate int, httpClient *http.Client, log zerolog.Logger) *Player {
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	p := &Player{
		sampleRate: beep.SampleRate(sampleRate),
		httpClient: httpClient,
		tick:       defaultTick,
		log:        log.With().Str("component", "audio").Logger(),
	}
	p.cache = newTrackCache(p.download, defaultCacheBytes)
	return p
}

// Fetch returns the encoded track at url. Recent downloads are shared, so a
// duration probe and the first Play of a slot cost one request.
func (p *Player) Fetch(ctx context.Context, url string) ([]byte, error) {
	return p.cache.get(ctx, url)
}

// Open returns a handle for track. Audio is fetched and decoded on first use.
func (p *Player) Open(track domain.Track, emit func(ports.AudioEvent)) (ports.AudioHandle, error) {
	if track.AudioURL == "" {
		return nil, errors.Newf("audio: track %q has no audio source", track.Title)
	}
	if emit == nil {
		emit = func(ports.AudioEvent) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &handle{player: p, url: track.AudioURL, emit: emit, ctx: ctx, cancel: cancel}, nil
}

func (p *Player) ensureSpeaker() error {
	p.initOnce.Do(func() {
		p.initErr = speaker.Init(p.sampleRate, p.sampleRate.N(time.Second/10))
		if p.initErr != nil {
			p.initErr = errors.Wrap(p.initErr, "audio: init speaker")
		}
	})
	return p.initErr
}

func (p *Player) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "audio: build request")
	}
	// #nosec G107 -- URL comes from the configured song feed
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "audio: fetch failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("audio: fetch status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTrackBytes))
	if err != nil {
		return nil, errors.Wrap(err, "audio: read failed")
	}
	return data, nil
}

// readSeekCloser lets an in-memory track satisfy the decoder's seeking.
type readSeekCloser struct {
	*bytes.Reader
}

func (readSeekCloser) Close() error { return nil }

func secondsToSamples(sr beep.SampleRate, sec float64) int {
	if sec <= 0 {
		return 0
	}
	return sr.N(time.Duration(sec * float64(time.Second)))
}

func samplesToSeconds(sr beep.SampleRate, n int) float64 {
	if n <= 0 || sr <= 0 {
		return 0
	}
	return sr.D(n).Seconds()
}

// decode wraps an mp3 payload for playback at the speaker rate.
func decode(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	s, format, err := mp3.Decode(readSeekCloser{bytes.NewReader(data)})
	if err != nil {
		return nil, beep.Format{}, errors.Wrap(err, "audio: decode failed")
	}
	return s, format, nil
}
