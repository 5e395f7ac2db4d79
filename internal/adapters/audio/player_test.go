package audio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
	"github.com/ewilliams-labs/moodplayer/internal/core/ports"
)

func TestPlayer_OpenRequiresSource(t *testing.T) {
	p := NewPlayer(0, nil, zerolog.Nop())
	if _, err := p.Open(domain.Track{Title: "Silent"}, nil); err == nil {
		t.Fatal("Open() without audio url error = nil")
	}
	h, err := p.Open(domain.Track{Title: "Song", AudioURL: "http://cdn/a.mp3"}, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if h.Position() != 0 || h.Duration() != 0 {
		t.Errorf("unloaded handle reports %v / %v", h.Position(), h.Duration())
	}
	if err := h.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := h.Play(); err == nil {
		t.Error("Play() after Close error = nil")
	}
}

func TestHandle_LoadFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.mp3" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("not audio"))
	}))
	defer srv.Close()

	p := NewPlayer(44100, srv.Client(), zerolog.Nop())
	for _, path := range []string{"/missing.mp3", "/garbage.mp3"} {
		events := make(chan ports.AudioEvent, 4)
		h, err := p.Open(domain.Track{Title: "x", AudioURL: srv.URL + path}, func(ev ports.AudioEvent) { events <- ev })
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if err := h.Seek(10); err == nil {
			t.Errorf("Seek() on %s error = nil", path)
		}
		if len(events) != 0 {
			t.Errorf("events emitted for %s", path)
		}
	}
}

func TestSampleConversions(t *testing.T) {
	sr := beep.SampleRate(44100)
	if got := secondsToSamples(sr, 2); got != 88200 {
		t.Errorf("secondsToSamples(2) = %d", got)
	}
	if got := secondsToSamples(sr, -1); got != 0 {
		t.Errorf("secondsToSamples(-1) = %d", got)
	}
	if got := samplesToSeconds(sr, 22050); got != 0.5 {
		t.Errorf("samplesToSeconds(22050) = %v", got)
	}
	if got := samplesToSeconds(0, 100); got != 0 {
		t.Errorf("samplesToSeconds with zero rate = %v", got)
	}
}

func TestPlayer_FetchSharesDownloads(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("payload " + r.URL.Path))
	}))
	defer srv.Close()

	p := NewPlayer(44100, srv.Client(), zerolog.Nop())
	for i := 0; i < 3; i++ {
		data, err := p.Fetch(context.Background(), srv.URL+"/a.mp3")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if string(data) != "payload /a.mp3" {
			t.Errorf("Fetch() = %q", data)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
}

func TestTrackCache_Evicts(t *testing.T) {
	calls := map[string]int{}
	c := newTrackCache(func(_ context.Context, url string) ([]byte, error) {
		calls[url]++
		return make([]byte, 4), nil
	}, 8)

	for _, url := range []string{"a", "b", "c", "a"} {
		if _, err := c.get(context.Background(), url); err != nil {
			t.Fatalf("get(%s) error = %v", url, err)
		}
	}
	if c.count() != 2 {
		t.Errorf("entries = %d, want 2", c.count())
	}
	if calls["a"] != 2 || calls["b"] != 1 || calls["c"] != 1 {
		t.Errorf("downloads = %v, want a evicted and fetched again", calls)
	}

	c.put("huge", make([]byte, 9))
	if _, ok := c.entries["huge"]; ok {
		t.Error("payload above the limit was kept")
	}
}

func TestHandle_CloseCancelsLoad(t *testing.T) {
	entered := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-r.Context().Done()
	}))
	defer srv.Close()

	p := NewPlayer(44100, srv.Client(), zerolog.Nop())
	h, err := p.Open(domain.Track{Title: "slow", AudioURL: srv.URL + "/slow.mp3"}, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- h.Play() }()
	<-entered

	closed := make(chan struct{})
	go func() {
		_ = h.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close() blocked behind a download")
	}
	select {
	case err := <-done:
		if err == nil {
			t.Error("Play() after cancelled load error = nil")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play() did not return after Close")
	}
	if h.Playing() {
		t.Error("closed handle reports playing")
	}
}
