package worker

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
)

func TestPool_ProbeDeliversResults(t *testing.T) {
	orig := ProbeDurationFunc
	defer func() { ProbeDurationFunc = orig }()
	ProbeDurationFunc = func(_ context.Context, url string) (float64, error) {
		if url == "http://songs/broken.mp3" {
			return 0, errors.New("decode failed")
		}
		return 200, nil
	}

	var mu sync.Mutex
	got := map[int]float64{}
	p := NewPool(8, zerolog.Nop())
	p.OnResult(func(job Job, d float64) {
		mu.Lock()
		defer mu.Unlock()
		if job.Generation != 3 {
			t.Errorf("generation = %d, want 3", job.Generation)
		}
		got[job.Index] = d
	})
	p.Start(2)

	p.Probe(3, 0, domain.Track{ID: "a", AudioURL: "http://songs/a.mp3"})
	p.Probe(3, 1, domain.Track{ID: "b", AudioURL: "http://songs/broken.mp3"})
	p.Probe(3, 2, domain.Track{ID: "c"})
	p.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != 200 {
		t.Errorf("results = %v, want only slot 0", got)
	}
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := NewPool(1, zerolog.Nop())
	p.Start(1)
	p.Stop()
	p.Stop()

	if p.Submit(Job{AudioURL: "http://songs/a.mp3"}) {
		t.Error("Submit() after Stop = true")
	}
}

func TestPool_SubmitQueueFull(t *testing.T) {
	p := NewPool(1, zerolog.Nop())
	if !p.Submit(Job{Index: 0}) {
		t.Fatal("first Submit() = false")
	}
	if p.Submit(Job{Index: 1}) {
		t.Error("Submit() on full queue = true")
	}
}

func TestProbeDuration_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.mp3" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("definitely not an mp3 stream"))
	}))
	defer srv.Close()

	tests := []struct {
		name string
		url  string
	}{
		{name: "Not found", url: srv.URL + "/missing.mp3"},
		{name: "Garbage body", url: srv.URL + "/garbage.mp3"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := probeDuration(context.Background(), tc.url); err == nil {
				t.Error("probeDuration() error = nil")
			}
		})
	}
}

func TestMP3Duration_Empty(t *testing.T) {
	if _, err := mp3Duration(bytes.NewReader(nil)); err == nil {
		t.Error("mp3Duration(empty) error = nil")
	}
}

func TestPool_AbortSkipsQueuedJobs(t *testing.T) {
	orig := ProbeDurationFunc
	defer func() { ProbeDurationFunc = orig }()
	var calls int
	ProbeDurationFunc = func(context.Context, string) (float64, error) {
		calls++
		return 1, nil
	}

	p := NewPool(4, zerolog.Nop())
	p.Submit(Job{AudioURL: "http://songs/a.mp3"})
	p.Submit(Job{AudioURL: "http://songs/b.mp3"})
	p.Abort()
	p.Start(1)
	p.wg.Wait()

	if calls != 0 {
		t.Errorf("probe calls = %d after abort, want 0", calls)
	}
}

type recordingFetcher struct {
	mu   sync.Mutex
	urls []string
}

func (f *recordingFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	if url == "http://songs/offline.mp3" {
		return nil, errors.New("offline")
	}
	return []byte("not an mp3"), nil
}

func TestPool_UseFetcher(t *testing.T) {
	orig := ProbeDurationFunc
	defer func() { ProbeDurationFunc = orig }()
	ProbeDurationFunc = func(context.Context, string) (float64, error) {
		t.Error("separate download used despite a fetcher")
		return 0, nil
	}

	f := &recordingFetcher{}
	var results int
	p := NewPool(4, zerolog.Nop())
	p.UseFetcher(f)
	p.OnResult(func(Job, float64) { results++ })
	p.Start(1)
	p.Probe(1, 0, domain.Track{ID: "a", AudioURL: "http://songs/a.mp3"})
	p.Probe(1, 1, domain.Track{ID: "b", AudioURL: "http://songs/offline.mp3"})
	p.Stop()

	if len(f.urls) != 2 {
		t.Errorf("fetched = %v, want both tracks", f.urls)
	}
	if results != 0 {
		t.Errorf("results = %d for undecodable tracks", results)
	}
}
