// Package worker provides background processing for published tracks.
package worker

import (
	"bytes"
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
)

// Job represents one duration probe for a slot of a published list.
type Job struct {
	Generation uint64
	Index      int
	TrackID    string
	AudioURL   string
}

// ResultFunc receives the probed duration, in seconds, of a job.
type ResultFunc func(job Job, duration float64)

// Fetcher supplies encoded track bytes, typically shared with playback.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Pool manages background workers for async jobs.
type Pool struct {
	onResult ResultFunc
	fetcher  Fetcher
	log      zerolog.Logger
	jobs     chan Job
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.RWMutex
	stopped bool
}

// NewPool creates a worker pool with the given queue size.
func NewPool(queueSize int, log zerolog.Logger) *Pool {
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		log:    log.With().Str("component", "worker").Logger(),
		jobs:   make(chan Job, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// OnResult sets the receiver of probe results. Call before Start.
func (p *Pool) OnResult(fn ResultFunc) {
	p.onResult = fn
}

// UseFetcher makes probes read tracks through f instead of downloading them
// separately. Call before Start.
func (p *Pool) UseFetcher(f Fetcher) {
	p.fetcher = f
}

// Start launches the worker goroutines.
func (p *Pool) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				p.processJob(job)
			}
		}()
	}
}

// Stop waits for workers to finish after closing the queue.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
	p.cancel()
}

// Abort cancels in-flight probes, then stops the pool.
func (p *Pool) Abort() {
	p.cancel()
	p.Stop()
}

// Submit queues a job without blocking.
func (p *Pool) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}
	select {
	case p.jobs <- job:
		return true
	default:
		p.log.Warn().Int("index", job.Index).Str("track", job.TrackID).Msg("queue full, dropping probe")
		return false
	}
}

// Probe queues a duration probe for slot index of list generation gen.
func (p *Pool) Probe(gen uint64, index int, track domain.Track) {
	p.Submit(Job{Generation: gen, Index: index, TrackID: track.ID, AudioURL: track.AudioURL})
}

func (p *Pool) processJob(job Job) {
	if job.AudioURL == "" {
		p.log.Debug().Int("index", job.Index).Msg("no audio url, skipping probe")
		return
	}
	if p.ctx.Err() != nil {
		return
	}

	duration, err := p.probe(job.AudioURL)
	if err != nil {
		p.log.Warn().Err(err).Int("index", job.Index).Str("url", job.AudioURL).Msg("duration probe failed")
		return
	}
	if p.onResult != nil {
		p.onResult(job, duration)
	}
	p.log.Debug().Int("index", job.Index).Float64("duration", duration).Msg("probed track")
}

func (p *Pool) probe(url string) (float64, error) {
	if p.fetcher == nil {
		return ProbeDurationFunc(p.ctx, url)
	}
	data, err := p.fetcher.Fetch(p.ctx, url)
	if err != nil {
		return 0, errors.Wrap(err, "probe fetch failed")
	}
	return mp3Duration(bytes.NewReader(data))
}
