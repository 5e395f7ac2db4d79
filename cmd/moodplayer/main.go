// Command moodplayer runs the mood-driven player: it watches the camera,
// detects the listener's expression on demand, fetches songs for that mood
// and plays them.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ewilliams-labs/moodplayer/internal/adapters/audio"
	"github.com/ewilliams-labs/moodplayer/internal/adapters/faceapi"
	"github.com/ewilliams-labs/moodplayer/internal/adapters/gstcamera"
	"github.com/ewilliams-labs/moodplayer/internal/adapters/headless"
	"github.com/ewilliams-labs/moodplayer/internal/adapters/rest"
	"github.com/ewilliams-labs/moodplayer/internal/adapters/songfeed"
	"github.com/ewilliams-labs/moodplayer/internal/config"
	"github.com/ewilliams-labs/moodplayer/internal/core/capture"
	"github.com/ewilliams-labs/moodplayer/internal/core/inference"
	"github.com/ewilliams-labs/moodplayer/internal/core/playback"
	"github.com/ewilliams-labs/moodplayer/internal/core/ports"
	"github.com/ewilliams-labs/moodplayer/internal/core/services"
	"github.com/ewilliams-labs/moodplayer/internal/logging"
	"github.com/ewilliams-labs/moodplayer/internal/metrics"
	"github.com/ewilliams-labs/moodplayer/internal/worker"
)

func main() {
	// 1. Configuration
	cfg, err := config.Load("moodplayer", os.Args[1:])
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load configuration")
	}
	log, err := logging.Setup(cfg.Log.Level, cfg.Log.Pretty)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to configure logging")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.MustRegister(reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Driven adapters
	camera := gstcamera.NewCamera(gstcamera.Config{
		Device: cfg.Camera.Device,
		Width:  cfg.Camera.Width,
		Height: cfg.Camera.Height,
		FPS:    cfg.Camera.FPS,
	}, log)
	surface := headless.NewSurface(log)
	session := capture.NewSession(camera, surface, log)
	surface.OnLost(session.HandleDisconnect)

	engine := faceapi.NewClient(cfg.Inference.BaseURL,
		faceapi.WithInputSize(cfg.Inference.InputSize),
		faceapi.WithScoreThreshold(cfg.Inference.ScoreThreshold),
		faceapi.WithLogger(log),
	)
	gate := inference.NewGate(engine, inference.ModelURLs(cfg.Inference.ModelsDir), log)

	feedHTTP := songfeed.NewHTTPClient(ctx, &http.Client{Timeout: cfg.Feed.Timeout}, songfeed.OAuthConfig{
		ClientID:     cfg.Feed.OAuth.ClientID,
		ClientSecret: cfg.Feed.OAuth.ClientSecret,
		TokenURL:     cfg.Feed.OAuth.TokenURL,
		Scopes:       cfg.Feed.OAuth.Scopes,
	})
	feed := songfeed.NewClient(feedHTTP, cfg.Feed.BaseURL,
		songfeed.WithTimeout(cfg.Feed.Timeout),
		songfeed.WithRetry(cfg.Feed.MaxRetries, cfg.Feed.RetryBackoff),
		songfeed.WithLogger(log),
	)

	// 3. Playback: the probe pool reports durations back into the panel.
	player := audio.NewPlayer(cfg.Audio.SampleRate, nil, log)
	pool := worker.NewPool(32, log)
	pool.UseFetcher(player)
	panel := playback.NewPanel(player, pool, log)
	pool.OnResult(func(job worker.Job, duration float64) {
		panel.HandleEvent(job.Generation, job.Index, ports.AudioEvent{
			Kind:     ports.EventLoadedMetadata,
			Duration: duration,
		})
	})
	pool.Start(cfg.Audio.ProbeWorkers)

	// 4. Core
	ctrl := services.NewMoodCycleController(session, gate, feed, panel,
		services.WithCooldown(cfg.Cycle.Cooldown),
		services.WithFetchTimeout(cfg.Feed.Timeout),
		services.WithLogger(log),
	)

	// 5. Driving adapter
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           rest.NewHandler(ctrl, panel, reg, log),
		ReadHeaderTimeout: 15 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("🎶 mood player API listening")
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	go func() {
		if err := waitForFeed(ctx, cfg.Feed.BaseURL, 30*time.Second); err != nil {
			log.Warn().Err(err).Msg("song feed not reachable, continuing anyway")
		}
	}()

	go func() {
		if err := ctrl.Start(ctx); err != nil {
			log.Warn().Err(err).Str("state", ctrl.Snapshot().State.String()).Msg("player not armed")
			return
		}
		log.Info().Msg("camera and models ready")
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdown(log, srv, ctrl, pool, panel)
}

func shutdown(log zerolog.Logger, srv *http.Server, ctrl *services.MoodCycleController, pool *worker.Pool, panel *playback.Panel) {
	// Disposing first closes event streams so Shutdown does not wait on them.
	ctrl.Dispose()
	ctrl.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	pool.Abort()
	panel.Close()
	log.Info().Msg("👋 mood player stopped")
}

// waitForFeed polls the song feed health endpoint until it responds or times out
func waitForFeed(ctx context.Context, baseURL string, timeout time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
		if err != nil {
			return errors.Wrap(err, "build health request")
		}
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return errors.Newf("song feed not available after %v", timeout)
		case <-ticker.C:
		}
	}
}
