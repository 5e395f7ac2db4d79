// Command songfeed serves mood-tagged song lists from a sqlite catalog. It is
// the recommendation service the player queries with GET /songs?mood=.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/ewilliams-labs/moodplayer/internal/adapters/rest"
	"github.com/ewilliams-labs/moodplayer/internal/adapters/sqlite"
	"github.com/ewilliams-labs/moodplayer/internal/config"
	"github.com/ewilliams-labs/moodplayer/internal/core/services"
	"github.com/ewilliams-labs/moodplayer/internal/logging"
)

func main() {
	cfg, err := config.Load("songfeed", os.Args[1:])
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load configuration")
	}
	log, err := logging.Setup(cfg.Log.Level, cfg.Log.Pretty)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to configure logging")
	}

	dbAdapter, err := sqlite.NewAdapter(cfg.Catalog.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer dbAdapter.Close()

	svc := services.NewCatalogService(dbAdapter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Catalog.Seed != "" {
		n, err := seedCatalog(ctx, dbAdapter, svc, cfg.Catalog.Seed)
		if err != nil {
			log.Fatal().Err(err).Str("seed", cfg.Catalog.Seed).Msg("failed to seed catalog")
		}
		log.Info().Int("songs", n).Str("seed", cfg.Catalog.Seed).Msg("catalog seeded")
	}

	srv := &http.Server{
		Addr:              cfg.SongsAddr,
		Handler:           rest.NewSongsHandler(svc, log),
		ReadHeaderTimeout: 15 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.SongsAddr).Msg("song feed listening")
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}
	}
}
