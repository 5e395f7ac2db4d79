// Package rest exposes the player's control surface and the reference song
// service over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
	"github.com/ewilliams-labs/moodplayer/internal/core/playback"
	"github.com/ewilliams-labs/moodplayer/internal/core/services"
)

// Controller is the part of the mood-cycle controller the API drives.
type Controller interface {
	Trigger() bool
	RetryCapture(ctx context.Context) error
	Snapshot() services.Snapshot
	Songs() domain.SongList
	Subscribe() (<-chan services.Snapshot, func())
}

// Panel is the part of the playback panel the API drives.
type Panel interface {
	Toggle(i int) error
	Seek(i int, pos float64) (float64, error)
	View() playback.View
	Changed() <-chan struct{}
}

// Handler manages the HTTP interface of the player process.
type Handler struct {
	ctrl    Controller
	panel   Panel
	metrics http.Handler
	log     zerolog.Logger
	router  *http.ServeMux // Standard library router

	hubOnce sync.Once
	hub     *hub
}

// NewHandler initializes the HTTP adapter and sets up routes. gatherer may be
// nil, in which case /metrics is not served.
func NewHandler(ctrl Controller, panel Panel, gatherer prometheus.Gatherer, log zerolog.Logger) *Handler {
	h := &Handler{
		ctrl:   ctrl,
		panel:  panel,
		log:    log.With().Str("component", "rest").Logger(),
		router: http.NewServeMux(),
	}
	if gatherer != nil {
		h.metrics = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}

	// Register Routes
	h.routes()

	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// routes defines the mapping between URLs and methods.
func (h *Handler) routes() {
	h.router.HandleFunc("GET /health", h.HealthCheck)
	// Cycle control
	h.router.HandleFunc("GET /state", h.GetState)
	h.router.HandleFunc("POST /detect", h.Detect)
	h.router.HandleFunc("POST /capture/retry", h.RetryCapture)
	// Playback
	h.router.HandleFunc("GET /songs/current", h.CurrentSongs)
	h.router.HandleFunc("POST /playback/{index}/toggle", h.TogglePlayback)
	h.router.HandleFunc("POST /playback/{index}/seek", h.SeekPlayback)
	// Push updates
	h.router.HandleFunc("GET /events", h.Events)
	if h.metrics != nil {
		h.router.Handle("GET /metrics", h.metrics)
	}
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "message": "Mood player is live 🎶"})
}
