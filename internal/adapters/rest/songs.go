package rest

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
	"github.com/ewilliams-labs/moodplayer/internal/core/services"
)

// songJSON is the wire form of a song shared by the feed and the player API.
type songJSON struct {
	ID     string `json:"_id,omitempty"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Audio  string `json:"audio"`
	Mood   string `json:"mood"`
}

type songsResponse struct {
	Songs []songJSON `json:"songs"`
}

func songsToJSON(tracks []domain.Track) []songJSON {
	out := make([]songJSON, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, songJSON{
			ID:     t.ID,
			Title:  t.Title,
			Artist: t.Artist,
			Audio:  t.AudioURL,
			Mood:   string(t.Mood),
		})
	}
	return out
}

// SongsHandler serves the reference song feed backed by the catalog.
type SongsHandler struct {
	svc    *services.CatalogService
	log    zerolog.Logger
	router *http.ServeMux
}

// NewSongsHandler initializes the song feed routes.
func NewSongsHandler(svc *services.CatalogService, log zerolog.Logger) *SongsHandler {
	h := &SongsHandler{
		svc:    svc,
		log:    log.With().Str("component", "songs-api").Logger(),
		router: http.NewServeMux(),
	}
	h.router.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	h.router.HandleFunc("GET /songs", h.ListSongs)
	h.router.HandleFunc("POST /songs", h.AddSong)
	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *SongsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// ListSongs handles GET /songs?mood=<label>
func (h *SongsHandler) ListSongs(w http.ResponseWriter, r *http.Request) {
	label := r.URL.Query().Get("mood")
	if label == "" {
		writeErrorWithCode(w, http.StatusBadRequest, "mood is required", errCodeBadRequest)
		return
	}

	tracks, err := h.svc.SongsForMood(r.Context(), label)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownMood) {
			writeErrorWithCode(w, http.StatusBadRequest, "unknown mood "+label, errCodeBadRequest)
			return
		}
		h.log.Error().Err(err).Str("mood", label).Msg("list songs failed")
		writeTryAgain(w, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, songsResponse{Songs: songsToJSON(tracks)})
}

// AddSong handles POST /songs
func (h *SongsHandler) AddSong(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var req songJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorWithCode(w, http.StatusBadRequest, "Invalid request body", errCodeBadRequest)
		return
	}

	saved, err := h.svc.AddSong(r.Context(), domain.Track{
		ID:       req.ID,
		Title:    req.Title,
		Artist:   req.Artist,
		AudioURL: req.Audio,
		Mood:     domain.Mood(req.Mood),
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTrack) || errors.Is(err, domain.ErrUnknownMood) {
			writeErrorWithCode(w, http.StatusBadRequest, "title, audio and a known mood are required", errCodeBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("add song failed")
		writeTryAgain(w, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Location", "/songs?mood="+string(saved.Mood))
	writeJSON(w, http.StatusCreated, songsToJSON([]domain.Track{saved})[0])
}
