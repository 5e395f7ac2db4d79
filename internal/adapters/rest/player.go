package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ewilliams-labs/moodplayer/internal/core/domain"
	"github.com/ewilliams-labs/moodplayer/internal/core/playback"
	"github.com/ewilliams-labs/moodplayer/internal/core/services"
)

type stateResponse struct {
	Controller services.Snapshot `json:"controller"`
	Panel      playback.View     `json:"panel"`
}

type currentSongsResponse struct {
	Mood        string     `json:"mood,omitempty"`
	Heading     string     `json:"heading"`
	Generation  uint64     `json:"generation"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Songs       []songJSON `json:"songs"`
}

type seekRequest struct {
	Position *float64 `json:"position"`
}

type seekResponse struct {
	Position float64       `json:"position"`
	Panel    playback.View `json:"panel"`
}

// GetState handles GET /state
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state())
}

// Detect handles POST /detect. Detection runs in the background; the response
// only says whether a cycle was started.
func (h *Handler) Detect(w http.ResponseWriter, r *http.Request) {
	if !h.ctrl.Trigger() {
		writeErrorWithCode(w, http.StatusConflict, "detection is not available right now", errCodeTryAgain)
		return
	}
	writeJSON(w, http.StatusAccepted, h.ctrl.Snapshot())
}

// RetryCapture handles POST /capture/retry
func (h *Handler) RetryCapture(w http.ResponseWriter, r *http.Request) {
	if h.ctrl.Snapshot().State != services.StateCaptureFailed {
		writeErrorWithCode(w, http.StatusConflict, "camera is not in a failed state", errCodeTryAgain)
		return
	}
	if err := h.ctrl.RetryCapture(r.Context()); err != nil {
		h.log.Warn().Err(err).Msg("capture retry failed")
		writeTryAgain(w, http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

// CurrentSongs handles GET /songs/current
func (h *Handler) CurrentSongs(w http.ResponseWriter, r *http.Request) {
	list := h.ctrl.Songs()
	resp := currentSongsResponse{
		Mood:       string(list.Mood),
		Heading:    list.Heading(),
		Generation: list.Generation,
		Songs:      songsToJSON(list.Tracks),
	}
	if !list.PublishedAt.IsZero() {
		resp.PublishedAt = &list.PublishedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// TogglePlayback handles POST /playback/{index}/toggle
func (h *Handler) TogglePlayback(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	if err := h.panel.Toggle(index); err != nil {
		h.writePlaybackError(w, index, err)
		return
	}
	writeJSON(w, http.StatusOK, h.panel.View())
}

// SeekPlayback handles POST /playback/{index}/seek
func (h *Handler) SeekPlayback(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}

	var req seekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorWithCode(w, http.StatusBadRequest, "Invalid request body", errCodeBadRequest)
		return
	}
	if req.Position == nil {
		writeErrorWithCode(w, http.StatusBadRequest, "position is required", errCodeBadRequest)
		return
	}

	pos, err := h.panel.Seek(index, *req.Position)
	if err != nil {
		h.writePlaybackError(w, index, err)
		return
	}
	writeJSON(w, http.StatusOK, seekResponse{Position: pos, Panel: h.panel.View()})
}

func (h *Handler) state() stateResponse {
	return stateResponse{Controller: h.ctrl.Snapshot(), Panel: h.panel.View()}
}

func (h *Handler) writePlaybackError(w http.ResponseWriter, index int, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeErrorWithCode(w, http.StatusNotFound, "no song at index "+strconv.Itoa(index), errCodeNotFound)
	case errors.Is(err, domain.ErrDisposed):
		writeTryAgain(w, http.StatusServiceUnavailable)
	default:
		h.log.Warn().Err(err).Int("index", index).Msg("playback failed")
		writeTryAgain(w, http.StatusBadGateway)
	}
}

func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		writeErrorWithCode(w, http.StatusBadRequest, "index must be a non-negative integer", errCodeBadRequest)
		return 0, false
	}
	return index, true
}
