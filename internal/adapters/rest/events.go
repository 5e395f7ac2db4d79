package rest

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ewilliams-labs/moodplayer/internal/core/playback"
	"github.com/ewilliams-labs/moodplayer/internal/core/services"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The control surface is served to a local UI on another port.
		return true
	},
}

// eventMessage is one push to a websocket client. "state" carries both parts,
// "panel" only the playback view.
type eventMessage struct {
	Type       string             `json:"type"`
	Controller *services.Snapshot `json:"controller,omitempty"`
	Panel      *playback.View     `json:"panel,omitempty"`
}

// Events handles GET /events. Every controller transition and panel change is
// pushed as JSON until the client goes away or the controller is disposed.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	snaps, cancelSnaps := h.ctrl.Subscribe()
	defer cancelSnaps()
	changes, cancelChanges := h.panelHub().subscribe()
	defer cancelChanges()

	// Drain client frames so close and pong control messages are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		var msg eventMessage
		select {
		case <-done:
			return
		case snap, ok := <-snaps:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			view := h.panel.View()
			msg = eventMessage{Type: "state", Controller: &snap, Panel: &view}
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			view := h.panel.View()
			msg = eventMessage{Type: "panel", Panel: &view}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
			continue
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			h.log.Debug().Err(err).Msg("websocket write failed")
			return
		}
	}
}

func (h *Handler) panelHub() *hub {
	h.hubOnce.Do(func() {
		h.hub = newHub(h.panel.Changed())
	})
	return h.hub
}

// hub fans the panel's single change channel out to every websocket client.
type hub struct {
	mu     sync.Mutex
	subs   map[chan struct{}]struct{}
	closed bool
}

func newHub(changed <-chan struct{}) *hub {
	h := &hub{subs: make(map[chan struct{}]struct{})}
	go h.run(changed)
	return h
}

func (h *hub) run(changed <-chan struct{}) {
	for range changed {
		h.mu.Lock()
		for ch := range h.subs {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
		h.mu.Unlock()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subs {
		close(ch)
	}
	h.subs = nil
}

func (h *hub) subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
		})
	}
}
