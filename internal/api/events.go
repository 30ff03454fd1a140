package api

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"foodcourt/internal/apperr"
	"foodcourt/internal/event"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // same-origin policy is enforced upstream
	},
}

// Events upgrades the connection to a websocket and streams the caller's
// notifications, one JSON text message each, until the client disconnects.
// The listener is registered for the authenticated (id, role) pair and
// unregistered when the connection ends, so hub memory tracks live
// connections only.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	callerID, role, ok := callerFrom(r.Context())
	if !ok {
		h.writeError(w, apperr.Unauthorized("authentication required"))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Error("websocket upgrade", "err", err)
		return
	}
	defer conn.Close()

	// The client sends nothing meaningful; the read pump exists to notice
	// the close frame or a dropped connection.
	var disconnected atomic.Bool
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				disconnected.Store(true)
				return
			}
		}
	}()

	user := event.User{UserID: callerID, Role: role}
	listener := h.Hub.Register(user, func() bool { return !disconnected.Load() })
	defer h.Hub.Unregister(listener)

	h.Log.Info("listener connected", "listener_id", listener.ID(), "user_id", callerID, "role", role)

	for {
		n, ok := listener.Next()
		if !ok {
			return
		}
		data, err := json.Marshal(n)
		if err != nil {
			h.Log.Error("marshal notification", "listener_id", listener.ID(), "err", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			disconnected.Store(true)
			return
		}
	}
}
