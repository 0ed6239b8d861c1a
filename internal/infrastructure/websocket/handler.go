package websocket

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"silent-auction/pkg/logger"
)

// Handler upgrades GET /ws/notifications into a live notification feed for
// the caller. Browsers cannot set headers on a websocket handshake, so the
// user id may also come from the user_id query parameter.
type Handler struct {
	manager  *ConnectionManager
	upgrader websocket.Upgrader
	log      logger.Logger
}

func NewHandler(manager *ConnectionManager, log logger.Logger) *Handler {
	return &Handler{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if userID == "" {
		userID = strings.TrimSpace(r.URL.Query().Get("user_id"))
	}
	if userID == "" {
		http.Error(w, "user id required", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "user_id", userID, "error", err)
		return
	}

	wsConn := NewConnection(conn, userID, h.log)
	h.manager.RegisterConnection(wsConn)
	defer h.manager.UnregisterConnection(wsConn)

	go wsConn.writePump()
	wsConn.readPump()
}
