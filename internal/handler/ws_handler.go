package handler

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"

	"sotto-note/internal/middleware"
	"sotto-note/internal/model"
	"sotto-note/internal/websocket"
)

// WSHandler upgrades authenticated requests onto the event hub.
type WSHandler struct {
	hub      *websocket.Hub
	upgrader gorillaws.Upgrader
}

func NewWSHandler(hub *websocket.Hub, origins []string) *WSHandler {
	return &WSHandler{hub: hub, upgrader: websocket.NewUpgrader(origins)}
}

func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	h.hub.Serve(h.upgrader, w, r, user.ID)
}
