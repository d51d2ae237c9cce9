package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wavechat/wavechat/auth"
	"github.com/wavechat/wavechat/globals"
	"github.com/wavechat/wavechat/ws"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// websocketHandler upgrades the connection and attaches a client to the
// hub. Clients authenticate with a token query parameter; without one
// (or with authentication unconfigured) the session runs under a fresh
// guest identity.
func (h *Handler) websocketHandler(w http.ResponseWriter, r *http.Request) {
	globals.AppLogger.Debug("in websocketHandler")

	user, err := auth.Authenticate(r.URL.Query().Get("token"), h.Cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	if user.Id == 0 {
		user = auth.NewGuest()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		globals.AppLogger.Error("websocket upgrade error", "error", err)
		return
	}

	doneChan := make(chan struct{})
	client := ws.NewClient(h.Hub, conn, uuid.NewString(), user, doneChan)

	// one Add per loop, released when the loop exits
	client.Add(2)
	h.Hub.Register <- client
	go client.WriteLoop()
	go client.ReadLoop()
}
