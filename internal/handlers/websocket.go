package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/XavierBriggs/fortuna/services/live-scoring/internal/client"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// scoreboard embeds connect from any host
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWebSocket upgrades the connection and starts the client pumps
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	clientID := uuid.NewString()
	c := client.NewClient(clientID, conn, h.hub, h.cfg.ClientBuffer, h.logger, h.metrics)

	// pumps follow the handler context, not the request context
	go c.WritePump(h.ctx)
	go c.ReadPump(h.ctx)

	h.logger.Info("websocket connection established", "client", clientID, "remote", r.RemoteAddr)
}
