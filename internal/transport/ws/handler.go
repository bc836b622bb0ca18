package ws

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/vedran77/studychat/internal/transport/http/middleware"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// ServeWS returns an HTTP handler that upgrades to WebSocket.
// Auth is done via ?token=xxx query param (WebSocket can't send headers).
// Each ?peer=<id> subscribes the connection to that user's presence.
func ServeWS(hub *Hub, d *Dispatcher, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		userID, err := middleware.ParseToken(tokenStr, jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		var peers []uuid.UUID
		for _, raw := range r.URL.Query()["peer"] {
			id, err := uuid.Parse(raw)
			if err != nil {
				http.Error(w, "invalid peer", http.StatusBadRequest)
				return
			}
			peers = append(peers, id)
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true, // Allow any origin (dev mode)
		})
		if err != nil {
			d.Log.Warn("ws: accept error", zap.Error(err))
			return
		}

		client := NewClient(hub, conn, userID, peers, d)
		hub.Register(client)

		go client.WritePump()
		go client.ReadPump()
	}
}
