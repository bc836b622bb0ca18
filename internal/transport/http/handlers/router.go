package handlers

import (
	"net/http"

	"github.com/vedran77/studychat/internal/transport/http/middleware"
)

// Routes collects what the router mounts. WS and Metrics are optional.
type Routes struct {
	Auth      *AuthHandler
	Messages  *MessageHandler
	WS        http.Handler
	Metrics   http.Handler
	JWTSecret string
}

func NewRouter(rt Routes) http.Handler {
	auth := middleware.Auth(rt.JWTSecret)

	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", Health)
	mux.HandleFunc("POST /api/v1/auth/register", rt.Auth.Register)
	mux.HandleFunc("POST /api/v1/auth/login", rt.Auth.Login)
	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics)
	}
	if rt.WS != nil {
		mux.Handle("GET /ws", rt.WS)
	}

	// Protected - Conversations
	mux.Handle("GET /api/v1/conversations/{peerId}/messages", auth(http.HandlerFunc(rt.Messages.List)))
	mux.Handle("POST /api/v1/conversations/{peerId}/messages", auth(http.HandlerFunc(rt.Messages.Send)))

	// Protected - Messages
	mux.Handle("PATCH /api/v1/messages/{id}", auth(http.HandlerFunc(rt.Messages.Edit)))
	mux.Handle("DELETE /api/v1/messages/{id}", auth(http.HandlerFunc(rt.Messages.Delete)))

	return middleware.CORS(mux)
}
