// Package handler exposes the chat engine over HTTP: the WebSocket endpoint
// and the REST surface around rooms and message history.
package handler

import (
	"context"
	"net/http"

	"tutorlink/backend/internal/auth"
	"tutorlink/backend/internal/chathub"
	"tutorlink/backend/internal/config"
	"tutorlink/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Authenticator resolves bearer tokens to identities.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Identity, error)
}

// PresenceTracker is the presence surface the REST layer reads and refreshes.
type PresenceTracker interface {
	Touch(ctx context.Context, userID string)
	IsOnline(userID string) bool
}

// Handler holds the dependencies shared by all routes.
type Handler struct {
	Hub      *chathub.Hub
	Store    storage.Storage
	Auth     Authenticator
	Presence PresenceTracker

	ws       config.WSConfig
	upgrader websocket.Upgrader
}

// NewHandler builds a Handler. An empty allowedOrigins accepts socket
// handshakes from any origin.
func NewHandler(hub *chathub.Hub, store storage.Storage, authn Authenticator, presence PresenceTracker, ws config.WSConfig, allowedOrigins []string) *Handler {
	return &Handler{
		Hub:      hub,
		Store:    store,
		Auth:     authn,
		Presence: presence,
		ws:       ws,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  ws.ReadBufferSize,
			WriteBufferSize: ws.WriteBufferSize,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
