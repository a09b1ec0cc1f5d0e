package handler

import (
	"errors"
	"net/http"

	"tutorlink/backend/internal/chathub"

	"github.com/gin-gonic/gin"
)

// ServeWebSocket authorizes the caller for the room and only then upgrades
// the connection. A refused caller gets a plain HTTP error and never an open
// socket.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	lg := LoggerFrom(c)

	id, err := h.Auth.Authenticate(c.Request.Context(), tokenFrom(c))
	if err != nil {
		h.Hub.Metrics.Handshake("unauthenticated")
		fail(c, http.StatusUnauthorized, "authentication required")
		return
	}
	c.Set("userID", id.UserID)

	if h.Hub.Stopping() {
		h.Hub.Metrics.Handshake("shutting_down")
		fail(c, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	lang := h.Hub.Localizer.Match(c.GetHeader("Accept-Language"))
	session := h.Hub.NewSession(id, c.Param("room_id"), lang)
	if !session.Authorize(c.Request.Context()) {
		fail(c, http.StatusForbidden, "access denied")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		lg.Warn().Err(err).Msg("websocket upgrade failed")
		session.Close(c.Request.Context())
		return
	}

	client := chathub.NewWebSocketClient(conn, session, h.ws)
	if err := client.Run(c.Request.Context()); errors.Is(err, chathub.ErrHubStopped) {
		lg.Info().Msg("chat session refused during shutdown")
	} else if err != nil {
		lg.Error().Err(err).Msg("chat session failed to start")
	}
}
