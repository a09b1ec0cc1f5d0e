package handler

import (
	"net/http"
	"strings"

	"tutorlink/backend/internal/auth"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// tokenFrom reads the bearer token from the Authorization header, falling
// back to the token query parameter that browsers use for sockets.
func tokenFrom(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return c.Query("token")
}

// RequireAuth rejects requests without a valid token with 401 and stores the
// identity in the context. Every authenticated request refreshes the
// caller's last activity.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := h.Auth.Authenticate(c.Request.Context(), tokenFrom(c))
		if err != nil {
			fail(c, http.StatusUnauthorized, "authentication required")
			return
		}
		c.Set(identityKey, id)
		c.Set("userID", id.UserID)
		if h.Presence != nil {
			h.Presence.Touch(c.Request.Context(), id.UserID)
		}
		c.Next()
	}
}

// identityFrom returns the identity stored by RequireAuth.
func identityFrom(c *gin.Context) *auth.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*auth.Identity)
	return id
}
