package chathub

import "tutorlink/backend/internal/models"

// Client is one live connection registered in a room. It abstracts the
// transport so the registry can fan out to WebSocket connections and test
// doubles alike.
type Client interface {
	// GetUserID returns the identity that owns the connection.
	GetUserID() string
	// GetRoomID returns the room the connection is scoped to.
	GetRoomID() string
	// Deliver queues an event for this connection without blocking. It
	// returns false when the connection is closed or cannot keep up.
	Deliver(ev models.OutboundEvent) bool
	// Close tears the connection down. It must be safe to call more than
	// once and must not block on the registry.
	Close()
}
