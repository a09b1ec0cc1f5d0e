package chathub

import (
	"context"
	"sync"

	"tutorlink/backend/internal/auth"
	"tutorlink/backend/internal/localization"
	"tutorlink/backend/internal/models"
)

// Store is the part of the persistence gateway the chat engine writes to.
type Store interface {
	RoomFinder
	CreateMessage(ctx context.Context, roomID, senderID, content string, kind models.MessageKind) (*models.Message, error)
}

// PresenceUpdater flips a user's online state as connections open and close.
type PresenceUpdater interface {
	SetOnline(ctx context.Context, userID string, online bool)
}

type noopPresence struct{}

func (noopPresence) SetOnline(context.Context, string, bool) {}

// Hub wires the shared chat components together. It is constructed once at
// startup and handed to every session.
type Hub struct {
	Registry  *Registry
	Access    *AccessChecker
	Store     Store
	Presence  PresenceUpdater
	Localizer *localization.Localizer
	Metrics   *Metrics

	// mu orders stopping against sessions.Add.
	mu       sync.Mutex
	stopping bool
	sessions sync.WaitGroup
}

// NewHub builds a hub. presence, localizer and metrics may be nil.
func NewHub(store Store, presence PresenceUpdater, localizer *localization.Localizer, metrics *Metrics) *Hub {
	if presence == nil {
		presence = noopPresence{}
	}
	if localizer == nil {
		localizer = localization.MustDefault()
	}
	return &Hub{
		Registry:  NewRegistry(metrics),
		Access:    NewAccessChecker(store),
		Store:     store,
		Presence:  presence,
		Localizer: localizer,
		Metrics:   metrics,
	}
}

// NewSession starts a session in the Connecting state for an authenticated
// identity. lang selects the language of error events.
func (h *Hub) NewSession(identity *auth.Identity, roomID, lang string) *Session {
	return newSession(h, identity, roomID, lang)
}

// Publish fans a message persisted outside the socket (e.g. via REST) out to
// the room's live sessions, sender included.
func (h *Hub) Publish(roomID string, msg *models.Message, senderName string) int {
	return h.Registry.Broadcast(roomID, models.NewMessageEvent(msg, senderName), nil)
}

// Stopping reports whether Shutdown has been called.
func (h *Hub) Stopping() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopping
}

// enter counts a session that is becoming Active. It fails once Shutdown
// has started.
func (h *Hub) enter() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopping {
		return false
	}
	h.sessions.Add(1)
	return true
}

// Shutdown refuses new sessions, closes every live connection and waits for
// their sessions to finish cleanup, or for ctx to expire. It may be called
// more than once.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.stopping = true
	h.mu.Unlock()

	h.Registry.CloseAll()

	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
