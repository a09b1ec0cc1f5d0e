package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"

	"tutorlink/backend/internal/auth"
	"tutorlink/backend/internal/models"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is a session's lifecycle stage. Sessions only move forward and
// Closed is terminal.
type State int32

const (
	StateConnecting State = iota
	StateAuthorized
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthorized:
		return "authorized"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// ErrSessionState is returned when an operation is attempted in the wrong state.
var ErrSessionState = errors.New("session is not in the expected state")

// ErrHubStopped is returned by Activate once the hub is shutting down.
var ErrHubStopped = errors.New("chat hub is shutting down")

// Error event translation keys.
const (
	msgInvalidFormat   = "error.invalid_format"
	msgContentRequired = "error.content_required"
	msgUnknownType     = "error.unknown_type"
	msgSendFailed      = "error.send_failed"
)

// Session is the runtime state of one chat connection: one identity in one
// room. Inbound payloads must be handed to HandlePayload from a single
// goroutine, which keeps per-connection processing in arrival order.
type Session struct {
	hub      *Hub
	identity *auth.Identity
	roomID   string
	lang     string

	state  atomic.Int32
	role   models.Role
	client Client
	log    zerolog.Logger
}

func newSession(h *Hub, identity *auth.Identity, roomID, lang string) *Session {
	l := log.With().Str("room_id", roomID)
	if identity != nil {
		l = l.Str("user_id", identity.UserID)
	}
	return &Session{
		hub:      h,
		identity: identity,
		roomID:   roomID,
		lang:     lang,
		log:      l.Logger(),
	}
}

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) RoomID() string { return s.roomID }

// Role is the participant role resolved at authorization.
func (s *Session) Role() models.Role { return s.role }

func (s *Session) UserID() string {
	if s.identity == nil {
		return ""
	}
	return s.identity.UserID
}

// Authorize runs the access check. On denial the session goes straight to
// Closed and the caller must refuse the connection without accepting it.
func (s *Session) Authorize(ctx context.Context) bool {
	if s.State() != StateConnecting {
		return false
	}

	d := s.hub.Access.Authorize(ctx, s.identity, s.roomID)
	if !d.Allowed {
		s.state.Store(int32(StateClosed))
		s.hub.Metrics.Handshake("refused")
		s.log.Info().Str("reason", d.Reason).Msg("chat connection refused")
		return false
	}

	s.role = d.Role
	if !s.state.CompareAndSwap(int32(StateConnecting), int32(StateAuthorized)) {
		return false
	}
	s.hub.Metrics.Handshake("accepted")
	return true
}

// Activate registers the accepted connection in its room and marks the user
// online.
func (s *Session) Activate(ctx context.Context, c Client) error {
	if s.State() != StateAuthorized {
		return ErrSessionState
	}
	if !s.hub.enter() {
		s.state.Store(int32(StateClosed))
		return ErrHubStopped
	}
	if !s.state.CompareAndSwap(int32(StateAuthorized), int32(StateActive)) {
		s.hub.sessions.Done()
		return ErrSessionState
	}
	s.client = c
	s.hub.Presence.SetOnline(ctx, s.identity.UserID, true)
	s.hub.Registry.Join(s.roomID, c)
	if s.hub.Stopping() {
		// Joined after CloseAll swept the room.
		c.Close()
	}
	s.log.Debug().Str("role", string(s.role)).Msg("chat session active")
	return nil
}

// Close moves the session to Closed. Cleanup runs only for a session that
// was Active, and only once.
func (s *Session) Close(ctx context.Context) {
	prev := State(s.state.Swap(int32(StateClosed)))
	if prev != StateActive {
		return
	}
	defer s.hub.sessions.Done()
	// The connection's context may already be cancelled on shutdown.
	ctx = context.WithoutCancel(ctx)
	s.hub.Registry.Leave(s.roomID, s.client)
	s.hub.Presence.SetOnline(ctx, s.identity.UserID, false)
	s.log.Debug().Msg("chat session closed")
}

// HandlePayload classifies and processes one inbound frame.
func (s *Session) HandlePayload(ctx context.Context, raw []byte) {
	if s.State() != StateActive {
		return
	}

	var in models.InboundEvent
	if err := json.Unmarshal(raw, &in); err != nil {
		s.log.Debug().Err(err).Msg("malformed chat payload")
		s.reject("malformed", msgInvalidFormat)
		return
	}

	switch in.Type {
	case "", models.EventMessage:
		s.handleMessage(ctx, in)
	case models.EventTyping:
		s.handleTyping(in)
	default:
		s.reject("unknown", msgUnknownType)
	}
}

func (s *Session) handleMessage(ctx context.Context, in models.InboundEvent) {
	if in.Content == nil || strings.TrimSpace(*in.Content) == "" {
		s.reject(models.EventMessage, msgContentRequired)
		return
	}

	msg, err := s.hub.Store.CreateMessage(ctx, s.roomID, s.identity.UserID, *in.Content, models.KindText)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to persist chat message")
		s.reject(models.EventMessage, msgSendFailed)
		return
	}

	s.hub.Metrics.inbound(models.EventMessage, "ok")
	s.hub.Registry.Broadcast(s.roomID, models.NewMessageEvent(msg, s.identity.Name), nil)
}

func (s *Session) handleTyping(in models.InboundEvent) {
	isTyping := in.IsTyping != nil && *in.IsTyping
	s.hub.Metrics.inbound(models.EventTyping, "ok")
	s.hub.Registry.Broadcast(s.roomID, models.NewTypingEvent(s.identity.UserID, isTyping), s.client)
}

// reject answers the sender only. The connection stays open unless it can
// no longer accept events at all.
func (s *Session) reject(eventType, key string) {
	s.hub.Metrics.inbound(eventType, "rejected")
	ev := models.NewErrorEvent(s.hub.Localizer.GetString(s.lang, key))
	if !s.client.Deliver(ev) {
		s.hub.Metrics.deliveryFailed()
		s.client.Close()
	}
}
