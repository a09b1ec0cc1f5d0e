package chathub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"tutorlink/backend/internal/config"
	"tutorlink/backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketClient implements Client for a gorilla connection. The read loop
// feeds the session inline; a single write loop drains Send so the
// connection only ever has one writer.
type WebSocketClient struct {
	UserID  string
	RoomID  string
	Conn    *websocket.Conn
	Session *Session
	Send    chan models.OutboundEvent

	cfg    config.WSConfig
	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

var _ Client = (*WebSocketClient)(nil)

func NewWebSocketClient(conn *websocket.Conn, s *Session, cfg config.WSConfig) *WebSocketClient {
	buf := cfg.SendBuffer
	if buf < 1 {
		buf = config.DefaultSendBuffer
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = config.DefaultWriteWait
	}
	return &WebSocketClient{
		UserID:  s.UserID(),
		RoomID:  s.RoomID(),
		Conn:    conn,
		Session: s,
		Send:    make(chan models.OutboundEvent, buf),
		cfg:     cfg,
		done:    make(chan struct{}),
	}
}

func (c *WebSocketClient) GetUserID() string { return c.UserID }
func (c *WebSocketClient) GetRoomID() string { return c.RoomID }

// Deliver enqueues ev without blocking. A full queue counts as a failed
// delivery.
func (c *WebSocketClient) Deliver(ev models.OutboundEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- ev:
		return true
	default:
		return false
	}
}

// Close stops the write loop, which sends a close frame and drops the
// connection. Safe to call repeatedly.
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// Run activates the session and serves the connection until either side
// closes or ctx is cancelled. It blocks for the lifetime of the connection.
func (c *WebSocketClient) Run(ctx context.Context) error {
	if err := c.Session.Activate(ctx, c); err != nil {
		c.Conn.Close()
		return err
	}
	go c.writePump(ctx)
	c.readPump(ctx)
	return nil
}

func (c *WebSocketClient) readPump(ctx context.Context) {
	defer func() {
		c.Session.Close(ctx)
		c.Close()
		select {
		case <-c.done:
		case <-time.After(c.cfg.WriteWait):
		}
		c.Conn.Close()
	}()

	if c.cfg.MaxMessageSize > 0 {
		c.Conn.SetReadLimit(c.cfg.MaxMessageSize)
	}
	if c.cfg.PongWait > 0 {
		c.Conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		c.Conn.SetPongHandler(func(string) error {
			return c.Conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		})
	} else {
		// No keepalive: drop any deadline inherited from the HTTP server.
		c.Conn.SetReadDeadline(time.Time{})
	}

	for {
		_, payload, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Debug().Err(err).Str("user_id", c.UserID).Str("room_id", c.RoomID).Msg("chat connection read error")
			}
			return
		}
		c.Session.HandlePayload(ctx, payload)
	}
}

func (c *WebSocketClient) writePump(ctx context.Context) {
	var ping <-chan time.Time
	if period := c.cfg.PingPeriod(); period > 0 {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		ping = ticker.C
	}

	defer func() {
		c.Conn.Close()
		close(c.done)
	}()

	for {
		select {
		case ev, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.Error().Err(err).Str("user_id", c.UserID).Msg("failed to encode chat event")
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ping:
			c.Conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			c.Conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}
