package models

import "time"

// Event types used on the chat socket in both directions.
const (
	EventMessage = "message"
	EventTyping  = "typing"
	EventError   = "error"
)

// InboundEvent is a client frame. Pointer fields distinguish a missing key
// from a zero value.
type InboundEvent struct {
	Type     string  `json:"type"`
	Content  *string `json:"content"`
	IsTyping *bool   `json:"is_typing"`
}

// MessagePayload is the delivered form of a persisted message.
type MessagePayload struct {
	ID          string      `json:"id"`
	Content     string      `json:"content"`
	SenderID    string      `json:"sender_id"`
	SenderName  string      `json:"sender_name"`
	CreatedAt   time.Time   `json:"created_at"`
	MessageType MessageKind `json:"message_type"`
}

// OutboundEvent is a server frame: a message delivery, a typing status, or an error.
type OutboundEvent struct {
	Type     string          `json:"type"`
	Message  *MessagePayload `json:"message,omitempty"`
	UserID   string          `json:"user_id,omitempty"`
	IsTyping *bool           `json:"is_typing,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func NewMessageEvent(m *Message, senderName string) OutboundEvent {
	return OutboundEvent{
		Type: EventMessage,
		Message: &MessagePayload{
			ID:          m.ID,
			Content:     m.Content,
			SenderID:    m.SenderID,
			SenderName:  senderName,
			CreatedAt:   m.CreatedAt,
			MessageType: m.MessageType,
		},
	}
}

func NewTypingEvent(userID string, isTyping bool) OutboundEvent {
	return OutboundEvent{Type: EventTyping, UserID: userID, IsTyping: &isTyping}
}

func NewErrorEvent(text string) OutboundEvent {
	return OutboundEvent{Type: EventError, Error: text}
}
