package models

import "time"

// MessageKind is the content kind of a persisted message.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindFile  MessageKind = "file"
)

// Valid reports whether k is a known message kind.
func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindFile:
		return true
	}
	return false
}

// Message is an immutable record in a room's append-only log. Only IsRead
// changes after creation. CreatedAt strictly increases within a room in the
// order the storage layer accepted the messages.
type Message struct {
	ID          string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	RoomID      string      `gorm:"type:varchar(36);not null;index:idx_room_created,priority:1" json:"room_id"`
	SenderID    string      `gorm:"type:varchar(36);not null;index" json:"sender_id"`
	Content     string      `gorm:"type:text;not null" json:"content"`
	MessageType MessageKind `gorm:"type:varchar(20);not null;default:text" json:"message_type"`
	IsRead      bool        `gorm:"not null;default:false" json:"is_read"`
	CreatedAt   time.Time   `gorm:"not null;index:idx_room_created,priority:2" json:"created_at"`

	Sender *User `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE" json:"-"`
}
