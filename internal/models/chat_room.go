package models

import "time"

// ChatRoom is the persistent two-party channel between one student and one
// tutor. Exactly one room exists per (student, tutor) pair.
type ChatRoom struct {
	// ID is the unique identifier for the chat room (UUID).
	ID string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	// StudentID references the student participant.
	StudentID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_room_pair,priority:1" json:"student_id"`
	// TutorID references the tutor participant.
	TutorID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_room_pair,priority:2;index" json:"tutor_id"`
	// CreatedAt is the timestamp when the room was first created.
	CreatedAt time.Time `json:"created_at"`
	// LastMessageAt moves forward with every persisted message.
	LastMessageAt time.Time `gorm:"index" json:"last_message_at"`
	// IsActive is cleared on soft deactivation. Rooms are never hard-deleted
	// in normal operation.
	IsActive bool `gorm:"not null;default:true" json:"is_active"`

	Student  *User     `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"-"`
	Tutor    *User     `gorm:"foreignKey:TutorID;constraint:OnDelete:CASCADE" json:"-"`
	Messages []Message `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"-"`
}

// RoleOf returns the role userID plays in the room, if any.
func (r *ChatRoom) RoleOf(userID string) (Role, bool) {
	switch userID {
	case "":
		return "", false
	case r.StudentID:
		return RoleStudent, true
	case r.TutorID:
		return RoleTutor, true
	}
	return "", false
}

// PartnerOf returns the other participant's ID, or "" if userID is not a member.
func (r *ChatRoom) PartnerOf(userID string) string {
	switch userID {
	case r.StudentID:
		return r.TutorID
	case r.TutorID:
		return r.StudentID
	}
	return ""
}
