package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the closed set of account kinds that may take part in a chat room.
type Role string

const (
	RoleStudent Role = "student"
	RoleTutor   Role = "tutor"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTutor
}

// User is a marketplace account. Profile details (subjects, rates, reviews)
// live with the profile service; the chat engine only needs identity,
// display name, role and presence.
type User struct {
	ID        string `gorm:"primaryKey;type:varchar(36)" json:"id"` // UUID
	Email     string `gorm:"uniqueIndex;not null" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	UserType  Role   `gorm:"type:varchar(10);not null;index:idx_user_type_created,priority:1" json:"user_type"`
	// IsOnline and LastActivity are written by the presence tracker.
	IsOnline     bool      `gorm:"index" json:"is_online"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `gorm:"index:idx_user_type_created,priority:2" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BeforeCreate generates a UUID for the user when none was set.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.LastActivity.IsZero() {
		u.LastActivity = time.Now().UTC()
	}
	return
}

// FullName returns "First Last", trimmed when either part is empty.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
