package chathub

import (
	"context"
	"errors"

	"tutorlink/backend/internal/auth"
	"tutorlink/backend/internal/models"
	"tutorlink/backend/internal/storage"

	"github.com/rs/zerolog/log"
)

// RoomFinder is the read side of the persistence gateway used for
// membership checks.
type RoomFinder interface {
	GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error)
}

// Denial reasons reported in Decision.Reason.
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonRoomNotFound    = "room not found"
	ReasonLookupFailed    = "room lookup failed"
	ReasonNotMember       = "not a member of this room"
)

// Decision is the outcome of an access check.
type Decision struct {
	Allowed bool
	Role    models.Role
	Room    *models.ChatRoom
	Reason  string
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// AccessChecker decides whether an identity may join a room: the room's
// student or the room's tutor, nobody else.
type AccessChecker struct {
	Rooms RoomFinder
}

func NewAccessChecker(rooms RoomFinder) *AccessChecker {
	return &AccessChecker{Rooms: rooms}
}

// Authorize is read-only and never returns an error; every failure is a
// denial.
func (a *AccessChecker) Authorize(ctx context.Context, id *auth.Identity, roomID string) Decision {
	if id == nil || id.UserID == "" {
		return deny(ReasonUnauthenticated)
	}

	room, err := a.Rooms.GetRoomByID(ctx, roomID)
	if errors.Is(err, storage.ErrRoomNotFound) {
		return deny(ReasonRoomNotFound)
	}
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Str("user_id", id.UserID).Msg("access check: room lookup failed")
		return deny(ReasonLookupFailed)
	}
	if room == nil {
		return deny(ReasonRoomNotFound)
	}

	var member bool
	switch id.UserType {
	case models.RoleStudent:
		member = room.StudentID == id.UserID
	case models.RoleTutor:
		member = room.TutorID == id.UserID
	}
	if !member {
		return deny(ReasonNotMember)
	}

	return Decision{Allowed: true, Role: id.UserType, Room: room}
}
