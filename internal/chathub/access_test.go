package chathub

import (
	"context"
	"errors"
	"testing"

	"tutorlink/backend/internal/auth"
	"tutorlink/backend/internal/models"
	"tutorlink/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func testRoom() *models.ChatRoom {
	return &models.ChatRoom{ID: "room-1", StudentID: "stu-1", TutorID: "tut-1", IsActive: true}
}

func TestAccessChecker_Authorize(t *testing.T) {
	cases := []struct {
		name    string
		id      *auth.Identity
		allowed bool
		role    models.Role
		reason  string
	}{
		{"room student", &auth.Identity{UserID: "stu-1", UserType: models.RoleStudent}, true, models.RoleStudent, ""},
		{"room tutor", &auth.Identity{UserID: "tut-1", UserType: models.RoleTutor}, true, models.RoleTutor, ""},
		{"other student", &auth.Identity{UserID: "stu-2", UserType: models.RoleStudent}, false, "", ReasonNotMember},
		{"other tutor", &auth.Identity{UserID: "tut-2", UserType: models.RoleTutor}, false, "", ReasonNotMember},
		{"tutor id claiming student type", &auth.Identity{UserID: "tut-1", UserType: models.RoleStudent}, false, "", ReasonNotMember},
		{"student id claiming tutor type", &auth.Identity{UserID: "stu-1", UserType: models.RoleTutor}, false, "", ReasonNotMember},
		{"unknown user type", &auth.Identity{UserID: "stu-1", UserType: "admin"}, false, "", ReasonNotMember},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := new(MockStore)
			store.On("GetRoomByID", mock.Anything, "room-1").Return(testRoom(), nil)

			d := NewAccessChecker(store).Authorize(context.Background(), tc.id, "room-1")
			assert.Equal(t, tc.allowed, d.Allowed)
			assert.Equal(t, tc.role, d.Role)
			assert.Equal(t, tc.reason, d.Reason)
			if tc.allowed {
				assert.Equal(t, "room-1", d.Room.ID)
			}
		})
	}
}

func TestAccessChecker_Unauthenticated(t *testing.T) {
	store := new(MockStore)
	a := NewAccessChecker(store)

	assert.Equal(t, ReasonUnauthenticated, a.Authorize(context.Background(), nil, "room-1").Reason)
	assert.Equal(t, ReasonUnauthenticated, a.Authorize(context.Background(), &auth.Identity{}, "room-1").Reason)
	store.AssertNotCalled(t, "GetRoomByID", mock.Anything, mock.Anything)
}

func TestAccessChecker_RoomLookup(t *testing.T) {
	id := &auth.Identity{UserID: "stu-1", UserType: models.RoleStudent}

	store := new(MockStore)
	store.On("GetRoomByID", mock.Anything, "gone").Return(nil, storage.ErrRoomNotFound)
	store.On("GetRoomByID", mock.Anything, "broken").Return(nil, errors.New("connection reset"))
	a := NewAccessChecker(store)

	d := a.Authorize(context.Background(), id, "gone")
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonRoomNotFound, d.Reason)

	d = a.Authorize(context.Background(), id, "broken")
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonLookupFailed, d.Reason)
}

func TestAccessChecker_Idempotent(t *testing.T) {
	store := new(MockStore)
	store.On("GetRoomByID", mock.Anything, "room-1").Return(testRoom(), nil)
	a := NewAccessChecker(store)
	id := &auth.Identity{UserID: "tut-1", UserType: models.RoleTutor}

	first := a.Authorize(context.Background(), id, "room-1")
	second := a.Authorize(context.Background(), id, "room-1")
	assert.Equal(t, first, second)
	store.AssertNumberOfCalls(t, "GetRoomByID", 2)
}
