package chathub

import (
	"context"
	"errors"
	"testing"
	"time"

	"tutorlink/backend/internal/auth"
	"tutorlink/backend/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	studentIdent = &auth.Identity{UserID: "stu-1", Name: "Sam Student", UserType: models.RoleStudent}
	tutorIdent   = &auth.Identity{UserID: "tut-1", Name: "Tara Tutor", UserType: models.RoleTutor}
)

type sessionFixture struct {
	hub      *Hub
	store    *MockStore
	presence *MockPresence
	metrics  *Metrics
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	store := new(MockStore)
	store.On("GetRoomByID", mock.Anything, "room-1").Return(testRoom(), nil)
	presence := &MockPresence{}
	metrics := NewMetrics(prometheus.NewRegistry())
	return &sessionFixture{
		hub:      NewHub(store, presence, nil, metrics),
		store:    store,
		presence: presence,
		metrics:  metrics,
	}
}

// open runs a session through authorization and activation.
func (f *sessionFixture) open(t *testing.T, id *auth.Identity, lang string) (*Session, *fakeClient) {
	t.Helper()
	s := f.hub.NewSession(id, "room-1", lang)
	require.True(t, s.Authorize(context.Background()))
	c := newFakeClient(id.UserID, "room-1")
	require.NoError(t, s.Activate(context.Background(), c))
	require.Equal(t, StateActive, s.State())
	return s, c
}

func TestSession_Lifecycle(t *testing.T) {
	f := newSessionFixture(t)
	s := f.hub.NewSession(studentIdent, "room-1", "en")
	assert.Equal(t, StateConnecting, s.State())

	require.True(t, s.Authorize(context.Background()))
	assert.Equal(t, StateAuthorized, s.State())
	assert.Equal(t, models.RoleStudent, s.Role())
	assert.False(t, s.Authorize(context.Background()), "authorize only runs from connecting")

	c := newFakeClient(studentIdent.UserID, "room-1")
	require.NoError(t, s.Activate(context.Background(), c))
	assert.Equal(t, StateActive, s.State())
	assert.Equal(t, 1, f.hub.Registry.Count("room-1"))
	assert.ErrorIs(t, s.Activate(context.Background(), c), ErrSessionState)

	s.Close(context.Background())
	s.Close(context.Background())
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, f.hub.Registry.Count("room-1"))
	assert.Equal(t, []presenceCall{{"stu-1", true}, {"stu-1", false}}, f.presence.Calls(), "cleanup runs once")
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Handshakes.WithLabelValues("accepted")))
}

func TestSession_RefusedNeverActivates(t *testing.T) {
	f := newSessionFixture(t)
	stranger := &auth.Identity{UserID: "stu-9", UserType: models.RoleStudent}
	s := f.hub.NewSession(stranger, "room-1", "en")

	assert.False(t, s.Authorize(context.Background()))
	assert.Equal(t, StateClosed, s.State())
	assert.ErrorIs(t, s.Activate(context.Background(), newFakeClient("stu-9", "room-1")), ErrSessionState)

	s.Close(context.Background())
	assert.Empty(t, f.presence.Calls())
	assert.Equal(t, 0, f.hub.Registry.Count("room-1"))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Handshakes.WithLabelValues("refused")))
}

func TestSession_CloseBeforeActivate(t *testing.T) {
	f := newSessionFixture(t)
	s := f.hub.NewSession(studentIdent, "room-1", "en")
	require.True(t, s.Authorize(context.Background()))

	s.Close(context.Background())
	assert.Equal(t, StateClosed, s.State())
	assert.Empty(t, f.presence.Calls())
}

func TestSession_MessageBroadcastIncludesSender(t *testing.T) {
	f := newSessionFixture(t)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f.store.On("CreateMessage", mock.Anything, "room-1", "stu-1", "Hello", models.KindText).
		Return(&models.Message{ID: "m1", RoomID: "room-1", SenderID: "stu-1", Content: "Hello", MessageType: models.KindText, CreatedAt: created}, nil)

	s, sc := f.open(t, studentIdent, "en")
	_, tc := f.open(t, tutorIdent, "en")

	s.HandlePayload(context.Background(), []byte(`{"type":"message","content":"Hello"}`))

	for _, c := range []*fakeClient{sc, tc} {
		evs := c.Events()
		require.Len(t, evs, 1)
		assert.Equal(t, models.EventMessage, evs[0].Type)
		assert.Equal(t, "m1", evs[0].Message.ID)
		assert.Equal(t, "Hello", evs[0].Message.Content)
		assert.Equal(t, "stu-1", evs[0].Message.SenderID)
		assert.Equal(t, "Sam Student", evs[0].Message.SenderName)
		assert.Equal(t, created, evs[0].Message.CreatedAt)
	}
	f.store.AssertExpectations(t)
}

func TestSession_MissingTypeIsMessage(t *testing.T) {
	f := newSessionFixture(t)
	f.store.On("CreateMessage", mock.Anything, "room-1", "stu-1", "  hi  ", models.KindText).
		Return(&models.Message{ID: "m1", SenderID: "stu-1", Content: "  hi  "}, nil)

	s, sc := f.open(t, studentIdent, "en")
	s.HandlePayload(context.Background(), []byte(`{"content":"  hi  "}`))

	require.Len(t, sc.Events(), 1)
	assert.Equal(t, "  hi  ", sc.Events()[0].Message.Content, "content is stored as sent")
}

func TestSession_TypingExcludesSender(t *testing.T) {
	f := newSessionFixture(t)
	s, sc := f.open(t, studentIdent, "en")
	_, tc := f.open(t, tutorIdent, "en")

	s.HandlePayload(context.Background(), []byte(`{"type":"typing","is_typing":true}`))
	s.HandlePayload(context.Background(), []byte(`{"type":"typing"}`))

	assert.Empty(t, sc.Events())
	evs := tc.Events()
	require.Len(t, evs, 2)
	assert.Equal(t, "stu-1", evs[0].UserID)
	assert.True(t, *evs[0].IsTyping)
	assert.False(t, *evs[1].IsTyping, "missing is_typing means false")
	f.store.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSession_ErrorsGoToSenderOnly(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    string
	}{
		{"malformed json", `{"type":`, "Invalid message format"},
		{"not an object", `"hello"`, "Invalid message format"},
		{"unknown type", `{"type":"reaction"}`, "Unknown event type"},
		{"missing content", `{"type":"message"}`, "Message content is required"},
		{"blank content", `{"type":"message","content":"   "}`, "Message content is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newSessionFixture(t)
			s, sc := f.open(t, studentIdent, "en")
			_, other := f.open(t, tutorIdent, "en")

			s.HandlePayload(context.Background(), []byte(tc.payload))

			evs := sc.Events()
			require.Len(t, evs, 1)
			assert.Equal(t, models.EventError, evs[0].Type)
			assert.Equal(t, tc.want, evs[0].Error)
			assert.Empty(t, other.Events())
			assert.Equal(t, StateActive, s.State(), "session stays open")
			f.store.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSession_PersistenceFailure(t *testing.T) {
	f := newSessionFixture(t)
	f.store.On("CreateMessage", mock.Anything, "room-1", "stu-1", "Hello", models.KindText).
		Return(nil, errors.New("disk full"))

	s, sc := f.open(t, studentIdent, "vi")
	_, tc := f.open(t, tutorIdent, "en")

	s.HandlePayload(context.Background(), []byte(`{"type":"message","content":"Hello"}`))

	evs := sc.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, models.EventError, evs[0].Type)
	assert.Equal(t, "Không thể gửi tin nhắn, vui lòng thử lại", evs[0].Error)
	assert.Empty(t, tc.Events(), "nothing is broadcast")
	assert.Equal(t, StateActive, s.State())
}

func TestSession_MalformedThenValid(t *testing.T) {
	f := newSessionFixture(t)
	f.store.On("CreateMessage", mock.Anything, "room-1", "stu-1", "ok", models.KindText).
		Return(&models.Message{ID: "m1", SenderID: "stu-1", Content: "ok"}, nil)

	s, sc := f.open(t, studentIdent, "en")
	s.HandlePayload(context.Background(), []byte(`not json`))
	s.HandlePayload(context.Background(), []byte(`{"type":"message","content":"ok"}`))

	evs := sc.Events()
	require.Len(t, evs, 2)
	assert.Equal(t, models.EventError, evs[0].Type)
	assert.Equal(t, models.EventMessage, evs[1].Type)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.InboundEvents.WithLabelValues("malformed", "rejected")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.InboundEvents.WithLabelValues(models.EventMessage, "ok")))
}

func TestSession_IgnoresPayloadAfterClose(t *testing.T) {
	f := newSessionFixture(t)
	s, sc := f.open(t, studentIdent, "en")
	s.Close(context.Background())

	s.HandlePayload(context.Background(), []byte(`{"type":"message","content":"late"}`))
	assert.Empty(t, sc.Events())
}

func TestSession_UndeliverableErrorClosesClient(t *testing.T) {
	f := newSessionFixture(t)
	s, sc := f.open(t, studentIdent, "en")
	sc.refuse = true

	s.HandlePayload(context.Background(), []byte(`{"type":"bogus"}`))
	assert.True(t, sc.Closed())
}

func TestHub_PublishAndShutdown(t *testing.T) {
	f := newSessionFixture(t)
	ss, sc := f.open(t, studentIdent, "en")
	ts, tc := f.open(t, tutorIdent, "en")

	n := f.hub.Publish("room-1", &models.Message{ID: "m9", SenderID: "tut-1", Content: "from rest"}, "Tara Tutor")
	assert.Equal(t, 2, n)
	assert.Len(t, sc.Events(), 1)
	assert.Len(t, tc.Events(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.hub.Shutdown(ctx), context.DeadlineExceeded, "sessions have not cleaned up yet")
	assert.True(t, sc.Closed())
	assert.True(t, tc.Closed())

	ss.Close(context.Background())
	ts.Close(context.Background())
	require.NoError(t, f.hub.Shutdown(context.Background()))
}

func TestHub_ActivateAfterShutdownIsRefused(t *testing.T) {
	f := newSessionFixture(t)
	s := f.hub.NewSession(studentIdent, "room-1", "en")
	require.True(t, s.Authorize(context.Background()))

	require.NoError(t, f.hub.Shutdown(context.Background()))
	assert.True(t, f.hub.Stopping())

	c := newFakeClient(studentIdent.UserID, "room-1")
	assert.ErrorIs(t, s.Activate(context.Background(), c), ErrHubStopped)
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, f.hub.Registry.Count("room-1"))
	assert.Empty(t, f.presence.Calls(), "refused session never flips presence")

	s.Close(context.Background())
	require.NoError(t, f.hub.Shutdown(context.Background()), "nothing left to drain")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "authorized", StateAuthorized.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}
