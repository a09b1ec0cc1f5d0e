package chathub

import (
	"context"
	"sync"

	"tutorlink/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockStore is a testify mock of Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	args := m.Called(ctx, roomID)
	room, _ := args.Get(0).(*models.ChatRoom)
	return room, args.Error(1)
}

func (m *MockStore) CreateMessage(ctx context.Context, roomID, senderID, content string, kind models.MessageKind) (*models.Message, error) {
	args := m.Called(ctx, roomID, senderID, content, kind)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

// MockPresence records SetOnline calls in order.
type MockPresence struct {
	mu    sync.Mutex
	calls []presenceCall
}

type presenceCall struct {
	UserID string
	Online bool
}

func (m *MockPresence) SetOnline(_ context.Context, userID string, online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, presenceCall{userID, online})
}

func (m *MockPresence) Calls() []presenceCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]presenceCall(nil), m.calls...)
}

// fakeClient is an in-memory Client. refuse makes every delivery fail.
type fakeClient struct {
	userID string
	roomID string

	mu     sync.Mutex
	events []models.OutboundEvent
	refuse bool
	closes int
}

func newFakeClient(userID, roomID string) *fakeClient {
	return &fakeClient{userID: userID, roomID: roomID}
}

func (c *fakeClient) GetUserID() string { return c.userID }
func (c *fakeClient) GetRoomID() string { return c.roomID }

func (c *fakeClient) Deliver(ev models.OutboundEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refuse || c.closes > 0 {
		return false
	}
	c.events = append(c.events, ev)
	return true
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
}

func (c *fakeClient) Events() []models.OutboundEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.OutboundEvent(nil), c.events...)
}

func (c *fakeClient) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes > 0
}
