package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"tutorlink/backend/internal/auth"
	"tutorlink/backend/internal/chathub"
	"tutorlink/backend/internal/models"
	"tutorlink/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

type userSummary struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	UserType models.Role `json:"user_type"`
	IsOnline bool        `json:"is_online"`
}

type lastMessage struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	SenderID  string    `json:"sender_id"`
}

type roomResponse struct {
	ID            string       `json:"id"`
	OtherUser     *userSummary `json:"other_user"`
	CreatedAt     time.Time    `json:"created_at"`
	LastMessageAt time.Time    `json:"last_message_at"`
	LastMessage   *lastMessage `json:"last_message"`
	UnreadCount   int64        `json:"unread_count"`
}

type messageSender struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	UserType models.Role `json:"user_type"`
}

type messageResponse struct {
	ID          string             `json:"id"`
	Content     string             `json:"content"`
	MessageType models.MessageKind `json:"message_type"`
	IsRead      bool               `json:"is_read"`
	CreatedAt   time.Time          `json:"created_at"`
	Sender      messageSender      `json:"sender"`
}

type createRoomRequest struct {
	TutorID string `json:"tutor_id"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (h *Handler) summarizeUser(u *models.User) *userSummary {
	if u == nil {
		return nil
	}
	online := u.IsOnline
	if h.Presence != nil {
		online = h.Presence.IsOnline(u.ID)
	}
	return &userSummary{ID: u.ID, Name: u.FullName(), UserType: u.UserType, IsOnline: online}
}

func (h *Handler) toRoomResponse(s storage.RoomSummary) roomResponse {
	resp := roomResponse{
		ID:            s.Room.ID,
		OtherUser:     h.summarizeUser(s.Partner),
		CreatedAt:     s.Room.CreatedAt,
		LastMessageAt: s.Room.LastMessageAt,
		UnreadCount:   s.UnreadCount,
	}
	if m := s.LastMessage; m != nil {
		resp.LastMessage = &lastMessage{Content: m.Content, CreatedAt: m.CreatedAt, SenderID: m.SenderID}
	}
	return resp
}

func toMessageResponse(m *models.Message, sender *models.User) messageResponse {
	resp := messageResponse{
		ID:          m.ID,
		Content:     m.Content,
		MessageType: m.MessageType,
		IsRead:      m.IsRead,
		CreatedAt:   m.CreatedAt,
		Sender:      messageSender{ID: m.SenderID},
	}
	if sender != nil {
		resp.Sender.Name = sender.FullName()
		resp.Sender.UserType = sender.UserType
	}
	return resp
}

// ListRooms returns the caller's active rooms, most recent first.
func (h *Handler) ListRooms(c *gin.Context) {
	id := identityFrom(c)
	rooms, err := h.Store.ListRoomsForUser(c.Request.Context(), id.UserID)
	if err != nil {
		LoggerFrom(c).Error().Err(err).Msg("list rooms failed")
		fail(c, http.StatusInternalServerError, "could not load chat rooms")
		return
	}

	out := make([]roomResponse, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, h.toRoomResponse(r))
	}
	c.JSON(http.StatusOK, out)
}

// CreateRoom returns the caller's room with a tutor, creating it on first
// contact. Only students open rooms.
func (h *Handler) CreateRoom(c *gin.Context) {
	id := identityFrom(c)
	if id.UserType != models.RoleStudent {
		fail(c, http.StatusForbidden, "only students can create chat rooms")
		return
	}

	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.TutorID) == "" {
		fail(c, http.StatusBadRequest, "tutor_id is required")
		return
	}

	ctx := c.Request.Context()
	room, created, err := h.Store.GetOrCreateRoom(ctx, id.UserID, req.TutorID)
	switch {
	case errors.Is(err, storage.ErrUserNotFound), errors.Is(err, storage.ErrInvalidPair):
		fail(c, http.StatusNotFound, "tutor not found")
		return
	case err != nil:
		LoggerFrom(c).Error().Err(err).Msg("get or create room failed")
		fail(c, http.StatusInternalServerError, "could not create chat room")
		return
	}

	tutor, err := h.Store.GetUserByID(ctx, room.TutorID)
	if err != nil {
		LoggerFrom(c).Warn().Err(err).Msg("tutor lookup failed after room creation")
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, h.toRoomResponse(storage.RoomSummary{Room: *room, Partner: tutor}))
}

// memberRoom runs the room access check for the caller, writing the error
// response itself when access is refused.
func (h *Handler) memberRoom(c *gin.Context, id *auth.Identity) (*models.ChatRoom, bool) {
	d := h.Hub.Access.Authorize(c.Request.Context(), id, c.Param("room_id"))
	if d.Allowed {
		return d.Room, true
	}
	switch d.Reason {
	case chathub.ReasonRoomNotFound:
		fail(c, http.StatusNotFound, "chat room not found")
	case chathub.ReasonLookupFailed:
		fail(c, http.StatusInternalServerError, "could not load chat room")
	default:
		fail(c, http.StatusForbidden, "access denied")
	}
	return nil, false
}

// ListMessages returns a room's history, oldest first.
func (h *Handler) ListMessages(c *gin.Context) {
	room, ok := h.memberRoom(c, identityFrom(c))
	if !ok {
		return
	}

	msgs, err := h.Store.GetMessages(c.Request.Context(), room.ID)
	if err != nil {
		LoggerFrom(c).Error().Err(err).Msg("get messages failed")
		fail(c, http.StatusInternalServerError, "could not load messages")
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, toMessageResponse(&msgs[i], msgs[i].Sender))
	}
	c.JSON(http.StatusOK, out)
}

// SendMessage persists a message posted over REST and pushes it to the
// room's live sessions.
func (h *Handler) SendMessage(c *gin.Context) {
	id := identityFrom(c)
	room, ok := h.memberRoom(c, id)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		fail(c, http.StatusBadRequest, "content is required")
		return
	}

	msg, err := h.Store.CreateMessage(c.Request.Context(), room.ID, id.UserID, req.Content, models.KindText)
	if err != nil {
		LoggerFrom(c).Error().Err(err).Msg("create message failed")
		fail(c, http.StatusInternalServerError, "could not send message")
		return
	}
	h.Hub.Publish(room.ID, msg, id.Name)

	resp := toMessageResponse(msg, nil)
	resp.Sender.Name = id.Name
	resp.Sender.UserType = id.UserType
	c.JSON(http.StatusCreated, resp)
}

// MarkRead marks the partner's messages in the room as read.
func (h *Handler) MarkRead(c *gin.Context) {
	id := identityFrom(c)
	room, ok := h.memberRoom(c, id)
	if !ok {
		return
	}

	n, err := h.Store.MarkRoomRead(c.Request.Context(), room.ID, id.UserID)
	if err != nil {
		LoggerFrom(c).Error().Err(err).Msg("mark read failed")
		fail(c, http.StatusInternalServerError, "could not mark messages read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}
