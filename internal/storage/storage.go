package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutorlink/backend/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrRoomNotFound = errors.New("chat room not found")
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidPair is returned when a room is requested for accounts that
	// are not one student and one tutor.
	ErrInvalidPair = errors.New("room requires one student and one tutor")
)

// Storage is the persistence gateway used by the chat engine and the REST layer.
type Storage interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	SetPresence(ctx context.Context, userID string, online bool, at time.Time) error
	OnlineUserIDs(ctx context.Context) ([]string, error)

	GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error)
	GetOrCreateRoom(ctx context.Context, studentID, tutorID string) (*models.ChatRoom, bool, error)
	ListRoomsForUser(ctx context.Context, userID string) ([]RoomSummary, error)
	UpdateRoomLastMessageAt(ctx context.Context, roomID string, at time.Time) error
	DeactivateRoom(ctx context.Context, roomID string) error

	CreateMessage(ctx context.Context, roomID, senderID, content string, kind models.MessageKind) (*models.Message, error)
	GetMessages(ctx context.Context, roomID string) ([]models.Message, error)
	MarkRoomRead(ctx context.Context, roomID, readerID string) (int64, error)
}

// RoomSummary is a room as seen by one of its participants.
type RoomSummary struct {
	Room        models.ChatRoom
	Partner     *models.User
	LastMessage *models.Message
	UnreadCount int64
}

// Service implements Storage on top of GORM, with an optional Redis mirror
// for presence.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client

	now func() time.Time
}

var _ Storage = (*Service)(nil)

// NewStorageService Constructor. rdb may be nil.
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		now:   time.Now,
	}
}

// timestamp returns the current time at the precision every supported
// database round-trips without loss.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Service) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SaveUser inserts or updates a user.
func (s *Service) SaveUser(ctx context.Context, user *models.User) error {
	return s.DB.WithContext(ctx).Save(user).Error
}

func (s *Service) GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	var room models.ChatRoom

	err := s.DB.WithContext(ctx).Where("id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomID, err)
	}
	return &room, nil
}

// GetOrCreateRoom returns the unique room for the pair, creating it on first
// contact. created reports whether this call inserted it.
func (s *Service) GetOrCreateRoom(ctx context.Context, studentID, tutorID string) (*models.ChatRoom, bool, error) {
	student, err := s.GetUserByID(ctx, studentID)
	if err != nil {
		return nil, false, err
	}
	tutor, err := s.GetUserByID(ctx, tutorID)
	if err != nil {
		return nil, false, err
	}
	if student.UserType != models.RoleStudent || tutor.UserType != models.RoleTutor {
		return nil, false, ErrInvalidPair
	}

	now := s.timestamp()
	var room models.ChatRoom
	result := s.DB.WithContext(ctx).
		Where(models.ChatRoom{StudentID: studentID, TutorID: tutorID}).
		Attrs(models.ChatRoom{ID: uuid.NewString(), IsActive: true, CreatedAt: now, LastMessageAt: now}).
		FirstOrCreate(&room)
	if result.Error != nil {
		// A concurrent first contact may have won the unique index.
		var existing models.ChatRoom
		if err := s.DB.WithContext(ctx).
			Where("student_id = ? AND tutor_id = ?", studentID, tutorID).
			First(&existing).Error; err == nil {
			return &existing, false, nil
		}
		return nil, false, fmt.Errorf("get or create room: %w", result.Error)
	}
	return &room, result.RowsAffected > 0, nil
}

// ListRoomsForUser returns the user's active rooms, most recent activity first.
func (s *Service) ListRoomsForUser(ctx context.Context, userID string) ([]RoomSummary, error) {
	db := s.DB.WithContext(ctx)

	var rooms []models.ChatRoom
	if err := db.Preload("Student").Preload("Tutor").
		Where("is_active = ?", true).
		Where("(student_id = ? OR tutor_id = ?)", userID, userID).
		Order("last_message_at DESC").
		Find(&rooms).Error; err != nil {
		return nil, err
	}

	out := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summary := RoomSummary{Room: room, Partner: room.Tutor}
		if room.TutorID == userID {
			summary.Partner = room.Student
		}

		var last []models.Message
		if err := db.Where("room_id = ?", room.ID).Order("created_at DESC").Limit(1).Find(&last).Error; err != nil {
			return nil, err
		}
		if len(last) > 0 {
			summary.LastMessage = &last[0]
		}

		if err := db.Model(&models.Message{}).
			Where("room_id = ? AND sender_id <> ? AND is_read = ?", room.ID, userID, false).
			Count(&summary.UnreadCount).Error; err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

// UpdateRoomLastMessageAt moves the room's last-message time forward. An
// older timestamp leaves the room untouched.
func (s *Service) UpdateRoomLastMessageAt(ctx context.Context, roomID string, at time.Time) error {
	return s.DB.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("id = ? AND last_message_at < ?", roomID, at).
		Update("last_message_at", at).Error
}

// DeactivateRoom soft-deletes a room.
func (s *Service) DeactivateRoom(ctx context.Context, roomID string) error {
	result := s.DB.WithContext(ctx).Model(&models.ChatRoom{}).
		Where("id = ?", roomID).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// CreateMessage appends a message to the room's log and advances the room's
// last-message time in the same transaction. The room row is locked so
// concurrent senders are accepted one at a time, and each message gets a
// creation time strictly after the previous one.
func (s *Service) CreateMessage(ctx context.Context, roomID, senderID, content string, kind models.MessageKind) (*models.Message, error) {
	if kind == "" {
		kind = models.KindText
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown message kind %q", kind)
	}

	var msg *models.Message
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.ChatRoom
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", roomID).First(&room).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoomNotFound
		}
		if err != nil {
			return err
		}

		createdAt := s.timestamp()
		if !createdAt.After(room.LastMessageAt) {
			createdAt = room.LastMessageAt.UTC().Add(time.Microsecond)
		}

		msg = &models.Message{
			ID:          uuid.NewString(),
			RoomID:      roomID,
			SenderID:    senderID,
			Content:     content,
			MessageType: kind,
			CreatedAt:   createdAt,
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}

		txs := &Service{DB: tx, now: s.now}
		return txs.UpdateRoomLastMessageAt(ctx, roomID, createdAt)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// GetMessages returns the room's history in acceptance order.
func (s *Service) GetMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	var history []models.Message
	if err := s.DB.WithContext(ctx).Preload("Sender").
		Where("room_id = ?", roomID).
		Order("created_at ASC, id ASC").
		Find(&history).Error; err != nil {
		return nil, err
	}
	return history, nil
}

// MarkRoomRead flags every unread message the reader did not send.
func (s *Service) MarkRoomRead(ctx context.Context, roomID, readerID string) (int64, error) {
	result := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("room_id = ? AND sender_id <> ? AND is_read = ?", roomID, readerID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}
