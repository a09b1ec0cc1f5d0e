package storage

import (
	"context"
	"errors"
	"time"

	"tutorlink/backend/internal/models"
)

const (
	presenceOnlineKey  = "presence:online"
	presenceUserPrefix = "presence:user:"
)

// SetPresence records a presence transition on the user row and, when Redis
// is configured, in the shared presence mirror. A failed mirror write does
// not undo the row update.
func (s *Service) SetPresence(ctx context.Context, userID string, online bool, at time.Time) error {
	dbErr := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"is_online":     online,
			"last_activity": at.UTC(),
		}).Error

	if s.Redis == nil {
		return dbErr
	}

	pipe := s.Redis.TxPipeline()
	if online {
		pipe.SAdd(ctx, presenceOnlineKey, userID)
	} else {
		pipe.SRem(ctx, presenceOnlineKey, userID)
	}
	flag := "0"
	if online {
		flag = "1"
	}
	pipe.HSet(ctx, presenceUserPrefix+userID, "online", flag, "last_activity", at.Unix())
	_, redisErr := pipe.Exec(ctx)

	return errors.Join(dbErr, redisErr)
}

// OnlineUserIDs lists users currently marked online, from Redis when
// available and from the user table otherwise.
func (s *Service) OnlineUserIDs(ctx context.Context) ([]string, error) {
	if s.Redis != nil {
		return s.Redis.SMembers(ctx, presenceOnlineKey).Result()
	}

	var ids []string
	if err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("is_online = ?", true).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
