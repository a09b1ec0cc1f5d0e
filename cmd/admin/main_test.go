package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tutorlink/backend/internal/auth"
	"tutorlink/backend/internal/models"
	"tutorlink/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *storage.Service {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "admin.db"))
	require.NoError(t, err)
	require.NoError(t, storage.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return storage.NewStorageService(db, nil)
}

func TestCreateUser(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	u, err := createUser(ctx, s, models.RoleTutor, "tara@example.com", "Tara", "Tutor")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)

	got, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleTutor, got.UserType)

	_, err = createUser(ctx, s, "admin", "a@example.com", "A", "B")
	assert.Error(t, err)
}

func TestIssueToken(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	authn := auth.NewAuthenticator("admin-test-secret-0123", "tutorlink-test", time.Hour, s)

	u, err := createUser(ctx, s, models.RoleStudent, "sam@example.com", "Sam", "Student")
	require.NoError(t, err)

	token, err := issueToken(ctx, s, authn, u.ID)
	require.NoError(t, err)
	id, err := authn.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.UserID)
	assert.Equal(t, "Sam Student", id.Name)

	_, err = issueToken(ctx, s, authn, "missing")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}
