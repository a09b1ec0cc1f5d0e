package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"tutorlink/backend/internal/models"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers map[string]*models.User

func (s stubUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

const secret = "test-secret-0123456789"

func newTestAuthenticator() *Authenticator {
	users := stubUsers{
		"u1": {ID: "u1", FirstName: "Mai", LastName: "Pham", UserType: models.RoleTutor},
	}
	return NewAuthenticator(secret, "tutorlink-test", time.Hour, users)
}

func TestIssueAndAuthenticate(t *testing.T) {
	a := newTestAuthenticator()

	token, err := a.IssueToken("u1")
	require.NoError(t, err)

	id, err := a.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: "u1", Name: "Mai Pham", UserType: models.RoleTutor}, id)
}

func TestAuthenticate_Rejects(t *testing.T) {
	a := newTestAuthenticator()
	good, err := a.IssueToken("u1")
	require.NoError(t, err)

	expired := newTestAuthenticator()
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.IssueToken("u1")
	require.NoError(t, err)

	otherIssuer := NewAuthenticator(secret, "someone-else", time.Hour, stubUsers{})
	foreignToken, err := otherIssuer.IssueToken("u1")
	require.NoError(t, err)

	wrongKey := NewAuthenticator("another-secret-987654", "tutorlink-test", time.Hour, stubUsers{})
	forgedToken, err := wrongKey.IssueToken("u1")
	require.NoError(t, err)

	unknownUser, err := a.IssueToken("ghost")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "u1", Issuer: "tutorlink-test"})
	noneToken, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"tampered":     good + "x",
		"expired":      expiredToken,
		"wrong issuer": foreignToken,
		"wrong key":    forgedToken,
		"unknown user": unknownUser,
		"alg none":     noneToken,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			id, err := a.Authenticate(context.Background(), token)
			assert.Nil(t, id)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}
