// Package auth issues and verifies the bearer tokens that identify a user on
// the REST API and the chat socket.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutorlink/backend/internal/models"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned for any token that does not resolve to a
// known user.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is an authenticated user as seen by the chat engine.
type Identity struct {
	UserID   string
	Name     string
	UserType models.Role
}

// UserLookup resolves token subjects to users.
type UserLookup interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
}

// Authenticator signs and verifies HS256 tokens.
type Authenticator struct {
	secret []byte
	issuer string
	ttl    time.Duration
	users  UserLookup
	now    func() time.Time
}

func NewAuthenticator(secret, issuer string, ttl time.Duration, users UserLookup) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		users:  users,
		now:    time.Now,
	}
}

// IssueToken creates a signed token whose subject is userID.
func (a *Authenticator) IssueToken(userID string) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Authenticate verifies the token and loads the user it names.
func (a *Authenticator) Authenticate(ctx context.Context, tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrUnauthenticated
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrUnauthenticated)
	}

	user, err := a.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	return &Identity{
		UserID:   user.ID,
		Name:     user.FullName(),
		UserType: user.UserType,
	}, nil
}
