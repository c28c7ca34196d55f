package core

import (
	"context"
	"time"
)

const (
	AuthSignedIn  AuthEventType = "signed_in"
	AuthSignedOut AuthEventType = "signed_out"
)

type (
	// User is the identity issued by the identity provider.
	User struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
		Email       string `json:"email"`
	}

	// Session is passed explicitly to every service call that reads or
	// writes owner-scoped records.
	Session struct {
		User      User      `json:"user"`
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
	}

	Credentials struct {
		Email    string
		Password string
	}

	AuthEventType string

	AuthEvent struct {
		Type AuthEventType
		User *User
		At   time.Time
	}

	// Identity is the boundary to the identity provider.
	Identity interface {
		CurrentUser(ctx context.Context, token string) (*User, error)
		OnAuthStateChange(fn func(AuthEvent)) (unsubscribe func())
		SignIn(ctx context.Context, creds Credentials) (*Session, error)
		SignOut(ctx context.Context, token string) error
	}
)

// OwnerID returns the id every query must be scoped to, or ErrAuthRequired
// when there is no usable session.
func (s *Session) OwnerID() (string, error) {
	if s == nil || s.User.ID == "" {
		return "", ErrAuthRequired
	}
	return s.User.ID, nil
}

// NewSession builds a session for an already authenticated user.
func NewSession(u User) *Session {
	return &Session{User: u}
}
