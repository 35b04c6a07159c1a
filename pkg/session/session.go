package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/idsync/pkg/identity"
	"github.com/platinummonkey/idsync/pkg/notify"
)

// DefaultTTL is the session lifetime when none is configured
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned for unknown or expired sessions
var ErrNotFound = errors.New("session not found")

// Session is the server-side state of one signed-in browser. Claims are
// replaced wholesale on every login callback.
type Session struct {
	ID        string          `json:"id"`
	Claims    identity.Claims `json:"claims"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// State returns the auth state the session represents
func (s *Session) State() identity.AuthState {
	if s == nil {
		return identity.Unauthenticated
	}
	return identity.Authenticated(s.Claims)
}

// Expired reports whether the session is past its expiry at now
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store persists sessions and their flash queues
type Store interface {
	Create(ctx context.Context, claims identity.Claims) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	PushFlash(ctx context.Context, id string, notice notify.Notice) error
	PopFlash(ctx context.Context, id string) ([]notify.Notice, error)
}

func newSession(claims identity.Claims, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Claims:    claims,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}
