package session

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned when a session token is unknown.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore provides session persistence. This interface is defined
// in the domain to avoid circular imports. Implementations: in-memory
// (dev/test); a durable store can be added the same way the other
// outbound ports are.
type SessionStore interface {
	// Create stores a new session.
	Create(ctx context.Context, sess *Session) error

	// Get retrieves a session by token. Returns ErrSessionNotFound only
	// if the token is unknown; an expired session is still returned
	// (Session.IsExpired() true) so the caller can distinguish an
	// expired token from an invalid one.
	Get(ctx context.Context, token string) (*Session, error)

	// Delete removes a session, used on logout and on lazy expiry cleanup.
	Delete(ctx context.Context, token string) error
}
