package auth

import (
	"context"
	"errors"
)

// ErrUserNotFound is returned when a credential is not found.
var ErrUserNotFound = errors.New("user not found")

// CredentialStore provides credential lookup for login. This interface
// is defined in the domain to avoid circular imports. Implementations:
// in-memory (tests), sqlite-backed (serve).
type CredentialStore interface {
	// GetCredential retrieves a credential by username.
	// Returns ErrUserNotFound if the username is unknown.
	GetCredential(ctx context.Context, username string) (*Credential, error)
}
