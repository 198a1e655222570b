// Package session manages authenticated sessions issued by login and
// consumed by the gate middleware on every subsequent request.
package session

import (
	"time"

	"github.com/ridgeline-io/datagate/internal/domain/auth"
)

// Session tracks an authenticated caller across requests. The gate
// looks a Session up by Token on every guarded request to resolve the
// scope selectors (Username, Role) fed into policy resolution.
type Session struct {
	// Token is a cryptographically random bearer token, 32 bytes hex-encoded.
	Token string
	// Username identifies the credential this session was issued for.
	Username string
	// Role is cached from the Credential at login time.
	Role auth.Role
	// CreatedAt is when the session was issued (UTC).
	CreatedAt time.Time
	// ExpiresAt is when the session will expire (UTC).
	ExpiresAt time.Time
}

// IsExpired reports whether the session has passed its fixed expiry.
func (s *Session) IsExpired() bool {
	return time.Now().UTC().After(s.ExpiresAt)
}
