// Package auth contains the domain types and logic for authenticating
// against the admin-seeded credential table.
package auth

import "time"

// Role identifies what an authenticated caller is allowed to do. The
// gate does not branch on Role itself -- it is handed to the policy
// resolver as a scope selector, and authorization is a property of the
// configured policies, not of this type.
type Role string

const (
	// RoleAdmin is the administrative role.
	RoleAdmin Role = "admin"
	// RoleUser is the standard role.
	RoleUser Role = "user"
)

// IsValid returns true if the role is a known value.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleUser:
		return true
	default:
		return false
	}
}

// Credential is a row in the admin-seeded credential table, checked
// during login. Verifying a submitted password against PasswordHash is
// the caller's responsibility; this type only carries the stored data.
type Credential struct {
	// Username is the unique login name.
	Username string
	// PasswordHash is the Argon2id PHC-format hash of the password.
	PasswordHash string
	// Role is the role granted on successful login.
	Role Role
	// Active gates whether the credential can still be used to log in.
	Active bool
	// CreatedAt is when the credential was created (UTC).
	CreatedAt time.Time
}
