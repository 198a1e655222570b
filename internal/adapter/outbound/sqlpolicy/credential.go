package sqlpolicy

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ridgeline-io/datagate/internal/domain/auth"
)

// GetCredential retrieves an admin-seeded credential by username.
func (g *Gateway) GetCredential(ctx context.Context, username string) (*auth.Credential, error) {
	row := g.db.QueryRowContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM admin_user
		WHERE username = ?
	`, username)

	var (
		c         auth.Credential
		role      string
		active    int
		createdAt string
	)
	err := row.Scan(&c.Username, &c.PasswordHash, &role, &active, &createdAt)
	if err == sql.ErrNoRows {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}

	c.Role = auth.Role(role)
	c.Active = active != 0
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = t
	return &c, nil
}

// SeedAdminUser inserts an admin_user row if the username doesn't
// already exist, for dev-mode zero-configuration startup. It is a
// no-op when the username is already present.
func (g *Gateway) SeedAdminUser(ctx context.Context, username, passwordHash string, role auth.Role) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO admin_user (username, password_hash, role, active, created_at)
		VALUES (?, ?, ?, 1, ?)
	`, username, passwordHash, string(role), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}
	return nil
}

var _ auth.CredentialStore = (*Gateway)(nil)
