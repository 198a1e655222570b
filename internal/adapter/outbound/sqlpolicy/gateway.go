// Package sqlpolicy implements the Policy Store Gateway (C1) over
// database/sql and modernc.org/sqlite, against a POLICY_DATABASE_URL
// DSN. It also backs the admin-seeded credential table consulted at
// login.
package sqlpolicy

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// connMaxLifetime bounds how long a pooled connection is reused before
// being recycled, mirroring the original's pool_recycle=3600.
const connMaxLifetime = 1 * time.Hour

const schema = `
CREATE TABLE IF NOT EXISTS admin_user (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'admin',
	active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rate_limit_policy (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	level TEXT NOT NULL,
	role TEXT,
	username TEXT,
	endpoint TEXT,
	window_sec INTEGER NOT NULL,
	max_calls INTEGER NOT NULL,
	block_sec INTEGER NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	priority INTEGER NOT NULL DEFAULT 0,
	notes TEXT,
	created_by TEXT,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rate_limit_block (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL,
	endpoint TEXT NOT NULL,
	block_until TEXT NOT NULL,
	reason TEXT,
	condition TEXT,
	created_by TEXT,
	created_at TEXT NOT NULL,
	cleared_at TEXT,
	cleared_by TEXT
);

CREATE TABLE IF NOT EXISTS rate_limit_event (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts TEXT NOT NULL,
	username TEXT NOT NULL,
	role TEXT NOT NULL,
	endpoint TEXT NOT NULL,
	decision TEXT NOT NULL,
	rule_source TEXT NOT NULL,
	window_sec INTEGER,
	max_calls INTEGER,
	block_sec INTEGER,
	calls INTEGER,
	reason TEXT
);
`

// Gateway holds the pooled connection to the policy database and
// implements ratelimit.PolicyStore and auth.CredentialStore.
type Gateway struct {
	db *sql.DB
}

// Open connects to dsn, applies a liveness check, and ensures the
// schema exists. dsn is a modernc.org/sqlite DSN, e.g. "file:policy.db".
func Open(ctx context.Context, dsn string) (*Gateway, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open policy database: %w", err)
	}
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping policy database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply policy database schema: %w", err)
	}

	return &Gateway{db: db}, nil
}

// Close releases the underlying connection pool.
func (g *Gateway) Close() error {
	return g.db.Close()
}

const sqliteTimeLayout = "2006-01-02T15:04:05.999999999"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
