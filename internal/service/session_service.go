package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/ridgeline-io/datagate/internal/domain/auth"
	"github.com/ridgeline-io/datagate/internal/domain/session"
)

// ErrBadCredentials is returned by Login on an unknown username,
// disabled credential, or password mismatch. It deliberately does not
// distinguish which, to avoid leaking account existence.
var ErrBadCredentials = errors.New("bad credentials")

// ErrInvalidToken and ErrExpiredToken are returned by Resolve.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token     string
	Role      auth.Role
	ExpiresAt time.Time
}

// SessionService implements the Auth/Session Registry (C6): login
// against the admin-seeded credential table, and token resolution for
// the Gate Middleware.
type SessionService struct {
	credentials auth.CredentialStore
	sessions    session.SessionStore
	logger      *slog.Logger
}

// NewSessionService constructs a SessionService.
func NewSessionService(credentials auth.CredentialStore, sessions session.SessionStore, logger *slog.Logger) *SessionService {
	return &SessionService{credentials: credentials, sessions: sessions, logger: logger}
}

// Login verifies username/password against the credential store and,
// on success, mints a new opaque session token with a fixed 24h expiry.
func (s *SessionService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	cred, err := s.credentials.GetCredential(ctx, username)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("look up credential: %w", err)
	}
	if !cred.Active {
		return nil, ErrBadCredentials
	}

	match, err := argon2id.ComparePasswordAndHash(password, cred.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("compare password hash: %w", err)
	}
	if !match {
		return nil, ErrBadCredentials
	}

	token, err := session.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	now := time.Now().UTC()
	sess := &session.Session{
		Token:     token,
		Username:  cred.Username,
		Role:      cred.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(session.TTL),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &LoginResult{Token: token, Role: cred.Role, ExpiresAt: sess.ExpiresAt}, nil
}

// Resolve looks up the session for token. An absent token yields
// ErrInvalidToken; an expired one yields ErrExpiredToken and is purged.
func (s *SessionService) Resolve(ctx context.Context, token string) (*session.Session, error) {
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("look up session: %w", err)
	}
	if sess.IsExpired() {
		if derr := s.sessions.Delete(ctx, token); derr != nil {
			s.logger.Warn("failed to purge expired session", "error", derr)
		}
		return nil, ErrExpiredToken
	}
	return sess, nil
}
