// Package memory provides in-memory implementations of outbound ports,
// used in dev mode and exercised directly by unit tests.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ridgeline-io/datagate/internal/domain/session"
)

// DefaultCleanupInterval is the default sweep period for expired sessions.
const DefaultCleanupInterval = 1 * time.Minute

// SessionStore implements session.SessionStore with an in-memory map.
// Thread-safe for concurrent access. A background cleanup goroutine
// removes expired sessions periodically; Get returns an expired session
// as-is rather than filtering it, leaving eviction to the caller or the
// sweep.
type SessionStore struct {
	mu              sync.RWMutex
	sessions        map[string]*session.Session
	stopChan        chan struct{}
	wg              sync.WaitGroup
	cleanupInterval time.Duration
	once            sync.Once
}

// NewSessionStore creates a new in-memory session store with the default cleanup interval.
func NewSessionStore() *SessionStore {
	return NewSessionStoreWithConfig(DefaultCleanupInterval)
}

// NewSessionStoreWithConfig creates a new in-memory session store with a custom cleanup interval.
func NewSessionStoreWithConfig(cleanupInterval time.Duration) *SessionStore {
	return &SessionStore{
		sessions:        make(map[string]*session.Session),
		stopChan:        make(chan struct{}),
		cleanupInterval: cleanupInterval,
	}
}

// StartCleanup starts the background cleanup goroutine. Call Stop to
// shut it down gracefully, or cancel ctx.
func (s *SessionStore) StartCleanup(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.cleanup()
			}
		}
	}()
}

func (s *SessionStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0
	for token, sess := range s.sessions {
		if sess.IsExpired() {
			delete(s.sessions, token)
			cleaned++
		}
	}
	if cleaned > 0 {
		slog.Debug("cleaned expired sessions", "count", cleaned)
	}
}

// Stop stops the background cleanup goroutine and waits for it to exit.
// Safe to call multiple times.
func (s *SessionStore) Stop() {
	s.once.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

// Create stores a new session.
func (s *SessionStore) Create(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Token] = copySession(sess)
	return nil
}

// Get retrieves a session by token.
// Returns session.ErrSessionNotFound only if the token is unknown. An
// expired session is still returned (with Session.IsExpired() true) so
// the caller can distinguish EXPIRED_TOKEN from INVALID_TOKEN; deletion
// is left to the caller or the background sweep.
func (s *SessionStore) Get(ctx context.Context, token string) (*session.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return copySession(sess), nil
}

// Delete removes a session.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

// Size returns the number of sessions currently stored, for tests.
func (s *SessionStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func copySession(sess *session.Session) *session.Session {
	cp := *sess
	return &cp
}

// Compile-time interface verification.
var _ session.SessionStore = (*SessionStore)(nil)
