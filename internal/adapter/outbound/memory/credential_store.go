package memory

import (
	"context"
	"sync"

	"github.com/ridgeline-io/datagate/internal/domain/auth"
)

// CredentialStore implements auth.CredentialStore entirely in memory,
// for tests.
type CredentialStore struct {
	mu          sync.RWMutex
	credentials map[string]auth.Credential
}

// NewCredentialStore creates an empty in-memory CredentialStore.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{credentials: make(map[string]auth.Credential)}
}

// Put adds or replaces a credential, for test/dev seeding.
func (s *CredentialStore) Put(c auth.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[c.Username] = c
}

// GetCredential retrieves a credential by username.
func (s *CredentialStore) GetCredential(ctx context.Context, username string) (*auth.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[username]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return &c, nil
}

var _ auth.CredentialStore = (*CredentialStore)(nil)
