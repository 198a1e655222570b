package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ridgeline-io/datagate/internal/domain/ratelimit"
)

// PolicyStore implements ratelimit.PolicyStore entirely in memory, for
// tests that exercise the decision engine and policy
// cache without a real policy database.
type PolicyStore struct {
	mu       sync.RWMutex
	policies []ratelimit.Policy
	blocks   []ratelimit.ManualBlock
	events   []ratelimit.AuditEvent
}

// NewPolicyStore creates an empty in-memory PolicyStore.
func NewPolicyStore() *PolicyStore {
	return &PolicyStore{}
}

// SetPolicies replaces the full policy set, for test setup.
func (s *PolicyStore) SetPolicies(policies []ratelimit.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies = append([]ratelimit.Policy(nil), policies...)
}

// AddBlock inserts a manual block, for test setup and the (unimplemented)
// admin tooling this store otherwise stands in for.
func (s *PolicyStore) AddBlock(b ratelimit.ManualBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = append(s.blocks, b)
}

// ListEnabledPolicies returns enabled policies sorted by priority
// descending, then updated_at descending.
func (s *PolicyStore) ListEnabledPolicies(ctx context.Context) ([]ratelimit.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	enabled := make([]ratelimit.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		if enabled[i].Priority != enabled[j].Priority {
			return enabled[i].Priority > enabled[j].Priority
		}
		return enabled[i].UpdatedAt.After(enabled[j].UpdatedAt)
	})
	return enabled, nil
}

// FindActiveBlock returns the active manual block for (username,
// endpoint), or nil if none is active.
func (s *PolicyStore) FindActiveBlock(ctx context.Context, username, endpoint string) (*ratelimit.ManualBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	for i := range s.blocks {
		b := s.blocks[i]
		if b.Username == username && b.Endpoint == endpoint && b.Active(now) {
			return &b, nil
		}
	}
	return nil, nil
}

// AppendEvent records an audit event.
func (s *PolicyStore) AppendEvent(ctx context.Context, event ratelimit.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of recorded audit events, for test assertions.
func (s *PolicyStore) Events() []ratelimit.AuditEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ratelimit.AuditEvent(nil), s.events...)
}

var _ ratelimit.PolicyStore = (*PolicyStore)(nil)
