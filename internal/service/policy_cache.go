// Package service contains application services: the policy cache,
// decision engine, audit writer, and session/login orchestration.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ridgeline-io/datagate/internal/domain/ratelimit"
)

// DefaultPolicyCacheTTL bounds how long a snapshot is served without a
// refresh attempt.
const DefaultPolicyCacheTTL = 60 * time.Second

// PolicyCache is a single-slot, bounded-staleness cache in front of the
// Policy Store Gateway. Refreshes past TTL collapse into a single
// in-flight load; on refresh failure the previous snapshot is served
// and the next call re-attempts.
type PolicyCache struct {
	store  ratelimit.PolicyStore
	ttl    time.Duration
	logger *slog.Logger

	mu         sync.Mutex
	policies   []ratelimit.Policy
	loadedAt   time.Time
	loaded     bool
	refreshing chan struct{} // non-nil while a refresh is in flight
}

// NewPolicyCache constructs a PolicyCache. The cache starts unloaded;
// the first call to Policies performs the initial load.
func NewPolicyCache(store ratelimit.PolicyStore, ttl time.Duration, logger *slog.Logger) *PolicyCache {
	if ttl <= 0 {
		ttl = DefaultPolicyCacheTTL
	}
	return &PolicyCache{store: store, ttl: ttl, logger: logger}
}

// Policies returns the current snapshot and whether the cache has ever
// loaded successfully. The mutex is never held across the gateway call:
// the in-flight marker is published and released before the call, and
// re-acquired only to record its result.
func (c *PolicyCache) Policies(ctx context.Context) ([]ratelimit.Policy, bool) {
	c.mu.Lock()
	if c.loaded && time.Since(c.loadedAt) < c.ttl {
		policies := c.policies
		c.mu.Unlock()
		return policies, true
	}
	if wait := c.refreshing; wait != nil {
		c.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
		}
		c.mu.Lock()
		policies, loaded := c.policies, c.loaded
		c.mu.Unlock()
		return policies, loaded
	}
	done := make(chan struct{})
	c.refreshing = done
	c.mu.Unlock()

	fresh, err := c.store.ListEnabledPolicies(ctx)

	c.mu.Lock()
	if err != nil {
		c.logger.Warn("policy cache refresh failed, serving previous snapshot",
			"error", err, "had_previous_snapshot", c.loaded)
	} else {
		c.policies = fresh
		c.loadedAt = time.Now()
		c.loaded = true
	}
	policies, loaded := c.policies, c.loaded
	c.refreshing = nil
	c.mu.Unlock()
	close(done)

	return policies, loaded
}

// Invalidate forces the next Policies call to refresh regardless of TTL.
func (c *PolicyCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadedAt = time.Time{}
}
