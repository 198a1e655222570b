package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ridgeline-io/datagate/internal/domain/ratelimit"
)

// entry is a counter or block sentinel with its own expiry, mirroring
// the shared KV's per-key TTL semantics.
type entry struct {
	value     int64
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool { return now.After(e.expiresAt) }

// CounterStore implements ratelimit.CounterStore entirely in memory,
// for decision-engine tests that don't need a real Redis round-trip. Thread-safe; a background goroutine sweeps expired
// entries so memory stays bounded.
type CounterStore struct {
	mu              sync.Mutex
	entries         map[string]entry
	stopChan        chan struct{}
	wg              sync.WaitGroup
	once            sync.Once
	cleanupInterval time.Duration
}

// NewCounterStore creates an in-memory CounterStore with a default
// 1-minute cleanup sweep.
func NewCounterStore() *CounterStore {
	return NewCounterStoreWithConfig(1 * time.Minute)
}

// NewCounterStoreWithConfig creates an in-memory CounterStore with a
// custom cleanup interval.
func NewCounterStoreWithConfig(cleanupInterval time.Duration) *CounterStore {
	return &CounterStore{
		entries:         make(map[string]entry),
		stopChan:        make(chan struct{}),
		cleanupInterval: cleanupInterval,
	}
}

// StartCleanup starts the background sweep goroutine.
func (c *CounterStore) StartCleanup(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopChan:
				return
			case <-ticker.C:
				c.cleanup()
			}
		}
	}()
}

func (c *CounterStore) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	cleaned := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			cleaned++
		}
	}
	if cleaned > 0 {
		slog.Debug("counter store cleanup", "cleaned", cleaned)
	}
}

// Stop stops the cleanup goroutine. Safe to call multiple times.
func (c *CounterStore) Stop() {
	c.once.Do(func() { close(c.stopChan) })
	c.wg.Wait()
}

// IncrWithExpiry atomically increments key and sets its TTL only on
// first creation, matching the Lua-script semantics of the Redis
// gateway.
func (c *CounterStore) IncrWithExpiry(ctx context.Context, key string, ttl int) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	e, ok := c.entries[key]
	if !ok || e.expired(now) {
		e = entry{value: 0, expiresAt: now.Add(time.Duration(ttl) * time.Second)}
	}
	e.value++
	c.entries[key] = e
	return e.value, nil
}

// SetBlock sets a sentinel at key with absolute TTL ttl seconds.
func (c *CounterStore) SetBlock(ctx context.Context, key string, ttl int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: 1, expiresAt: time.Now().Add(time.Duration(ttl) * time.Second)}
	return nil
}

// TTL returns remaining seconds on key, or -2 if it doesn't exist/has expired.
func (c *CounterStore) TTL(ctx context.Context, key string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.expired(time.Now()) {
		return -2, nil
	}
	remaining := e.expiresAt.Sub(time.Now()).Seconds()
	if remaining < 0 {
		return -2, nil
	}
	return int(remaining) + 1, nil
}

// Size returns the number of tracked keys, for tests.
func (c *CounterStore) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

var _ ratelimit.CounterStore = (*CounterStore)(nil)
