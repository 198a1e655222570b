// Package rediskv implements the Counter Store Gateway (C2) over
// github.com/go-redis/redis/v8 against REDIS_URL: the shared KV's
// three primitives used by the decision engine's fixed-window counters
// and counter block sentinels.
package rediskv

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ridgeline-io/datagate/internal/domain/ratelimit"
)

// incrWithExpiryScript increments key and, only if this created the
// key (the post-increment value is 1), sets its TTL. This makes
// increment-and-set-TTL a single atomic server-side operation instead
// of a client-side INCR+EXPIRE pipeline, which is not atomic across a
// reconnection.
const incrWithExpiryScript = `
local v = redis.call("INCR", KEYS[1])
if v == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return v
`

// Gateway wraps a *redis.Client and implements ratelimit.CounterStore.
type Gateway struct {
	client     *redis.Client
	incrScript *redis.Script
}

// Open connects to the shared KV at url (a redis:// DSN).
func Open(ctx context.Context, url string) (*Gateway, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Gateway{client: client, incrScript: redis.NewScript(incrWithExpiryScript)}, nil
}

// Close releases the underlying connection pool.
func (g *Gateway) Close() error {
	return g.client.Close()
}

// IncrWithExpiry atomically increments key and, on first creation only,
// sets its TTL to ttl seconds.
func (g *Gateway) IncrWithExpiry(ctx context.Context, key string, ttl int) (int64, error) {
	v, err := g.incrScript.Run(ctx, g.client, []string{key}, ttl).Int64()
	if err != nil {
		return 0, &ratelimit.GatewayError{Kind: ratelimit.KindKVUnavailable, Err: fmt.Errorf("incr with expiry: %w", err)}
	}
	return v, nil
}

// SetBlock sets a sentinel at key with absolute TTL ttl seconds.
func (g *Gateway) SetBlock(ctx context.Context, key string, ttl int) error {
	if err := g.client.SetEX(ctx, key, 1, time.Duration(ttl)*time.Second).Err(); err != nil {
		return &ratelimit.GatewayError{Kind: ratelimit.KindKVUnavailable, Err: fmt.Errorf("set block: %w", err)}
	}
	return nil
}

// TTL returns the remaining seconds on key. Redis's -2 ("no such key")
// and -1 ("no TTL set") both surface as negative values, read by the
// decision engine as "not blocked".
func (g *Gateway) TTL(ctx context.Context, key string) (int, error) {
	d, err := g.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, &ratelimit.GatewayError{Kind: ratelimit.KindKVUnavailable, Err: fmt.Errorf("ttl: %w", err)}
	}
	if d < 0 {
		// go-redis reports the -2/-1 sentinels as raw Durations, not
		// seconds; pass them through so they stay negative.
		return int(d), nil
	}
	return int(d.Seconds()), nil
}

var _ ratelimit.CounterStore = (*Gateway)(nil)
