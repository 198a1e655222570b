package ratelimit

import (
	"context"
	"errors"
)

// GatewayError wraps a failure from one of the outbound gateways with a
// Kind so the decision engine can apply the degraded-mode policy in §7
// without string-matching errors.
type GatewayError struct {
	Kind Kind
	Err  error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsKVUnavailable reports whether err denotes a Counter Store Gateway
// outage (Kind KV_UNAVAILABLE), as opposed to some other failure the
// Decision Engine should not silently apply its degraded-mode policy
// to.
func IsKVUnavailable(err error) bool {
	var gerr *GatewayError
	return errors.As(err, &gerr) && gerr.Kind == KindKVUnavailable
}

// PolicyStore is the Policy Store Gateway port (C1): reads enabled
// policies and active manual blocks, writes audit events.
type PolicyStore interface {
	// ListEnabledPolicies returns enabled policies sorted by priority
	// descending, then updated_at descending as tie-break.
	ListEnabledPolicies(ctx context.Context) ([]Policy, error)

	// FindActiveBlock returns the active manual block for (username,
	// endpoint), or nil if none is active.
	FindActiveBlock(ctx context.Context, username, endpoint string) (*ManualBlock, error)

	// AppendEvent persists an audit event. Best-effort: callers must not
	// let a failure here change a request's verdict.
	AppendEvent(ctx context.Context, event AuditEvent) error
}

// AuditWriter is the narrow sink the async audit queue depends on,
// rather than the full PolicyStore.
type AuditWriter interface {
	AppendEvent(ctx context.Context, event AuditEvent) error
}

// CounterStore is the Counter Store Gateway port (C2): the shared KV's
// three primitives.
type CounterStore interface {
	// IncrWithExpiry atomically increments key and, on first creation
	// only, sets its TTL.
	IncrWithExpiry(ctx context.Context, key string, ttl int) (int64, error)

	// SetBlock sets a sentinel at key with absolute TTL ttl seconds.
	SetBlock(ctx context.Context, key string, ttl int) error

	// TTL returns the remaining seconds on key; a negative value means
	// "no such key" or "no TTL set" -- both read as "not blocked".
	TTL(ctx context.Context, key string) (int, error)
}
