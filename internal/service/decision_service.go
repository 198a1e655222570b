package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/ridgeline-io/datagate/internal/domain/ratelimit"
)

// Verdict is the outcome of a single guarded request.
type Verdict struct {
	Decision      ratelimit.Decision
	RetryAfterSec int
	RuleSource    string
	// Kind is set only when a dependency failure produced this verdict
	// (KindKVUnavailable under degraded mode), so the HTTP layer can
	// distinguish "rate limited" (429) from "dependency outage" (503).
	Kind ratelimit.Kind
}

// DecisionEngine orchestrates the seven-step decision pipeline: manual
// block check, policy resolution, disabled-policy short-circuit, window
// computation, KV block check, atomic increment, and verdict, emitting a
// (sampled) audit event at
// each terminal step.
type DecisionEngine struct {
	policyStore  ratelimit.PolicyStore
	cache        *PolicyCache
	counters     ratelimit.CounterStore
	conditions   *ratelimit.ConditionEvaluator
	audit        ratelimit.AuditWriter
	fallback     ratelimit.FallbackPolicy
	samplingRate float64
	degradedOpen bool // true = allow under KV_UNAVAILABLE, false (default) = deny
	logger       *slog.Logger

	now  func() time.Time
	rand func() float64
}

// DecisionEngineOption configures a DecisionEngine.
type DecisionEngineOption func(*DecisionEngine)

// WithSamplingRate sets the audit sampling rate in [0,1]; default 1.0.
func WithSamplingRate(rate float64) DecisionEngineOption {
	return func(d *DecisionEngine) {
		if rate < 0 {
			rate = 0
		}
		if rate > 1 {
			rate = 1
		}
		d.samplingRate = rate
	}
}

// WithDegradedModeAllow switches KV_UNAVAILABLE handling from the
// default deny (503) to fail-open (allow).
func WithDegradedModeAllow() DecisionEngineOption {
	return func(d *DecisionEngine) { d.degradedOpen = true }
}

// withClock overrides the engine's time source, used by tests.
func withClock(now func() time.Time) DecisionEngineOption {
	return func(d *DecisionEngine) { d.now = now }
}

// NewDecisionEngine constructs a DecisionEngine.
func NewDecisionEngine(
	policyStore ratelimit.PolicyStore,
	cache *PolicyCache,
	counters ratelimit.CounterStore,
	conditions *ratelimit.ConditionEvaluator,
	audit ratelimit.AuditWriter,
	fallback ratelimit.FallbackPolicy,
	logger *slog.Logger,
	opts ...DecisionEngineOption,
) *DecisionEngine {
	d := &DecisionEngine{
		policyStore:  policyStore,
		cache:        cache,
		counters:     counters,
		conditions:   conditions,
		audit:        audit,
		fallback:     fallback,
		samplingRate: 1.0,
		logger:       logger,
		now:          time.Now,
		rand:         rand.Float64,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decide runs the full pipeline for a single guarded request.
func (d *DecisionEngine) Decide(ctx context.Context, username, role, endpoint string) (*Verdict, error) {
	// Step 1 (+ 1a): manual block check.
	if v, handled := d.checkManualBlock(ctx, username, role, endpoint); handled {
		return v, nil
	}

	// Step 2: resolve effective policy.
	effective := d.resolveEffectivePolicy(ctx, username, role, endpoint)

	// Step 3: disabled policy short-circuit.
	if !effective.Enabled {
		d.emit(ctx, username, role, endpoint, ratelimit.DecisionAllow, effective.Source, effective.WindowSec, effective.MaxCalls, 0, "disabled", true)
		return &Verdict{Decision: ratelimit.DecisionAllow, RuleSource: effective.Source}, nil
	}

	// Step 4: window id.
	windowID := ratelimit.WindowID(d.now(), effective.WindowSec)
	blockKey := ratelimit.BlockKey(username, endpoint)

	// Step 5: KV block check.
	ttl, err := d.counters.TTL(ctx, blockKey)
	if err != nil {
		return d.degradedVerdict(ctx, username, role, endpoint, err)
	}
	if ttl > 0 {
		d.emit(ctx, username, role, endpoint, ratelimit.DecisionBlock, "kv_block", effective.WindowSec, effective.MaxCalls, 0, fmt.Sprintf("TTL %ds", ttl), true)
		return &Verdict{Decision: ratelimit.DecisionBlock, RetryAfterSec: ttl, RuleSource: "kv_block"}, nil
	}

	// Step 6: increment.
	counterKey := ratelimit.CounterKey(username, endpoint, windowID)
	calls, err := d.counters.IncrWithExpiry(ctx, counterKey, effective.WindowSec+effective.BlockSec)
	if err != nil {
		return d.degradedVerdict(ctx, username, role, endpoint, err)
	}

	// Step 7: verdict.
	if calls > int64(effective.MaxCalls) {
		if err := d.counters.SetBlock(ctx, blockKey, effective.BlockSec); err != nil {
			d.logger.Error("failed to set block key after exceeding limit", "error", err, "username", username, "endpoint", endpoint)
		}
		d.emitWithCalls(ctx, username, role, endpoint, ratelimit.DecisionBlock, "kv_counter", effective.WindowSec, effective.MaxCalls, effective.BlockSec, "exceeded", calls, true)
		return &Verdict{Decision: ratelimit.DecisionBlock, RetryAfterSec: effective.BlockSec, RuleSource: "kv_counter"}, nil
	}

	d.emitWithCalls(ctx, username, role, endpoint, ratelimit.DecisionAllow, "kv_counter", effective.WindowSec, effective.MaxCalls, 0, "", calls, false)
	return &Verdict{Decision: ratelimit.DecisionAllow, RuleSource: "kv_counter"}, nil
}

// checkManualBlock implements step 1 and the (ADD) CEL condition in
// step 1a. A POLICY_DB_UNAVAILABLE error here fails open (skip to
// resolve) and is not audited.
func (d *DecisionEngine) checkManualBlock(ctx context.Context, username, role, endpoint string) (*Verdict, bool) {
	block, err := d.policyStore.FindActiveBlock(ctx, username, endpoint)
	if err != nil {
		d.logger.Warn("manual block check failed, failing open", "error", err, "username", username, "endpoint", endpoint)
		return nil, false
	}
	if block == nil {
		return nil, false
	}

	if block.Condition != "" {
		applies, cerr := d.conditions.Evaluate(block.Condition, username, role)
		if cerr != nil {
			d.logger.Warn("manual block condition evaluation failed, failing open", "error", cerr, "username", username, "endpoint", endpoint)
			return nil, false
		}
		if !applies {
			return nil, false
		}
	}

	remaining := int(math.Ceil(block.BlockUntil.Sub(d.now()).Seconds()))
	if remaining < 1 {
		remaining = 1
	}
	// A manual block isn't a rate-limit policy, so window_sec/max_calls
	// have no value to report here; left at zero.
	d.emit(ctx, username, role, endpoint, ratelimit.DecisionBlock, "manual_block", 0, 0, remaining, fmt.Sprintf("DB block %ds", remaining), true)
	return &Verdict{Decision: ratelimit.DecisionBlock, RetryAfterSec: remaining, RuleSource: "manual_block"}, true
}

// resolveEffectivePolicy implements step 2. A cache that has never
// loaded successfully falls open to the fallback configuration.
func (d *DecisionEngine) resolveEffectivePolicy(ctx context.Context, username, role, endpoint string) ratelimit.EffectivePolicy {
	policies, loaded := d.cache.Policies(ctx)
	if !loaded {
		return d.fallback.Effective()
	}
	return ratelimit.Resolve(policies, username, role, endpoint, d.fallback)
}

// degradedVerdict implements the KV_UNAVAILABLE branch of §7: the
// configured degraded mode decides allow (open) or deny (closed,
// default), surfaced to the HTTP layer via Verdict.Kind. Only an error
// that actually denotes a Counter Store Gateway outage gets the
// degraded-mode treatment; anything else (e.g. a cancelled request
// context) is returned as a hard error instead of silently degrading.
func (d *DecisionEngine) degradedVerdict(ctx context.Context, username, role, endpoint string, err error) (*Verdict, error) {
	if !ratelimit.IsKVUnavailable(err) {
		return nil, fmt.Errorf("counter store gateway: %w", err)
	}
	d.logger.Error("counter store gateway unavailable", "error", err, "username", username, "endpoint", endpoint, "degraded_mode_allow", d.degradedOpen)
	if d.degradedOpen {
		return &Verdict{Decision: ratelimit.DecisionAllow, RuleSource: "degraded_allow", Kind: ratelimit.KindKVUnavailable}, nil
	}
	return &Verdict{Decision: ratelimit.DecisionBlock, RuleSource: "degraded_deny", Kind: ratelimit.KindKVUnavailable}, nil
}

func (d *DecisionEngine) emit(ctx context.Context, username, role, endpoint string, decision ratelimit.Decision, ruleSource string, windowSec, maxCalls, blockSec int, reason string, alwaysWrite bool) {
	d.emitWithCalls(ctx, username, role, endpoint, decision, ruleSource, windowSec, maxCalls, blockSec, reason, 0, alwaysWrite)
}

func (d *DecisionEngine) emitWithCalls(ctx context.Context, username, role, endpoint string, decision ratelimit.Decision, ruleSource string, windowSec, maxCalls, blockSec int, reason string, calls int64, alwaysWrite bool) {
	if !alwaysWrite && d.samplingRate < 1.0 && d.rand() >= d.samplingRate {
		return
	}
	event := ratelimit.AuditEvent{
		TS:         d.now(),
		Username:   username,
		Role:       role,
		Endpoint:   endpoint,
		Decision:   decision,
		RuleSource: ruleSource,
		WindowSec:  windowSec,
		MaxCalls:   maxCalls,
		BlockSec:   blockSec,
		Calls:      calls,
		Reason:     reason,
	}
	if err := d.audit.AppendEvent(ctx, event); err != nil {
		d.logger.Warn("audit event write failed", "error", err, "username", username, "endpoint", endpoint)
	}
}
