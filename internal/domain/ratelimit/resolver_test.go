package ratelimit

import (
	"testing"
	"time"
)

func TestResolve_Precedence(t *testing.T) {
	// property 4: among matching policies, priority decides.
	now := time.Now()
	p1 := Policy{ID: 1, Level: LevelUser, Username: "u1", Enabled: true, WindowSec: 60, MaxCalls: 1, BlockSec: 120, Priority: 5, UpdatedAt: now}
	p2 := Policy{ID: 2, Level: LevelUser, Username: "u1", Enabled: true, WindowSec: 60, MaxCalls: 9, BlockSec: 120, Priority: 50, UpdatedAt: now}

	// Snapshot must already be sorted by priority desc.
	sorted := []Policy{p2, p1}

	got := Resolve(sorted, "u1", "user", "/e", FallbackPolicy{Enabled: true, WindowSec: 3600, MaxCalls: 1, BlockSec: 10800})
	if got.MaxCalls != 9 {
		t.Fatalf("MaxCalls = %d, want 9 (higher-priority policy should win)", got.MaxCalls)
	}
	if got.Source != p2.RuleSource() {
		t.Fatalf("Source = %q, want %q", got.Source, p2.RuleSource())
	}
}

func TestResolve_S2UserEndpointOverridesUser(t *testing.T) {
	now := time.Now()
	// P1: user-level cap of 1, priority 5.
	p1 := Policy{ID: 1, Level: LevelUser, Username: "u1", Enabled: true, WindowSec: 60, MaxCalls: 1, BlockSec: 120, Priority: 5, UpdatedAt: now}
	// P2: user_endpoint cap of 100, priority 50.
	p2 := Policy{ID: 2, Level: LevelUserEndpoint, Username: "u1", Endpoint: "/e", Enabled: true, WindowSec: 60, MaxCalls: 100, BlockSec: 120, Priority: 50, UpdatedAt: now}

	sorted := []Policy{p2, p1}
	fallback := FallbackPolicy{Enabled: true, WindowSec: 3600, MaxCalls: 1, BlockSec: 10800}

	got := Resolve(sorted, "u1", "user", "/e", fallback)
	if got.MaxCalls != 100 {
		t.Fatalf("for /e: MaxCalls = %d, want 100", got.MaxCalls)
	}

	got = Resolve(sorted, "u1", "user", "/other", fallback)
	if got.MaxCalls != 1 {
		t.Fatalf("for /other: MaxCalls = %d, want 1 (P1 should dominate)", got.MaxCalls)
	}
}

func TestResolve_NoMatchUsesFallback(t *testing.T) {
	fallback := FallbackPolicy{Enabled: true, WindowSec: 3600, MaxCalls: 1, BlockSec: 10800}
	got := Resolve(nil, "u1", "user", "/e", fallback)
	if got.Source != "fallback" {
		t.Fatalf("Source = %q, want fallback", got.Source)
	}
	if got.MaxCalls != 1 || got.WindowSec != 3600 || got.BlockSec != 10800 {
		t.Fatalf("got %+v, want fallback values", got)
	}
}

func TestResolve_GlobalIsUnconditional(t *testing.T) {
	now := time.Now()
	global := Policy{ID: 1, Level: LevelGlobal, Enabled: true, WindowSec: 10, MaxCalls: 2, BlockSec: 30, Priority: 1, UpdatedAt: now}
	fallback := FallbackPolicy{Enabled: true, WindowSec: 3600, MaxCalls: 1, BlockSec: 10800}

	got := Resolve([]Policy{global}, "anyone", "user", "/anything", fallback)
	if got.Source != global.RuleSource() {
		t.Fatalf("Source = %q, want %q", got.Source, global.RuleSource())
	}
}

func TestManualBlock_Active(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name  string
		block ManualBlock
		want  bool
	}{
		{"active: not cleared, in future", ManualBlock{BlockUntil: now.Add(time.Minute)}, true},
		{"inactive: expired", ManualBlock{BlockUntil: now.Add(-time.Minute)}, false},
		{"inactive: cleared", ManualBlock{BlockUntil: now.Add(time.Minute), ClearedAt: &now}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.block.Active(now); got != tt.want {
				t.Errorf("Active() = %v, want %v", got, tt.want)
			}
		})
	}
}
