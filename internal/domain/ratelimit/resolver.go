package ratelimit

// Resolve selects the effective policy for (username, role, endpoint)
// from a snapshot already sorted by priority descending, then
// updated_at descending. It returns the first policy whose own Level
// matches per the table in the policy-resolution design, or the
// fallback if none match.
//
// The Level column does not impose an ordering independent of
// priority -- the snapshot's sort order is trusted as-is.
func Resolve(policies []Policy, username, role, endpoint string, fallback FallbackPolicy) EffectivePolicy {
	for _, p := range policies {
		if matches(p, username, role, endpoint) {
			return EffectivePolicy{
				Enabled:   p.Enabled,
				WindowSec: p.WindowSec,
				MaxCalls:  p.MaxCalls,
				BlockSec:  p.BlockSec,
				Source:    p.RuleSource(),
			}
		}
	}
	return fallback.Effective()
}

func matches(p Policy, username, role, endpoint string) bool {
	switch p.Level {
	case LevelUserEndpoint:
		return p.Username == username && p.Endpoint == endpoint
	case LevelUser:
		return p.Username == username
	case LevelRoleEndpoint:
		return p.Role == role && p.Endpoint == endpoint
	case LevelRole:
		return p.Role == role
	case LevelEndpoint:
		return p.Endpoint == endpoint
	case LevelGlobal:
		return true
	default:
		return false
	}
}
