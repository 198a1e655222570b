package sqlpolicy

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ridgeline-io/datagate/internal/domain/ratelimit"
)

// ListEnabledPolicies returns enabled policies sorted by priority
// descending, then updated_at descending as tie-break.
func (g *Gateway) ListEnabledPolicies(ctx context.Context) ([]ratelimit.Policy, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT id, level, role, username, endpoint, window_sec, max_calls, block_sec, enabled, priority, updated_at
		FROM rate_limit_policy
		WHERE enabled = 1
		ORDER BY priority DESC, updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list enabled policies: %w", err)
	}
	defer rows.Close()

	var policies []ratelimit.Policy
	for rows.Next() {
		var (
			p                            ratelimit.Policy
			role, username, endpoint     sql.NullString
			enabled                      int
			updatedAt                    string
		)
		if err := rows.Scan(&p.ID, &p.Level, &role, &username, &endpoint, &p.WindowSec, &p.MaxCalls, &p.BlockSec, &enabled, &p.Priority, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan policy row: %w", err)
		}
		p.Role = role.String
		p.Username = username.String
		p.Endpoint = endpoint.String
		p.Enabled = enabled != 0
		t, err := parseTime(updatedAt)
		if err != nil {
			return nil, err
		}
		p.UpdatedAt = t
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policy rows: %w", err)
	}
	return policies, nil
}

// FindActiveBlock returns the active manual block for (username,
// endpoint), or nil if none is active.
func (g *Gateway) FindActiveBlock(ctx context.Context, username, endpoint string) (*ratelimit.ManualBlock, error) {
	row := g.db.QueryRowContext(ctx, `
		SELECT id, username, endpoint, block_until, reason, condition, cleared_at, cleared_by
		FROM rate_limit_block
		WHERE username = ? AND endpoint = ? AND cleared_at IS NULL AND block_until > ?
		ORDER BY block_until DESC
		LIMIT 1
	`, username, endpoint, formatTime(time.Now()))

	var (
		b                           ratelimit.ManualBlock
		blockUntil                  string
		reason, condition, clearedBy sql.NullString
		clearedAt                   sql.NullString
	)
	err := row.Scan(&b.ID, &b.Username, &b.Endpoint, &blockUntil, &reason, &condition, &clearedAt, &clearedBy)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active block: %w", err)
	}

	t, err := parseTime(blockUntil)
	if err != nil {
		return nil, err
	}
	b.BlockUntil = t
	b.Reason = reason.String
	b.Condition = condition.String
	b.ClearedBy = clearedBy.String
	if clearedAt.Valid {
		ct, err := parseTime(clearedAt.String)
		if err != nil {
			return nil, err
		}
		b.ClearedAt = &ct
	}
	return &b, nil
}

// AppendEvent persists an audit event. Best-effort: the caller must
// not let a failure here change a request's verdict.
func (g *Gateway) AppendEvent(ctx context.Context, event ratelimit.AuditEvent) error {
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO rate_limit_event (ts, username, role, endpoint, decision, rule_source, window_sec, max_calls, block_sec, calls, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, formatTime(event.TS), event.Username, event.Role, event.Endpoint, string(event.Decision), event.RuleSource,
		event.WindowSec, event.MaxCalls, event.BlockSec, event.Calls, event.Reason)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

var _ ratelimit.PolicyStore = (*Gateway)(nil)
