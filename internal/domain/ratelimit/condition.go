package ratelimit

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// maxCostBudget bounds CEL runtime cost to keep a hostile or malformed
// condition string from stalling the manual-block check.
const maxCostBudget = 10_000

// ConditionEvaluator compiles and caches the CEL expressions attached
// to ManualBlock.Condition, evaluating them against the requesting
// identity's attributes.
type ConditionEvaluator struct {
	env *cel.Env

	mu       sync.RWMutex
	compiled map[string]cel.Program
}

// NewConditionEvaluator builds the CEL environment for manual-block
// conditions: two string variables, username and role.
func NewConditionEvaluator() (*ConditionEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("username", cel.StringType),
		cel.Variable("role", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel environment: %w", err)
	}
	return &ConditionEvaluator{env: env, compiled: make(map[string]cel.Program)}, nil
}

// Evaluate compiles expr on first use (cached thereafter) and runs it
// against {username, role}. Any compile or evaluation error is returned
// to the caller, which per the decision engine's contract fails open
// (treats the condition as unsatisfied).
func (c *ConditionEvaluator) Evaluate(expr, username, role string) (bool, error) {
	prg, err := c.program(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"username": username,
		"role":     role,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate condition: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not evaluate to a bool", expr)
	}
	return result, nil
}

func (c *ConditionEvaluator) program(expr string) (cel.Program, error) {
	c.mu.RLock()
	prg, ok := c.compiled[expr]
	c.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile condition %q: %w", expr, issues.Err())
	}

	prg, err := c.env.Program(ast, cel.EvalOptions(cel.OptOptimize), cel.CostLimit(maxCostBudget))
	if err != nil {
		return nil, fmt.Errorf("build program for condition %q: %w", expr, err)
	}

	c.mu.Lock()
	c.compiled[expr] = prg
	c.mu.Unlock()
	return prg, nil
}
