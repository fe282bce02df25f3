// Package tokenbudget caps the completion length of every model call.
package tokenbudget

import (
	"context"
	"fmt"
	"strconv"

	"tableagent/internal/chat"
	mw "tableagent/internal/middleware"
)

func init() {
	mw.Register(BudgetLimiter{})
}

// ContextKey is where the gateway puts the configured budget.
const ContextKey = "token_budget"

// BudgetLimiter lowers Params.MaxTokens to the budget. An existing smaller
// limit is kept.
type BudgetLimiter struct{}

func (BudgetLimiter) ID() string    { return "token_budget" }
func (BudgetLimiter) Priority() int { return 90 }

func (BudgetLimiter) OnEvent(_ context.Context, e *mw.Event) (mw.Decision, error) {
	if e == nil || e.Name != mw.EventBeforeModelCall {
		return mw.Decision{}, nil
	}
	budget, ok := budgetFrom(e.Context)
	if !ok {
		return mw.Decision{}, nil
	}

	var current chat.Params
	if e.Params != nil {
		current = *e.Params
	}
	if current.MaxTokens > 0 && current.MaxTokens <= budget {
		return mw.Decision{}, nil
	}
	reason := fmt.Sprintf("token_budget: max_tokens %d -> %d", current.MaxTokens, budget)
	current.MaxTokens = budget
	return mw.Decision{OverrideParams: &current, Reason: reason}, nil
}

// budgetFrom accepts the numeric shapes a budget arrives in from Go code,
// JSON or YAML config, or the environment.
func budgetFrom(ctx map[string]any) (int, bool) {
	var n int
	switch v := ctx[ContextKey].(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		n = int(v)
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	return n, n > 0
}
