package middleware

import (
	"context"
	"sort"
	"sync"
)

// Chain executes middlewares in descending Priority() order.
// If priorities are equal, registration order is preserved.
// A nil *Chain dispatches nothing.
type Chain struct {
	mu  sync.RWMutex
	mws []Middleware

	trace *JSONL
}

type DecisionResult struct {
	MiddlewareID string
	Priority     int
	Decision     Decision
}

func NewChain(mws ...Middleware) *Chain {
	c := &Chain{}
	for _, mw := range mws {
		c.Use(mw)
	}
	return c
}

// SetTrace enables JSONL logging of dispatch decisions. nil disables it.
func (c *Chain) SetTrace(t *JSONL) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trace = t
}

func (c *Chain) Use(mw Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mws = append(c.mws, mw)
	c.sortLocked()
}

func (c *Chain) List() []Middleware {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Middleware, len(c.mws))
	copy(out, c.mws)
	return out
}

// Dispatch runs all middlewares for the given event, stopping early if a middleware returns Decision.Cancel.
func (c *Chain) Dispatch(ctx context.Context, e *Event) ([]DecisionResult, error) {
	if c == nil {
		return nil, nil
	}
	c.mu.RLock()
	mws := make([]Middleware, len(c.mws))
	copy(mws, c.mws)
	trace := c.trace
	c.mu.RUnlock()

	results := make([]DecisionResult, 0, len(mws))
	for _, mw := range mws {
		before := eventText(e)
		if cmw, ok := mw.(ConditionalMiddleware); ok && !cmw.ShouldLoad(ctx, e) {
			dec := Decision{Reason: "skipped (ShouldLoad=false)"}
			trace.dispatch(e, mw, true, before, before, dec)
			results = append(results, DecisionResult{MiddlewareID: mw.ID(), Priority: mw.Priority(), Decision: dec})
			continue
		}

		dec, err := mw.OnEvent(ctx, e)
		if err != nil {
			trace.dispatch(e, mw, false, before, eventText(e), Decision{Reason: err.Error(), Cancel: true})
			return nil, err
		}

		applyDecisionToEvent(e, dec)
		trace.dispatch(e, mw, false, before, eventText(e), dec)

		// Keep a record even if the decision is "no-op" (all fields zero),
		// since callers may want visibility/logging per middleware.
		results = append(results, DecisionResult{
			MiddlewareID: mw.ID(),
			Priority:     mw.Priority(),
			Decision:     dec,
		})
		if dec.Cancel {
			break
		}
	}
	return results, nil
}

// Canceled reports whether any result canceled the event.
func Canceled(results []DecisionResult) bool {
	for _, r := range results {
		if r.Decision.Cancel {
			return true
		}
	}
	return false
}

func (c *Chain) sortLocked() {
	sort.SliceStable(c.mws, func(i, j int) bool {
		return c.mws[i].Priority() > c.mws[j].Priority()
	})
}

func eventText(e *Event) string {
	if e == nil {
		return ""
	}
	switch e.Name {
	case EventBeforeModelCall:
		return e.UserText
	case EventAfterModelResponse, EventBeforeUserReply:
		return e.LLMText
	default:
		return ""
	}
}

// applyDecisionToEvent folds a decision into the event. ReplaceText on
// before_model_call sets the reply that short-circuits the model; the user
// message in history is never rewritten.
func applyDecisionToEvent(e *Event, dec Decision) {
	if e == nil {
		return
	}
	if dec.OverrideParams != nil && e.Name == EventBeforeModelCall {
		e.Params = dec.OverrideParams
	}
	if dec.ReplaceText != nil {
		e.LLMText = *dec.ReplaceText
	}
}
