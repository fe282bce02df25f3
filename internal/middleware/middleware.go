package middleware

import (
	"context"

	"tableagent/internal/chat"
)

type EventName string

const (
	EventBeforeModelCall    EventName = "before_model_call"
	EventAfterModelResponse EventName = "after_model_response"
	EventBeforeUserReply    EventName = "before_user_reply"
)

type Decision struct {
	// Cancel stops the pipeline for this event. On before_model_call together
	// with ReplaceText it answers the turn without calling the model.
	Cancel      bool
	Reason      string // for logs
	ReplaceText *string

	// OverrideParams replaces the model call parameters and continues.
	// Only honored on before_model_call.
	OverrideParams *chat.Params
}

type Event struct {
	Name      EventName
	UserText  string       // latest user message
	LLMText   string       // model reply, for after_model_response and before_user_reply
	Params    *chat.Params // mutable
	Iteration int
	ToolCalls int            // tool calls requested by the model reply
	Context   map[string]any // session id, token budget
}

type Middleware interface {
	ID() string
	Priority() int
	OnEvent(ctx context.Context, e *Event) (Decision, error)
}

// OptInMiddleware is implemented by middleware that stays idle unless the
// user enables it; the gateway sets Event.Context[ID()] = true for those.
type OptInMiddleware interface {
	OptIn() bool
}

// DefaultEnabled reports whether m runs without being enabled explicitly.
func DefaultEnabled(m Middleware) bool {
	o, ok := m.(OptInMiddleware)
	return !ok || !o.OptIn()
}

// ConditionalMiddleware is an optional extension that allows a middleware to be
// dynamically enabled/disabled per event.
//
// If a middleware implements this interface and returns false, it will be
// skipped during dispatch (but still recorded in results with a "skipped"
// reason).
type ConditionalMiddleware interface {
	ShouldLoad(ctx context.Context, e *Event) bool
}
