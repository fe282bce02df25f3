package chat

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// Params carries per-invocation options for a model call. Middleware may
// replace it before the call.
type Params struct {
	Temperature float64
	MaxTokens   int

	// Tools declared to the provider in langchaingo's function-tool format.
	// Adapters that talk to a provider directly translate from here.
	Tools []llms.Tool
}

// Adapter abstracts chat completion providers.
type Adapter interface {
	// Reply sends the full history and returns the assistant message, including
	// any tool calls the model emitted.
	Reply(ctx context.Context, history []Message, params *Params) (Message, error)
}

// AdapterFunc lets a plain function act as an Adapter.
type AdapterFunc func(ctx context.Context, history []Message, params *Params) (Message, error)

func (f AdapterFunc) Reply(ctx context.Context, history []Message, params *Params) (Message, error) {
	return f(ctx, history, params)
}

// ToolCall mirrors llms.ToolCall but keeps adapter decoupled.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Args decodes the raw JSON arguments. Invalid JSON falls back to
// {"raw": <text>} so the tool can report what it received.
func (tc ToolCall) Args() map[string]any {
	return parseToolArgs(tc.Arguments)
}

func parseToolArgs(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{"raw": raw}
	}
	if args == nil {
		args = map[string]any{}
	}
	return args
}
