package agent

import (
	"time"

	"tableagent/internal/chat"
)

type transitionEntry struct {
	Timestamp string `json:"ts"`
	Kind      string `json:"kind"`
	From      string `json:"from"`
	To        string `json:"to,omitempty"`
	Iteration int    `json:"iteration"`
	ToolCalls int    `json:"tool_calls,omitempty"`
	Error     string `json:"error,omitempty"`
}

type toolEntry struct {
	Timestamp  string `json:"ts"`
	Kind       string `json:"kind"`
	Tool       string `json:"tool"`
	CallID     string `json:"call_id"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func (l *Loop) transition(from, to State, iteration, toolCalls int) {
	l.trace.Write(transitionEntry{
		Timestamp: now(),
		Kind:      "transition",
		From:      from.String(),
		To:        to.String(),
		Iteration: iteration,
		ToolCalls: toolCalls,
	})
}

// fail records the failed state and passes err through.
func (l *Loop) fail(from State, iteration int, err error) error {
	l.trace.Write(transitionEntry{
		Timestamp: now(),
		Kind:      "transition",
		From:      from.String(),
		Iteration: iteration,
		Error:     err.Error(),
	})
	return err
}

func (l *Loop) toolTrace(tc chat.ToolCall, start time.Time, err error) {
	e := toolEntry{
		Timestamp:  now(),
		Kind:       "tool",
		Tool:       tc.Name,
		CallID:     tc.ID,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	l.trace.Write(e)
}
