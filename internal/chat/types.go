package chat

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
	// RoleToolError marks a tool result whose execution failed. Adapters send it
	// to the provider as an ordinary tool message, prefixed so the model can tell.
	RoleToolError Role = "tool_error"
)

type Message struct {
	Role    Role
	Content string

	// For Assistant messages: the tool calls they made
	ToolCalls []ToolCall

	// For Tool messages: the ID of the call being answered
	ToolCallID string
	ToolName   string
}

// IsToolResult reports whether m answers a tool call.
func (m Message) IsToolResult() bool {
	return m.Role == RoleTool || m.Role == RoleToolError
}

// Clone returns a deep copy so histories can be handed out without aliasing.
func (m Message) Clone() Message {
	out := m
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		copy(out.ToolCalls, m.ToolCalls)
	}
	return out
}

// CloneHistory deep-copies a message slice.
func CloneHistory(history []Message) []Message {
	if history == nil {
		return nil
	}
	out := make([]Message, len(history))
	for i, m := range history {
		out[i] = m.Clone()
	}
	return out
}

// LastAssistant returns the content of the last assistant message, if any.
func LastAssistant(history []Message) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleAssistant {
			return history[i].Content, true
		}
	}
	return "", false
}
