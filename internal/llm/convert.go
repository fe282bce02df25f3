package llm

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"tableagent/internal/chat"
)

const toolErrorPrefix = "error: "

func convertHistory(history []chat.Message) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case chat.RoleUser:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, m.Content))
		case chat.RoleAssistant:
			var parts []llms.ContentPart
			if m.Content != "" {
				parts = append(parts, llms.TextPart(m.Content))
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, llms.ToolCall{
					ID:   tc.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			// Some providers reject an assistant turn with no parts at all.
			if len(parts) == 0 {
				parts = append(parts, llms.TextPart(" "))
			}
			messages = append(messages, llms.MessageContent{
				Role:  llms.ChatMessageTypeAI,
				Parts: parts,
			})
		case chat.RoleSystem:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, m.Content))
		case chat.RoleTool, chat.RoleToolError:
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: m.ToolCallID,
						Name:       m.ToolName,
						Content:    toolContent(m),
					},
				},
			})
		}
	}
	return messages
}

func toolContent(m chat.Message) string {
	if m.Role == chat.RoleToolError {
		return toolErrorPrefix + m.Content
	}
	return m.Content
}

func callOptions(cfg ProviderConfig, params *chat.Params) []llms.CallOption {
	opts := make([]llms.CallOption, 0, 4)
	opts = append(opts, llms.WithModel(cfg.Model))
	temperature, maxTokens := cfg.Temperature, cfg.MaxTokens
	if params != nil {
		if params.Temperature != 0 {
			temperature = params.Temperature
		}
		if params.MaxTokens != 0 {
			maxTokens = params.MaxTokens
		}
		if len(params.Tools) > 0 {
			opts = append(opts, llms.WithTools(params.Tools))
		}
	}
	opts = append(opts, llms.WithTemperature(temperature))
	if maxTokens != 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}
	return opts
}

func messageFromResponse(resp *llms.ContentResponse) (chat.Message, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return chat.Message{}, fmt.Errorf("empty response from model")
	}
	choice := resp.Choices[0]
	msg := chat.Message{Role: chat.RoleAssistant, Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		msg.ToolCalls = append(msg.ToolCalls, chat.ToolCall{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: tc.FunctionCall.Arguments,
		})
	}
	fillCallIDs(msg.ToolCalls)
	return msg, nil
}

// fillCallIDs assigns ids to calls the provider left unnamed (Ollama does)
// and disambiguates repeated ids so every result can be matched.
func fillCallIDs(calls []chat.ToolCall) {
	seen := make(map[string]bool, len(calls))
	for i := range calls {
		if calls[i].ID == "" || seen[calls[i].ID] {
			calls[i].ID = "call_" + uuid.NewString()
		}
		seen[calls[i].ID] = true
	}
}
