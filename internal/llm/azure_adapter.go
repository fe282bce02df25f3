package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
	"github.com/tmc/langchaingo/llms"

	"tableagent/internal/chat"
)

// DefaultAzureAPIVersion is used when AZURE_OPENAI_API_VERSION is unset.
const DefaultAzureAPIVersion = "2023-12-01-preview"

// AzureAdapter talks to an Azure OpenAI deployment through openai-go.
type AzureAdapter struct {
	client openai.Client
	cfg    ProviderConfig
}

func NewAzureAdapter(cfg ProviderConfig, extra ...option.RequestOption) *AzureAdapter {
	version := cfg.APIVersion
	if version == "" {
		version = DefaultAzureAPIVersion
	}
	opts := []option.RequestOption{
		azure.WithEndpoint(cfg.BaseURL, version),
		azure.WithAPIKey(cfg.APIKey),
	}
	opts = append(opts, extra...)
	return &AzureAdapter{client: openai.NewClient(opts...), cfg: cfg}
}

func (a *AzureAdapter) Reply(ctx context.Context, history []chat.Message, params *chat.Params) (chat.Message, error) {
	req := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(a.cfg.Model),
		Messages: openAIMessages(history),
	}
	temperature, maxTokens := a.cfg.Temperature, a.cfg.MaxTokens
	if params != nil {
		if params.Temperature != 0 {
			temperature = params.Temperature
		}
		if params.MaxTokens != 0 {
			maxTokens = params.MaxTokens
		}
		req.Tools = ToOpenAITools(params.Tools)
	}
	req.Temperature = openai.Float(temperature)
	if maxTokens != 0 {
		req.MaxCompletionTokens = openai.Int(int64(maxTokens))
	}

	resp, err := a.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return chat.Message{}, err
	}
	if len(resp.Choices) == 0 {
		return chat.Message{}, fmt.Errorf("empty response from model")
	}
	choice := resp.Choices[0].Message
	msg := chat.Message{Role: chat.RoleAssistant, Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, chat.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	fillCallIDs(msg.ToolCalls)
	if n := len(msg.ToolCalls); n > 0 {
		log.Printf("[llm] %s returned %d tool calls", a.cfg, n)
	}
	return msg, nil
}

func openAIMessages(history []chat.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case chat.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case chat.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case chat.RoleAssistant:
			p := openai.AssistantMessage(m.Content)
			for _, tc := range m.ToolCalls {
				p.OfAssistant.ToolCalls = append(p.OfAssistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: tc.Arguments,
						},
					},
				})
			}
			out = append(out, p)
		case chat.RoleTool, chat.RoleToolError:
			out = append(out, openai.ToolMessage(toolContent(m), m.ToolCallID))
		}
	}
	return out
}

// ToOpenAITools translates langchaingo tool declarations into openai-go params.
func ToOpenAITools(tools []llms.Tool) []openai.ChatCompletionToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		if t.Function == nil {
			continue
		}
		out = append(out, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        t.Function.Name,
					Description: openai.String(t.Function.Description),
					Parameters:  functionParameters(t.Function.Parameters),
				},
			},
		})
	}
	return out
}

func functionParameters(schema any) openai.FunctionParameters {
	switch v := schema.(type) {
	case nil:
		return nil
	case map[string]any:
		return openai.FunctionParameters(v)
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
