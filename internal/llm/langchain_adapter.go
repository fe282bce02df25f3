package llm

import (
	"context"
	"log"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"tableagent/internal/chat"
)

// LangchainAdapter drives any langchaingo llms.Model.
type LangchainAdapter struct {
	model llms.Model
	cfg   ProviderConfig
}

// NewLangchainAdapter wraps an already constructed langchaingo model.
func NewLangchainAdapter(model llms.Model, cfg ProviderConfig) *LangchainAdapter {
	return &LangchainAdapter{model: model, cfg: cfg}
}

func NewOllamaAdapter(cfg ProviderConfig) (*LangchainAdapter, error) {
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	client, err := ollama.New(opts...)
	if err != nil {
		return nil, err
	}
	return NewLangchainAdapter(client, cfg), nil
}

func NewOpenAIAdapter(cfg ProviderConfig) (*LangchainAdapter, error) {
	opts := []openai.Option{openai.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	token := cfg.APIKey
	if token == "" {
		// langchaingo refuses an empty token even for keyless compatible servers.
		token = "unused"
	}
	opts = append(opts, openai.WithToken(token))
	client, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return NewLangchainAdapter(client, cfg), nil
}

func NewAnthropicAdapter(cfg ProviderConfig) (*LangchainAdapter, error) {
	opts := []anthropic.Option{
		anthropic.WithModel(cfg.Model),
		anthropic.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	client, err := anthropic.New(opts...)
	if err != nil {
		return nil, err
	}
	return NewLangchainAdapter(client, cfg), nil
}

func NewGeminiAdapter(ctx context.Context, cfg ProviderConfig) (*LangchainAdapter, error) {
	client, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	return NewLangchainAdapter(client, cfg), nil
}

func (a *LangchainAdapter) Reply(ctx context.Context, history []chat.Message, params *chat.Params) (chat.Message, error) {
	resp, err := a.model.GenerateContent(ctx, convertHistory(history), callOptions(a.cfg, params)...)
	if err != nil {
		return chat.Message{}, err
	}
	msg, err := messageFromResponse(resp)
	if err != nil {
		return chat.Message{}, err
	}
	if n := len(msg.ToolCalls); n > 0 {
		log.Printf("[llm] %s returned %d tool calls", a.cfg, n)
	}
	return msg, nil
}
