// Package llm builds chat.Adapter values for the supported providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"tableagent/internal/catalog"
	"tableagent/internal/chat"
)

var (
	// ErrMissingCredential is returned when a remote provider has no API key
	// (or, for Azure, no endpoint). It is not recoverable.
	ErrMissingCredential = errors.New("missing provider credential")
	// ErrToolBindingUnsupported marks a client that cannot accept tool
	// declarations. Callers may continue with a plain chat client.
	ErrToolBindingUnsupported = errors.New("tool binding unsupported")
)

// ProviderConfig identifies one provider/model pair and how to reach it.
type ProviderConfig struct {
	Provider catalog.Provider
	Model    string
	// BaseURL overrides the provider endpoint. For Azure it is the resource
	// endpoint and Model is the deployment name.
	BaseURL    string
	APIKey     string
	APIVersion string

	Temperature float64
	MaxTokens   int
}

func (c ProviderConfig) String() string {
	return fmt.Sprintf("%s/%s", c.Provider, c.Model)
}

// Validate checks that the credentials the provider needs are present.
func (c ProviderConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("provider %s: model is required", c.Provider)
	}
	switch c.Provider {
	case catalog.ProviderOllama:
		return nil
	case catalog.ProviderOpenAI:
		// OpenAI-compatible servers reached through a base URL may be keyless.
		if c.APIKey == "" && c.BaseURL == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingCredential)
		}
	case catalog.ProviderAnthropic:
		if c.APIKey == "" {
			return fmt.Errorf("%w: ANTHROPIC_API_KEY", ErrMissingCredential)
		}
	case catalog.ProviderAzureOpenAI:
		if c.APIKey == "" || c.BaseURL == "" {
			return fmt.Errorf("%w: AZURE_OPENAI_API_KEY and AZURE_OPENAI_ENDPOINT", ErrMissingCredential)
		}
	case catalog.ProviderGemini:
		if c.APIKey == "" {
			return fmt.Errorf("%w: GOOGLE_API_KEY", ErrMissingCredential)
		}
	default:
		return fmt.Errorf("unsupported provider: %s", c.Provider)
	}
	return nil
}

// NewAdapter returns the raw provider client without any tool handling.
func NewAdapter(ctx context.Context, cfg ProviderConfig) (chat.Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case catalog.ProviderOllama:
		return NewOllamaAdapter(cfg)
	case catalog.ProviderOpenAI:
		return NewOpenAIAdapter(cfg)
	case catalog.ProviderAnthropic:
		return NewAnthropicAdapter(cfg)
	case catalog.ProviderAzureOpenAI:
		return NewAzureAdapter(cfg), nil
	case catalog.ProviderGemini:
		return NewGeminiAdapter(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// Binding is the outcome of Build. When ToolBindingUnsupported is set the
// adapter drops tool declarations and the model answers in plain text.
type Binding struct {
	Adapter                chat.Adapter
	Config                 ProviderConfig
	ToolBindingUnsupported bool
}

// Err reports ErrToolBindingUnsupported for degraded bindings.
func (b Binding) Err() error {
	if b.ToolBindingUnsupported {
		return fmt.Errorf("%s: %w", b.Config, ErrToolBindingUnsupported)
	}
	return nil
}

// Build constructs a client for cfg. Models the catalog knows cannot call
// tools get a tool-less client up front; others are guarded so a provider
// rejecting tools at request time degrades instead of failing every turn.
func Build(ctx context.Context, cfg ProviderConfig) (Binding, error) {
	return build(ctx, cfg, NewAdapter)
}

type adapterFactory func(context.Context, ProviderConfig) (chat.Adapter, error)

func build(ctx context.Context, cfg ProviderConfig, factory adapterFactory) (Binding, error) {
	inner, err := factory(ctx, cfg)
	if err != nil {
		return Binding{}, err
	}
	g := &toolGuard{inner: inner, name: cfg.String()}
	b := Binding{Adapter: g, Config: cfg}
	if !catalog.SupportsTools(cfg.Provider, cfg.Model) {
		g.disabled.Store(true)
		b.ToolBindingUnsupported = true
		log.Printf("[llm] %s does not support tool calling; running without tools", cfg)
	}
	return b, nil
}

// toolGuard strips tool declarations once the model is known not to take them.
type toolGuard struct {
	inner    chat.Adapter
	name     string
	disabled atomic.Bool
}

func (g *toolGuard) Reply(ctx context.Context, history []chat.Message, params *chat.Params) (chat.Message, error) {
	if g.disabled.Load() {
		params = withoutTools(params)
	}
	msg, err := g.inner.Reply(ctx, history, params)
	if err != nil && params != nil && len(params.Tools) > 0 && rejectsTools(err) {
		log.Printf("[llm] %s rejected tool declarations (%v); retrying without tools", g.name, err)
		g.disabled.Store(true)
		return g.inner.Reply(ctx, history, withoutTools(params))
	}
	return msg, err
}

// ToolsEnabled reports whether the guard still forwards tool declarations.
func (g *toolGuard) ToolsEnabled() bool { return !g.disabled.Load() }

func withoutTools(p *chat.Params) *chat.Params {
	if p == nil || len(p.Tools) == 0 {
		return p
	}
	cp := *p
	cp.Tools = nil
	return &cp
}

func rejectsTools(err error) bool {
	if errors.Is(err, ErrToolBindingUnsupported) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "does not support tools") ||
		strings.Contains(msg, "tools are not supported") ||
		strings.Contains(msg, "tool use is not supported")
}
