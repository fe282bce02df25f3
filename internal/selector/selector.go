// Package selector decides which provider and model a process should use.
package selector

import (
	"context"
	"errors"
	"fmt"

	"tableagent/internal/availability"
	"tableagent/internal/catalog"
	"tableagent/internal/probe"
)

// ErrNoProviderAvailable means no local model, no reachable runtime and no
// remote credentials were found.
var ErrNoProviderAvailable = errors.New("no LLM available: configure API keys or install Ollama")

// Choice is a (provider, model) pair.
type Choice struct {
	Provider catalog.Provider
	Model    string
}

func (c Choice) IsZero() bool { return c.Provider == "" || c.Model == "" }

func (c Choice) String() string { return fmt.Sprintf("%s/%s", c.Provider, c.Model) }

// RemotePriority is the fixed order in which remote providers are tried.
var RemotePriority = []catalog.Provider{
	catalog.ProviderOpenAI,
	catalog.ProviderAnthropic,
	catalog.ProviderAzureOpenAI,
	catalog.ProviderGemini,
}

// DefaultModels maps each remote provider to the model picked for it.
var DefaultModels = map[catalog.Provider]string{
	catalog.ProviderOpenAI:      "gpt-4o-mini",
	catalog.ProviderAnthropic:   "claude-3-haiku-20240307",
	catalog.ProviderAzureOpenAI: "gpt-4o-mini",
	catalog.ProviderGemini:      "gemini-2.0-flash",
}

// Provisioner downloads a local model on demand.
type Provisioner interface {
	Provision(ctx context.Context, model string) error
}

// Request bundles the selection inputs.
type Request struct {
	Available   availability.Set
	Capacity    probe.CapacitySnapshot
	PreferLocal bool
	// Override, when both fields are set, is returned verbatim.
	Override *Choice
}

// Selector applies the selection policy. Provisioner may be nil, in which case
// the download step is skipped.
type Selector struct {
	Provisioner Provisioner
}

// Select returns the provider/model to use, or ErrNoProviderAvailable.
// For identical inputs the result is always the same.
func (s Selector) Select(ctx context.Context, req Request) (Choice, error) {
	if req.Override != nil && !req.Override.IsZero() {
		return *req.Override, nil
	}

	if !req.PreferLocal {
		if c, ok := firstRemote(req.Available); ok {
			return c, nil
		}
	}

	recommended := req.Capacity.RecommendedModel()
	if c, ok := pickLocal(req.Available.Local, recommended); ok {
		return c, nil
	}

	if len(req.Available.Local) == 0 && req.Available.LocalReachable && s.Provisioner != nil {
		if err := s.Provisioner.Provision(ctx, recommended); err == nil {
			return Choice{Provider: catalog.ProviderOllama, Model: recommended}, nil
		}
	}

	if req.PreferLocal {
		if c, ok := firstRemote(req.Available); ok {
			return c, nil
		}
	}
	return Choice{}, ErrNoProviderAvailable
}

func firstRemote(set availability.Set) (Choice, bool) {
	for _, p := range RemotePriority {
		if set.Has(p) {
			return Choice{Provider: p, Model: DefaultModels[p]}, true
		}
	}
	return Choice{}, false
}

// pickLocal prefers the recommended family, then any tool-capable family,
// then whatever model came first.
func pickLocal(local []string, recommended string) (Choice, bool) {
	if len(local) == 0 {
		return Choice{}, false
	}
	family := catalog.Stem(recommended)
	for _, m := range local {
		if catalog.MatchesFamily(m, family) {
			return Choice{Provider: catalog.ProviderOllama, Model: m}, true
		}
	}
	for _, m := range local {
		if catalog.FamilyOf(m).Capabilities().Tools {
			return Choice{Provider: catalog.ProviderOllama, Model: m}, true
		}
	}
	return Choice{Provider: catalog.ProviderOllama, Model: local[0]}, true
}
