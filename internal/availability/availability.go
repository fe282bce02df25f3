// Package availability finds out which chat backends this process can reach.
package availability

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"tableagent/internal/catalog"
)

const DefaultOllamaURL = "http://localhost:11434"

// Set is a snapshot of what was reachable when Check ran.
type Set struct {
	// Local holds the local runtime's model tags in the order it reported them.
	Local          []string
	LocalReachable bool
	Remote         map[catalog.Provider]bool
}

// Has reports whether a remote provider has credentials configured.
func (s Set) Has(p catalog.Provider) bool {
	return s.Remote[p]
}

// Checker talks to the local Ollama server through its API client and looks
// for provider credentials in the environment.
type Checker struct {
	BaseURL string
	Client  *http.Client
	Getenv  func(string) string

	// PullTimeout bounds a model download.
	PullTimeout time.Duration
}

// NewChecker returns a checker for the given Ollama base URL.
func NewChecker(baseURL string) *Checker {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultOllamaURL
	}
	return &Checker{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Client:      &http.Client{Timeout: 2 * time.Second},
		Getenv:      os.Getenv,
		PullTimeout: 10 * time.Minute,
	}
}

// Check collects local models and remote credential flags.
func (c *Checker) Check(ctx context.Context) Set {
	set := Set{Remote: c.remote()}
	models, err := c.ListModels(ctx)
	if err == nil {
		set.LocalReachable = true
		set.Local = models
	}
	return set
}

func (c *Checker) remote() map[catalog.Provider]bool {
	getenv := c.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	has := func(keys ...string) bool {
		for _, k := range keys {
			if strings.TrimSpace(getenv(k)) == "" {
				return false
			}
		}
		return true
	}
	return map[catalog.Provider]bool{
		catalog.ProviderOpenAI:      has("OPENAI_API_KEY"),
		catalog.ProviderAnthropic:   has("ANTHROPIC_API_KEY"),
		catalog.ProviderAzureOpenAI: has("AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT"),
		catalog.ProviderGemini:      has("GOOGLE_API_KEY"),
	}
}

// api returns an Ollama client over hc, or over the checker's own client.
func (c *Checker) api(hc *http.Client) (*api.Client, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama url %q: %w", c.BaseURL, err)
	}
	if hc == nil {
		hc = c.httpClient()
	}
	return api.NewClient(base, hc), nil
}

// ListModels returns the tags the local runtime has pulled.
func (c *Checker) ListModels(ctx context.Context) ([]string, error) {
	client, err := c.api(nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ollama unreachable at %s: %w", c.BaseURL, err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Reachable reports whether the local runtime answers.
func (c *Checker) Reachable(ctx context.Context) bool {
	client, err := c.api(nil)
	if err != nil {
		return false
	}
	return client.Heartbeat(ctx) == nil
}

// Provision downloads model into the local runtime unless it is already there.
// Progress is logged as it streams in.
func (c *Checker) Provision(ctx context.Context, model string) error {
	if existing, err := c.ListModels(ctx); err == nil {
		for _, m := range existing {
			if strings.Contains(m, model) {
				return nil
			}
		}
	}

	if c.PullTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.PullTimeout)
		defer cancel()
	}

	// The pull streams for minutes; the short request timeout must not apply.
	client, err := c.api(&http.Client{Transport: c.httpClient().Transport})
	if err != nil {
		return err
	}

	log.Printf("[availability] pulling model %s, this may take a few minutes", model)
	last := ""
	err = client.Pull(ctx, &api.PullRequest{Model: model}, func(p api.ProgressResponse) error {
		if p.Status != "" && p.Status != last {
			log.Printf("[availability]   %s", p.Status)
			last = p.Status
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pull %s: %w", model, err)
	}
	return nil
}

func (c *Checker) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}
