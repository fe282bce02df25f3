// Package onboarding writes the config file: a bubbletea wizard for
// terminals and a line-based one for everything else.
package onboarding

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"tableagent/internal/availability"
	"tableagent/internal/catalog"
	"tableagent/internal/config"
	"tableagent/internal/middleware"
	"tableagent/internal/selector"
	_ "tableagent/middlewares/autoload" // Auto-load all middlewares
)

type providerInfo struct {
	id     catalog.Provider
	desc   string
	keyEnv string
}

var providers = []providerInfo{
	{catalog.ProviderOllama, "Local execution via Ollama", ""},
	{catalog.ProviderOpenAI, "OpenAI GPT models (requires API Key)", "OPENAI_API_KEY"},
	{catalog.ProviderAnthropic, "Claude models (requires API Key)", "ANTHROPIC_API_KEY"},
	{catalog.ProviderAzureOpenAI, "Azure OpenAI deployment (API Key and endpoint)", "AZURE_OPENAI_API_KEY"},
	{catalog.ProviderGemini, "Google Gemini models (requires API Key)", "GOOGLE_API_KEY"},
}

func keyEnv(p catalog.Provider) string {
	for _, info := range providers {
		if info.id == p {
			return info.keyEnv
		}
	}
	return ""
}

// cloudModels lists the suggested models, default first.
func cloudModels(p catalog.Provider) []string {
	extra := map[catalog.Provider][]string{
		catalog.ProviderOpenAI:      {"gpt-4o", "gpt-4.1-mini"},
		catalog.ProviderAnthropic:   {"claude-3-5-sonnet-latest", "claude-3-5-haiku-latest"},
		catalog.ProviderAzureOpenAI: {"gpt-4o"},
		catalog.ProviderGemini:      {"gemini-2.5-flash", "gemini-2.5-pro"},
	}
	return append([]string{selector.DefaultModels[p]}, extra[p]...)
}

// LocalModels lists the models the local Ollama has pulled. Nil when it is
// not reachable.
func LocalModels(baseURL string) []string {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	models, err := availability.NewChecker(baseURL).ListModels(ctx)
	if err != nil {
		return nil
	}
	return models
}

func defaultMiddlewares() []config.MiddlewareSetting {
	registered := middleware.Registered()
	sort.Slice(registered, func(i, j int) bool {
		return registered[i].ID() < registered[j].ID()
	})
	settings := make([]config.MiddlewareSetting, len(registered))
	for i, mw := range registered {
		settings[i] = config.MiddlewareSetting{ID: mw.ID(), Enabled: middleware.DefaultEnabled(mw)}
	}
	return settings
}

// Wizard is the line-based setup for non-interactive terminals.
type Wizard struct {
	scanner *bufio.Scanner
	out     io.Writer
	eof     bool

	// ListLocal returns local models; nil uses LocalModels.
	ListLocal func(baseURL string) []string
}

func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{scanner: bufio.NewScanner(in), out: out}
}

func (w *Wizard) readLine() string {
	if !w.scanner.Scan() {
		w.eof = true
		return ""
	}
	return strings.TrimSpace(w.scanner.Text())
}

// Run asks its questions and returns the file to save.
func (w *Wizard) Run() (*config.File, error) {
	fmt.Fprintln(w.out, "\nWelcome to tableagent setup!")
	fmt.Fprintln(w.out, "Let's pick a model and where your data lives.")
	fmt.Fprintln(w.out, strings.Repeat("-", 40))

	f := &config.File{}

	fmt.Fprintln(w.out, "\n[1/3] LLM Configuration")
	w.askProvider(f)
	w.askBaseURL(f)
	w.askModel(f)
	w.askAPIKey(f)

	fmt.Fprintln(w.out, "\n[2/3] Data")
	f.DataDir = w.ask("Data directory", config.DefaultDataDir)
	f.OutputDir = w.ask("Chart output directory", config.DefaultOutputDir)

	fmt.Fprintln(w.out, "\n[3/3] Middlewares")
	menu := NewMiddlewareMenu(w.scanner, w.out)
	settings, budget := menu.Run(defaultMiddlewares())
	f.Middlewares = settings
	f.TokenBudget = budget

	w.summarize(f)
	return f, nil
}

func (w *Wizard) ask(label, def string) string {
	if def != "" {
		fmt.Fprintf(w.out, "%s (default: %s): ", label, def)
	} else {
		fmt.Fprintf(w.out, "%s: ", label)
	}
	if v := w.readLine(); v != "" {
		return v
	}
	return def
}

func (w *Wizard) askProvider(f *config.File) {
	fmt.Fprintln(w.out, "Select LLM Provider:")
	for i, p := range providers {
		fmt.Fprintf(w.out, "%d) %-13s %s\n", i+1, p.id, p.desc)
	}
	for {
		fmt.Fprint(w.out, "Choice (default: 1): ")
		input := w.readLine()
		if input == "" || w.eof {
			f.Provider = string(catalog.ProviderOllama)
			return
		}
		if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(providers) {
			f.Provider = string(providers[n-1].id)
			return
		}
		fmt.Fprintf(w.out, "Invalid choice. Please select 1-%d.\n", len(providers))
	}
}

func (w *Wizard) askBaseURL(f *config.File) {
	switch catalog.Provider(f.Provider) {
	case catalog.ProviderOllama:
		f.OllamaBaseURL = w.ask("Ollama URL", config.DefaultOllamaURL)
	case catalog.ProviderAzureOpenAI:
		f.BaseURL = w.ask("Azure OpenAI endpoint", "")
	case catalog.ProviderOpenAI:
		f.BaseURL = w.ask("OpenAI-compatible base URL (empty for api.openai.com)", "")
	}
}

func (w *Wizard) askModel(f *config.File) {
	var models []string
	if catalog.Provider(f.Provider) == catalog.ProviderOllama {
		list := w.ListLocal
		if list == nil {
			list = LocalModels
		}
		models = list(f.OllamaBaseURL)
		if len(models) == 0 {
			fmt.Fprintln(w.out, "Ollama has no models yet; the first run pulls the one you pick.")
			models = catalog.ToolCapableModels()
		}
	} else {
		models = cloudModels(catalog.Provider(f.Provider))
	}
	fmt.Fprintf(w.out, "Suggested models: %s\n", strings.Join(models, ", "))
	f.Model = w.ask("Model", models[0])
	if !catalog.SupportsTools(catalog.Provider(f.Provider), f.Model) {
		fmt.Fprintf(w.out, "Note: %s has no tool calling; the agent will answer without tools.\n", f.Model)
	}
}

func (w *Wizard) askAPIKey(f *config.File) {
	env := keyEnv(catalog.Provider(f.Provider))
	if env == "" {
		return
	}
	f.APIKey = w.ask(fmt.Sprintf("API Key (or leave empty if set in %s)", env), "")
}

func (w *Wizard) summarize(f *config.File) {
	fmt.Fprintln(w.out, "\n"+strings.Repeat("=", 40))
	fmt.Fprintln(w.out, "Setup Summary:")
	fmt.Fprintf(w.out, "Provider: %s\n", f.Provider)
	fmt.Fprintf(w.out, "Model:    %s\n", f.Model)
	if f.OllamaBaseURL != "" {
		fmt.Fprintf(w.out, "URL:      %s\n", f.OllamaBaseURL)
	}
	if f.BaseURL != "" {
		fmt.Fprintf(w.out, "URL:      %s\n", f.BaseURL)
	}
	fmt.Fprintf(w.out, "Data:     %s\n", f.DataDir)
	fmt.Fprintf(w.out, "Outputs:  %s\n", f.OutputDir)
	fmt.Fprintln(w.out, strings.Repeat("=", 40))

	fmt.Fprintln(w.out, "\nTip: the same settings work as environment variables:")
	fmt.Fprintf(w.out, "export LLM_PROVIDER=%s\n", f.Provider)
	fmt.Fprintf(w.out, "export LLM_MODEL=%s\n", f.Model)
	if f.APIKey != "" {
		fmt.Fprintf(w.out, "export %s=***\n", keyEnv(catalog.Provider(f.Provider)))
	}
}
