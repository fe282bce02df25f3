package gateway

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"tableagent/internal/agent"
	"tableagent/internal/availability"
	"tableagent/internal/config"
	"tableagent/internal/llm"
	"tableagent/internal/middleware"
	"tableagent/internal/probe"
	"tableagent/internal/selector"
	"tableagent/internal/termui"
	"tableagent/internal/tools"
	_ "tableagent/middlewares/autoload" // Auto-load all middlewares
)

// BuildFunc creates the model binding for a session.
type BuildFunc func(ctx context.Context, cfg llm.ProviderConfig) (llm.Binding, error)

// Gateway turns configuration into agent sessions for the CLI and the web UI.
type Gateway struct {
	ConfigPath string

	In  io.Reader
	Out io.Writer
	Err io.Writer

	// Probe, Build and Getenv replace host detection, the model factory and
	// the environment. Nil means the real ones.
	Probe  probe.HostCapacityProbe
	Build  BuildFunc
	Getenv func(string) string
}

func New(configPath string) *Gateway {
	return &Gateway{
		ConfigPath: configPath,
		In:         os.Stdin,
		Out:        os.Stdout,
		Err:        os.Stderr,
	}
}

// Runtime is what every session shares. It is not modified after Start.
type Runtime struct {
	Config    config.Config
	Capacity  probe.CapacitySnapshot
	Available availability.Set
	Choice    selector.Choice
	Provider  llm.ProviderConfig
	Tools     *tools.Registry
	Chain     *middleware.Chain
	Trace     *middleware.JSONL

	build   BuildFunc
	closers []io.Closer
}

// LoadConfig resolves configuration the way Start does.
func (g *Gateway) LoadConfig() (config.Config, error) {
	return config.Loader{Path: g.ConfigPath, Getenv: g.Getenv}.Load()
}

func (g *Gateway) prober() probe.HostCapacityProbe {
	if g.Probe != nil {
		return g.Probe
	}
	return probe.NewHost()
}

func checkerFor(cfg config.Config) *availability.Checker {
	c := availability.NewChecker(cfg.OllamaBaseURL)
	c.Getenv = cfg.Env
	return c
}

func selectionRequest(cfg config.Config, set availability.Set, snap probe.CapacitySnapshot) selector.Request {
	req := selector.Request{Available: set, Capacity: snap, PreferLocal: cfg.PreferLocal}
	if cfg.HasOverride() {
		req.Override = &selector.Choice{Provider: cfg.Provider, Model: cfg.Model}
	}
	return req
}

// Start detects the host, picks a model and prepares tools and middleware.
func (g *Gateway) Start(ctx context.Context) (*Runtime, error) {
	cfg, err := g.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	snap := g.prober().Probe(ctx)
	checker := checkerFor(cfg)
	set := checker.Check(ctx)

	choice, err := selector.Selector{Provisioner: checker}.Select(ctx, selectionRequest(cfg, set, snap))
	if err != nil {
		return nil, err
	}
	log.Printf("[gateway] selected %s (%s)", choice, snap)

	pc := cfg.ProviderConfig(choice.Provider, choice.Model)
	if err := pc.Validate(); err != nil {
		return nil, err
	}

	rt := &Runtime{
		Config:    cfg,
		Capacity:  snap,
		Available: set,
		Choice:    choice,
		Provider:  pc,
		build:     g.Build,
	}
	if rt.build == nil {
		rt.build = llm.Build
	}

	if cfg.TracePath != "" {
		_ = os.MkdirAll(filepath.Dir(cfg.TracePath), 0o755)
		f, err := os.OpenFile(cfg.TracePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Printf("[gateway] warning: failed to open trace file (%s): %v", cfg.TracePath, err)
		} else {
			rt.Trace = middleware.NewJSONL(f)
			rt.closers = append(rt.closers, f)
		}
	}
	rt.Chain = middleware.NewChainFromRegistry(cfg.DisabledMiddlewares, rt.Trace)

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		rt.Close()
		return nil, fmt.Errorf("output dir %s: %w", cfg.OutputDir, err)
	}
	rt.Tools = tools.Default(cfg.DataDir, cfg.OutputDir)
	return rt, nil
}

// Close releases the trace file.
func (r *Runtime) Close() {
	for _, c := range r.closers {
		_ = c.Close()
	}
	r.closers = nil
}

func (r *Runtime) eventContext() map[string]any {
	m := map[string]any{}
	for _, id := range r.Config.EnabledMiddlewares {
		m[id] = true
	}
	if r.Config.TokenBudget > 0 {
		m["token_budget"] = r.Config.TokenBudget
	}
	return m
}

// NewSession builds a fresh model client and an empty conversation.
func (r *Runtime) NewSession(ctx context.Context) (*agent.Session, error) {
	b, err := r.build(ctx, r.Provider)
	if err != nil {
		return nil, fmt.Errorf("build model client %s: %w", r.Provider, err)
	}
	if b.ToolBindingUnsupported {
		log.Printf("[gateway] warning: %v, answering without tools", b.Err())
	}

	evctx := r.eventContext()
	loop := agent.NewLoop(b.Adapter, r.Tools,
		agent.WithMiddlewareChain(r.Chain),
		agent.WithTrace(r.Trace),
		agent.WithMaxIterations(r.Config.MaxIterations),
		agent.WithModelTimeout(r.Config.ModelTimeout),
		agent.WithToolTimeout(r.Config.ToolTimeout),
		agent.WithEventContext(evctx),
	)
	opts := []agent.SessionOption{
		agent.WithReplyChain(r.Chain),
		agent.WithReplyContext(evctx),
	}
	if r.Config.SystemPrompt != "" {
		opts = append(opts, agent.WithSystemPrompt(r.Config.SystemPrompt))
	}
	return agent.NewSession(loop, opts...), nil
}

// Execute answers a single prompt.
func (g *Gateway) Execute(ctx context.Context, input string) error {
	rt, err := g.Start(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	session, err := rt.NewSession(ctx)
	if err != nil {
		return err
	}

	stop := termui.StartSpinner(g.Err, "thinking")
	reply, err := session.Send(ctx, input)
	stop()
	if err != nil {
		return err
	}
	fmt.Fprintln(g.Out, termui.Render(g.Out, reply))
	return nil
}

// Run is the interactive loop. Turn errors are printed and the loop goes on.
func (g *Gateway) Run(ctx context.Context) error {
	rt, err := g.Start(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	session, err := rt.NewSession(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(g.Out, "tableagent chat")
	fmt.Fprintf(g.Out, "model=%s, provider=%s, url=%s\n", rt.Choice.Model, rt.Choice.Provider, valueOrDefault(rt.Provider.BaseURL, "default"))
	fmt.Fprintf(g.Out, "data=%s, outputs=%s\n", rt.Config.DataDir, rt.Config.OutputDir)
	fmt.Fprintln(g.Out, "Type exit to quit, /clear to reset context.")
	fmt.Fprintf(g.Out, "Tools loaded: %s\n", strings.Join(rt.Tools.Names(), ", "))

	scanner := bufio.NewScanner(g.In)
	if c, ok := g.In.(io.Closer); ok {
		go func() {
			<-ctx.Done()
			c.Close() // Force read error to break loop
		}()
	}

	for {
		fmt.Fprint(g.Out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(g.Out)
			return nil
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		switch strings.ToLower(input) {
		case "/exit", "exit", "quit":
			return nil
		case "/clear":
			session.Clear()
			fmt.Fprintln(g.Out, "context cleared")
			continue
		}

		stop := termui.StartSpinner(g.Err, "thinking")
		reply, err := session.Send(ctx, input)
		stop()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(g.Err, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(g.Out, termui.Render(g.Out, reply))
	}
}

func valueOrDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// IsSelectionError reports whether err came from model selection rather
// than from a turn.
func IsSelectionError(err error) bool {
	return errors.Is(err, selector.ErrNoProviderAvailable) || errors.Is(err, llm.ErrMissingCredential)
}
