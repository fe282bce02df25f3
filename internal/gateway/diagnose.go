package gateway

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"tableagent/internal/catalog"
	"tableagent/internal/chat"
	"tableagent/internal/llm"
	"tableagent/internal/selector"
)

var (
	headStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type report struct{ w io.Writer }

func (r report) section(title string) {
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, headStyle.Render(strings.ToUpper(title)))
}

func (r report) ok(format string, args ...any) {
	fmt.Fprintln(r.w, okStyle.Render("  ✓ ")+fmt.Sprintf(format, args...))
}

func (r report) warn(format string, args ...any) {
	fmt.Fprintln(r.w, warnStyle.Render("  ! ")+fmt.Sprintf(format, args...))
}

func (r report) bad(format string, args ...any) {
	fmt.Fprintln(r.w, badStyle.Render("  ✗ ")+fmt.Sprintf(format, args...))
}

func (r report) info(format string, args ...any) {
	fmt.Fprintln(r.w, "    "+fmt.Sprintf(format, args...))
}

// Diagnose prints what the agent would run with. With live set it also sends
// one prompt to the selected model. Problems are reported, never returned.
func (g *Gateway) Diagnose(ctx context.Context, live bool) {
	r := report{w: g.Out}

	r.section("Configuration")
	cfg, err := g.LoadConfig()
	if err != nil {
		r.bad("config: %v", err)
		return
	}
	if cfg.Path != "" {
		r.ok("config file %s", cfg.Path)
	} else {
		r.info("%s", dimStyle.Render("no config file, using defaults and environment"))
	}
	if cfg.HasOverride() {
		r.ok("override %s/%s", cfg.Provider, cfg.Model)
	}
	r.info("prefer local: %t", cfg.PreferLocal)
	r.info("limits: %d iterations, model timeout %s, tool timeout %s", cfg.MaxIterations, cfg.ModelTimeout, cfg.ToolTimeout)

	r.section("System capacity")
	snap := g.prober().Probe(ctx)
	if snap.Err != nil {
		r.warn("memory detection failed: %v", snap.Err)
	}
	r.info("%s", snap)
	r.info("recommended local model: %s", snap.RecommendedModel())

	r.section("LLM availability")
	checker := checkerFor(cfg)
	set := checker.Check(ctx)
	switch {
	case !set.LocalReachable:
		r.warn("Ollama not reachable at %s", checker.BaseURL)
	case len(set.Local) == 0:
		r.warn("Ollama at %s has no models", checker.BaseURL)
	default:
		r.ok("Ollama at %s: %d models", checker.BaseURL, len(set.Local))
		for _, m := range set.Local {
			r.info("- %s", m)
		}
	}
	for _, p := range selector.RemotePriority {
		if set.Has(p) {
			r.ok("%s configured", p)
		} else {
			r.info("%s", dimStyle.Render(fmt.Sprintf("%s not configured", p)))
		}
	}

	r.section("Model selection")
	// Diagnostics never download models.
	sel := selector.Selector{}
	for _, preferLocal := range []bool{false, true} {
		req := selectionRequest(cfg, set, snap)
		req.PreferLocal = preferLocal
		c, err := sel.Select(ctx, req)
		label := "prefer APIs"
		if preferLocal {
			label = "prefer local"
		}
		if err != nil {
			r.bad("%s: %v", label, err)
			continue
		}
		r.ok("%s: %s", label, c)
	}
	choice, err := sel.Select(ctx, selectionRequest(cfg, set, snap))
	if err == nil {
		pc := cfg.ProviderConfig(choice.Provider, choice.Model)
		r.section("Selected model")
		r.info("%s", pc)
		if catalog.SupportsTools(choice.Provider, choice.Model) {
			r.ok("tool calling supported")
		} else {
			r.warn("tool calling not supported, answers will come without tools")
		}
		if err := pc.Validate(); err != nil {
			r.bad("%v", err)
		} else if live {
			g.ping(ctx, r, pc)
		}
	}

	r.section("Directories")
	checkDataDir(r, cfg.DataDir)
	checkOutputDir(r, cfg.OutputDir)
	fmt.Fprintln(g.Out)
}

func (g *Gateway) ping(ctx context.Context, r report, pc llm.ProviderConfig) {
	build := g.Build
	if build == nil {
		build = llm.Build
	}
	b, err := build(ctx, pc)
	if err != nil {
		r.bad("client: %v", err)
		return
	}
	r.ok("client created")
	msg, err := b.Adapter.Reply(ctx, []chat.Message{{Role: chat.RoleUser, Content: "Say 'Hello, World!' and nothing else."}}, nil)
	if err != nil {
		r.bad("invocation: %v", err)
		return
	}
	r.ok("invocation: %s", strings.TrimSpace(msg.Content))
}

func checkDataDir(r report, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		r.warn("data dir %s: %v", dir, err)
		return
	}
	n := 0
	for _, e := range entries {
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".csv", ".tsv", ".txt":
			n++
		}
	}
	r.ok("data dir %s: %d table files", dir, n)
}

func checkOutputDir(r report, dir string) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.bad("output dir %s: %v", dir, err)
		return
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		r.bad("output dir %s not writable: %v", dir, err)
		return
	}
	f.Close()
	os.Remove(f.Name())
	r.ok("output dir %s writable", dir)
}
