package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tableagent/internal/config"
	"tableagent/internal/datagen"
	"tableagent/internal/gateway"
	"tableagent/internal/onboarding"
	"tableagent/internal/webui"
)

const heartbeatSchedule = "@every 1m"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "tableagent",
		Short:         "Ask questions about table data with a local or hosted LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.tableagent/config.json)")

	gw := func(cmd *cobra.Command) *gateway.Gateway {
		g := gateway.New(configPath)
		g.In = cmd.InOrStdin()
		g.Out = cmd.OutOrStdout()
		g.Err = cmd.ErrOrStderr()
		return g
	}

	root.AddCommand(
		runCmd(gw),
		chatCmd(gw),
		testCmd(gw),
		sleepCmd(),
		webCmd(gw),
		generateCmd(gw),
		setupCmd(&configPath),
	)
	return root
}

func runCmd(gw func(*cobra.Command) *gateway.Gateway) *cobra.Command {
	return &cobra.Command{
		Use:   "run <prompt...>",
		Short: "Answer a single prompt and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if prompt == "" {
				return fmt.Errorf("empty prompt")
			}
			return gw(cmd).Execute(cmd.Context(), prompt)
		},
	}
}

func chatCmd(gw func(*cobra.Command) *gateway.Gateway) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat over stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return gw(cmd).Run(cmd.Context())
		},
	}
}

func testCmd(gw func(*cobra.Command) *gateway.Gateway) *cobra.Command {
	var live bool
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Check configuration, capacity and model availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			gw(cmd).Diagnose(cmd.Context(), live)
			return nil
		},
	}
	cmd.Flags().BoolVar(&live, "live", false, "send a short prompt to the selected model")
	return cmd
}

func sleepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sleep",
		Short: "Stay idle until interrupted, logging a heartbeat every minute",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "tableagent is running and ready for commands.")
			fmt.Fprintln(out, "Use 'tableagent run', 'tableagent chat' or 'tableagent test' from another shell.")
			fmt.Fprintln(out, "Press Ctrl+C to stop.")
			err := sleep(cmd.Context(), heartbeatSchedule, func() {
				log.Printf("[sleep] heartbeat")
			})
			fmt.Fprintln(out, "stopping.")
			return err
		},
	}
}

// sleep runs beat on schedule until ctx is done.
func sleep(ctx context.Context, schedule string, beat func()) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, beat); err != nil {
		return fmt.Errorf("heartbeat schedule %q: %w", schedule, err)
	}
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func webCmd(gw func(*cobra.Command) *gateway.Gateway) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the chat page over websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			g := gw(cmd)
			cfg, err := g.LoadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.WebAddr
			}

			// The page still comes up without a model; each socket then gets
			// an error frame explaining why.
			var factory webui.SessionFactory
			rt, err := g.Start(ctx)
			if err != nil {
				log.Printf("[web] agent not initialized: %v", err)
			} else {
				defer rt.Close()
				factory = rt
			}

			srv := webui.NewServer(factory, addr, cfg.OutputDir)
			log.Printf("[web] listening on %s", addr)
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :8000)")
	return cmd
}

func generateCmd(gw func(*cobra.Command) *gateway.Gateway) *cobra.Command {
	var (
		kind string
		dir  string
		seed int64
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write synthetic sales datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = config.DefaultDataDir
				if cfg, err := gw(cmd).LoadConfig(); err == nil && cfg.DataDir != "" {
					dir = cfg.DataDir
				}
			}
			sets, err := datagen.Datasets(kind, seed)
			if err != nil {
				return err
			}
			paths, err := datagen.Write(dir, sets...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, ds := range sets {
				fmt.Fprintf(out, "wrote %s\n", paths[i])
				ds.Summary(out)
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", datagen.KindAll, "business, regular or all")
	cmd.Flags().StringVar(&dir, "dir", "", "output directory (default: configured data dir)")
	cmd.Flags().Int64Var(&seed, "seed", datagen.DefaultSeed, "random seed")
	return cmd
}

func setupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Write the config file interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := *configPath
			if path == "" {
				path = os.Getenv("TABLEAGENT_CONFIG")
			}
			if path == "" {
				path = config.DefaultPath
			}
			if isTTY(cmd.InOrStdin()) && isTTY(cmd.OutOrStdout()) {
				return onboarding.RunTUI(path)
			}
			return onboarding.RunPlain(onboarding.NewWizard(cmd.InOrStdin(), cmd.OutOrStdout()), path)
		},
	}
}

func isTTY(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
