package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leantools/leanview/internal/app"
	"github.com/leantools/leanview/internal/lsp"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var rootFlags struct {
	server   string
	logFile  string
	logLevel string
	timeout  time.Duration
}

func run() int {
	root := &cobra.Command{
		Use:   "leanview FILE",
		Short: "Terminal infoview for Lean 4 proof state",
		Long: `leanview opens a Lean source file beside a live infoview: move the
cursor and the goals, hypotheses, and diagnostics at that position
follow. Each project root gets its own Lean language server, started
on demand and restarted on crashes.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := buildApp()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = app.Run(ctx, a, args[0])
			if shutdownErr := a.Shutdown(context.Background()); err == nil {
				err = shutdownErr
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, app.ErrQuit) {
				return nil
			}
			return err
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&rootFlags.server, "server", "", "Lean server command (default: lake serve, else lean --server)")
	flags.StringVar(&rootFlags.logFile, "log-file", "", "Write logs to this file instead of stderr")
	flags.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.DurationVar(&rootFlags.timeout, "timeout", app.DefaultRequestTimeout, "Goal request timeout")

	root.AddCommand(newGoalCommand(), newMCPCommand(), newVersionCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// buildApp constructs the application from the persistent flags. The
// returned cleanup closes the log file, if one was opened.
func buildApp() (*app.App, func(), error) {
	cleanup := func() {}

	logCfg := app.DefaultLoggerConfig()
	logCfg.Level = app.ParseLogLevel(rootFlags.logLevel)
	if rootFlags.logFile != "" {
		f, err := app.OpenLogFile(rootFlags.logFile)
		if err != nil {
			return nil, nil, err
		}
		logCfg.Output = f
		cleanup = func() { _ = f.Close() }
	}

	opts := []app.Option{
		app.WithLogger(app.NewLogger(logCfg)),
		app.WithRequestTimeout(rootFlags.timeout),
	}
	if rootFlags.server != "" {
		cfg, err := parseServerCommand(rootFlags.server)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		opts = append(opts, app.WithServerConfig(cfg))
	}

	a, err := app.New(opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return a, cleanup, nil
}

// parseServerCommand splits a --server value into the command and its
// arguments.
func parseServerCommand(value string) (lsp.ServerConfig, error) {
	parts := strings.Fields(value)
	if len(parts) == 0 {
		return lsp.ServerConfig{}, fmt.Errorf("--server %q: no command", value)
	}
	return lsp.ServerConfig{Command: parts[0], Args: parts[1:]}, nil
}
