package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pinas/console/internal/config"
	"github.com/pinas/console/internal/logging"
	"github.com/pinas/console/internal/shell"
)

const exitGeneralError = 1

type globalOptions struct {
	server     string
	configPath string
	logLevel   string
	logFile    string
	json       bool

	logger  *slog.Logger
	logSink *os.File
}

func execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		var r reportedError
		if !errors.As(err, &r) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(exitGeneralError)
	}
}

// reportedError marks an error that has already been shown to the user.
type reportedError struct{ error }

func (r reportedError) Unwrap() error { return r.error }

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "pinas-console",
		Short:         "Terminal desktop for a PiNAS server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setupLogging(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logSink != nil {
				_ = opts.logSink.Close()
			}
		},
	}
	cmd.Version = shell.Version
	cmd.SetVersionTemplate("{{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.server, "server", "", "Backend URL (overrides config and PINAS_SERVER)")
	pf.StringVar(&opts.configPath, "config", "", "Config file (default ~/.pinas/config.toml)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&opts.logFile, "log-file", "", "Also write JSON logs to this file")
	pf.BoolVar(&opts.json, "json", false, "Output JSON")

	cmd.AddCommand(
		newDesktopCmd(opts),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newSetupCmd(opts),
		newAppsCmd(opts),
		newPinCmd(opts),
		newUnpinCmd(opts),
		newStatsCmd(opts),
		newLocaleCmd(opts),
		newThemeCmd(opts),
	)
	return cmd
}

func (o *globalOptions) configManager() *config.Manager {
	if o.configPath != "" {
		return config.NewManagerAt(o.configPath)
	}
	return config.NewManager()
}

func (o *globalOptions) setupLogging(cmd *cobra.Command) error {
	level := o.logLevel
	if level == "" {
		if cfg, err := o.configManager().Load(); err == nil {
			level = cfg.LogLevel
		}
	}

	if o.logFile != "" {
		f, err := os.OpenFile(o.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		o.logSink = f
	}

	if o.logSink != nil {
		o.logger = logging.InitWriter(cmd.ErrOrStderr(), logging.ParseLevel(level), o.logSink)
	} else {
		o.logger = logging.InitWriter(cmd.ErrOrStderr(), logging.ParseLevel(level), nil)
	}
	return nil
}

// openConsole builds a console from the global flags and restores the saved
// session. Callers must Close it.
func (o *globalOptions) openConsole(cmd *cobra.Command) (*shell.Console, error) {
	c, err := shell.New(shell.Options{
		ConfigPath: o.configPath,
		Server:     o.server,
		Logger:     o.logger,
	})
	if err != nil {
		return nil, err
	}
	c.Restore(cmd.Context())
	return c, nil
}

// runE wraps a command body so failures are reported in the selected format.
func (o *globalOptions) runE(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if err != nil {
			outputError(cmd, o.json, err)
			return reportedError{err}
		}
		return nil
	}
}
