// Package main provides the trackref binary entry point.
// Trackref watches chat channels for Redmine references and answers with
// verified tracker URLs.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/trackref/config"
	refwatcher "github.com/c360studio/trackref/processor/ref-watcher"
	"github.com/c360studio/trackref/reference"
	"github.com/c360studio/trackref/resolve"
	"github.com/c360studio/trackref/verify"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "trackref"
)

// errLookupFailed marks a resolve command whose reply was a failure.
var errLookupFailed = errors.New("lookup failed")

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Redmine reference resolver for chat",
		Long: `Trackref watches chat text for Redmine references such as #45, r10,
[123], changeset:abc123 and wiki:FooBar, turns them into URLs on the tracker
configured for the channel, checks the page exists and replies with its title.

Chat messages arrive over NATS from a chat gateway and replies go back the
same way.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML); default is the user and project config files")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(flags),
		resolveCmd(flags),
		extractCmd(),
		initConfigCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

// newLogger maps a --log-level value onto a text logger on w.
func newLogger(logLevel string, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func serveCmd(flags *globalFlags) *cobra.Command {
	var shutdownTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Watch chat messages on NATS and reply to references",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(flags.logLevel, os.Stderr)
			slog.SetDefault(logger)

			loader := config.NewLoader(flags.configPath, logger)
			cfg, sources, err := loader.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			store := config.NewStore(cfg, func() (*config.Config, error) {
				cfg, _, err := loader.Load()
				return cfg, err
			}, logger)

			// Setup signal handling
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			app := NewApp(store, sources, logger)
			defer app.Shutdown(shutdownTimeout)

			if err := app.Start(ctx); err != nil {
				return err
			}

			logger.Info("Trackref ready",
				"version", Version,
				"nats", app.NATSURL(),
				"channels", len(cfg.Tracker.ChannelMap),
				"config_files", sources)

			// Block until shutdown signal
			<-ctx.Done()
			logger.Info("Received shutdown signal")
			return nil
		},
	}

	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "Time allowed for in-flight lookups on shutdown")
	return cmd
}

func resolveCmd(flags *globalFlags) *cobra.Command {
	var channel, nick string

	cmd := &cobra.Command{
		Use:   "resolve <ref>",
		Short: "Look up one reference the way an explicit redmineinfo query does",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(flags.logLevel, cmd.ErrOrStderr())

			cfg, _, err := config.NewLoader(flags.configPath, logger).Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			snap, err := cfg.Snapshot()
			if err != nil {
				return err
			}

			coordinator := resolve.NewCoordinator(verify.NewVerifier(verify.NewFetcher(nil), logger), logger)
			out := coordinator.ResolveAndVerify(cmd.Context(), args[0], channel, snap)
			if !out.OK() {
				fmt.Fprintln(cmd.OutOrStdout(), refwatcher.FormatFailure(nick, out))
				return fmt.Errorf("%w: %s", errLookupFailed, resolve.Classify(out.Err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), refwatcher.FormatSuccess(nick, out))
			return nil
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "Channel whose tracker to use (required)")
	cmd.Flags().StringVar(&nick, "nick", os.Getenv("USER"), "Nick to address the reply to")
	_ = cmd.MarkFlagRequired("channel")
	return cmd
}

func extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <text>...",
		Short: "Print the references found in text, one per line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for token := range reference.Extract(strings.Join(args, " ")) {
				ref, err := reference.Classify(token)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", token, ref.Kind)
			}
			return nil
		},
	}
}

func initConfigCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a default config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ProjectConfigFile
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.DefaultConfig().SaveToFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
