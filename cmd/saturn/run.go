package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/saturn/pkg/auth"
	"mercator-hq/saturn/pkg/cli"
	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/pid"
	"mercator-hq/saturn/pkg/proxy"
	"mercator-hq/saturn/pkg/server"
	"mercator-hq/saturn/pkg/state"
	"mercator-hq/saturn/pkg/telemetry/logging"
	"mercator-hq/saturn/pkg/telemetry/metrics"
	"mercator-hq/saturn/pkg/telemetry/tracing"
	"mercator-hq/saturn/pkg/trace"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	watch         bool
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Saturn proxy server",
	Long: `Start the Saturn proxy server with the specified configuration.

The server listens on the configured address, classifies each request onto
a logical model, and forwards it down the model's provider fallback chain.

Examples:
  # Start with default config
  saturn run

  # Start with custom config
  saturn run --config /etc/saturn/config.yaml

  # Override listen address
  saturn run --listen 0.0.0.0:3456

  # Validate config without starting server
  saturn run --dry-run

  # Run without hot reload on config changes
  saturn run --watch=false`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", true, "reload when the config file changes on disk")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	path := configPath()
	cfg, err := config.LoadWithEnvOverrides(path)
	if err != nil {
		return cli.NewConfigError(path, err)
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Proxy.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	// Initialize logging based on config
	if _, err := logging.Setup(cfg.Telemetry.Logging, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	if runFlags.dryRun {
		printConfigSummary(cfg)
		fmt.Println("✓ Configuration valid")
		return nil
	}

	// Print startup banner
	printBanner(cfg, path)

	// OAuth token store
	tokens, err := auth.NewTokenStore(cfg.Auth.TokenStorePath, auth.NewOAuthClient())
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("open token store: %w", err))
	}

	// Build the first snapshot and the cell reloads swap through
	snapshot, err := state.Build(cfg, tokens)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("build runtime state: %w", err))
	}
	cell := state.NewCell(snapshot, path, tokens)
	fmt.Printf("✓ Providers initialized (%d providers, %d models)\n",
		snapshot.Registry.Len(), len(snapshot.Resolver.Models()))

	// Telemetry
	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	spans, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("init tracing: %w", err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := spans.Shutdown(flushCtx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}()

	// Request tracing and the routing statusline file
	tracer := trace.New(cfg.Trace)
	defer tracer.Close()
	routingState := trace.NewRoutingState(cfg.Trace.RoutingStateFile)
	if tracer.Enabled() {
		fmt.Printf("✓ Request tracing enabled (%s)\n", cfg.Trace.Dir)
	}

	// Cancelled on the first SIGINT/SIGTERM; bounds the background loops.
	ctx := cli.SetupSignalHandler()

	pruner := trace.NewPruner(cfg.Trace)
	if err := pruner.Start(ctx); err != nil {
		slog.Warn("trace pruner not started", "error", err)
	} else {
		defer pruner.Stop()
	}

	// Config hot reload
	if runFlags.watch {
		watcher, err := state.NewWatcher(cell, state.DefaultDebounce)
		if err != nil {
			slog.Warn("config watcher not started", "error", err)
		} else {
			go func() {
				if err := watcher.Watch(ctx); err != nil {
					slog.Warn("config watcher exited", "error", err)
				}
			}()
			defer watcher.Stop()
			fmt.Printf("✓ Watching %s for changes\n", path)
		}
	}

	// PID file for saturn stop / saturn status
	pidPath := pid.File()
	if err := pid.Write(pidPath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to write PID file: %v\n", err)
	} else {
		defer func() {
			if err := pid.Remove(pidPath); err != nil {
				slog.Warn("failed to remove PID file", "path", pidPath, "error", err)
			}
		}()
	}

	dispatcher := proxy.NewDispatcher(cell, collector, tracer, routingState, spans)
	srv := server.New(cfg, cell, dispatcher, collector, Version)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Proxy.ListenAddress)
	fmt.Printf("✓ Messages endpoint: http://%s/v1/messages\n", cfg.Proxy.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s%s\n", cfg.Proxy.ListenAddress, cfg.Telemetry.Health.LivenessPath)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Proxy.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for shutdown signal or server error. The server handles the
	// signal itself; the select here covers listener errors and makes the
	// shutdown explicit when the signal lands on this channel first.
	sigChan := cli.WaitForShutdown()

	select {
	case err := <-errChan:
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		fmt.Println("✓ Server stopped")
		return nil
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("shutdown failed", "error", err)
			return cli.NewCommandError("run", err)
		}
		<-errChan
		fmt.Println("✓ Server stopped")
		return nil
	}
}

func printBanner(cfg *config.Config, path string) {
	fmt.Printf("Mercator Saturn v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", path)
	fmt.Println("✓ Configuration loaded")
	printConfigSummary(cfg)
}

func printConfigSummary(cfg *config.Config) {
	fmt.Println("Router configuration:")
	fmt.Printf("  Default: %s\n", cfg.Router.Default)
	if cfg.Router.Background != "" {
		fmt.Printf("  Background: %s\n", cfg.Router.Background)
	}
	if cfg.Router.Think != "" {
		fmt.Printf("  Think: %s\n", cfg.Router.Think)
	}
	if cfg.Router.WebSearch != "" {
		fmt.Printf("  WebSearch: %s\n", cfg.Router.WebSearch)
	}
	if cfg.Router.Subagent != "" {
		fmt.Printf("  Subagent: %s\n", cfg.Router.Subagent)
	}
	fmt.Printf("  Providers: %d, Models: %d\n", len(cfg.Providers), len(cfg.Models))
}
