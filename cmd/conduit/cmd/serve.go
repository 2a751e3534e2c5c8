package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conduitmcp/conduit"
	"github.com/conduitmcp/conduit/internal/config"
	"github.com/conduitmcp/conduit/internal/telemetry"
	"github.com/conduitmcp/conduit/internal/version"
)

var serveRoot string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server with the example catalog",
	Long: `Start the conduit MCP server.

The server exposes /mcp (WebSocket and HTTP POST), /health, and /metrics
on the configured address, serving the built-in example tools, resources,
and prompts.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveRoot, "root", ".", "directory the read_file tool is allowed to read from")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := buildLogger(cfg.Log)

	// stop() restores default signal handling so a second Ctrl+C does a
	// hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	if cfg.Telemetry.TracingEnabled {
		shutdown, err := telemetry.SetupTracing(cfg.Server.Name, version.Version)
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	opts := []conduit.Option{
		conduit.WithName(cfg.Server.Name),
		conduit.WithVersion(version.Version),
		conduit.WithAddr(cfg.Server.Addr),
		conduit.WithLogger(logger),
		conduit.WithLimits(conduit.Limits{
			MaxSessions:     cfg.Limits.MaxSessions,
			MaxMessageBytes: cfg.Limits.MaxMessageBytes,
			MaxTools:        cfg.Limits.MaxTools,
			MaxResources:    cfg.Limits.MaxResources,
			MaxPrompts:      cfg.Limits.MaxPrompts,
		}),
	}
	if cfg.Server.SessionTimeout > 0 {
		opts = append(opts, conduit.WithEviction(cfg.Server.SessionTimeout, cfg.Server.EvictInterval))
	}
	if cfg.Audit.Enabled {
		opts = append(opts, conduit.WithAuditLog(cfg.Audit.Path))
	}

	srv := conduit.New(opts...)
	if err := registerExampleCatalog(srv, serveRoot); err != nil {
		return fmt.Errorf("failed to register catalog: %w", err)
	}

	logger.Info("starting conduit",
		"addr", cfg.Server.Addr,
		"name", cfg.Server.Name,
		"version", version.Version,
	)
	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("conduit stopped")
	return nil
}
