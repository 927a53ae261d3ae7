package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"buswatch"
	"buswatch/config"
)

const shutdownTimeout = 10 * time.Second

// newLogger creates a JSON logger for CLI use.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// serveCmd starts the buswatch server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start tracking and serve the API",
	Long: `Start the buswatch server.

The server will:
  - Load configuration from the specified YAML file
  - Perform the mandatory first refresh of every subscription
  - Keep refreshing on the configured cadence
  - Serve the JSON API, SSE stream, and metrics on the configured port

A subscription whose first refresh fails aborts startup; later failures
only mark that subscription unavailable until a refresh succeeds.

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  buswatch serve -c config.yaml
  buswatch serve --config /etc/buswatch/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"subscriptions", len(cfg.Subscriptions),
		"refresh_interval", cfg.RefreshInterval.Duration().String(),
	)

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build subscriptions: %w", err)
	}
	opts = append(opts, buswatch.WithLogger(logger))

	bw, err := buswatch.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create buswatch: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- bw.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
