// Digipind serves DIGIPIN conversions and history over HTTP.
//
// Configuration is read from ~/.config/digipin/config.yaml and DIGIPIN_*
// environment variables. See internal/config for details.
//
// Usage:
//
//	# Start the daemon with defaults
//	digipind
//
//	# Use another port and a shared NATS history
//	DIGIPIN_SERVER_HTTP_PORT=8080 DIGIPIN_STORAGE_BACKEND=nats digipind
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/digipin/internal/app"
	"github.com/fyrsmithlabs/digipin/internal/clipboard"
	"github.com/fyrsmithlabs/digipin/internal/config"
	httpserver "github.com/fyrsmithlabs/digipin/internal/http"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/digipin/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  digipind           Start the digipin daemon\n")
			fmt.Fprintf(os.Stderr, "  digipind version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("digipind by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run loads configuration and serves until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return serve(ctx, cfg)
}

// serve wires every component and blocks until ctx is cancelled.
//
//  1. Builds telemetry, logging, storage and services (internal/app)
//  2. Creates the HTTP server over them
//  3. Shuts down gracefully within the configured timeout
//
// A clean shutdown returns nil.
// newApp wires the daemon. Its stderr is a log stream, not a terminal, so
// conversions never write OSC 52 or run a clipboard command.
func newApp(ctx context.Context, cfg *config.Config) (*app.App, error) {
	return app.New(ctx, cfg, app.WithVersion(version), app.WithClipboard(clipboard.Nop{}))
}

func serve(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		_ = a.Close(context.Background())
	}()

	a.Logger.Info(ctx, "starting digipind",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Backend),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()),
	)

	srv, err := httpserver.NewServer(httpserver.Services{
		Converter: a.Workflow,
		History:   a.History,
		Selector:  a.Trigger,
		Maps:      a.Maps,
		Telemetry: a.Telemetry,
	}, a.Logger.Named("http"), &httpserver.Config{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		Version: version,

		MeterProvider: a.Telemetry.MeterProvider(),
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
