package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"gramspace/internal/core/app"
	"gramspace/internal/core/config"
	"gramspace/internal/shared/observability"
)

var (
	configPath = flag.String("config", "./gramspace.toml", "Path to config file")
	once       = flag.Bool("once", false, "Build all grammars once and exit")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("gramspace v%s\n", VERSION)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if *configPath == "./gramspace.toml" {
			cfg, err = config.Load("./gramspace.example.toml")
		}
		if err != nil {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TraceConfig{
		ServiceName:    "gramspace",
		ServiceVersion: VERSION,
		Exporter:       cfg.Observability.TraceExporter,
		Endpoint:       cfg.Observability.OTLPEndpoint,
		Insecure:       cfg.Observability.OTLPInsecure,
	})
	if err != nil {
		slog.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(ctx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}()

	a, err := app.New(cfg, *configPath)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}
	defer a.Close(ctx)

	if cfg.Observability.MetricsAddr != "" {
		server := observability.NewServer(cfg.Observability.MetricsAddr, a.Health)
		if err := server.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			os.Exit(1)
		}
		defer server.Stop(ctx)
	}

	if err := a.BuildAll(ctx); err != nil {
		slog.Error("build failed", "error", err)
	}
	printSummary(a.Results())

	if *once {
		for _, r := range a.Results() {
			if r.Err != nil {
				os.Exit(1)
			}
		}
		os.Exit(0)
	}

	if err := a.StartWatcher(ctx); err != nil {
		slog.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}
	slog.Info("watching for config changes", "paths", cfg.Watch.Paths)

	select {}
}
