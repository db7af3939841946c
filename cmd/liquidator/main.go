package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/liquidator/config"
	"github.com/alejandrodnm/liquidator/internal/metrics"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one liquidation cycle and exit")
	dryRun := flag.Bool("dry-run", false, "build and estimate transactions but never submit them")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	report := flag.Duration("report", 0, "print the attempt journal for the given window (e.g. 24h) and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *dryRun {
		cfg.Liquidator.DryRun = true
	}
	setupLogger(cfg.Log)

	if *report > 0 {
		if err := runReport(cfg.Storage.DSN, *report); err != nil {
			slog.Error("report failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}

	slog.Info("liquidator starting",
		"config", *configPath,
		"name", cfg.Liquidator.Name,
		"dry_run", cfg.Liquidator.DryRun,
		"once", *once,
		"on_chain_price_only", cfg.Liquidator.OnChainPriceOnly,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, err := wire(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "err", err)
		os.Exit(1)
	}
	defer svc.Close()

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metrics.Router(3 * max(cfg.Interval(), cfg.VerifyWait())),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("metrics server listening", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if *once {
		if err := svc.engine.Init(ctx); err != nil {
			slog.Error("init failed", "err", err)
			svc.Close()
			os.Exit(1)
		}
		if _, err := svc.engine.RunCycle(ctx); err != nil {
			slog.Error("cycle failed", "err", err)
			svc.Close()
			os.Exit(1)
		}
		return
	}

	if err := svc.engine.Run(ctx); err != nil {
		slog.Error("liquidator exited with error", "err", err)
		svc.Close()
		os.Exit(1)
	}

	slog.Info("liquidator stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
