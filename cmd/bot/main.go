package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"lead_bot/internal/bot"
	"lead_bot/internal/config"
	"lead_bot/internal/fetcher"
	"lead_bot/internal/monitor"
	"lead_bot/internal/scheduler"
	"lead_bot/internal/scoring"
	"lead_bot/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Error("load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := store.EnsureDefaults(ctx, cfg.DefaultSettings()); err != nil {
		log.Error("seed settings", "error", err)
		os.Exit(1)
	}
	settings, err := store.GetSettings(ctx)
	if err != nil {
		log.Error("read settings", "error", err)
		os.Exit(1)
	}

	api, err := bot.NewAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Error("create bot api", "error", err)
		os.Exit(1)
	}
	log.Info("authorized", "username", api.Self.UserName)

	feeds := fetcher.New(&http.Client{Timeout: cfg.FetchTimeout},
		fetcher.WithAttempts(cfg.FetchAttempts),
		fetcher.WithTimeout(cfg.FetchTimeout),
	)
	mon := monitor.New(store, feeds, bot.NewNotifier(api, cfg.AdminID, log), scoring.New(scoring.DefaultWeights()), log,
		monitor.WithBatchSize(cfg.FetchBatchSize),
	)

	sched := scheduler.New(mon, settings.PollInterval, log)
	b := bot.New(api, store, cfg, feeds, sched, log)

	log.Info("starting bot", "interval", settings.PollInterval, "monitoring", settings.MonitoringEnabled)

	if err := sched.Start(ctx); err != nil {
		log.Error("start scheduler", "error", err)
		os.Exit(1)
	}

	b.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := sched.Shutdown(shutdownCtx); err != nil {
		log.Warn("scheduler shutdown", "error", err)
	}

	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
