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

	"github.com/baxromumarov/job-extractor/internal/api"
	"github.com/baxromumarov/job-extractor/internal/browser"
	"github.com/baxromumarov/job-extractor/internal/config"
	"github.com/baxromumarov/job-extractor/internal/events"
	"github.com/baxromumarov/job-extractor/internal/extractor"
	"github.com/baxromumarov/job-extractor/internal/store"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	x := extractor.New(append(cfg.Policies(), extractor.WithLogger(logger))...)

	fetcher, err := cfg.Fetcher()
	if err != nil {
		slog.Error("failed to build fetcher", "error", err)
		os.Exit(1)
	}

	broker := events.NewBroker(cfg.Events.Buffer)
	defer broker.Close()

	opts := []api.Option{api.WithCORSOrigins(cfg.CORSOrigins)}

	if cfg.DatabaseURL != "" {
		dbStore, err := store.NewStore(cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to store", "error", err)
			os.Exit(1)
		}
		defer dbStore.Close()

		// Bundled schema; tables are created if missing
		if err := dbStore.RunMigrations(""); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		if cfg.Retention > 0 {
			store.NewRetention(dbStore, cfg.Retention, 24*time.Hour).Start(ctx)
		}
		opts = append(opts, api.WithStore(dbStore))
	} else {
		slog.Info("DATABASE_URL not set, saved postings disabled")
	}

	if cfg.Browser.Enabled {
		b, err := browser.Start(ctx, browser.Options{
			ExecPath:  cfg.Browser.ExecPath,
			Headless:  cfg.Browser.Headless,
			UserAgent: cfg.Fetch.UserAgent,
		})
		if err != nil {
			slog.Error("failed to start browser", "error", err)
			os.Exit(1)
		}
		defer b.Close()

		sessions := api.NewSessions(api.BrowserOpener(b), x, broker, cfg.Watch.SettleDelay, cfg.Watch.MaxSessions)
		defer sessions.CloseAll()
		opts = append(opts, api.WithSessions(sessions))
	} else {
		slog.Info("browser disabled, watch sessions unavailable")
	}

	srv := api.NewServer(x, fetcher, broker, opts...)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	slog.Info("starting server", "port", cfg.Port, "fetcher", cfg.Fetch.Fetcher, "browser", cfg.Browser.Enabled)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
