package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/baxromumarov/job-extractor/internal/browser"
	"github.com/baxromumarov/job-extractor/internal/client"
	"github.com/baxromumarov/job-extractor/internal/config"
	"github.com/baxromumarov/job-extractor/internal/events"
	"github.com/baxromumarov/job-extractor/internal/extractor"
	"github.com/baxromumarov/job-extractor/internal/watcher"
)

// jobwatch opens a page and prints one JSON line per extraction until
// interrupted: once on open and again after every in-page navigation.
func main() {
	pageURL := flag.String("url", "", "Page URL to open (required)")
	server := flag.String("server", "", "Extractor service base URL; drive a local Chrome when empty")
	configPath := flag.String("config", config.DefaultPath, "Path to YAML config")
	flag.Parse()

	if *pageURL == "" {
		fmt.Fprintln(os.Stderr, "usage: jobwatch -url URL [-server http://localhost:8080]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := newLineWriter()
	if *server != "" {
		err = watchRemote(ctx, client.New(*server), *pageURL, out)
	} else {
		err = watchLocal(ctx, cfg, *pageURL, out)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("watch failed", "url", *pageURL, "error", err)
		os.Exit(1)
	}
}

func watchLocal(ctx context.Context, cfg *config.Config, pageURL string, out events.Publisher) error {
	b, err := browser.Start(ctx, browser.Options{
		ExecPath:  cfg.Browser.ExecPath,
		Headless:  cfg.Browser.Headless,
		UserAgent: cfg.Fetch.UserAgent,
	})
	if err != nil {
		return err
	}
	defer b.Close()

	tab, err := b.Open(ctx, pageURL)
	if err != nil {
		return err
	}
	defer tab.Close()

	x := extractor.New(cfg.Policies()...)
	w := watcher.New(x, tab, out, watcher.WithSettleDelay(cfg.Watch.SettleDelay), watcher.WithSource("jobwatch"))
	if err := w.Start(ctx); err != nil {
		return err
	}
	w.ExtractNow(ctx, w.LastURL())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-tab.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()
	return w.Run(runCtx, tab)
}

func watchRemote(ctx context.Context, c *client.Client, pageURL string, out events.Publisher) error {
	stream, err := c.Events(ctx)
	if err != nil {
		return err
	}

	session, err := c.Watch(ctx, pageURL)
	if err != nil {
		return err
	}
	slog.Info("watch session opened", "session", session.ID)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Unwatch(closeCtx, session.ID); err != nil {
			slog.Warn("failed to close session", "session", session.ID, "error", err)
		}
	}()

	for ev := range stream {
		if ev.Source == session.ID {
			out.Publish(ev)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.New("event stream closed by server")
}

type lineWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newLineWriter() *lineWriter {
	return &lineWriter{enc: json.NewEncoder(os.Stdout)}
}

func (l *lineWriter) Publish(ev events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enc.Encode(ev); err != nil {
		slog.Error("failed to write event", "error", err)
	}
}
