package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/baxromumarov/job-extractor/internal/client"
	"github.com/baxromumarov/job-extractor/internal/config"
	"github.com/baxromumarov/job-extractor/internal/extractor"
	"github.com/baxromumarov/job-extractor/internal/page"
)

func main() {
	pageURL := flag.String("url", "", "Page URL (required; selects the site adapter)")
	file := flag.String("file", "", "Read page HTML from this file instead of fetching the URL")
	server := flag.String("server", "", "Extractor service base URL; parse locally when empty")
	configPath := flag.String("config", config.DefaultPath, "Path to YAML config")
	timeout := flag.Duration("timeout", time.Minute, "Overall timeout")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if *pageURL == "" {
		fmt.Fprintln(os.Stderr, "usage: jobparse -url URL [-file page.html] [-server http://localhost:8080]")
		os.Exit(2)
	}

	// nil html means fetch the URL; an empty file is still parsed as given
	var html *string
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			slog.Error("failed to read file", "file", *file, "error", err)
			os.Exit(1)
		}
		doc := string(data)
		html = &doc
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var (
		posting extractor.ParsedJobPosting
		err     error
	)
	if *server != "" {
		posting, err = client.New(*server).Parse(ctx, *pageURL, html)
	} else {
		posting, err = parseLocal(ctx, *configPath, *pageURL, html)
	}
	switch {
	case errors.Is(err, client.ErrChannelUnavailable):
		slog.Error("extractor service unreachable", "server", *server, "error", err)
		os.Exit(3)
	case err != nil:
		slog.Error("parse failed", "url", *pageURL, "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(posting); err != nil {
		slog.Error("failed to write output", "error", err)
		os.Exit(1)
	}
}

func parseLocal(ctx context.Context, configPath, pageURL string, html *string) (extractor.ParsedJobPosting, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return extractor.ParsedJobPosting{}, err
	}
	x := extractor.New(cfg.Policies()...)

	if html != nil {
		return x.Extract(ctx, page.NewStatic(pageURL, []byte(*html)))
	}

	fetcher, err := cfg.Fetcher()
	if err != nil {
		return extractor.ParsedJobPosting{}, err
	}
	remote, err := page.NewRemote(fetcher, pageURL)
	if err != nil {
		return extractor.ParsedJobPosting{}, err
	}
	return x.Extract(ctx, remote)
}
