// Package main runs a single scrape of the configured listing page and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/JakeFAU/npr-news-scraper/internal/app"
	"github.com/JakeFAU/npr-news-scraper/internal/config"
	"github.com/JakeFAU/npr-news-scraper/internal/logging"
	"github.com/JakeFAU/npr-news-scraper/internal/telemetry"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "", "Path to config file")
	listingURL := flag.String("url", "", "Listing URL to scrape (defaults to source.listing_url)")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env failed: %v\n", err)
		return 1
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		return 1
	}
	// The standalone run always leaves a side file behind.
	if cfg.Snapshot.Provider == config.SnapshotNone {
		cfg.Snapshot.Provider = config.SnapshotLocal
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		return 1
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.InitTracerProvider(ctx, cfg.Telemetry)
	if err != nil {
		logger.Error("tracing init failed", zap.Error(err))
		return 1
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("app init failed", zap.Error(err))
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("app close failed", zap.Error(err))
		}
	}()

	res, err := a.Run(ctx, *listingURL)
	if err != nil {
		logger.Error("scrape failed", zap.Error(err))
		return 1
	}
	logger.Info("scrape finished",
		zap.Int("candidates", len(res.Candidates)),
		zap.Int("inserted", len(res.Records)),
		zap.Int("failed", len(res.Failed)),
		zap.Int("skipped", res.Skipped),
		zap.Duration("duration", res.Duration()))
	return 0
}
