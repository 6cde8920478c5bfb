// Package main hosts the scraper daemon.
//
// POST /v1/scrape runs one scrape against the configured (or supplied) listing
// page. /healthz and /readyz stay cheap, /metrics exports Prometheus counters.
// The process drains in-flight requests on SIGTERM before closing the app.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/JakeFAU/npr-news-scraper/internal/config"
	"github.com/JakeFAU/npr-news-scraper/internal/logging"
	"github.com/JakeFAU/npr-news-scraper/internal/server"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env failed: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx := context.Background()
	srv, err := server.New(ctx, cfg, logger.Named("daemon"))
	if err != nil {
		logger.Error("server init failed", zap.Error(err))
		os.Exit(1)
	}
	if err := srv.Run(ctx); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}
