// Package server runs the scraper daemon: the HTTP API in front of a long-lived
// app.App, with graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/npr-news-scraper/internal/api"
	"github.com/JakeFAU/npr-news-scraper/internal/app"
	"github.com/JakeFAU/npr-news-scraper/internal/config"
	"github.com/JakeFAU/npr-news-scraper/internal/handler"
	"github.com/JakeFAU/npr-news-scraper/internal/metrics"
	"github.com/JakeFAU/npr-news-scraper/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// Server contains the daemon's dependencies.
type Server struct {
	cfg    config.Config
	logger *zap.Logger
	app    *app.App
	tracer *sdktrace.TracerProvider
	http   *http.Server
}

// New wires the app and the HTTP API from cfg.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	logger.Info("creating scraper daemon",
		zap.String("source", cfg.Source.Tag),
		zap.String("listing_url", cfg.Source.ListingURL),
		zap.String("engine", cfg.Browser.Engine),
		zap.String("db_driver", cfg.DB.Driver),
		zap.String("snapshot", cfg.Snapshot.Provider),
		zap.Int("port", cfg.Server.Port))

	metrics.Init()
	tp, err := telemetry.InitTracerProvider(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("build app: %w", err)
	}
	apiServer := api.NewServer(handler.New(a, logger), api.Options{
		RequestTimeout: cfg.Server.RequestTimeout,
		APIKey:         cfg.Server.APIKey,
	}, logger)

	return &Server{
		cfg:    cfg,
		logger: logger,
		app:    a,
		tracer: tp,
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           apiServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Run serves until ctx is canceled or a signal arrives, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("http server started", zap.Int("port", s.cfg.Server.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
		close(serveErr)
	}()

	<-ctx.Done()
	s.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := <-serveErr; err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if err := s.app.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close app: %w", err))
	}
	if err := s.tracer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
	}
	s.logger.Info("shutdown complete")
	return errors.Join(errs...)
}
