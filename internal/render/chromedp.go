package render

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	snapshotTimeout    = 15 * time.Second
	defaultLoadTimeout = 60 * time.Second
)

// ChromedpConfig controls the headless browser session.
type ChromedpConfig struct {
	// ExecPath overrides the Chrome binary, e.g. a bundled chromium in a
	// serverless image.
	ExecPath         string
	Headless         bool
	NoSandbox        bool
	UserAgent        string
	IgnoreCertErrors bool
}

// Chromedp drives one headless Chrome tab. Pages are loaded sequentially into
// the same tab; it is not safe for concurrent use.
type Chromedp struct {
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	logger      *zap.Logger
}

// NewChromedp launches the browser and opens the tab used for every Load.
func NewChromedp(cfg ChromedpConfig, logger *zap.Logger) (*Chromedp, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(logger.Sugar().Debugf))
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	return &Chromedp{
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		logger:      logger,
	}, nil
}

func allocatorOptions(cfg ChromedpConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.IgnoreCertErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}
	return opts
}

// Close shuts the tab and the browser process down.
func (c *Chromedp) Close() error {
	if c == nil {
		return nil
	}
	c.tabCancel()
	c.allocCancel()
	return nil
}

// Load navigates the tab to rawURL and blocks until wait is satisfied or the
// timeout elapses.
func (c *Chromedp) Load(ctx context.Context, rawURL string, wait WaitCondition, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultLoadTimeout
	}
	taskCtx, cancel := context.WithTimeout(c.tabCtx, timeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	var action chromedp.Action
	switch wait {
	case WaitNetworkIdle:
		action = navigateUntilNetworkIdle(rawURL)
	default:
		action = chromedp.Tasks{
			chromedp.Navigate(rawURL),
			chromedp.WaitReady("body", chromedp.ByQuery),
		}
	}

	start := time.Now()
	if err := chromedp.Run(taskCtx, action); err != nil {
		return fmt.Errorf("load %s: %w", rawURL, err)
	}
	c.logger.Debug("page loaded",
		zap.String("url", rawURL),
		zap.Stringer("wait", wait),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Document snapshots the DOM currently rendered in the tab.
func (c *Chromedp) Document(ctx context.Context) (*Document, error) {
	taskCtx, cancel := context.WithTimeout(c.tabCtx, snapshotTimeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	var html, location string
	if err := chromedp.Run(taskCtx,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("snapshot dom: %w", err)
	}
	return NewDocument(html, location)
}

func navigateUntilNetworkIdle(rawURL string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		listenCtx, stopListening := context.WithCancel(ctx)
		defer stopListening()

		idle := make(chan struct{})
		var (
			once    sync.Once
			started atomic.Bool
		)
		chromedp.ListenTarget(listenCtx, func(ev any) {
			e, ok := ev.(*page.EventLifecycleEvent)
			if !ok {
				return
			}
			switch e.Name {
			case "init":
				started.Store(true)
			case "networkIdle":
				// idle events from the previous document arrive before init
				if started.Load() {
					once.Do(func() { close(idle) })
				}
			}
		})

		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return fmt.Errorf("enable lifecycle events: %w", err)
		}
		if err := chromedp.Navigate(rawURL).Do(ctx); err != nil {
			return fmt.Errorf("navigate: %w", err)
		}
		select {
		case <-idle:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("wait for network idle: %w", ctx.Err())
		}
	}
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
