package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	gcsstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/npr-news-scraper/internal/article"
	"github.com/JakeFAU/npr-news-scraper/internal/clock/system"
	"github.com/JakeFAU/npr-news-scraper/internal/config"
	"github.com/JakeFAU/npr-news-scraper/internal/extract"
	"github.com/JakeFAU/npr-news-scraper/internal/id/uuid"
	pubsubpublisher "github.com/JakeFAU/npr-news-scraper/internal/publisher/pubsub"
	"github.com/JakeFAU/npr-news-scraper/internal/render"
	"github.com/JakeFAU/npr-news-scraper/internal/scrape"
	"github.com/JakeFAU/npr-news-scraper/internal/storage"
	"github.com/JakeFAU/npr-news-scraper/internal/storage/gcs"
	"github.com/JakeFAU/npr-news-scraper/internal/storage/local"
	"github.com/JakeFAU/npr-news-scraper/internal/storage/memory"
	"github.com/JakeFAU/npr-news-scraper/internal/storage/postgres"
	"github.com/JakeFAU/npr-news-scraper/internal/storage/sqlite"
)

// App is a Runner plus the long-lived clients behind its snapshot store and
// notifier. Per-run resources are not held here.
type App struct {
	*Runner
	closers []func() error
}

// Close releases the long-lived clients.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New builds an App from cfg.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{}
	deps, err := baseDeps(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := a.wireSnapshots(ctx, cfg, &deps); err != nil {
		_ = a.Close()
		return nil, err
	}
	if err := a.wireNotifier(ctx, cfg, &deps, logger); err != nil {
		_ = a.Close()
		return nil, err
	}

	runner, err := NewRunner(deps, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Runner = runner
	return a, nil
}

func baseDeps(cfg config.Config, logger *zap.Logger) (Deps, error) {
	listingWait, err := render.ParseWaitCondition(cfg.Browser.ListingWait)
	if err != nil {
		return Deps{}, err
	}
	articleWait, err := render.ParseWaitCondition(cfg.Browser.ArticleWait)
	if err != nil {
		return Deps{}, err
	}
	opts := scrape.Options{
		ListingURL:     cfg.Source.ListingURL,
		ListingWait:    listingWait,
		ListingTimeout: cfg.Browser.ListingTimeout,
		ArticleWait:    articleWait,
		ArticleTimeout: cfg.Browser.ArticleTimeout,
		MaxAttempts:    cfg.Run.MaxAttempts,
	}
	return Deps{
		NewRenderer: RendererFromConfig(cfg.Browser, logger),
		NewStore:    StoreFromConfig(cfg.DB, logger),
		Extractor:   extract.New(cfg.Selectors, cfg.Run.AuthorPlaceholder, logger.Named("extract")),
		Transformer: article.NewTransformer(cfg.Source.Tag, uuid.New(), nil),
		Clock:       system.New(),
		Options:     opts,
	}, nil
}

// RendererFromConfig returns a factory for the configured browser engine.
func RendererFromConfig(cfg config.BrowserConfig, logger *zap.Logger) RendererFactory {
	return func(context.Context) (Renderer, error) {
		switch cfg.Engine {
		case config.EngineStatic:
			return render.NewStatic(render.StaticConfig{UserAgent: cfg.UserAgent}, logger.Named("static")), nil
		case config.EngineChromedp:
			browser, err := render.NewChromedp(render.ChromedpConfig{
				ExecPath:         cfg.ExecPath,
				Headless:         cfg.Headless,
				NoSandbox:        cfg.NoSandbox,
				UserAgent:        cfg.UserAgent,
				IgnoreCertErrors: cfg.IgnoreCertErrors,
			}, logger.Named("chromedp"))
			if err != nil {
				return nil, err
			}
			return browser, nil
		default:
			return nil, fmt.Errorf("unknown browser engine %q", cfg.Engine)
		}
	}
}

// StoreFromConfig returns a factory for the configured database driver.
func StoreFromConfig(cfg config.DBConfig, logger *zap.Logger) StoreFactory {
	return func(ctx context.Context) (storage.ArticleStore, error) {
		switch cfg.Driver {
		case config.DriverSQLite:
			store, err := sqlite.Open(ctx, cfg.DSN, cfg.Table, logger.Named("sqlite"))
			if err != nil {
				return nil, err
			}
			return store, nil
		case config.DriverPostgres:
			store, err := postgres.NewArticleStore(ctx, postgres.ArticleStoreConfig{
				DSN:             cfg.DSN,
				Table:           cfg.Table,
				MaxConns:        cfg.MaxConns,
				MaxConnLifetime: cfg.MaxConnLifetime,
			}, logger.Named("postgres"))
			if err != nil {
				return nil, err
			}
			return store, nil
		default:
			return nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
		}
	}
}

func (a *App) wireSnapshots(ctx context.Context, cfg config.Config, deps *Deps) error {
	deps.SnapshotPath = cfg.Snapshot.Path
	switch cfg.Snapshot.Provider {
	case config.SnapshotNone, "":
		deps.SnapshotPath = ""
	case config.SnapshotMemory:
		deps.Snapshots = memory.NewBlobStore()
	case config.SnapshotLocal:
		store, err := local.New(local.Config{BaseDir: cfg.Snapshot.Dir})
		if err != nil {
			return fmt.Errorf("local snapshots: %w", err)
		}
		deps.Snapshots = store
	case config.SnapshotGCS:
		client, err := gcsstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Snapshot.Bucket})
		if err != nil {
			return err
		}
		deps.Snapshots = store
	default:
		return fmt.Errorf("unknown snapshot provider %q", cfg.Snapshot.Provider)
	}
	return nil
}

func (a *App) wireNotifier(ctx context.Context, cfg config.Config, deps *Deps, logger *zap.Logger) error {
	if !cfg.NotifyEnabled() {
		return nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("create pubsub client: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	pub := pubsubpublisher.New(client.Topic(cfg.PubSub.TopicID))
	a.closers = append(a.closers, pub.Close)
	deps.Notifier = pub
	logger.Info("run notifications enabled",
		zap.String("project", cfg.PubSub.ProjectID), zap.String("topic", cfg.PubSub.TopicID))
	return nil
}
