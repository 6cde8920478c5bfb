// Package app owns the per-run resources of the scraper: it acquires the
// renderer and the article store for each run, runs the pipeline, and releases
// both on every path.
package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/npr-news-scraper/internal/article"
	"github.com/JakeFAU/npr-news-scraper/internal/extract"
	"github.com/JakeFAU/npr-news-scraper/internal/hash/sha256"
	"github.com/JakeFAU/npr-news-scraper/internal/metrics"
	"github.com/JakeFAU/npr-news-scraper/internal/scrape"
	"github.com/JakeFAU/npr-news-scraper/internal/storage"
)

// Notification event kinds.
const (
	EventRunCompleted = "run.completed"
	EventRunFailed    = "run.failed"
)

// Renderer is a scrape.Renderer that holds a browser or connection.
type Renderer interface {
	scrape.Renderer
	io.Closer
}

// RendererFactory starts a renderer for one run.
type RendererFactory func(ctx context.Context) (Renderer, error)

// StoreFactory opens the article store for one run.
type StoreFactory func(ctx context.Context) (storage.ArticleStore, error)

// Publisher sends run notifications.
type Publisher interface {
	Publish(ctx context.Context, kind string, payload any) (string, error)
}

// Deps are the collaborators of a Runner. Snapshots and Notifier are optional.
type Deps struct {
	NewRenderer  RendererFactory
	NewStore     StoreFactory
	Extractor    *extract.Extractor
	Transformer  *article.Transformer
	Clock        scrape.Clock
	Options      scrape.Options
	Snapshots    storage.BlobStore
	SnapshotPath string
	Notifier     Publisher
}

// Runner serializes runs; a second Run waits for the first to finish.
type Runner struct {
	deps   Deps
	logger *zap.Logger
	mu     sync.Mutex
}

// NewRunner validates deps and builds a Runner.
func NewRunner(deps Deps, logger *zap.Logger) (*Runner, error) {
	if deps.NewRenderer == nil || deps.NewStore == nil {
		return nil, fmt.Errorf("renderer and store factories are required")
	}
	if deps.Extractor == nil || deps.Transformer == nil || deps.Clock == nil {
		return nil, fmt.Errorf("extractor, transformer and clock are required")
	}
	if deps.Snapshots != nil && deps.SnapshotPath == "" {
		return nil, fmt.Errorf("snapshot path is required when snapshots are enabled")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{deps: deps, logger: logger.Named("runner")}, nil
}

// Source returns the resource tag of the records this runner writes.
func (r *Runner) Source() string {
	return r.deps.Transformer.Resource()
}

// Run performs one scrape of listingURL (the configured URL when empty).
func (r *Runner) Run(ctx context.Context, listingURL string) (*scrape.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if listingURL == "" {
		listingURL = r.deps.Options.ListingURL
	}
	started := time.Now()
	res, err := r.run(ctx, listingURL)
	status := metrics.RunSucceeded
	if err != nil {
		status = metrics.RunFailed
	}
	metrics.ObserveRun(r.Source(), status, time.Since(started))

	if err != nil {
		r.notify(ctx, EventRunFailed, failedPayload(r.Source(), listingURL, err))
		return res, err
	}
	snap := r.snapshot(ctx, res)
	r.notify(ctx, EventRunCompleted, completedPayload(res, snap))
	return res, nil
}

func (r *Runner) run(ctx context.Context, listingURL string) (res *scrape.Result, err error) {
	renderer, err := r.deps.NewRenderer(ctx)
	if err != nil {
		return nil, fmt.Errorf("start renderer: %w", err)
	}
	defer func() {
		if cerr := renderer.Close(); cerr != nil {
			r.logger.Warn("renderer close failed", zap.Error(cerr))
		}
	}()

	store, err := r.deps.NewStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open article store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			r.logger.Warn("store close failed", zap.Error(cerr))
		}
	}()

	p := scrape.New(renderer, store, r.deps.Extractor, r.deps.Transformer, r.deps.Clock, r.deps.Options, r.logger)
	return p.Run(ctx, listingURL)
}

type snapshotInfo struct {
	uri    string
	sha256 string
}

// snapshot writes the side file. Failures are logged; the rows are already committed.
func (r *Runner) snapshot(ctx context.Context, res *scrape.Result) snapshotInfo {
	if r.deps.Snapshots == nil {
		return snapshotInfo{}
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		r.logger.Warn("encode snapshot failed", zap.Error(err))
		return snapshotInfo{}
	}
	body := sha256.NewReader(bytes.NewReader(data))
	uri, err := r.deps.Snapshots.PutObject(ctx, r.deps.SnapshotPath, "application/json", body)
	if err != nil {
		r.logger.Warn("write snapshot failed", zap.String("path", r.deps.SnapshotPath), zap.Error(err))
		return snapshotInfo{}
	}
	info := snapshotInfo{uri: uri, sha256: body.Sum()}
	r.logger.Info("snapshot written",
		zap.String("uri", uri), zap.String("sha256", info.sha256), zap.Int64("bytes", body.Size()))
	return info
}

func (r *Runner) notify(ctx context.Context, kind string, payload any) {
	if r.deps.Notifier == nil {
		return
	}
	id, err := r.deps.Notifier.Publish(context.WithoutCancel(ctx), kind, payload)
	if err != nil {
		r.logger.Warn("publish notification failed", zap.String("event", kind), zap.Error(err))
		return
	}
	r.logger.Debug("notification published", zap.String("event", kind), zap.String("message_id", id))
}

// RunNotification is the payload of run notifications.
type RunNotification struct {
	Source     string    `json:"source"`
	ListingURL string    `json:"listing_url"`
	Inserted   int       `json:"inserted"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	IDs        []string  `json:"ids,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	// Set when a snapshot was written.
	SnapshotURI    string `json:"snapshot_uri,omitempty"`
	SnapshotSHA256 string `json:"snapshot_sha256,omitempty"`
}

func completedPayload(res *scrape.Result, snap snapshotInfo) RunNotification {
	return RunNotification{
		Source:         res.Source,
		ListingURL:     res.ListingURL,
		Inserted:       len(res.Records),
		Failed:         len(res.Failed),
		Skipped:        res.Skipped,
		IDs:            res.IDs(),
		StartedAt:      res.StartedAt,
		FinishedAt:     res.FinishedAt,
		SnapshotURI:    snap.uri,
		SnapshotSHA256: snap.sha256,
	}
}

func failedPayload(source, listingURL string, err error) RunNotification {
	return RunNotification{Source: source, ListingURL: listingURL, Error: err.Error()}
}
