// Package scrape runs the listing-to-table pipeline: load the listing page,
// visit each article with bounded retries, and replace the source's rows.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/npr-news-scraper/internal/article"
	"github.com/JakeFAU/npr-news-scraper/internal/extract"
	"github.com/JakeFAU/npr-news-scraper/internal/metrics"
	"github.com/JakeFAU/npr-news-scraper/internal/render"
	"github.com/JakeFAU/npr-news-scraper/internal/storage"
)

// DefaultMaxAttempts bounds the tries per article.
const DefaultMaxAttempts = 3

// ErrListingUnavailable is returned when the listing page cannot be loaded.
var ErrListingUnavailable = errors.New("listing page unavailable")

// Renderer loads pages and snapshots the current DOM.
type Renderer interface {
	Load(ctx context.Context, url string, wait render.WaitCondition, timeout time.Duration) error
	Document(ctx context.Context) (*render.Document, error)
}

// Clock supplies run timestamps.
type Clock interface {
	Now() time.Time
}

// Options tunes a Pipeline.
type Options struct {
	ListingURL     string
	ListingWait    render.WaitCondition
	ListingTimeout time.Duration
	ArticleWait    render.WaitCondition
	ArticleTimeout time.Duration
	MaxAttempts    int
}

// Pipeline is one configured scraper. Runs are sequential: one page and one
// statement in flight at a time.
type Pipeline struct {
	renderer    Renderer
	store       storage.ArticleStore
	extractor   *extract.Extractor
	transformer *article.Transformer
	clock       Clock
	opts        Options
	tracer      trace.Tracer
	logger      *zap.Logger
}

// New builds a Pipeline over already-acquired resources.
func New(
	renderer Renderer,
	store storage.ArticleStore,
	extractor *extract.Extractor,
	transformer *article.Transformer,
	clock Clock,
	opts Options,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	return &Pipeline{
		renderer:    renderer,
		store:       store,
		extractor:   extractor,
		transformer: transformer,
		clock:       clock,
		opts:        opts,
		tracer:      otel.Tracer("github.com/JakeFAU/npr-news-scraper/internal/scrape"),
		logger:      logger.Named("pipeline"),
	}
}

// Run scrapes listingURL, or the configured listing URL when it is empty, and
// replaces the source's rows with the records produced. Article-level failures
// are reported in the Result; run-level failures roll the batch back and are
// returned as errors alongside the partial Result.
func (p *Pipeline) Run(ctx context.Context, listingURL string) (res *Result, err error) {
	if listingURL == "" {
		listingURL = p.opts.ListingURL
	}
	source := p.transformer.Resource()

	ctx, span := p.tracer.Start(ctx, "scrape.run", trace.WithAttributes(
		attribute.String("scrape.source", source),
		attribute.String("scrape.listing_url", listingURL),
	))
	defer func() {
		if res != nil {
			span.SetAttributes(
				attribute.Int("scrape.candidates", len(res.Candidates)),
				attribute.Int("scrape.inserted", len(res.Records)),
				attribute.Int("scrape.failed", len(res.Failed)),
				attribute.Int("scrape.skipped", res.Skipped),
			)
		}
		endSpan(span, err)
	}()

	res = &Result{Source: source, ListingURL: listingURL, StartedAt: p.clock.Now()}
	defer func() { res.FinishedAt = p.clock.Now() }()

	log := p.logger.With(zap.String("source", source), zap.String("listing_url", listingURL))

	candidates, err := p.listing(ctx, listingURL)
	if err != nil {
		log.Error("listing load failed", zap.Error(err))
		return res, err
	}
	res.Candidates = candidates
	log.Info("listing loaded", zap.Int("candidates", len(candidates)))

	batch, err := p.store.Begin(ctx, source)
	if err != nil {
		return res, fmt.Errorf("begin replace: %w", err)
	}
	defer func() {
		if rbErr := batch.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			log.Warn("rollback failed", zap.Error(rbErr))
		}
	}()

	for i, c := range candidates {
		if !c.Valid() {
			res.Skipped++
			metrics.ObserveArticle(source, metrics.OutcomeSkipped)
			log.Warn("skipping candidate without headline or link",
				zap.Int("index", i), zap.String("headline", c.Headline), zap.String("link", c.Link))
			continue
		}
		rec, attempts, err := p.process(ctx, batch, c)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("run interrupted: %w", ctxErr)
		}
		if err != nil {
			res.Failed = append(res.Failed, Failure{Candidate: c, Attempts: attempts, Err: err, Error: err.Error()})
			metrics.ObserveArticle(source, metrics.OutcomeFailed)
			log.Error("article failed, skipping",
				zap.String("url", c.Link), zap.Int("attempts", attempts), zap.Error(err))
			continue
		}
		res.Records = append(res.Records, rec)
		metrics.ObserveArticle(source, metrics.OutcomeInserted)
	}

	if err := batch.Commit(ctx); err != nil {
		return res, fmt.Errorf("commit replace: %w", err)
	}
	log.Info("run complete",
		zap.Int("inserted", len(res.Records)),
		zap.Int("failed", len(res.Failed)),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

func (p *Pipeline) listing(ctx context.Context, listingURL string) ([]article.Candidate, error) {
	if err := p.renderer.Load(ctx, listingURL, p.opts.ListingWait, p.opts.ListingTimeout); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListingUnavailable, err)
	}
	doc, err := p.renderer.Document(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListingUnavailable, err)
	}
	return p.extractor.Listing(doc), nil
}

// process retries one candidate until it is inserted or MaxAttempts is reached.
// Attempts are retried immediately.
func (p *Pipeline) process(
	ctx context.Context,
	batch storage.Batch,
	c article.Candidate,
) (rec article.Record, attempts int, err error) {
	ctx, span := p.tracer.Start(ctx, "scrape.article", trace.WithAttributes(attribute.String("scrape.url", c.Link)))
	defer func() {
		span.SetAttributes(attribute.Int("scrape.attempts", attempts))
		endSpan(span, err)
	}()

	source := p.transformer.Resource()
	var lastErr error
	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		rec, err := p.attempt(ctx, batch, c)
		metrics.ObserveAttempt(source, err)
		if err == nil {
			p.logger.Debug("article stored",
				zap.String("url", c.Link), zap.String("id", rec.ID), zap.Int("attempt", attempt))
			return rec, attempt, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return article.Record{}, attempt, err
		}
		p.logger.Warn("article attempt failed",
			zap.String("url", c.Link), zap.Int("attempt", attempt), zap.Error(err))
	}
	return article.Record{}, p.opts.MaxAttempts, lastErr
}

func (p *Pipeline) attempt(ctx context.Context, batch storage.Batch, c article.Candidate) (article.Record, error) {
	if err := p.renderer.Load(ctx, c.Link, p.opts.ArticleWait, p.opts.ArticleTimeout); err != nil {
		return article.Record{}, err
	}
	doc, err := p.renderer.Document(ctx)
	if err != nil {
		return article.Record{}, err
	}
	rec, err := p.transformer.Transform(c, p.extractor.Article(doc))
	if err != nil {
		return article.Record{}, err
	}
	if err := batch.Insert(ctx, rec); err != nil {
		return article.Record{}, err
	}
	return rec, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
