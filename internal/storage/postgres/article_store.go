// Package postgres provides the Postgres-backed article store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/npr-news-scraper/internal/article"
	"github.com/JakeFAU/npr-news-scraper/internal/storage"
)

const (
	savepoint         = "SAVEPOINT article_insert"
	releaseSavepoint  = "RELEASE SAVEPOINT article_insert"
	rollbackSavepoint = "ROLLBACK TO SAVEPOINT article_insert"
)

// ArticleStoreConfig controls the Postgres connection pool.
type ArticleStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// ArticleStore replaces article rows inside a Postgres transaction.
type ArticleStore struct {
	pool   txBeginner
	table  string
	logger *zap.Logger
}

var _ storage.ArticleStore = (*ArticleStore)(nil)

// NewArticleStore connects a pool and verifies the server is reachable.
func NewArticleStore(ctx context.Context, cfg ArticleStoreConfig, logger *zap.Logger) (*ArticleStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := storage.TableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newArticleStore(pool, table, logger), nil
}

// NewArticleStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewArticleStoreWithPool(pool txBeginner, table string, logger *zap.Logger) (*ArticleStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := storage.TableName(table)
	if err != nil {
		return nil, err
	}
	return newArticleStore(pool, table, logger), nil
}

func newArticleStore(pool txBeginner, table string, logger *zap.Logger) *ArticleStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArticleStore{pool: pool, table: pgx.Identifier{table}.Sanitize(), logger: logger}
}

// Close releases the underlying pool resources.
func (s *ArticleStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// Begin opens a transaction and clears the rows tagged with source.
func (s *ArticleStore) Begin(ctx context.Context, source string) (storage.Batch, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	res, err := tx.Exec(ctx, s.deleteSQL(), source)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("delete %s articles: %w", source, err)
	}
	s.logger.Debug("cleared previous articles",
		zap.String("source", source),
		zap.Int64("rows", res.RowsAffected()))
	return &batch{tx: tx, insertSQL: s.insertSQL()}, nil
}

func (s *ArticleStore) deleteSQL() string {
	return fmt.Sprintf(`DELETE FROM %s WHERE resource = $1`, s.table)
}

func (s *ArticleStore) insertSQL() string {
	return fmt.Sprintf(`INSERT INTO %s (id, slug, headline, summary, body, author, resource, media, link, date)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`, s.table)
}

type batch struct {
	tx        pgx.Tx
	insertSQL string
	done      bool
}

func (b *batch) Insert(ctx context.Context, rec article.Record) error {
	if b.done {
		return pgx.ErrTxClosed
	}
	if _, err := b.tx.Exec(ctx, savepoint); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if _, err := b.tx.Exec(ctx, b.insertSQL, insertArgs(rec)...); err != nil {
		insertErr := fmt.Errorf("insert article %s: %w", rec.ID, err)
		if _, rbErr := b.tx.Exec(ctx, rollbackSavepoint); rbErr != nil {
			return errors.Join(insertErr, fmt.Errorf("rollback savepoint: %w", rbErr))
		}
		return insertErr
	}
	if _, err := b.tx.Exec(ctx, releaseSavepoint); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (b *batch) Commit(ctx context.Context) error {
	if b.done {
		return pgx.ErrTxClosed
	}
	b.done = true
	if err := b.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (b *batch) Rollback(ctx context.Context) error {
	if b.done {
		return nil
	}
	b.done = true
	if err := b.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func insertArgs(rec article.Record) []any {
	var published any
	if rec.PublishedAt != nil {
		published = *rec.PublishedAt
	}
	return []any{
		rec.ID,
		rec.Slug,
		rec.Headline,
		rec.Summary,
		rec.Body,
		rec.Author,
		rec.Resource,
		rec.Media,
		rec.Link,
		published,
	}
}
