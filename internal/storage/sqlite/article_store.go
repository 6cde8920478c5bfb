// Package sqlite provides an SQLite-backed article store for local runs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
	"go.uber.org/zap"

	"github.com/JakeFAU/npr-news-scraper/internal/article"
	"github.com/JakeFAU/npr-news-scraper/internal/storage"
)

// ArticleStore replaces article rows inside an SQLite transaction.
type ArticleStore struct {
	db     *sql.DB
	table  string
	logger *zap.Logger
}

var _ storage.ArticleStore = (*ArticleStore)(nil)

// Open opens the database at path, which may be ":memory:", and creates the
// article table when it is missing.
func Open(ctx context.Context, path, table string, logger *zap.Logger) (*ArticleStore, error) {
	table, err := storage.TableName(table)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection; ":memory:" databases are per connection
	db.SetMaxOpenConns(1)

	s := &ArticleStore{db: db, table: `"` + table + `"`, logger: logger}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the article table if it does not exist.
func (s *ArticleStore) EnsureSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL,
		headline TEXT NOT NULL,
		summary TEXT NOT NULL,
		body TEXT NOT NULL,
		author TEXT NOT NULL,
		resource TEXT NOT NULL,
		media TEXT NOT NULL,
		link TEXT NOT NULL,
		date TEXT
	)`, s.table)
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create article table: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *ArticleStore) Close() error {
	return s.db.Close()
}

// Count returns the number of rows stored for source.
func (s *ArticleStore) Count(ctx context.Context, source string) (int, error) {
	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE resource = ?`, s.table)
	if err := s.db.QueryRowContext(ctx, query, source).Scan(&n); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}

// Begin opens a transaction and clears the rows tagged with source.
func (s *ArticleStore) Begin(ctx context.Context, source string) (storage.Batch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE resource = ?`, s.table), source)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("delete %s articles: %w", source, err)
	}
	if n, err := res.RowsAffected(); err == nil {
		s.logger.Debug("cleared previous articles", zap.String("source", source), zap.Int64("rows", n))
	}
	insert := fmt.Sprintf(`INSERT INTO %s (id, slug, headline, summary, body, author, resource, media, link, date)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	return &batch{tx: tx, insertSQL: insert}, nil
}

type batch struct {
	tx        *sql.Tx
	insertSQL string
}

func (b *batch) Insert(ctx context.Context, rec article.Record) error {
	if _, err := b.tx.ExecContext(ctx, "SAVEPOINT article_insert"); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if _, err := b.tx.ExecContext(ctx, b.insertSQL,
		rec.ID, rec.Slug, rec.Headline, rec.Summary, rec.Body,
		rec.Author, rec.Resource, rec.Media, rec.Link, formatTime(rec.PublishedAt),
	); err != nil {
		insertErr := fmt.Errorf("insert article %s: %w", rec.ID, err)
		if _, rbErr := b.tx.ExecContext(ctx, "ROLLBACK TO article_insert"); rbErr != nil {
			return errors.Join(insertErr, fmt.Errorf("rollback savepoint: %w", rbErr))
		}
		return insertErr
	}
	if _, err := b.tx.ExecContext(ctx, "RELEASE article_insert"); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (b *batch) Commit(_ context.Context) error {
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (b *batch) Rollback(_ context.Context) error {
	if err := b.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}
