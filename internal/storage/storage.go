// Package storage defines the persistence contracts for scraped articles and
// run snapshots.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/JakeFAU/npr-news-scraper/internal/article"
)

// DefaultTable is the article table name used when none is configured.
const DefaultTable = "Article"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ArticleStore opens replace batches against the article table.
type ArticleStore interface {
	// Begin starts a transaction and deletes every row tagged with source.
	// Nothing is visible to other readers until the batch commits.
	Begin(ctx context.Context, source string) (Batch, error)
	Close() error
}

// Batch is one in-flight replace of a source's rows.
type Batch interface {
	// Insert adds one record. A failed insert leaves earlier inserts intact.
	Insert(ctx context.Context, rec article.Record) error
	Commit(ctx context.Context) error
	// Rollback discards the batch. It is safe to call after Commit.
	Rollback(ctx context.Context) error
}

// BlobStore persists run snapshots.
type BlobStore interface {
	PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error)
}

// TableName validates name and applies the default.
func TableName(name string) (string, error) {
	if name == "" {
		return DefaultTable, nil
	}
	if !validTableName.MatchString(name) {
		return "", fmt.Errorf("invalid table name %q", name)
	}
	return name, nil
}

// ReplaceAll swaps the rows for source with records in a single transaction.
// Per-record insert failures are collected and returned after commit.
func ReplaceAll(ctx context.Context, store ArticleStore, source string, records []article.Record) (int, error) {
	batch, err := store.Begin(ctx, source)
	if err != nil {
		return 0, err
	}
	inserted := 0
	var insertErrs []error
	for _, rec := range records {
		if err := batch.Insert(ctx, rec); err != nil {
			insertErrs = append(insertErrs, err)
			continue
		}
		inserted++
	}
	if err := batch.Commit(ctx); err != nil {
		_ = batch.Rollback(ctx)
		return 0, fmt.Errorf("commit %s articles: %w", source, err)
	}
	return inserted, errors.Join(insertErrs...)
}
