package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/npr-news-scraper/internal/article"
	"github.com/JakeFAU/npr-news-scraper/internal/storage"
)

func openMemory(t *testing.T) *ArticleStore {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", "", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func records(run, n int, source string) []article.Record {
	published := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	out := make([]article.Record, 0, n)
	for i := range n {
		rec := article.Record{
			ID:       fmt.Sprintf("run%d-%d", run, i),
			Slug:     fmt.Sprintf("slug-%d", i),
			Headline: fmt.Sprintf("Headline %d", i),
			Resource: source,
			Link:     fmt.Sprintf("https://news/%d", i),
			Date:     "2024-01-01T12:00:00.000",
		}
		if i%2 == 0 {
			rec.PublishedAt = &published
		}
		out = append(out, rec)
	}
	return out
}

func TestReplaceAllIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openMemory(t)

	for run := range 2 {
		n, err := storage.ReplaceAll(ctx, s, "NPR", records(run, 3, "NPR"))
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		count, err := s.Count(ctx, "NPR")
		require.NoError(t, err)
		assert.Equal(t, 3, count, "run %d", run)
	}
}

func TestReplaceAllLeavesOtherSources(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openMemory(t)

	_, err := storage.ReplaceAll(ctx, s, "OTHER", []article.Record{{ID: "other-1", Resource: "OTHER"}})
	require.NoError(t, err)
	_, err = storage.ReplaceAll(ctx, s, "NPR", records(0, 2, "NPR"))
	require.NoError(t, err)

	count, err := s.Count(ctx, "OTHER")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInsertFailureKeepsBatchUsable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openMemory(t)

	recs := records(0, 2, "NPR")
	dup := recs[0]
	n, err := storage.ReplaceAll(ctx, s, "NPR", []article.Record{recs[0], dup, recs[1]})
	require.Error(t, err)
	assert.Equal(t, 2, n)

	count, err := s.Count(ctx, "NPR")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRollbackKeepsPreviousRows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openMemory(t)

	_, err := storage.ReplaceAll(ctx, s, "NPR", records(0, 4, "NPR"))
	require.NoError(t, err)

	b, err := s.Begin(ctx, "NPR")
	require.NoError(t, err)
	require.NoError(t, b.Insert(ctx, records(1, 1, "NPR")[0]))
	require.NoError(t, b.Rollback(ctx))

	count, err := s.Count(ctx, "NPR")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestPublishedDateStoredAsNullWhenUnknown(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openMemory(t)

	_, err := storage.ReplaceAll(ctx, s, "NPR", records(0, 2, "NPR"))
	require.NoError(t, err)

	var nulls int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "Article" WHERE date IS NULL`).Scan(&nulls)
	require.NoError(t, err)
	assert.Equal(t, 1, nulls)
}

func TestOpenRejectsInvalidTable(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), ":memory:", "bad-name", nil)
	require.Error(t, err)
}
