package local_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/npr-news-scraper/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "snapshots")
		store, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		assert.NotNil(t, store)
		assert.DirExists(t, dir)
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: tempDir})
	require.NoError(t, err)

	t.Run("WritesAndOverwrites", func(t *testing.T) {
		path := "npr-news-articles.json"
		for _, body := range []string{`{"run":1}`, `{"run":2}`} {
			uri, err := store.PutObject(context.Background(), path, "application/json", strings.NewReader(body))
			require.NoError(t, err)
			assert.Equal(t, "file://"+filepath.Join(tempDir, path), uri)

			// #nosec G304 -- test reads from the controlled temp directory.
			got, err := os.ReadFile(filepath.Join(tempDir, path))
			require.NoError(t, err)
			assert.Equal(t, body, string(got))
		}
	})

	t.Run("NestedPath", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "runs/2024/out.json", "", strings.NewReader("{}"))
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(tempDir, "runs", "2024", "out.json"))
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "", "", strings.NewReader("{}"))
		assert.Error(t, err)
	})

	t.Run("Traversal", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "../escape.json", "", strings.NewReader("{}"))
		assert.Error(t, err)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := store.PutObject(ctx, "late.json", "", strings.NewReader("{}"))
		require.ErrorIs(t, err, context.Canceled)
	})
}
