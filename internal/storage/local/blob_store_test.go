// Package local_test tests the local filesystem blob store.
package local_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out", "nested")
		_, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "testfile")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestPutAndGetObject(t *testing.T) {
	tempDir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: tempDir})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		data := `[{"id":1,"title":"Тетрадь смерти"}]`
		uri, err := store.PutObject(ctx, "anime_previews.json", "application/json", strings.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "file://"+filepath.Join(tempDir, "anime_previews.json"), uri)

		got, err := store.GetObject(ctx, "anime_previews.json")
		require.NoError(t, err)
		assert.Equal(t, data, string(got))
	})

	t.Run("Overwrite", func(t *testing.T) {
		_, err := store.PutObject(ctx, "a/b/data.json", "application/json", strings.NewReader("first"))
		require.NoError(t, err)
		_, err = store.PutObject(ctx, "a/b/data.json", "application/json", strings.NewReader("second"))
		require.NoError(t, err)

		got, err := store.GetObject(ctx, "a/b/data.json")
		require.NoError(t, err)
		assert.Equal(t, "second", string(got))
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := store.PutObject(ctx, "", "text/plain", strings.NewReader("data"))
		assert.Error(t, err)
		_, err = store.GetObject(ctx, " ")
		assert.Error(t, err)
	})

	t.Run("Traversal", func(t *testing.T) {
		_, err := store.PutObject(ctx, "../escape.json", "application/json", strings.NewReader("x"))
		assert.ErrorContains(t, err, "traversal")
		_, err = store.GetObject(ctx, "../../etc/passwd")
		assert.ErrorContains(t, err, "traversal")
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := store.GetObject(ctx, "nope.json")
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
