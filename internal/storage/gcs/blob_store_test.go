package gcs

import (
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	assert.Error(t, err)

	_, err = New(&storage.Client{}, Config{})
	assert.Error(t, err)
}

func TestObjectName(t *testing.T) {
	t.Parallel()

	store, err := New(&storage.Client{}, Config{Bucket: "bucket", Prefix: "/catalog/run-1/"})
	require.NoError(t, err)

	name, err := store.objectName("anime_data.json")
	require.NoError(t, err)
	assert.Equal(t, "catalog/run-1/anime_data.json", name)

	_, err = store.objectName("  ")
	assert.Error(t, err)

	bare, err := New(&storage.Client{}, Config{Bucket: "bucket"})
	require.NoError(t, err)
	name, err = bare.objectName("/anime_previews.json")
	require.NoError(t, err)
	assert.Equal(t, "anime_previews.json", name)
}
