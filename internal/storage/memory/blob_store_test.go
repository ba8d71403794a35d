package memory

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "anime_data.json", "application/json", strings.NewReader("content"))
	require.NoError(t, err)
	assert.Equal(t, "memory://anime_data.json", uri)
	assert.Equal(t, []string{"anime_data.json"}, store.Paths())

	got, err := store.GetObject(context.Background(), "anime_data.json")
	require.NoError(t, err)
	assert.Equal(t, "content", string(got))

	got[0] = 'C'
	again, err := store.GetObject(context.Background(), "anime_data.json")
	require.NoError(t, err)
	assert.Equal(t, "content", string(again), "GetObject must hand out copies")
}

func TestBlobStoreMissing(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().GetObject(context.Background(), "missing.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
