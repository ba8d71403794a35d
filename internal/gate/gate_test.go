package gate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/clock/system"
	"github.com/JakeFAU/catalog-crawler/internal/hash/sha256"
	pubmemory "github.com/JakeFAU/catalog-crawler/internal/publisher/memory"
	"github.com/JakeFAU/catalog-crawler/internal/storage/memory"
)

type recordingStore struct {
	phases []catalog.Phase
	ids    [][]int
	err    error
}

func (r *recordingStore) StoreRecords(_ context.Context, phase catalog.Phase, records []catalog.Identified) error {
	ids := make([]int, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.RecordID())
	}
	r.phases = append(r.phases, phase)
	r.ids = append(r.ids, ids)
	return r.err
}

func strPtr(s string) *string { return &s }

func testConfig() Config {
	return Config{
		PreviewsPath:            "anime_previews.json",
		DetailsPath:             "anime_data.json",
		ExpectedPreviews:        3,
		ExpectedDetails:         2,
		RequireCompletePreviews: true,
		Topic:                   "catalog-phases",
	}
}

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestSavePreviewsSortsAndRoundTrips(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	logger, logs := newObservedLogger()
	g, err := New(blobs, testConfig(), WithLogger(logger))
	require.NoError(t, err)

	previews := []catalog.PreviewRecord{
		{ID: 3, Title: strPtr("Три"), URL: "/anime/3"},
		{ID: 1, Title: strPtr("Один"), Genre: []string{"Драма", "Комедия"}, URL: "/anime/1"},
		{ID: 2, Title: strPtr("<b>&</b>"), URL: "/anime/2"},
	}
	res, err := g.SavePreviews(context.Background(), previews)
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, "memory://anime_previews.json", res.Location)
	assert.Equal(t, 3, previews[0].ID, "input must not be reordered")

	raw, err := blobs.GetObject(context.Background(), "anime_previews.json")
	require.NoError(t, err)
	text := string(raw)
	assert.True(t, strings.HasPrefix(text, "[\n    {\n        \"id\": 1,"), text)
	assert.Contains(t, text, "Один")
	assert.Contains(t, text, "<b>&</b>")

	loaded, err := g.LoadPreviews(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{loaded[0].ID, loaded[1].ID, loaded[2].ID})
	assert.Equal(t, []string{"Драма", "Комедия"}, loaded[0].Genre)

	assert.Equal(t, 1, logs.FilterMessage("phase complete").Len())
}

func TestSavePreviewsShortfall(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	logger, logs := newObservedLogger()
	g, err := New(blobs, testConfig(), WithLogger(logger))
	require.NoError(t, err)

	res, err := g.SavePreviews(context.Background(), []catalog.PreviewRecord{{ID: 1, URL: "/a"}})
	require.ErrorIs(t, err, ErrIncomplete)
	assert.ErrorContains(t, err, "1/3")
	assert.False(t, res.Complete)

	_, getErr := blobs.GetObject(context.Background(), "anime_previews.json")
	require.NoError(t, getErr, "short collections are still persisted")

	shortfall := logs.FilterMessage("phase shortfall").All()
	require.Len(t, shortfall, 1)
	assert.Equal(t, "1/3", shortfall[0].ContextMap()["collected"])
	assert.Equal(t, zapcore.InfoLevel, shortfall[0].Level)
}

func TestSavePreviewsShortfallAllowed(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RequireCompletePreviews = false
	g, err := New(memory.NewBlobStore(), cfg)
	require.NoError(t, err)

	res, err := g.SavePreviews(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, res.Complete)
	assert.Equal(t, 0, res.Count)
}

func TestSaveDetailsPersistsOrderedFields(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	rs := &recordingStore{}
	pub := pubmemory.New()
	runID := uuid.New()
	savedAt := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	g, err := New(blobs, testConfig(),
		WithRecordStore(rs), WithPublisher(pub), WithRunID(runID), WithClock(system.Fixed(savedAt)))
	require.NoError(t, err)

	details := []catalog.DetailRecord{
		{ID: 4, Fields: catalog.Fields{{Name: "title", Value: "Б"}}},
		{ID: 2, Fields: catalog.Fields{{Name: "title", Value: "А"}, {Name: "genre", Value: []string{"x", "y"}}}},
	}
	res, err := g.SaveDetails(context.Background(), details)
	require.NoError(t, err)
	assert.True(t, res.Complete)

	raw, err := blobs.GetObject(context.Background(), "anime_data.json")
	require.NoError(t, err)
	text := string(raw)
	assert.Less(t, strings.Index(text, `"id": 2`), strings.Index(text, `"id": 4`))
	assert.Contains(t, text, "\"genre\": [\n            \"x\",")

	require.Equal(t, []catalog.Phase{catalog.PhaseDetails}, rs.phases)
	assert.Equal(t, [][]int{{2, 4}}, rs.ids)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "catalog-phases", msgs[0].Topic)
	notice, ok := msgs[0].Payload.(Notice)
	require.True(t, ok)
	digest, err := sha256.New().Hash(raw)
	require.NoError(t, err)
	assert.Equal(t, digest, res.Checksum)
	assert.Equal(t, Notice{
		RunID:    runID.String(),
		Phase:    catalog.PhaseDetails,
		Count:    2,
		Expected: 2,
		Complete: true,
		Location: "memory://anime_data.json",
		SHA256:   digest,
		SavedAt:  savedAt,
	}, notice)
}

func TestMirrorFailureDoesNotFailPhase(t *testing.T) {
	t.Parallel()

	logger, logs := newObservedLogger()
	rs := &recordingStore{err: errors.New("db down")}
	g, err := New(memory.NewBlobStore(), testConfig(), WithRecordStore(rs), WithLogger(logger))
	require.NoError(t, err)

	_, err = g.SaveDetails(context.Background(), []catalog.DetailRecord{{ID: 1}, {ID: 2}})
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("record store mirror failed").Len())
}

func TestLoadPreviewsErrors(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	g, err := New(blobs, testConfig())
	require.NoError(t, err)

	_, err = g.LoadPreviews(context.Background())
	require.Error(t, err, "missing file")

	_, err = blobs.PutObject(context.Background(), "anime_previews.json", "", strings.NewReader("{not json"))
	require.NoError(t, err)
	_, err = g.LoadPreviews(context.Background())
	require.ErrorContains(t, err, "decode anime_previews.json")
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, testConfig())
	require.Error(t, err)

	_, err = New(memory.NewBlobStore(), Config{PreviewsPath: "p"})
	require.Error(t, err)

	cfg := testConfig()
	cfg.ExpectedDetails = -1
	_, err = New(memory.NewBlobStore(), cfg)
	require.Error(t, err)
}

func TestEncodeEmptyCollection(t *testing.T) {
	t.Parallel()

	out, err := Encode([]catalog.PreviewRecord{})
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(out))
}
