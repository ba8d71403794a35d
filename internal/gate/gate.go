// Package gate checks phase results against expected totals and persists them.
//
// A phase's records are always written, sorted by id, whether or not the
// expected total was reached. The preview shortfall is the only case that can
// stop the pipeline: when RequireCompletePreviews is set, SavePreviews reports
// ErrIncomplete after writing the file so the details phase is skipped.
package gate

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/clock/system"
	"github.com/JakeFAU/catalog-crawler/internal/hash/sha256"
)

// ErrIncomplete reports that fewer previews than expected were collected.
var ErrIncomplete = errors.New("gate: preview collection incomplete")

const contentType = "application/json; charset=utf-8"

// Config names the persisted collections and their expected sizes.
type Config struct {
	PreviewsPath            string
	DetailsPath             string
	ExpectedPreviews        int
	ExpectedDetails         int
	RequireCompletePreviews bool
	// Topic receives a Notice after each phase when a Publisher is set.
	Topic string
}

// Result summarizes one gate check.
type Result struct {
	Phase    catalog.Phase
	Count    int
	Expected int
	Complete bool
	Location string
	// Checksum is the hex SHA-256 of the persisted payload.
	Checksum string
	SavedAt  time.Time
}

// Notice is the payload published after a phase is persisted.
type Notice struct {
	RunID    string        `json:"run_id"`
	Phase    catalog.Phase `json:"phase"`
	Count    int           `json:"count"`
	Expected int           `json:"expected"`
	Complete bool          `json:"complete"`
	Location string        `json:"location"`
	SHA256   string        `json:"sha256"`
	SavedAt  time.Time     `json:"saved_at"`
}

// Option customizes a Gate.
type Option func(*Gate)

// WithRecordStore mirrors every persisted collection into rs.
func WithRecordStore(rs catalog.RecordStore) Option {
	return func(g *Gate) { g.records = rs }
}

// WithPublisher publishes a Notice after every persisted collection.
func WithPublisher(p catalog.Publisher) Option {
	return func(g *Gate) { g.publisher = p }
}

// WithLogger sets the gate logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// WithClock replaces the clock stamping persisted collections.
func WithClock(c catalog.Clock) Option {
	return func(g *Gate) { g.clock = c }
}

// WithHasher replaces the payload fingerprint function.
func WithHasher(h catalog.Hasher) Option {
	return func(g *Gate) { g.hasher = h }
}

// WithRunID tags published notices with the crawler run.
func WithRunID(id uuid.UUID) Option {
	return func(g *Gate) { g.runID = id }
}

// Gate validates and persists phase output.
type Gate struct {
	cfg       Config
	blobs     catalog.BlobStore
	records   catalog.RecordStore
	publisher catalog.Publisher
	clock     catalog.Clock
	hasher    catalog.Hasher
	logger    *zap.Logger
	runID     uuid.UUID
}

// New constructs a Gate writing to blobs.
func New(blobs catalog.BlobStore, cfg Config, opts ...Option) (*Gate, error) {
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if cfg.PreviewsPath == "" || cfg.DetailsPath == "" {
		return nil, errors.New("previews and details paths are required")
	}
	if cfg.ExpectedPreviews < 0 || cfg.ExpectedDetails < 0 {
		return nil, errors.New("expected totals must be >= 0")
	}
	g := &Gate{
		cfg:    cfg,
		blobs:  blobs,
		clock:  system.New(),
		hasher: sha256.New(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// SavePreviews persists previews sorted by id. It returns ErrIncomplete,
// after writing, when the collection is short and completeness is required.
func (g *Gate) SavePreviews(ctx context.Context, previews []catalog.PreviewRecord) (Result, error) {
	sorted := slices.Clone(previews)
	if sorted == nil {
		sorted = []catalog.PreviewRecord{}
	}
	slices.SortStableFunc(sorted, func(a, b catalog.PreviewRecord) int { return cmp.Compare(a.ID, b.ID) })

	res, err := g.save(ctx, catalog.PhasePreviews, g.cfg.PreviewsPath, g.cfg.ExpectedPreviews, sorted, identified(sorted))
	if err != nil {
		return res, err
	}
	if !res.Complete && g.cfg.RequireCompletePreviews {
		return res, fmt.Errorf("%w: %d/%d", ErrIncomplete, res.Count, res.Expected)
	}
	return res, nil
}

// SaveDetails persists details sorted by id.
func (g *Gate) SaveDetails(ctx context.Context, details []catalog.DetailRecord) (Result, error) {
	sorted := slices.Clone(details)
	if sorted == nil {
		sorted = []catalog.DetailRecord{}
	}
	slices.SortStableFunc(sorted, func(a, b catalog.DetailRecord) int { return cmp.Compare(a.ID, b.ID) })
	return g.save(ctx, catalog.PhaseDetails, g.cfg.DetailsPath, g.cfg.ExpectedDetails, sorted, identified(sorted))
}

// LoadPreviews reads the persisted preview collection back for the details phase.
func (g *Gate) LoadPreviews(ctx context.Context) ([]catalog.PreviewRecord, error) {
	data, err := g.blobs.GetObject(ctx, g.cfg.PreviewsPath)
	if err != nil {
		return nil, fmt.Errorf("load previews: %w", err)
	}
	var previews []catalog.PreviewRecord
	if err := json.Unmarshal(data, &previews); err != nil {
		return nil, fmt.Errorf("decode %s: %w", g.cfg.PreviewsPath, err)
	}
	return previews, nil
}

func (g *Gate) save(
	ctx context.Context,
	phase catalog.Phase,
	path string,
	expected int,
	collection any,
	records []catalog.Identified,
) (Result, error) {
	res := Result{
		Phase:    phase,
		Count:    len(records),
		Expected: expected,
		Complete: len(records) >= expected,
	}
	if res.Complete {
		g.logger.Info("phase complete",
			zap.String("phase", string(phase)),
			zap.Int("count", res.Count),
			zap.Int("expected", expected))
	} else {
		g.logger.Info("phase shortfall",
			zap.String("phase", string(phase)),
			zap.String("collected", fmt.Sprintf("%d/%d", res.Count, expected)),
			zap.Int("missing", expected-res.Count))
	}

	payload, err := Encode(collection)
	if err != nil {
		return res, fmt.Errorf("encode %s: %w", phase, err)
	}
	checksum, err := g.hasher.Hash(payload)
	if err != nil {
		return res, fmt.Errorf("hash %s: %w", phase, err)
	}
	location, err := g.blobs.PutObject(ctx, path, contentType, bytes.NewReader(payload))
	if err != nil {
		return res, fmt.Errorf("persist %s: %w", phase, err)
	}
	res.Location = location
	res.Checksum = checksum
	res.SavedAt = g.clock.Now()
	g.logger.Info("saved collection",
		zap.String("phase", string(phase)),
		zap.String("location", location),
		zap.Int("bytes", len(payload)),
		zap.String("sha256", checksum))

	g.mirror(ctx, phase, records)
	g.notify(ctx, res)
	return res, nil
}

// mirror and notify are best effort: the persisted file is the phase output.
func (g *Gate) mirror(ctx context.Context, phase catalog.Phase, records []catalog.Identified) {
	if g.records == nil {
		return
	}
	if err := g.records.StoreRecords(ctx, phase, records); err != nil {
		g.logger.Warn("record store mirror failed", zap.String("phase", string(phase)), zap.Error(err))
	}
}

func (g *Gate) notify(ctx context.Context, res Result) {
	if g.publisher == nil {
		return
	}
	notice := Notice{
		RunID:    g.runID.String(),
		Phase:    res.Phase,
		Count:    res.Count,
		Expected: res.Expected,
		Complete: res.Complete,
		Location: res.Location,
		SHA256:   res.Checksum,
		SavedAt:  res.SavedAt,
	}
	id, err := g.publisher.Publish(ctx, g.cfg.Topic, notice)
	if err != nil {
		g.logger.Warn("phase notice failed", zap.String("phase", string(res.Phase)), zap.Error(err))
		return
	}
	g.logger.Debug("phase notice published", zap.String("phase", string(res.Phase)), zap.String("message_id", id))
}

// Encode renders v as 4-space indented UTF-8 JSON without HTML escaping.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func identified[T catalog.Identified](records []T) []catalog.Identified {
	out := make([]catalog.Identified, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out
}
