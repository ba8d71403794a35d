// Package orchestrator runs the two crawl phases: listing pages into previews,
// then preview detail pages into normalized detail records.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/extract"
	"github.com/JakeFAU/catalog-crawler/internal/fetcher/retry"
	"github.com/JakeFAU/catalog-crawler/internal/gate"
	"github.com/JakeFAU/catalog-crawler/internal/normalize"
	"github.com/JakeFAU/catalog-crawler/internal/progress"
)

const tracerName = "github.com/JakeFAU/catalog-crawler/internal/orchestrator"

// Mode selects which phases Run executes.
type Mode string

// Supported run modes.
const (
	ModeAll      Mode = "all"
	ModePreviews Mode = "previews"
	ModeDetails  Mode = "details"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAll, ModePreviews, ModeDetails:
		return m, nil
	case "":
		return ModeAll, nil
	default:
		return "", fmt.Errorf("unknown phase %q (want all, previews or details)", s)
	}
}

// DelayRange bounds the randomized backoff of one phase.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// Config controls crawl topology and pacing.
type Config struct {
	// BaseURL is the catalog root, e.g. https://animego.org.
	BaseURL string
	// ListingPattern is appended to BaseURL with the page number substituted.
	ListingPattern string
	Pages          int
	// Concurrency bounds in-flight tasks per phase; 0 means one goroutine per task.
	Concurrency  int
	ListingDelay DelayRange
	DetailDelay  DelayRange
}

// ClientFactory builds the single-attempt client shared by one phase.
type ClientFactory func() (catalog.Client, error)

// Deps wires the collaborators of a Crawler. Emitter, Limiter and Sleep are optional.
type Deps struct {
	NewClient  ClientFactory
	Agents     *retry.AgentPool
	Extractor  *extract.Extractor
	Normalizer *normalize.Normalizer
	Gate       *gate.Gate
	Emitter    progress.Emitter
	Limiter    retry.Limiter
	Sleep      retry.SleepFunc
	RunID      uuid.UUID
	Logger     *zap.Logger
}

// Report tallies sub-task outcomes of one phase.
type Report struct {
	Phase     catalog.Phase
	Total     int
	Extracted int
	Absent    int
	Failed    int
}

func (r *Report) record(o catalog.Outcome) {
	switch o {
	case catalog.OutcomeExtracted:
		r.Extracted++
	case catalog.OutcomeAbsent:
		r.Absent++
	case catalog.OutcomeFailed:
		r.Failed++
	}
}

// Crawler executes crawl phases.
type Crawler struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
}

// New validates the configuration and constructs a Crawler.
func New(cfg Config, deps Deps) (*Crawler, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base url is required")
	}
	if cfg.Pages < 0 {
		return nil, errors.New("pages must be >= 0")
	}
	if cfg.Concurrency < 0 {
		return nil, errors.New("concurrency must be >= 0")
	}
	if cfg.ListingPattern == "" {
		cfg.ListingPattern = "/anime?page=%d"
	}
	if deps.NewClient == nil || deps.Agents == nil || deps.Extractor == nil || deps.Normalizer == nil {
		return nil, errors.New("client factory, agents, extractor and normalizer are required")
	}
	if deps.Emitter == nil {
		deps.Emitter = progress.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Crawler{cfg: cfg, deps: deps, logger: deps.Logger}, nil
}

// Run executes the phases selected by mode, persisting each through the gate.
// The details phase reads its input back from the persisted preview file.
func (c *Crawler) Run(ctx context.Context, mode Mode) error {
	if c.deps.Gate == nil {
		return errors.New("gate is required to run phases")
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "crawl "+string(mode))
	defer span.End()

	if mode == ModeAll || mode == ModePreviews {
		previews, _, err := c.CrawlPreviews(ctx)
		if err != nil {
			return err
		}
		if _, err := c.deps.Gate.SavePreviews(ctx, previews); err != nil {
			return fmt.Errorf("save previews: %w", err)
		}
		if mode == ModePreviews {
			return nil
		}
	}

	previews, err := c.deps.Gate.LoadPreviews(ctx)
	if err != nil {
		return err
	}
	details, _, err := c.CrawlDetails(ctx, previews)
	if err != nil {
		return err
	}
	if _, err := c.deps.Gate.SaveDetails(ctx, details); err != nil {
		return fmt.Errorf("save details: %w", err)
	}
	return nil
}

// ListingURL returns the URL of listing page n.
func (c *Crawler) ListingURL(page int) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + fmt.Sprintf(c.cfg.ListingPattern, page)
}

// CrawlPreviews fetches listing pages 1..Pages and returns the previews found.
func (c *Crawler) CrawlPreviews(ctx context.Context) ([]catalog.PreviewRecord, Report, error) {
	tasks := make([]task, 0, c.cfg.Pages)
	for page := 1; page <= c.cfg.Pages; page++ {
		tasks = append(tasks, task{index: page, url: c.ListingURL(page)})
	}
	pages, report, err := runPhase(ctx, c, catalog.PhasePreviews, c.cfg.ListingDelay, tasks,
		func(_ context.Context, t task, doc catalog.Document) ([]catalog.PreviewRecord, error) {
			return c.deps.Extractor.Listing(doc, t.index)
		})
	if err != nil {
		return nil, report, err
	}
	var previews []catalog.PreviewRecord
	for _, batch := range pages {
		previews = append(previews, batch...)
	}
	return previews, report, nil
}

// CrawlDetails fetches the detail page of every preview. A record's id is the
// 1-based position of its preview, so absent items leave gaps.
func (c *Crawler) CrawlDetails(ctx context.Context, previews []catalog.PreviewRecord) ([]catalog.DetailRecord, Report, error) {
	tasks := make([]task, 0, len(previews))
	for i, p := range previews {
		t := task{index: i + 1}
		switch ref := strings.TrimSpace(p.URL); {
		case ref == "":
			t.err = fmt.Errorf("preview %d: url: %w", p.ID, catalog.ErrMissingField)
		default:
			resolved, err := c.deps.Extractor.Resolve(ref)
			if err != nil {
				t.err = fmt.Errorf("preview %d: %w", p.ID, err)
			}
			t.url = resolved
		}
		tasks = append(tasks, t)
	}
	return runPhase(ctx, c, catalog.PhaseDetails, c.cfg.DetailDelay, tasks,
		func(_ context.Context, t task, doc catalog.Document) (catalog.DetailRecord, error) {
			fields, err := c.deps.Extractor.Detail(doc)
			if err != nil {
				return catalog.DetailRecord{}, err
			}
			record := c.deps.Normalizer.Record(t.index, fields)
			c.logger.Debug("extracted record", zap.Int("id", record.ID), zap.String("url", t.url))
			return record, nil
		})
}

// task is one unit of a phase. A task carrying err is recorded as failed
// without being fetched.
type task struct {
	index int
	url   string
	err   error
}

type result[T any] struct {
	task    task
	value   T
	outcome catalog.Outcome
	err     error
}

type extractFunc[T any] func(ctx context.Context, t task, doc catalog.Document) (T, error)

// runPhase fans tasks out over one shared client and gathers results through
// a single collector. Extracted values are returned in completion order.
func runPhase[T any](
	ctx context.Context,
	c *Crawler,
	phase catalog.Phase,
	delay DelayRange,
	tasks []task,
	extractFn extractFunc[T],
) ([]T, Report, error) {
	report := Report{Phase: phase, Total: len(tasks)}

	client, err := c.deps.NewClient()
	if err != nil {
		return nil, report, fmt.Errorf("%s: create client: %w", phase, err)
	}
	var closeOnce sync.Once
	closeClient := func() {
		closeOnce.Do(func() {
			if cerr := client.Close(); cerr != nil {
				c.logger.Warn("close client failed", zap.String("phase", string(phase)), zap.Error(cerr))
			}
		})
	}
	defer closeClient()

	fetcher, err := retry.New(client, c.deps.Agents, retry.Config{
		Phase:    phase,
		MinDelay: delay.Min,
		MaxDelay: delay.Max,
	}, c.retryOptions()...)
	if err != nil {
		return nil, report, fmt.Errorf("%s: %w", phase, err)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "phase "+string(phase),
		trace.WithAttributes(attribute.Int("catalog.tasks", len(tasks))))
	defer span.End()

	started := time.Now()
	c.logger.Debug("phase started", zap.String("phase", string(phase)), zap.Int("tasks", len(tasks)))
	c.emit(progress.Event{Stage: progress.StagePhaseStart, Phase: phase, Total: len(tasks)})

	results := make(chan result[T])
	values := make([]T, 0, len(tasks))
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for res := range results {
			report.record(res.outcome)
			switch res.outcome {
			case catalog.OutcomeExtracted:
				values = append(values, res.value)
			case catalog.OutcomeAbsent:
				c.logger.Info("item not found", zap.String("phase", string(phase)), zap.String("url", res.task.url))
			case catalog.OutcomeFailed:
				c.logger.Warn("task failed",
					zap.String("phase", string(phase)),
					zap.Int("index", res.task.index),
					zap.String("url", res.task.url),
					zap.Error(res.err))
			}
			evt := progress.Event{Stage: progress.StageTaskDone, Phase: phase, URL: res.task.url, Outcome: res.outcome}
			if res.err != nil {
				evt.Note = res.err.Error()
			}
			c.emit(evt)
		}
	}()

	var g errgroup.Group
	if c.cfg.Concurrency > 0 {
		g.SetLimit(c.cfg.Concurrency)
	}
	for _, t := range tasks {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := runTask(ctx, fetcher, t, extractFn)
			if err != nil {
				return err
			}
			results <- res
			return nil
		})
	}
	waitErr := g.Wait()
	close(results)
	<-collected
	closeClient()

	if waitErr == nil {
		waitErr = ctx.Err()
	}
	span.SetAttributes(
		attribute.Int("catalog.extracted", report.Extracted),
		attribute.Int("catalog.absent", report.Absent),
		attribute.Int("catalog.failed", report.Failed))
	if waitErr != nil {
		span.RecordError(waitErr)
		span.SetStatus(codes.Error, "phase interrupted")
		return nil, report, fmt.Errorf("%s: %w", phase, waitErr)
	}

	elapsed := time.Since(started)
	c.emit(progress.Event{Stage: progress.StagePhaseDone, Phase: phase, Total: len(tasks), Dur: elapsed})
	c.logger.Debug("phase finished",
		zap.String("phase", string(phase)),
		zap.Int("tasks", report.Total),
		zap.Int("extracted", report.Extracted),
		zap.Int("absent", report.Absent),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", elapsed))
	return values, report, nil
}

// runTask resolves one task to an outcome. Only context cancellation is
// returned as an error; everything else is isolated in the result.
func runTask[T any](ctx context.Context, fetcher *retry.Fetcher, t task, extractFn extractFunc[T]) (result[T], error) {
	if t.err != nil {
		return result[T]{task: t, outcome: catalog.OutcomeFailed, err: t.err}, nil
	}
	doc, err := fetcher.Fetch(ctx, t.url)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return result[T]{task: t, outcome: catalog.OutcomeAbsent}, nil
	case err != nil:
		if ctx.Err() != nil {
			return result[T]{}, err
		}
		return result[T]{task: t, outcome: catalog.OutcomeFailed, err: err}, nil
	}
	value, err := extractFn(ctx, t, doc)
	if err != nil {
		return result[T]{task: t, outcome: catalog.OutcomeFailed, err: err}, nil
	}
	return result[T]{task: t, value: value, outcome: catalog.OutcomeExtracted}, nil
}

func (c *Crawler) retryOptions() []retry.Option {
	opts := []retry.Option{
		retry.WithEmitter(c.deps.Emitter, progress.UUIDToBytes(c.deps.RunID)),
		retry.WithLogger(c.logger),
	}
	if c.deps.Limiter != nil {
		opts = append(opts, retry.WithLimiter(c.deps.Limiter))
	}
	if c.deps.Sleep != nil {
		opts = append(opts, retry.WithSleep(c.deps.Sleep))
	}
	return opts
}

func (c *Crawler) emit(evt progress.Event) {
	evt.RunID = progress.UUIDToBytes(c.deps.RunID)
	evt.TS = time.Now().UTC()
	c.deps.Emitter.Emit(evt)
}
