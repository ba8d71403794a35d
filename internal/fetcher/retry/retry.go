// Package retry wraps a single-attempt catalog.Fetcher in a loop that only
// ends on success, on not-found, or when the caller's context is canceled.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/progress"
)

// Config bounds the randomized backoff between attempts.
type Config struct {
	Phase    catalog.Phase
	MinDelay time.Duration
	MaxDelay time.Duration
}

// Limiter paces attempts per target host.
type Limiter interface {
	Wait(ctx context.Context, target string) error
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithLimiter paces every attempt, including the first.
func WithLimiter(l Limiter) Option {
	return func(f *Fetcher) { f.limiter = l }
}

// WithEmitter reports every attempt as a FETCH_DONE progress event.
func WithEmitter(e progress.Emitter, runID [16]byte) Option {
	return func(f *Fetcher) {
		f.emitter = e
		f.runID = runID
	}
}

// WithSleep replaces the backoff wait (tests use it to skip real delays).
func WithSleep(fn SleepFunc) Option {
	return func(f *Fetcher) { f.sleep = fn }
}

// WithLogger sets the logger used for per-attempt traces.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// Fetcher retries transient failures indefinitely with a fresh identity per attempt.
type Fetcher struct {
	client  catalog.Fetcher
	agents  *AgentPool
	cfg     Config
	limiter Limiter
	emitter progress.Emitter
	runID   [16]byte
	sleep   SleepFunc
	logger  *zap.Logger
}

// New builds a retrying Fetcher.
func New(client catalog.Fetcher, agents *AgentPool, cfg Config, opts ...Option) (*Fetcher, error) {
	if client == nil {
		return nil, errors.New("client is required")
	}
	if agents == nil {
		return nil, errors.New("agent pool is required")
	}
	if cfg.MinDelay < 0 || cfg.MaxDelay < cfg.MinDelay {
		return nil, fmt.Errorf("invalid delay range [%s, %s]", cfg.MinDelay, cfg.MaxDelay)
	}
	f := &Fetcher{
		client:  client,
		agents:  agents,
		cfg:     cfg,
		emitter: progress.Nop{},
		sleep:   sleepContext,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Fetch returns the document at target once it answers 200, or
// catalog.ErrNotFound once it answers 404. Any other status or transport
// failure is retried after a random delay. The only other error is the
// context's.
func (f *Fetcher) Fetch(ctx context.Context, target string) (catalog.Document, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return catalog.Document{}, fmt.Errorf("fetch %s: %w", target, err)
		}
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, target); err != nil {
				return catalog.Document{}, fmt.Errorf("fetch %s: %w", target, err)
			}
		}

		resp, err := f.client.Fetch(ctx, catalog.FetchRequest{
			URL:     target,
			Headers: http.Header{"User-Agent": {f.agents.Pick()}},
		})
		f.report(target, attempt, resp, err)

		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return catalog.Document{}, fmt.Errorf("fetch %s: %w", target, ctxErr)
			}
		case resp.StatusCode == http.StatusOK:
			return catalog.Document{URL: target, Body: resp.Body}, nil
		case resp.StatusCode == http.StatusNotFound:
			return catalog.Document{}, catalog.ErrNotFound
		}

		if err := f.sleep(ctx, f.backoff()); err != nil {
			return catalog.Document{}, fmt.Errorf("fetch %s: %w", target, err)
		}
	}
}

// backoff draws a delay uniformly from [MinDelay, MaxDelay].
func (f *Fetcher) backoff() time.Duration {
	span := f.cfg.MaxDelay - f.cfg.MinDelay
	if span <= 0 {
		return f.cfg.MinDelay
	}
	return f.cfg.MinDelay + time.Duration(rand.Int64N(int64(span)+1))
}

func (f *Fetcher) report(target string, attempt int, resp catalog.FetchResponse, err error) {
	fields := []zap.Field{
		zap.String("phase", string(f.cfg.Phase)),
		zap.String("url", target),
		zap.Int("attempt", attempt),
	}
	evt := progress.Event{
		RunID:       f.runID,
		TS:          time.Now().UTC(),
		Stage:       progress.StageFetchDone,
		Phase:       f.cfg.Phase,
		URL:         target,
		Attempt:     attempt,
		StatusClass: progress.ClassifyStatus(resp.StatusCode),
		Bytes:       int64(len(resp.Body)),
		Dur:         resp.Duration,
	}
	if err != nil {
		evt.StatusClass = progress.StatusError
		evt.Note = err.Error()
		f.logger.Debug("fetch attempt failed", append(fields, zap.Error(err))...)
	} else {
		f.logger.Debug("fetch attempt", append(fields, zap.Int("status", resp.StatusCode))...)
	}
	f.emitter.Emit(evt)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
