package sinks

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/progress"
)

// LogSink renders a live progress indicator per phase: every completed
// sub-task advances the phase by one unit, and a structured info line is
// written each time another Steps-th of the total has completed.
type LogSink struct {
	logger *zap.Logger
	steps  int

	mu     sync.Mutex
	phases map[catalog.Phase]*phaseProgress
}

type phaseProgress struct {
	total      int
	done       int
	outcomes   map[catalog.Outcome]int
	nextReport int
}

// NewLogSink wires a Zap logger to the sink interface. steps controls how
// many intermediate info lines a phase emits; values < 1 default to 20.
func NewLogSink(logger *zap.Logger, steps int) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if steps < 1 {
		steps = 20
	}
	return &LogSink{
		logger: logger,
		steps:  steps,
		phases: make(map[catalog.Phase]*phaseProgress),
	}
}

// Consume advances the per-phase counters for each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StagePhaseStart:
			s.start(evt)
		case progress.StageTaskDone:
			s.advance(evt)
		case progress.StagePhaseDone:
			s.finish(evt)
		}
	}
	return nil
}

// Done reports how many sub-tasks of phase have completed so far.
func (s *LogSink) Done(phase catalog.Phase) (done, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.phases[phase]
	if !ok {
		return 0, 0
	}
	return p.done, p.total
}

func (s *LogSink) start(evt progress.Event) {
	p := &phaseProgress{total: evt.Total, outcomes: make(map[catalog.Outcome]int)}
	p.nextReport = s.stepSize(p.total)
	s.phases[evt.Phase] = p
	s.logger.Info("phase started",
		zap.String("phase", string(evt.Phase)),
		zap.Int("total", evt.Total),
		zap.String("run_id", evt.RunUUID().String()),
	)
}

func (s *LogSink) advance(evt progress.Event) {
	p, ok := s.phases[evt.Phase]
	if !ok {
		p = &phaseProgress{outcomes: make(map[catalog.Outcome]int)}
		s.phases[evt.Phase] = p
	}
	p.done++
	p.outcomes[evt.Outcome]++
	s.logger.Debug("task completed",
		zap.String("phase", string(evt.Phase)),
		zap.String("url", evt.URL),
		zap.String("outcome", string(evt.Outcome)),
		zap.Int("done", p.done),
		zap.Int("total", p.total),
	)
	if p.total > 0 && p.done >= p.nextReport && p.done < p.total {
		s.logger.Info("progress",
			zap.String("phase", string(evt.Phase)),
			zap.Int("done", p.done),
			zap.Int("total", p.total),
			zap.Float64("percent", percent(p.done, p.total)),
		)
		p.nextReport += s.stepSize(p.total)
	}
}

func (s *LogSink) finish(evt progress.Event) {
	p, ok := s.phases[evt.Phase]
	if !ok {
		return
	}
	s.logger.Info("phase finished",
		zap.String("phase", string(evt.Phase)),
		zap.Int("done", p.done),
		zap.Int("total", p.total),
		zap.Int("extracted", p.outcomes[catalog.OutcomeExtracted]),
		zap.Int("absent", p.outcomes[catalog.OutcomeAbsent]),
		zap.Int("failed", p.outcomes[catalog.OutcomeFailed]),
		zap.Duration("elapsed", evt.Dur),
	)
}

func (s *LogSink) stepSize(total int) int {
	step := total / s.steps
	if step < 1 {
		step = 1
	}
	return step
}

func percent(done, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(done) * 100 / float64(total)
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
