// Package store keeps per-phase crawl progress for operator queries.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/progress"
)

// ErrNotFound signals that the requested phase has not started.
var ErrNotFound = errors.New("phase progress not found")

// PhaseStatus mirrors the lifecycle of one crawl phase.
type PhaseStatus string

// Phase statuses reported by the repository.
const (
	PhaseRunning  PhaseStatus = "running"
	PhaseFinished PhaseStatus = "finished"
)

// PhaseStats aggregates the events of one phase.
type PhaseStats struct {
	RunID      [16]byte
	Phase      catalog.Phase
	Status     PhaseStatus
	StartedAt  time.Time
	FinishedAt *time.Time
	// Total is the number of sub-tasks announced at phase start.
	Total     int
	Extracted int
	Absent    int
	Failed    int
	// Attempts counts fetch attempts, retries included.
	Attempts   int64
	BytesTotal int64
	Fetch2xx   int64
	Fetch3xx   int64
	Fetch4xx   int64
	Fetch5xx   int64
	FetchError int64
}

// Done is the number of sub-tasks with a terminal outcome.
func (s PhaseStats) Done() int {
	return s.Extracted + s.Absent + s.Failed
}

// ProgressRepository serves phase progress to readers.
type ProgressRepository interface {
	// GetPhase returns one phase or ErrNotFound.
	GetPhase(ctx context.Context, phase catalog.Phase) (PhaseStats, error)
	// ListPhases returns every started phase ordered by start time.
	ListPhases(ctx context.Context) ([]PhaseStats, error)
}

// MemoryProgress is a progress.Sink that folds events into PhaseStats.
type MemoryProgress struct {
	mu     sync.RWMutex
	phases map[catalog.Phase]*PhaseStats
}

var (
	_ progress.Sink      = (*MemoryProgress)(nil)
	_ ProgressRepository = (*MemoryProgress)(nil)
)

// NewMemoryProgress returns an empty repository.
func NewMemoryProgress() *MemoryProgress {
	return &MemoryProgress{phases: make(map[catalog.Phase]*PhaseStats)}
}

// Consume implements progress.Sink.
func (m *MemoryProgress) Consume(_ context.Context, batch []progress.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, evt := range batch {
		if evt.Stage == progress.StagePhaseStart {
			m.phases[evt.Phase] = &PhaseStats{
				RunID:     evt.RunID,
				Phase:     evt.Phase,
				Status:    PhaseRunning,
				StartedAt: evt.TS,
				Total:     evt.Total,
			}
			continue
		}
		stats, ok := m.phases[evt.Phase]
		if !ok {
			stats = &PhaseStats{RunID: evt.RunID, Phase: evt.Phase, Status: PhaseRunning, StartedAt: evt.TS}
			m.phases[evt.Phase] = stats
		}
		switch evt.Stage {
		case progress.StageFetchDone:
			stats.Attempts++
			stats.BytesTotal += evt.Bytes
			switch evt.StatusClass {
			case progress.Status2xx:
				stats.Fetch2xx++
			case progress.Status3xx:
				stats.Fetch3xx++
			case progress.Status4xx:
				stats.Fetch4xx++
			case progress.Status5xx:
				stats.Fetch5xx++
			case progress.StatusError:
				stats.FetchError++
			}
		case progress.StageTaskDone:
			switch evt.Outcome {
			case catalog.OutcomeExtracted:
				stats.Extracted++
			case catalog.OutcomeAbsent:
				stats.Absent++
			case catalog.OutcomeFailed:
				stats.Failed++
			}
		case progress.StagePhaseDone:
			finished := evt.TS
			stats.Status = PhaseFinished
			stats.FinishedAt = &finished
		}
	}
	return nil
}

// Close implements progress.Sink; the collected stats stay readable.
func (m *MemoryProgress) Close(context.Context) error {
	return nil
}

// GetPhase implements ProgressRepository.
func (m *MemoryProgress) GetPhase(_ context.Context, phase catalog.Phase) (PhaseStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats, ok := m.phases[phase]
	if !ok {
		return PhaseStats{}, ErrNotFound
	}
	return copyStats(stats), nil
}

// ListPhases implements ProgressRepository.
func (m *MemoryProgress) ListPhases(context.Context) ([]PhaseStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PhaseStats, 0, len(m.phases))
	for _, stats := range m.phases {
		out = append(out, copyStats(stats))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func copyStats(s *PhaseStats) PhaseStats {
	out := *s
	if s.FinishedAt != nil {
		finished := *s.FinishedAt
		out.FinishedAt = &finished
	}
	return out
}
