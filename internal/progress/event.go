package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StagePhaseStart Stage = "PHASE_START"
	StageFetchDone  Stage = "FETCH_DONE"
	StageTaskDone   Stage = "TASK_DONE"
	StagePhaseDone  Stage = "PHASE_DONE"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported status classes tracked for fetch attempts.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusError StatusClass = "error"
	StatusOther StatusClass = "other"
)

// Event captures a single component of crawl progress.
type Event struct {
	// RunID identifies one crawler invocation.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	Stage Stage
	Phase catalog.Phase
	// URL is the target of a fetch or task event.
	URL string
	// Total is the number of sub-tasks announced by PHASE_START.
	Total int
	// Attempt is the 1-based attempt number of a FETCH_DONE event.
	Attempt     int
	StatusClass StatusClass
	// Outcome is the terminal state of a TASK_DONE event.
	Outcome catalog.Outcome
	Bytes   int64
	Dur     time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	if e.Phase == "" {
		return errors.New("phase is required")
	}
	switch e.Stage {
	case StagePhaseStart:
		if e.Total < 0 {
			return errors.New("phase start requires total >= 0")
		}
	case StagePhaseDone:
	case StageFetchDone:
		if e.StatusClass == "" {
			return errors.New("fetch done requires status class")
		}
		if e.Attempt <= 0 {
			return errors.New("fetch done requires attempt > 0")
		}
	case StageTaskDone:
		if e.Outcome == "" {
			return errors.New("task done requires outcome")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ClassifyStatus groups HTTP status codes for fetch events. Zero means the
// attempt failed before a response arrived.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code == 0:
		return StatusError
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
