package catalog

import (
	"net/http"
	"time"
)

// PageType selects which extraction schema applies to a Document.
type PageType string

// Supported page types.
const (
	PageListing PageType = "listing"
	PageDetail  PageType = "detail"
)

// Phase identifies one of the two crawl phases.
type Phase string

// Crawl phases in execution order.
const (
	PhasePreviews Phase = "previews"
	PhaseDetails  Phase = "details"
)

// Outcome is the terminal state of a single sub-task.
type Outcome string

// Sub-task outcomes recorded by the orchestrator.
const (
	OutcomeExtracted Outcome = "extracted"
	OutcomeAbsent    Outcome = "absent"
	OutcomeFailed    Outcome = "failed"
)

// PreviewRecord is the lightweight listing entry produced by the previews phase.
type PreviewRecord struct {
	ID               int      `json:"id"`
	Title            *string  `json:"title"`
	Synonyms         *string  `json:"synonyms"`
	Type             *string  `json:"type"`
	Season           *string  `json:"season"`
	Genre            []string `json:"genre"`
	ShortDescription *string  `json:"short_description"`
	URL              string   `json:"url"`
}

// RecordID implements Identified.
func (p PreviewRecord) RecordID() int { return p.ID }

// Identified is implemented by every persisted record.
type Identified interface {
	RecordID() int
}

// FetchRequest captures a single outbound attempt.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result of one attempt, whatever its status code.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Document is a successfully retrieved page.
type Document struct {
	URL  string
	Body []byte
}
