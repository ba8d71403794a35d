package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/store"
)

const progressTimeout = 3 * time.Second

// ProgressHandler exposes read-only phase progress endpoints.
type ProgressHandler struct {
	repo    store.ProgressRepository
	timeout time.Duration
	logger  *zap.Logger
}

// NewProgressHandler wires the repository and logger.
func NewProgressHandler(repo store.ProgressRepository, logger *zap.Logger) *ProgressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHandler{
		repo:    repo,
		timeout: progressTimeout,
		logger:  logger,
	}
}

// Routes registers the handlers on r.
func (h *ProgressHandler) Routes(r chi.Router) {
	r.Get("/api/phases", h.ListPhases)
	r.Get("/api/phases/{phase}", h.GetPhase)
}

// ListPhases handles GET /api/phases. It returns {"phases": [...]} on success,
// 503 when the repo is unavailable, or 500 if the repository call fails.
func (h *ProgressHandler) ListPhases(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		h.writeError(w, http.StatusServiceUnavailable, "progress repository unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	phases, err := h.repo.ListPhases(ctx)
	if err != nil {
		h.logger.Error("list phases failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to list phases")
		return
	}
	out := make([]phaseDTO, 0, len(phases))
	for _, p := range phases {
		out = append(out, toPhaseDTO(p))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"phases": out})
}

// GetPhase handles GET /api/phases/{phase}. It returns {"phase": {...}} on
// success, 400 for unknown phase names, 404 when the phase has not started,
// 503 if the repo is not initialized, or 500 otherwise.
func (h *ProgressHandler) GetPhase(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		h.writeError(w, http.StatusServiceUnavailable, "progress repository unavailable")
		return
	}
	phase, err := parsePhase(chi.URLParam(r, "phase"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	stats, err := h.repo.GetPhase(ctx, phase)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "phase not started")
			return
		}
		h.logger.Error("get phase failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to load phase")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"phase": toPhaseDTO(stats)})
}

func parsePhase(input string) (catalog.Phase, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case string(catalog.PhasePreviews):
		return catalog.PhasePreviews, nil
	case string(catalog.PhaseDetails):
		return catalog.PhaseDetails, nil
	case "":
		return "", errors.New("phase is required")
	default:
		return "", errors.New("invalid phase")
	}
}

func toPhaseDTO(s store.PhaseStats) phaseDTO {
	return phaseDTO{
		RunID:      uuid.UUID(s.RunID).String(),
		Phase:      string(s.Phase),
		Status:     string(s.Status),
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Total:      s.Total,
		Done:       s.Done(),
		Extracted:  s.Extracted,
		Absent:     s.Absent,
		Failed:     s.Failed,
		Attempts:   s.Attempts,
		BytesTotal: s.BytesTotal,
		Fetch2xx:   s.Fetch2xx,
		Fetch3xx:   s.Fetch3xx,
		Fetch4xx:   s.Fetch4xx,
		Fetch5xx:   s.Fetch5xx,
		FetchError: s.FetchError,
	}
}

type phaseDTO struct {
	RunID      string     `json:"run_id"`
	Phase      string     `json:"phase"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Total      int        `json:"total"`
	Done       int        `json:"done"`
	Extracted  int        `json:"extracted"`
	Absent     int        `json:"absent"`
	Failed     int        `json:"failed"`
	Attempts   int64      `json:"attempts"`
	BytesTotal int64      `json:"bytes_total"`
	Fetch2xx   int64      `json:"fetch_2xx"`
	Fetch3xx   int64      `json:"fetch_3xx"`
	Fetch4xx   int64      `json:"fetch_4xx"`
	Fetch5xx   int64      `json:"fetch_5xx"`
	FetchError int64      `json:"fetch_error"`
}

func (h *ProgressHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (h *ProgressHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
