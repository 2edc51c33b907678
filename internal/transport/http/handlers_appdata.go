package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lendgate/internal/domain"
	"lendgate/pkg/platform/httputil"
)

// AppDataService maintains the application field snapshot.
type AppDataService interface {
	SetFields(ctx context.Context, applicationID string, fields map[string]any) error
	Snapshot(ctx context.Context, applicationID string) (map[string]any, error)
}

// ConditionSweeper reacts to data changes: clearing satisfied conditions and
// reopening regressed ones.
type ConditionSweeper interface {
	AutoClearSweep(ctx context.Context, applicationID string, data map[string]any) ([]domain.Condition, error)
	ReopenRegressed(ctx context.Context, applicationID string, data map[string]any) ([]domain.Condition, error)
}

// AppDataHandler ingests data updates and runs the reactive loop: merge
// fields, sweep conditions against the new snapshot, then let the workflow
// auto-advance if gates opened.
type AppDataHandler struct {
	data     AppDataService
	sweeper  ConditionSweeper
	workflow WorkflowService
	logger   *slog.Logger
}

func NewAppDataHandler(data AppDataService, sweeper ConditionSweeper, wf WorkflowService, logger *slog.Logger) *AppDataHandler {
	return &AppDataHandler{data: data, sweeper: sweeper, workflow: wf, logger: logger}
}

func (h *AppDataHandler) Register(r chi.Router) {
	r.Get("/applications/{applicationID}/data", h.handleSnapshot)
	r.Patch("/applications/{applicationID}/data", h.handleUpdate)
}

func (h *AppDataHandler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.data.Snapshot(r.Context(), chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"data": snapshot})
}

type updateDataRequest struct {
	Fields map[string]any `json:"fields"`
}

func (h *AppDataHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicationID := chi.URLParam(r, "applicationID")

	req, err := httputil.Decode[updateDataRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.data.SetFields(ctx, applicationID, req.Fields); err != nil {
		httputil.WriteError(w, err)
		return
	}

	snapshot, err := h.data.Snapshot(ctx, applicationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// Sweeps and auto-advance are best-effort follow-on work; the data write
	// already succeeded.
	cleared, err := h.sweeper.AutoClearSweep(ctx, applicationID, snapshot)
	if err != nil {
		h.logger.WarnContext(ctx, "auto-clear sweep failed", "application_id", applicationID, "error", err)
	}
	reopened, err := h.sweeper.ReopenRegressed(ctx, applicationID, snapshot)
	if err != nil {
		h.logger.WarnContext(ctx, "regression sweep failed", "application_id", applicationID, "error", err)
	}
	advanced, err := h.workflow.EvaluateAutoAdvance(ctx, applicationID)
	if err != nil {
		h.logger.WarnContext(ctx, "auto-advance failed", "application_id", applicationID, "error", err)
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"data":     snapshot,
		"cleared":  cleared,
		"reopened": reopened,
		"advanced": advanced,
	})
}
