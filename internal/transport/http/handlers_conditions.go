package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lendgate/internal/conditions"
	"lendgate/internal/domain"
	dErrors "lendgate/pkg/domain-errors"
	"lendgate/pkg/platform/httputil"
	"lendgate/pkg/requestcontext"
)

// ConditionService manages the condition lifecycle.
type ConditionService interface {
	CreateManual(ctx context.Context, input conditions.ManualConditionInput) (*domain.Condition, error)
	Clear(ctx context.Context, id, actor string) (*domain.Condition, error)
	Waive(ctx context.Context, id, actor, reason string) (*domain.Condition, error)
	Reopen(ctx context.Context, id, actor, reason string) (*domain.Condition, error)
	AutoClearSweep(ctx context.Context, applicationID string, data map[string]any) ([]domain.Condition, error)
	ListByApplication(ctx context.Context, applicationID string) ([]domain.Condition, error)
}

// ConditionsHandler exposes condition creation and lifecycle transitions.
type ConditionsHandler struct {
	service ConditionService
	logger  *slog.Logger
}

func NewConditionsHandler(service ConditionService, logger *slog.Logger) *ConditionsHandler {
	return &ConditionsHandler{service: service, logger: logger}
}

func (h *ConditionsHandler) Register(r chi.Router) {
	r.Get("/applications/{applicationID}/conditions", h.handleList)
	r.Post("/applications/{applicationID}/conditions", h.handleCreate)
	r.Post("/applications/{applicationID}/conditions/sweep", h.handleSweep)
	r.Post("/conditions/{conditionID}/clear", h.handleClear)
	r.Post("/conditions/{conditionID}/waive", h.handleWaive)
	r.Post("/conditions/{conditionID}/reopen", h.handleReopen)
}

func (h *ConditionsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListByApplication(r.Context(), chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"conditions": list})
}

type createConditionRequest struct {
	Code        string                   `json:"code"`
	Category    domain.ConditionCategory `json:"category"`
	Description string                   `json:"description,omitempty"`
	Source      domain.ConditionSource   `json:"source,omitempty"`
}

func (h *ConditionsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[createConditionRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	condition, err := h.service.CreateManual(r.Context(), conditions.ManualConditionInput{
		ApplicationID: chi.URLParam(r, "applicationID"),
		Code:          req.Code,
		Category:      req.Category,
		Description:   req.Description,
		Source:        req.Source,
		Actor:         requestcontext.Actor(r.Context()),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, condition)
}

type sweepRequest struct {
	Data map[string]any `json:"data"`
}

// handleSweep runs the auto-clear pass for an application against a fresh
// data snapshot.
func (h *ConditionsHandler) handleSweep(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[sweepRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	cleared, err := h.service.AutoClearSweep(r.Context(), chi.URLParam(r, "applicationID"), req.Data)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"cleared": cleared})
}

type transitionRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h *ConditionsHandler) handleClear(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	condition, err := h.service.Clear(r.Context(), chi.URLParam(r, "conditionID"), actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, condition)
}

func (h *ConditionsHandler) handleWaive(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	req, err := httputil.Decode[transitionRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	condition, err := h.service.Waive(r.Context(), chi.URLParam(r, "conditionID"), actor, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, condition)
}

func (h *ConditionsHandler) handleReopen(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	req, err := httputil.Decode[transitionRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	condition, err := h.service.Reopen(r.Context(), chi.URLParam(r, "conditionID"), actor, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, condition)
}

// requireActor rejects state-changing requests without an X-Actor-ID header.
func requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor := requestcontext.Actor(r.Context())
	if actor == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "X-Actor-ID header is required"))
		return "", false
	}
	return actor, true
}
