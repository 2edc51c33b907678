package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lendgate/internal/domain"
	"lendgate/internal/workflow"
	"lendgate/pkg/platform/httputil"
)

// WorkflowService drives milestones and tasks.
type WorkflowService interface {
	GetWorkflowState(ctx context.Context, applicationID string) (*domain.WorkflowState, error)
	AdvanceMilestone(ctx context.Context, applicationID string, target domain.MilestoneCode, triggeredBy domain.ActorKind, actor string, override bool) (*domain.MilestoneHistory, error)
	EvaluateAutoAdvance(ctx context.Context, applicationID string) ([]domain.MilestoneCode, error)
	History(ctx context.Context, applicationID string) ([]domain.MilestoneHistory, error)
}

// TaskService manages checklist tasks.
type TaskService interface {
	ListTasks(ctx context.Context, applicationID string) ([]domain.Task, error)
	FindTasksByAssignee(ctx context.Context, assigneeID string) ([]domain.Task, error)
	StartTask(ctx context.Context, taskID, assigneeID string) (*domain.Task, error)
	CompleteTask(ctx context.Context, taskID, actor string) (*domain.Task, error)
	CancelTask(ctx context.Context, taskID, actor, reason string) (*domain.Task, error)
}

// WorkflowHandler exposes milestone and task endpoints.
type WorkflowHandler struct {
	workflow WorkflowService
	tasks    TaskService
	logger   *slog.Logger
}

func NewWorkflowHandler(wf WorkflowService, tasks TaskService, logger *slog.Logger) *WorkflowHandler {
	return &WorkflowHandler{workflow: wf, tasks: tasks, logger: logger}
}

func (h *WorkflowHandler) Register(r chi.Router) {
	r.Get("/applications/{applicationID}/workflow", h.handleState)
	r.Get("/applications/{applicationID}/workflow/history", h.handleHistory)
	r.Post("/applications/{applicationID}/workflow/advance", h.handleAdvance)
	r.Post("/applications/{applicationID}/workflow/auto-advance", h.handleAutoAdvance)

	r.Get("/applications/{applicationID}/tasks", h.handleListTasks)
	r.Get("/tasks", h.handleTasksByAssignee)
	r.Post("/tasks/{taskID}/start", h.handleStartTask)
	r.Post("/tasks/{taskID}/complete", h.handleCompleteTask)
	r.Post("/tasks/{taskID}/cancel", h.handleCancelTask)
}

func (h *WorkflowHandler) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := h.workflow.GetWorkflowState(r.Context(), chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, state)
}

func (h *WorkflowHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.workflow.History(r.Context(), chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"history": history})
}

type advanceRequest struct {
	Target domain.MilestoneCode `json:"target"`

	// Override skips unmet prerequisites. The skip lands in the audit trail.
	Override bool `json:"override,omitempty"`
}

func (h *WorkflowHandler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	req, err := httputil.Decode[advanceRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	applicationID := chi.URLParam(r, "applicationID")
	entry, err := h.workflow.AdvanceMilestone(r.Context(), applicationID, req.Target, domain.ActorUser, actor, req.Override)
	if err != nil {
		// Unmet prerequisites get a structured body so the caller sees every
		// blocker at once.
		var unmet *workflow.UnmetPrerequisitesError
		if errors.As(err, &unmet) {
			httputil.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":     "prerequisites_unmet",
				"milestone": unmet.Milestone,
				"unmet":     unmet.Unmet,
			})
			return
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (h *WorkflowHandler) handleAutoAdvance(w http.ResponseWriter, r *http.Request) {
	advanced, err := h.workflow.EvaluateAutoAdvance(r.Context(), chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"advanced": advanced})
}

func (h *WorkflowHandler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.ListTasks(r.Context(), chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (h *WorkflowHandler) handleTasksByAssignee(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.FindTasksByAssignee(r.Context(), r.URL.Query().Get("assignee"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (h *WorkflowHandler) handleStartTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	task, err := h.tasks.StartTask(r.Context(), chi.URLParam(r, "taskID"), actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, task)
}

func (h *WorkflowHandler) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	task, err := h.tasks.CompleteTask(r.Context(), chi.URLParam(r, "taskID"), actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, task)
}

type cancelTaskRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h *WorkflowHandler) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	req, err := httputil.Decode[cancelTaskRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	task, err := h.tasks.CancelTask(r.Context(), chi.URLParam(r, "taskID"), actor, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, task)
}
