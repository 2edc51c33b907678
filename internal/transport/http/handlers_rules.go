package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lendgate/internal/domain"
	"lendgate/internal/rules"
	"lendgate/pkg/platform/httputil"
)

// RuleEngine evaluates a rule set against a loan snapshot.
type RuleEngine interface {
	Evaluate(ctx context.Context, ruleSet string, evalCtx domain.EvalContext, opts rules.EvaluateOptions) (*domain.RuleEvaluation, error)
}

// RuleLifecycle publishes and lists rule versions.
type RuleLifecycle interface {
	PublishVersion(ctx context.Context, ruleSet, versionLabel string, ruleList []domain.Rule) (*domain.RuleVersion, error)
	ListVersions(ctx context.Context, ruleSet string) ([]domain.RuleVersion, error)
}

// RulesHandler exposes rule evaluation and version management.
type RulesHandler struct {
	engine    RuleEngine
	lifecycle RuleLifecycle
	logger    *slog.Logger
}

func NewRulesHandler(engine RuleEngine, lifecycle RuleLifecycle, logger *slog.Logger) *RulesHandler {
	return &RulesHandler{engine: engine, lifecycle: lifecycle, logger: logger}
}

func (h *RulesHandler) Register(r chi.Router) {
	r.Post("/rules/evaluate", h.handleEvaluate)
	r.Post("/rules/{ruleSet}/versions", h.handlePublish)
	r.Get("/rules/{ruleSet}/versions", h.handleListVersions)
}

type evaluateRequest struct {
	ApplicationID      string         `json:"applicationId"`
	RuleSet            string         `json:"ruleSet"`
	Data               map[string]any `json:"data"`
	StopOnFirstFailure bool           `json:"stopOnFirstFailure,omitempty"`
}

func (h *RulesHandler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.Decode[evaluateRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	evaluation, err := h.engine.Evaluate(r.Context(), req.RuleSet,
		domain.EvalContext{ApplicationID: req.ApplicationID, Data: req.Data},
		rules.EvaluateOptions{StopOnFirstFailure: req.StopOnFirstFailure})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "rule evaluation failed",
			"application_id", req.ApplicationID, "rule_set", req.RuleSet, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, evaluation)
}

type publishRequest struct {
	Version string        `json:"version"`
	Rules   []domain.Rule `json:"rules"`
}

func (h *RulesHandler) handlePublish(w http.ResponseWriter, r *http.Request) {
	ruleSet := chi.URLParam(r, "ruleSet")

	req, err := httputil.Decode[publishRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	version, err := h.lifecycle.PublishVersion(r.Context(), ruleSet, req.Version, req.Rules)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, version)
}

func (h *RulesHandler) handleListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.lifecycle.ListVersions(r.Context(), chi.URLParam(r, "ruleSet"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"versions": versions})
}
