package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lendgate/internal/decision"
	"lendgate/internal/domain"
	"lendgate/internal/rules"
	"lendgate/pkg/platform/httputil"
)

// DecisionService generates and manages decisions.
type DecisionService interface {
	GenerateDecision(ctx context.Context, input decision.GenerateInput) (*domain.Decision, error)
	MarkReviewed(ctx context.Context, decisionID, reviewer string) (*domain.Decision, error)
	GetLatest(ctx context.Context, applicationID string) (*domain.Decision, error)
	ListByApplication(ctx context.Context, applicationID string) ([]domain.Decision, error)
}

// Pricer quotes a rate for a loan scenario.
type Pricer interface {
	Price(input domain.PricingInput) domain.PricingResult
}

// DecisionsHandler composes the rule engine, pricing and condition inventory
// into decision generation, and exposes the decision chain.
type DecisionsHandler struct {
	decisions  DecisionService
	engine     RuleEngine
	pricer     Pricer
	conditions ConditionService
	logger     *slog.Logger
}

func NewDecisionsHandler(decisions DecisionService, engine RuleEngine, pricer Pricer, conditions ConditionService, logger *slog.Logger) *DecisionsHandler {
	return &DecisionsHandler{
		decisions:  decisions,
		engine:     engine,
		pricer:     pricer,
		conditions: conditions,
		logger:     logger,
	}
}

func (h *DecisionsHandler) Register(r chi.Router) {
	r.Post("/applications/{applicationID}/decisions", h.handleGenerate)
	r.Get("/applications/{applicationID}/decisions", h.handleList)
	r.Get("/applications/{applicationID}/decisions/latest", h.handleLatest)
	r.Post("/decisions/{decisionID}/review", h.handleReview)
}

type generateDecisionRequest struct {
	Type    domain.DecisionType  `json:"type,omitempty"`
	RuleSet string               `json:"ruleSet"`
	Data    map[string]any       `json:"data"`
	Factors domain.LoanFactors   `json:"factors"`
	Pricing *domain.PricingInput `json:"pricing,omitempty"`
}

func (h *DecisionsHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicationID := chi.URLParam(r, "applicationID")

	req, err := httputil.Decode[generateDecisionRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	evaluation, err := h.engine.Evaluate(ctx, req.RuleSet,
		domain.EvalContext{ApplicationID: applicationID, Data: req.Data},
		rules.EvaluateOptions{})
	if err != nil {
		h.logger.ErrorContext(ctx, "decision eligibility run failed",
			"application_id", applicationID, "rule_set", req.RuleSet, "error", err)
		httputil.WriteError(w, err)
		return
	}

	input := decision.GenerateInput{
		ApplicationID: applicationID,
		Type:          req.Type,
		Eligibility:   decision.EligibilityFromEvaluation(evaluation),
		Factors:       req.Factors,
	}

	if req.Pricing != nil {
		pricing := h.pricer.Price(*req.Pricing)
		input.Pricing = &pricing
	}

	conditionList, err := h.conditions.ListByApplication(ctx, applicationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	for _, c := range conditionList {
		if c.IsOpen() {
			input.Conditions = append(input.Conditions, c)
		}
	}

	generated, err := h.decisions.GenerateDecision(ctx, input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, generated)
}

func (h *DecisionsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	decisions, err := h.decisions.ListByApplication(r.Context(), chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"decisions": decisions})
}

func (h *DecisionsHandler) handleLatest(w http.ResponseWriter, r *http.Request) {
	latest, err := h.decisions.GetLatest(r.Context(), chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, latest)
}

func (h *DecisionsHandler) handleReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	reviewed, err := h.decisions.MarkReviewed(r.Context(), chi.URLParam(r, "decisionID"), actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reviewed)
}
