// Package decision assembles eligibility, pricing and conditions into a
// versioned underwriting decision with an explainable rationale.
package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lendgate/internal/audit"
	"lendgate/internal/decision/metrics"
	"lendgate/internal/domain"
	"lendgate/internal/platform/applock"
	dErrors "lendgate/pkg/domain-errors"
	"lendgate/pkg/platform/sentinel"
)

// Approved decisions expire if the loan has not closed within this window.
const approvalValidity = 90 * 24 * time.Hour

// AuditPublisher emits audit events for decision lifecycle changes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// GenerateInput is everything the aggregator folds into one decision.
type GenerateInput struct {
	ApplicationID string
	Type          domain.DecisionType
	Eligibility   domain.EligibilityResult
	Factors       domain.LoanFactors
	Pricing       *domain.PricingResult
	Conditions    []domain.Condition
}

// Aggregator builds decisions and manages their supersession chain.
type Aggregator struct {
	store   Store
	locks   *applock.Map
	audit   AuditPublisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

type Option func(*Aggregator)

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(a *Aggregator) { a.audit = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(store Store, locks *applock.Map, opts ...Option) (*Aggregator, error) {
	if store == nil {
		return nil, fmt.Errorf("decision store is required")
	}
	if locks == nil {
		locks = applock.New()
	}

	a := &Aggregator{
		store:  store,
		locks:  locks,
		logger: slog.Default(),
		tracer: otel.Tracer("lendgate/decision"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a, nil
}

// GenerateDecision builds a decision and installs it as the latest, atomically
// superseding any prior one. At no point do two decisions for the application
// read as latest.
func (a *Aggregator) GenerateDecision(ctx context.Context, input GenerateInput) (*domain.Decision, error) {
	ctx, span := a.tracer.Start(ctx, "decision.Generate",
		trace.WithAttributes(
			attribute.String("application_id", input.ApplicationID),
			attribute.String("type", string(input.Type)),
		))
	defer span.End()

	if input.ApplicationID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "application ID is required")
	}
	if input.Type == "" {
		input.Type = domain.DecisionUnderwriting
	}

	now := a.now()
	decision := domain.Decision{
		ID:            uuid.NewString(),
		ApplicationID: input.ApplicationID,
		Type:          input.Type,
		Result:        determineResult(input),
		Version:       1,
		IsLatest:      true,
		Eligibility:   input.Eligibility,
		Pricing:       input.Pricing,
		Conditions:    input.Conditions,
		Rationale:     buildRationale(input.Factors, input.Eligibility),
		DecidedAt:     now,
	}
	if decision.Result == domain.OutcomeApproved {
		expires := now.Add(approvalValidity)
		decision.ExpiresAt = &expires
	}

	err := a.locks.Do(input.ApplicationID, func() error {
		previous, err := a.store.GetLatest(ctx, input.ApplicationID)
		switch {
		case err == nil:
			decision.Version = previous.Version + 1
		case errors.Is(err, sentinel.ErrNotFound):
			previous = nil
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "load latest decision")
		}

		// The old latest flips before the new row lands so the single-latest
		// invariant never sees two latest rows, only a brief zero.
		if previous != nil {
			previous.IsLatest = false
			previous.SupersededBy = decision.ID
			if err := a.store.Update(ctx, *previous); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "supersede prior decision")
			}
		}

		if err := a.store.Insert(ctx, decision); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "insert decision")
		}

		if previous != nil {
			a.metrics.IncrementSupersession()
			a.emit(ctx, audit.Event{
				Action:        audit.ActionDecisionSuperseded,
				ApplicationID: input.ApplicationID,
				Detail: map[string]any{
					"decision_id":   previous.ID,
					"superseded_by": decision.ID,
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.metrics.IncrementDecision(string(decision.Type), string(decision.Result))
	a.metrics.ObserveRiskBand(string(decision.Rationale.RiskBand))
	a.emit(ctx, audit.Event{
		Action:        audit.ActionDecisionCreated,
		ApplicationID: input.ApplicationID,
		Outcome:       string(decision.Result),
		Detail: map[string]any{
			"decision_id": decision.ID,
			"type":        decision.Type,
			"version":     decision.Version,
			"risk_band":   decision.Rationale.RiskBand,
		},
	})
	span.SetAttributes(attribute.String("result", string(decision.Result)))

	return &decision, nil
}

// determineResult applies the outcome policy: ineligible with hard failures
// declines, missing critical inputs suspend, everything else approves.
// Warnings never block approval; they ride along as conditions and rationale
// weaknesses.
func determineResult(input GenerateInput) domain.DecisionOutcome {
	if !input.Eligibility.Eligible && input.Eligibility.BlockingFailures > 0 {
		return domain.OutcomeDeclined
	}
	if input.Factors.CreditScore == nil || input.Factors.PropertyValueCents == nil {
		return domain.OutcomeSuspended
	}
	return domain.OutcomeApproved
}

// MarkReviewed stamps a human review on a decision.
func (a *Aggregator) MarkReviewed(ctx context.Context, decisionID, reviewer string) (*domain.Decision, error) {
	if reviewer == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "reviewer is required")
	}

	decision, err := a.store.Get(ctx, decisionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "load decision")
	}

	var out *domain.Decision
	err = a.locks.Do(decision.ApplicationID, func() error {
		decision, err := a.store.Get(ctx, decisionID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "load decision")
		}
		if decision.ReviewedAt != nil {
			return dErrors.Newf(dErrors.CodeConflict, "decision %s already reviewed by %s", decisionID, decision.ReviewedBy)
		}

		now := a.now()
		decision.ReviewedBy = reviewer
		decision.ReviewedAt = &now
		if err := a.store.Update(ctx, *decision); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update decision")
		}

		a.emit(ctx, audit.Event{
			Action:        audit.ActionDecisionReviewed,
			ApplicationID: decision.ApplicationID,
			Actor:         reviewer,
			Detail:        map[string]any{"decision_id": decision.ID},
		})
		out = decision
		return nil
	})
	return out, err
}

// GetLatest returns the application's current decision.
func (a *Aggregator) GetLatest(ctx context.Context, applicationID string) (*domain.Decision, error) {
	decision, err := a.store.GetLatest(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "latest decision")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load latest decision")
	}
	return decision, nil
}

// ListByApplication returns the full decision chain, oldest version first.
func (a *Aggregator) ListByApplication(ctx context.Context, applicationID string) ([]domain.Decision, error) {
	decisions, err := a.store.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list decisions")
	}
	return decisions, nil
}

// HasDecision reports whether any decision of the given type exists. The
// workflow's DECISION prerequisites use this.
func (a *Aggregator) HasDecision(ctx context.Context, applicationID, decisionType string) (bool, error) {
	decisions, err := a.store.ListByApplication(ctx, applicationID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "list decisions")
	}
	for _, decision := range decisions {
		if string(decision.Type) == decisionType && decision.Result != domain.OutcomeDeclined {
			return true, nil
		}
	}
	return false, nil
}

func (a *Aggregator) emit(ctx context.Context, event audit.Event) {
	if a.audit == nil {
		return
	}
	if err := a.audit.Emit(ctx, event); err != nil {
		a.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
