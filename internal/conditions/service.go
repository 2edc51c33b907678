// Package conditions owns the lifecycle of follow-up requirements raised
// against an application: creation from failing rules or by hand, clearing,
// waiving, and reopening when underlying data regresses.
package conditions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lendgate/internal/audit"
	"lendgate/internal/conditions/metrics"
	"lendgate/internal/domain"
	"lendgate/internal/rules"
	dErrors "lendgate/pkg/domain-errors"
)

// PredicateEvaluator re-evaluates auto-clear predicates against fresh data.
// *rules.Evaluator satisfies it.
type PredicateEvaluator interface {
	Evaluate(cond domain.RuleCondition, data map[string]any) (bool, error)
}

// AuditPublisher emits audit events for condition transitions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service implements the condition lifecycle. It also satisfies
// rules.ConditionService so the rule engine can materialize conditions from
// failing rules.
type Service struct {
	store     Store
	evaluator PredicateEvaluator
	audit     AuditPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.audit = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, evaluator PredicateEvaluator, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("condition store is required")
	}
	if evaluator == nil {
		return nil, fmt.Errorf("predicate evaluator is required")
	}

	s := &Service{
		store:     store,
		evaluator: evaluator,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// CreateCondition materializes a condition from a failing rule's template.
func (s *Service) CreateCondition(ctx context.Context, spec rules.ConditionSpec) (*domain.Condition, error) {
	return s.create(ctx, domain.Condition{
		ApplicationID: spec.ApplicationID,
		Code:          spec.Code,
		Category:      spec.Category,
		Description:   spec.Description,
		Source:        spec.Source,
		RuleID:        spec.RuleID,
		AutoClear:     spec.AutoClear,
	}, string(spec.Source))
}

// ManualConditionInput is a condition raised by an underwriter or investor
// rather than a rule.
type ManualConditionInput struct {
	ApplicationID string
	Code          string
	Category      domain.ConditionCategory
	Description   string
	Source        domain.ConditionSource
	Actor         string
}

func (s *Service) CreateManual(ctx context.Context, input ManualConditionInput) (*domain.Condition, error) {
	if input.ApplicationID == "" || input.Code == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "application ID and code are required")
	}
	if input.Category == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "condition category is required")
	}
	source := input.Source
	if source == "" {
		source = domain.SourceUnderwriter
	}
	return s.create(ctx, domain.Condition{
		ApplicationID: input.ApplicationID,
		Code:          input.Code,
		Category:      input.Category,
		Description:   input.Description,
		Source:        source,
	}, input.Actor)
}

func (s *Service) create(ctx context.Context, condition domain.Condition, actor string) (*domain.Condition, error) {
	condition.ID = uuid.NewString()
	condition.Status = domain.ConditionOpen
	condition.CreatedAt = s.now()

	if err := s.store.Insert(ctx, condition); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "insert condition")
	}

	s.metrics.IncrementTransition(string(condition.Category), string(condition.Status))
	s.emit(ctx, audit.Event{
		Action:        audit.ActionConditionCreated,
		ApplicationID: condition.ApplicationID,
		Actor:         actor,
		Detail: map[string]any{
			"condition_id": condition.ID,
			"code":         condition.Code,
			"category":     condition.Category,
			"rule_id":      condition.RuleID,
		},
	})
	return &condition, nil
}

// Clear marks an open condition CLEARED, stamping who and when.
func (s *Service) Clear(ctx context.Context, id, actor string) (*domain.Condition, error) {
	return s.transition(ctx, id, actor, "", domain.ConditionCleared, audit.ActionConditionCleared)
}

// Waive marks an open condition WAIVED. Waived conditions no longer block but
// remain on record.
func (s *Service) Waive(ctx context.Context, id, actor, reason string) (*domain.Condition, error) {
	return s.transition(ctx, id, actor, reason, domain.ConditionWaived, audit.ActionConditionWaived)
}

// Reopen returns a cleared or waived condition to the open set.
func (s *Service) Reopen(ctx context.Context, id, actor, reason string) (*domain.Condition, error) {
	return s.transition(ctx, id, actor, reason, domain.ConditionReopened, audit.ActionConditionReopened)
}

func (s *Service) transition(ctx context.Context, id, actor, reason string, target domain.ConditionStatus, action audit.Action) (*domain.Condition, error) {
	condition, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "load condition")
	}

	if !validTransition(condition.Status, target) {
		return nil, dErrors.Newf(dErrors.CodePreconditionFailed,
			"condition %s is %s, cannot move to %s", id, condition.Status, target)
	}

	condition.Status = target
	switch target {
	case domain.ConditionCleared, domain.ConditionWaived:
		now := s.now()
		condition.ClearedAt = &now
		condition.ClearedBy = actor
	case domain.ConditionReopened:
		condition.ClearedAt = nil
		condition.ClearedBy = ""
	}

	if err := s.store.Update(ctx, *condition); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update condition")
	}

	s.metrics.IncrementTransition(string(condition.Category), string(target))
	s.emit(ctx, audit.Event{
		Action:        action,
		ApplicationID: condition.ApplicationID,
		Actor:         actor,
		Reason:        reason,
		Detail:        map[string]any{"condition_id": condition.ID, "code": condition.Code},
	})
	return condition, nil
}

func validTransition(from, to domain.ConditionStatus) bool {
	switch to {
	case domain.ConditionCleared, domain.ConditionWaived:
		return from == domain.ConditionOpen || from == domain.ConditionReopened
	case domain.ConditionReopened:
		return from == domain.ConditionCleared || from == domain.ConditionWaived
	default:
		return false
	}
}

// AutoClearSweep re-evaluates the auto-clear predicate of every open
// condition against fresh application data and clears those that now hold.
// Predicate errors are logged and skipped so one bad predicate never stalls
// the sweep.
func (s *Service) AutoClearSweep(ctx context.Context, applicationID string, data map[string]any) ([]domain.Condition, error) {
	all, err := s.store.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list conditions")
	}

	var cleared []domain.Condition
	for _, condition := range all {
		if !condition.IsOpen() || condition.AutoClear == nil {
			continue
		}
		ok, err := s.evaluator.Evaluate(*condition.AutoClear, data)
		if err != nil {
			s.logger.WarnContext(ctx, "auto-clear predicate failed",
				"condition_id", condition.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		updated, err := s.Clear(ctx, condition.ID, "system")
		if err != nil {
			return cleared, err
		}
		cleared = append(cleared, *updated)
	}
	return cleared, nil
}

// ReopenRegressed reopens cleared auto-clear conditions whose predicate no
// longer holds against fresh data.
func (s *Service) ReopenRegressed(ctx context.Context, applicationID string, data map[string]any) ([]domain.Condition, error) {
	all, err := s.store.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list conditions")
	}

	var reopened []domain.Condition
	for _, condition := range all {
		if condition.Status != domain.ConditionCleared || condition.AutoClear == nil {
			continue
		}
		ok, err := s.evaluator.Evaluate(*condition.AutoClear, data)
		if err != nil {
			s.logger.WarnContext(ctx, "regression predicate failed",
				"condition_id", condition.ID, "error", err)
			continue
		}
		if ok {
			continue
		}
		updated, err := s.Reopen(ctx, condition.ID, "system", "underlying data regressed")
		if err != nil {
			return reopened, err
		}
		reopened = append(reopened, *updated)
	}
	return reopened, nil
}

// CountOpenByCategory reports how many conditions of a category still block
// the application. Milestone prerequisites use this.
func (s *Service) CountOpenByCategory(ctx context.Context, applicationID string, category domain.ConditionCategory) (int, error) {
	all, err := s.store.ListByApplication(ctx, applicationID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "list conditions")
	}
	count := 0
	for _, condition := range all {
		if condition.Category == category && condition.IsOpen() {
			count++
		}
	}
	return count, nil
}

// ListByApplication returns every condition on the application, oldest first.
func (s *Service) ListByApplication(ctx context.Context, applicationID string) ([]domain.Condition, error) {
	out, err := s.store.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list conditions")
	}
	return out, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
