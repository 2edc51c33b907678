package rules

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
	"lendgate/internal/domain"
	"lendgate/internal/rules/cache"
	"lendgate/internal/rules/metrics"
	dErrors "lendgate/pkg/domain-errors"
	"lendgate/pkg/platform/sentinel"
)

// ConditionSpec is what the engine hands the condition collaborator when a
// failing rule carries a condition template.
type ConditionSpec struct {
	ApplicationID string
	Code          string
	Category      domain.ConditionCategory
	Description   string
	Source        domain.ConditionSource
	RuleID        string
	AutoClear     *domain.RuleCondition
}

// ConditionService materializes follow-up conditions from failing rules.
type ConditionService interface {
	CreateCondition(ctx context.Context, spec ConditionSpec) (*domain.Condition, error)
}

// AuditPublisher emits audit events for evaluations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// EvaluateOptions tunes a single engine run.
type EvaluateOptions struct {
	// StopOnFirstFailure marks every rule after the first BLOCKING failure
	// as SKIP instead of evaluating it. The result list still carries one
	// row per rule so the audit trail stays complete.
	StopOnFirstFailure bool
}

// Engine runs every rule of the active rule version against a loan snapshot
// and records an auditable evaluation.
type Engine struct {
	store      Store
	conditions ConditionService
	evaluator  *Evaluator
	cache      cache.VersionCache
	audit      AuditPublisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

type Option func(*Engine)

func WithEvaluator(evaluator *Evaluator) Option {
	return func(e *Engine) { e.evaluator = evaluator }
}

func WithCache(c cache.VersionCache) Option {
	return func(e *Engine) { e.cache = c }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(e *Engine) { e.audit = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store Store, conditions ConditionService, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("rule store is required")
	}
	if conditions == nil {
		return nil, fmt.Errorf("condition service is required")
	}

	e := &Engine{
		store:      store,
		conditions: conditions,
		evaluator:  NewEvaluator(),
		logger:     slog.Default(),
		tracer:     otel.Tracer("lendgate/rules"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e, nil
}

// Evaluate scores every rule of ruleSet's active version against evalCtx.
// The returned evaluation has been persisted and audited; callers never see
// a result that failed to persist.
func (e *Engine) Evaluate(ctx context.Context, ruleSet string, evalCtx domain.EvalContext, opts EvaluateOptions) (*domain.RuleEvaluation, error) {
	ctx, span := e.tracer.Start(ctx, "rules.Evaluate",
		trace.WithAttributes(
			attribute.String("rule_set", ruleSet),
			attribute.String("application_id", evalCtx.ApplicationID),
		))
	defer span.End()

	start := e.now()

	version, err := e.activeVersion(ctx, ruleSet)
	if err != nil {
		return nil, err
	}

	evaluation := &domain.RuleEvaluation{
		ID:            uuid.NewString(),
		ApplicationID: evalCtx.ApplicationID,
		RuleSet:       ruleSet,
		Version:       version.Version,
		Snapshot:      evalCtx.Data,
		Results:       make([]domain.RuleEvaluationResult, 0, len(version.Rules)),
		EvaluatedAt:   start,
	}

	blockingFailed := false
	for _, rule := range version.Rules {
		result := e.evaluateRule(ctx, rule, evalCtx, opts, blockingFailed)
		if result.Result == domain.RuleFail && rule.Severity == domain.SeverityBlocking {
			blockingFailed = true
		}

		if needsCondition(result.Result, rule) {
			cond, err := e.materializeCondition(ctx, rule, evalCtx.ApplicationID)
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "materialize condition for failing rule")
			}
			result.ConditionID = cond.ID
		}

		switch result.Result {
		case domain.RulePass:
			evaluation.RulesPassed++
		case domain.RuleFail:
			evaluation.RulesFailed++
			e.metrics.IncrementRuleFailure(rule.ID)
		case domain.RuleWarn:
			evaluation.RulesWarned++
		case domain.RuleSkip:
			evaluation.RulesSkipped++
		}
		evaluation.Results = append(evaluation.Results, result)
	}

	evaluation.Overall = aggregateResult(evaluation.Results)
	evaluation.Duration = e.now().Sub(start)

	if err := e.store.SaveEvaluation(ctx, *evaluation); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist rule evaluation")
	}
	e.emitAudit(ctx, evaluation)

	e.metrics.IncrementOutcome(ruleSet, string(evaluation.Overall))
	e.metrics.ObserveEvaluateLatency(evaluation.Duration)
	span.SetAttributes(attribute.String("overall", string(evaluation.Overall)))

	return evaluation, nil
}

// activeVersion loads the single active rule version, via the cache when one
// is configured. Zero or multiple active versions fail closed.
func (e *Engine) activeVersion(ctx context.Context, ruleSet string) (*domain.RuleVersion, error) {
	if e.cache != nil {
		if version := e.cache.Get(ctx, ruleSet); version != nil {
			return version, nil
		}
	}

	version, err := e.store.GetActiveRuleVersion(ctx, ruleSet)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(ErrNoActiveRuleVersion, dErrors.CodeInvalidConfig, fmt.Sprintf("rule set %q", ruleSet))
		}
		if errors.Is(err, ErrAmbiguousRuleVersion) {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidConfig, fmt.Sprintf("rule set %q", ruleSet))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load active rule version")
	}

	if e.cache != nil {
		e.cache.Set(ctx, *version)
	}
	return version, nil
}

// evaluateRule produces the audit row for one rule. A predicate error or
// panic is recorded as a FAIL row; one bad rule never aborts the batch.
func (e *Engine) evaluateRule(ctx context.Context, rule domain.Rule, evalCtx domain.EvalContext, opts EvaluateOptions, blockingFailed bool) domain.RuleEvaluationResult {
	result := domain.RuleEvaluationResult{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Category: rule.Category,
		Severity: rule.Severity,
	}

	if !rule.Active {
		result.Result = domain.RuleSkip
		result.SkipReason = "rule inactive"
		return result
	}
	if opts.StopOnFirstFailure && blockingFailed {
		result.Result = domain.RuleSkip
		result.SkipReason = "previous blocking failure"
		return result
	}

	passed, err := e.runPredicate(rule, evalCtx.Data)
	if err != nil {
		result.Result = domain.RuleFail
		result.Message = fmt.Sprintf("evaluation error: %v", err)
		e.logger.WarnContext(ctx, "rule predicate failed",
			"rule_id", rule.ID,
			"application_id", evalCtx.ApplicationID,
			"error", err,
		)
		return result
	}

	if passed {
		result.Result = outcomeKind(rule.OnPass, domain.RulePass)
		result.Message = fmt.Sprintf("%s satisfied", rule.Name)
	} else {
		result.Result = outcomeKind(rule.OnFail, domain.RuleFail)
		result.Message = fmt.Sprintf("%s not satisfied", rule.Name)
	}
	return result
}

// runPredicate isolates a panicking condition tree into an error.
func (e *Engine) runPredicate(rule domain.Rule, data map[string]any) (passed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rule %s panicked: %v", rule.ID, r)
		}
	}()
	return e.evaluator.Evaluate(rule.Condition, data)
}

func (e *Engine) materializeCondition(ctx context.Context, rule domain.Rule, applicationID string) (*domain.Condition, error) {
	tmpl := rule.OnFail.CreateCondition
	return e.conditions.CreateCondition(ctx, ConditionSpec{
		ApplicationID: applicationID,
		Code:          tmpl.Code,
		Category:      tmpl.Category,
		Description:   tmpl.Description,
		Source:        domain.SourceSystem,
		RuleID:        rule.ID,
		AutoClear:     tmpl.AutoClear,
	})
}

// emitAudit fires the evaluation audit event. A failed emit is logged, not
// propagated: the evaluation is already durably persisted.
func (e *Engine) emitAudit(ctx context.Context, evaluation *domain.RuleEvaluation) {
	if e.audit == nil {
		return
	}
	err := e.audit.Emit(ctx, audit.Event{
		Action:        audit.ActionRulesEvaluated,
		ApplicationID: evaluation.ApplicationID,
		Outcome:       string(evaluation.Overall),
		Detail: map[string]any{
			"evaluation_id": evaluation.ID,
			"rule_set":      evaluation.RuleSet,
			"version":       evaluation.Version,
			"rules_failed":  evaluation.RulesFailed,
			"rules_warned":  evaluation.RulesWarned,
		},
	})
	if err != nil {
		e.logger.WarnContext(ctx, "audit emit failed",
			"evaluation_id", evaluation.ID,
			"error", err,
		)
	}
}

func needsCondition(kind domain.RuleResultKind, rule domain.Rule) bool {
	if rule.OnFail.CreateCondition == nil {
		return false
	}
	return kind == domain.RuleFail || kind == domain.RuleWarn
}

func outcomeKind(outcome domain.RuleOutcome, fallback domain.RuleResultKind) domain.RuleResultKind {
	if outcome.Result == "" {
		return fallback
	}
	return outcome.Result
}

// aggregateResult applies the outcome policy in priority order: a single
// blocking failure denies outright, any failure is an exception, any warning
// routes to manual review. A hard failure always overrides soft warnings.
func aggregateResult(results []domain.RuleEvaluationResult) domain.DecisionResult {
	anyFail, anyWarn := false, false
	for _, r := range results {
		switch r.Result {
		case domain.RuleFail:
			if r.Severity == domain.SeverityBlocking {
				return domain.ResultDenied
			}
			anyFail = true
		case domain.RuleWarn:
			anyWarn = true
		}
	}
	if anyFail {
		return domain.ResultException
	}
	if anyWarn {
		return domain.ResultManualReview
	}
	return domain.ResultApproved
}
