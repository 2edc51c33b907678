package workflow

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
	"lendgate/internal/platform/applock"
	"lendgate/internal/workflow/metrics"
	dErrors "lendgate/pkg/domain-errors"
	"lendgate/pkg/platform/sentinel"
)

// slaAtRiskFraction is the share of SLA hours consumed before a milestone
// reads AT_RISK.
const slaAtRiskFraction = 0.8

// StateMachine advances applications through the milestone pipeline.
type StateMachine struct {
	defs     *Definitions
	store    Store
	prereqs  *PrerequisiteChecker
	tasks    *TaskService
	locks    *applock.Map
	sync     ExternalSyncAdapter
	notifier NotificationService
	audit    AuditPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

type StateMachineOption func(*StateMachine)

func WithSyncAdapter(adapter ExternalSyncAdapter) StateMachineOption {
	return func(s *StateMachine) { s.sync = adapter }
}

func WithNotifier(notifier NotificationService) StateMachineOption {
	return func(s *StateMachine) { s.notifier = notifier }
}

func WithAuditPublisher(publisher AuditPublisher) StateMachineOption {
	return func(s *StateMachine) { s.audit = publisher }
}

func WithMetrics(m *metrics.Metrics) StateMachineOption {
	return func(s *StateMachine) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) StateMachineOption {
	return func(s *StateMachine) { s.logger = logger }
}

func WithClock(now func() time.Time) StateMachineOption {
	return func(s *StateMachine) { s.now = now }
}

func NewStateMachine(defs *Definitions, store Store, prereqs *PrerequisiteChecker, tasks *TaskService, locks *applock.Map, opts ...StateMachineOption) (*StateMachine, error) {
	if defs == nil || store == nil || prereqs == nil || tasks == nil {
		return nil, fmt.Errorf("definitions, store, prerequisite checker and task service are required")
	}
	if locks == nil {
		locks = applock.New()
	}

	s := &StateMachine{
		defs:    defs,
		store:   store,
		prereqs: prereqs,
		tasks:   tasks,
		locks:   locks,
		logger:  slog.Default(),
		tracer:  otel.Tracer("lendgate/workflow"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// GetWorkflowState derives where the application stands: current milestone
// from the single open history row (lowest-order milestone when no history
// exists), SLA health (an overdue open task breaches regardless of how far
// the milestone is into its own window), open and completed tasks, and the
// blockers on the next milestone.
func (s *StateMachine) GetWorkflowState(ctx context.Context, applicationID string) (*domain.WorkflowState, error) {
	now := s.now()

	current, enteredAt, err := s.currentMilestone(ctx, applicationID, now)
	if err != nil {
		return nil, err
	}

	state := &domain.WorkflowState{
		ApplicationID:    applicationID,
		CurrentMilestone: current.Code,
		EnteredAt:        enteredAt,
		HoursInMilestone: now.Sub(enteredAt).Hours(),
	}

	if next := s.defs.Next(current.Code); next != nil {
		state.NextMilestone = &next.Code

		unmet, err := s.prereqs.Check(ctx, applicationID, *next)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "check next milestone prerequisites")
		}
		for _, u := range unmet {
			state.Blockers = append(state.Blockers, u.Reason)
		}
	}

	tasks, err := s.store.ListTasks(ctx, applicationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list tasks")
	}
	for _, task := range tasks {
		if task.Status == domain.TaskCompleted {
			state.CompletedTasks = append(state.CompletedTasks, task)
		} else if task.Active() {
			state.OpenTasks = append(state.OpenTasks, task)
		}
	}
	state.SLAStatus = slaStatus(now, state.HoursInMilestone, current.SLAHours, state.OpenTasks)
	return state, nil
}

// AdvanceMilestone moves the application to target. Advances must move
// strictly forward and pass every prerequisite; a user may set override to
// skip unmet prerequisites, and the override is recorded. System-triggered
// advances can never override. Terminal milestones are reachable from
// anywhere.
func (s *StateMachine) AdvanceMilestone(ctx context.Context, applicationID string, target domain.MilestoneCode, triggeredBy domain.ActorKind, actor string, override bool) (*domain.MilestoneHistory, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.AdvanceMilestone",
		trace.WithAttributes(
			attribute.String("application_id", applicationID),
			attribute.String("target", string(target)),
			attribute.String("triggered_by", string(triggeredBy)),
		))
	defer span.End()

	targetDef, ok := s.defs.Milestone(target)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unknown milestone %q", target)
	}

	var opened *domain.MilestoneHistory
	err := s.locks.Do(applicationID, func() error {
		now := s.now()

		open, err := s.store.OpenHistory(ctx, applicationID)
		if err != nil {
			if !errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Wrap(err, dErrors.CodeInternal, "load open history row")
			}
			open = nil
		}

		// A fresh application already sits at the first milestone implicitly,
		// so a move into it is lateral, not forward.
		currentOrder := s.defs.First().Order
		if open != nil {
			currentDef, ok := s.defs.Milestone(open.Milestone)
			if !ok {
				return dErrors.Newf(dErrors.CodeInternal, "history references unknown milestone %q", open.Milestone)
			}
			if currentDef.Terminal {
				return s.reject(ctx, applicationID, target, actor,
					fmt.Sprintf("application is terminal at %s", open.Milestone))
			}
			currentOrder = currentDef.Order
		}

		if !targetDef.Terminal && targetDef.Order <= currentOrder {
			return s.reject(ctx, applicationID, target, actor,
				fmt.Sprintf("milestone %s (order %d) does not advance past order %d", target, targetDef.Order, currentOrder))
		}

		unmet, err := s.prereqs.Check(ctx, applicationID, targetDef)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "check prerequisites")
		}
		if len(unmet) > 0 {
			if !override || triggeredBy == domain.ActorSystem {
				prereqErr := &UnmetPrerequisitesError{Milestone: target, Unmet: unmet}
				s.metrics.IncrementRejected(string(target))
				s.emit(ctx, audit.Event{
					Action:        audit.ActionMilestoneAdvanceRejected,
					ApplicationID: applicationID,
					Actor:         actor,
					Outcome:       string(target),
					Reason:        prereqErr.Error(),
				})
				return prereqErr
			}
			// Override requested: proceed, but the audit trail shows what
			// was skipped.
			s.logger.InfoContext(ctx, "milestone prerequisites overridden",
				"application_id", applicationID, "target", target, "actor", actor, "unmet", len(unmet))
		}

		if open != nil {
			exited := now
			open.ExitedAt = &exited
			open.DurationHours = exited.Sub(open.EnteredAt).Hours()
			if err := s.store.UpdateHistory(ctx, *open); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "close history row")
			}
		}

		row := domain.MilestoneHistory{
			ID:            uuid.NewString(),
			ApplicationID: applicationID,
			Milestone:     target,
			EnteredAt:     now,
			TriggeredBy:   triggeredBy,
			Actor:         actor,
		}
		if err := s.store.AppendHistory(ctx, row); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "open history row")
		}

		if _, err := s.tasks.InstantiateForMilestone(ctx, applicationID, target); err != nil {
			return err
		}

		s.metrics.IncrementAdvance(string(target), string(triggeredBy))
		s.emit(ctx, audit.Event{
			Action:        audit.ActionMilestoneAdvanced,
			ApplicationID: applicationID,
			Actor:         actor,
			Outcome:       string(target),
			Detail: map[string]any{
				"triggered_by":             triggeredBy,
				"prerequisites_overridden": len(unmet),
			},
		})
		opened = &row
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.fanOut(ctx, applicationID, target)
	return opened, nil
}

// EvaluateAutoAdvance walks forward from the current milestone. Each step is
// a no-op unless the milestone the application sits in carries the
// auto-advance flag and the next milestone's prerequisites all hold. Returns
// the milestones entered, in order.
func (s *StateMachine) EvaluateAutoAdvance(ctx context.Context, applicationID string) ([]domain.MilestoneCode, error) {
	var advanced []domain.MilestoneCode
	for {
		now := s.now()
		current, _, err := s.currentMilestone(ctx, applicationID, now)
		if err != nil {
			return advanced, err
		}
		if !current.AutoAdvance {
			return advanced, nil
		}

		next := s.defs.Next(current.Code)
		if next == nil {
			return advanced, nil
		}

		unmet, err := s.prereqs.Check(ctx, applicationID, *next)
		if err != nil {
			return advanced, dErrors.Wrap(err, dErrors.CodeInternal, "check prerequisites")
		}
		if len(unmet) > 0 {
			return advanced, nil
		}

		if _, err := s.AdvanceMilestone(ctx, applicationID, next.Code, domain.ActorSystem, "auto-advance", false); err != nil {
			return advanced, err
		}
		advanced = append(advanced, next.Code)
	}
}

// History returns the full milestone trail, oldest first.
func (s *StateMachine) History(ctx context.Context, applicationID string) ([]domain.MilestoneHistory, error) {
	rows, err := s.store.ListHistory(ctx, applicationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list history")
	}
	return rows, nil
}

func (s *StateMachine) currentMilestone(ctx context.Context, applicationID string, now time.Time) (domain.Milestone, time.Time, error) {
	open, err := s.store.OpenHistory(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return s.defs.First(), now, nil
		}
		return domain.Milestone{}, time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "load open history row")
	}
	def, ok := s.defs.Milestone(open.Milestone)
	if !ok {
		return domain.Milestone{}, time.Time{}, dErrors.Newf(dErrors.CodeInternal,
			"history references unknown milestone %q", open.Milestone)
	}
	return def, open.EnteredAt, nil
}

func (s *StateMachine) reject(ctx context.Context, applicationID string, target domain.MilestoneCode, actor, reason string) error {
	s.metrics.IncrementRejected(string(target))
	s.emit(ctx, audit.Event{
		Action:        audit.ActionMilestoneAdvanceRejected,
		ApplicationID: applicationID,
		Actor:         actor,
		Outcome:       string(target),
		Reason:        reason,
	})
	return dErrors.New(dErrors.CodePreconditionFailed, reason)
}

// fanOut pushes the milestone change downstream. Failures are logged; the
// advance is already committed and never rolls back for sync problems.
func (s *StateMachine) fanOut(ctx context.Context, applicationID string, milestone domain.MilestoneCode) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if s.sync != nil {
			if err := s.sync.SyncMilestone(ctx, applicationID, milestone); err != nil {
				s.logger.WarnContext(ctx, "external milestone sync failed",
					"application_id", applicationID, "milestone", milestone, "error", err)
			}
		}
		if s.notifier != nil {
			if err := s.notifier.NotifyMilestone(ctx, applicationID, milestone); err != nil {
				s.logger.WarnContext(ctx, "milestone notification failed",
					"application_id", applicationID, "milestone", milestone, "error", err)
			}
		}
	}()
}

func (s *StateMachine) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}

// slaStatus is BREACHED when any open task is overdue or the milestone has
// exhausted its own window, AT_RISK past slaAtRiskFraction of the window.
func slaStatus(now time.Time, hoursIn float64, slaHours int, openTasks []domain.Task) domain.SLAStatus {
	for _, task := range openTasks {
		if task.DueAt != nil && now.After(*task.DueAt) {
			return domain.SLABreached
		}
	}
	if slaHours <= 0 {
		return domain.SLAOnTrack
	}
	limit := float64(slaHours)
	switch {
	case hoursIn > limit:
		return domain.SLABreached
	case hoursIn > limit*slaAtRiskFraction:
		return domain.SLAAtRisk
	default:
		return domain.SLAOnTrack
	}
}
