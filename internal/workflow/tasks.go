package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"lendgate/internal/audit"
	"lendgate/internal/domain"
	"lendgate/internal/platform/applock"
	"lendgate/internal/workflow/metrics"
	dErrors "lendgate/pkg/domain-errors"
	stringsutil "lendgate/pkg/platform/strings"
)

// AuditPublisher emits audit events for workflow transitions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// TaskService instantiates tasks from templates and walks the dependency
// graph on completion.
type TaskService struct {
	defs     *Definitions
	store    Store
	locks    *applock.Map
	audit    AuditPublisher
	notifier NotificationService
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

type TaskOption func(*TaskService)

func WithTaskAuditPublisher(publisher AuditPublisher) TaskOption {
	return func(s *TaskService) { s.audit = publisher }
}

func WithTaskNotifier(notifier NotificationService) TaskOption {
	return func(s *TaskService) { s.notifier = notifier }
}

func WithTaskMetrics(m *metrics.Metrics) TaskOption {
	return func(s *TaskService) { s.metrics = m }
}

func WithTaskLogger(logger *slog.Logger) TaskOption {
	return func(s *TaskService) { s.logger = logger }
}

func WithTaskClock(now func() time.Time) TaskOption {
	return func(s *TaskService) { s.now = now }
}

func NewTaskService(defs *Definitions, store Store, locks *applock.Map, opts ...TaskOption) (*TaskService, error) {
	if defs == nil || store == nil {
		return nil, fmt.Errorf("definitions and store are required")
	}
	if locks == nil {
		locks = applock.New()
	}

	s := &TaskService{
		defs:   defs,
		store:  store,
		locks:  locks,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// InstantiateForMilestone creates the tasks triggered by entering milestone.
// Templates whose code already exists for the application are skipped, so
// re-entering a milestone never duplicates work. The caller holds the
// application lock.
func (s *TaskService) InstantiateForMilestone(ctx context.Context, applicationID string, milestone domain.MilestoneCode) ([]domain.Task, error) {
	templates := s.defs.TemplatesFor(milestone)
	if len(templates) == 0 {
		return nil, nil
	}

	existing, err := s.store.ListTasks(ctx, applicationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list tasks")
	}

	have := make(map[string]domain.TaskStatus, len(existing))
	for _, task := range existing {
		have[task.Code] = task.Status
	}

	var created []domain.Task
	for _, tmpl := range templates {
		if _, ok := have[tmpl.Code]; ok {
			continue
		}

		task := s.fromTemplate(applicationID, tmpl, have)
		if err := s.store.InsertTask(ctx, task); err != nil {
			return created, dErrors.Wrap(err, dErrors.CodeInternal, "insert task")
		}
		have[task.Code] = task.Status
		created = append(created, task)
		s.metrics.IncrementTaskTransition(string(task.Status))
	}
	return created, nil
}

// fromTemplate builds a task instance. A dependency that is missing or not
// yet completed blocks the new task from the start.
func (s *TaskService) fromTemplate(applicationID string, tmpl domain.TaskTemplate, have map[string]domain.TaskStatus) domain.Task {
	now := s.now()
	task := domain.Task{
		ID:            uuid.NewString(),
		ApplicationID: applicationID,
		Code:          tmpl.Code,
		Title:         tmpl.Title,
		Status:        domain.TaskPending,
		Priority:      tmpl.Priority,
		AssignedRole:  tmpl.AssignedRole,
		DependsOn:     stringsutil.DedupeAndTrim(tmpl.DependsOn),
		CreatedAt:     now,
	}
	if tmpl.SLAHours > 0 {
		due := now.Add(time.Duration(tmpl.SLAHours) * time.Hour)
		task.DueAt = &due
	}
	for _, dep := range task.DependsOn {
		if have[dep] != domain.TaskCompleted {
			task.BlockedBy = append(task.BlockedBy, dep)
		}
	}
	if len(task.BlockedBy) > 0 {
		task.Status = domain.TaskBlocked
	}
	return task
}

// StartTask moves a pending task to IN_PROGRESS and records the assignee.
func (s *TaskService) StartTask(ctx context.Context, taskID, assigneeID string) (*domain.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "load task")
	}

	var out *domain.Task
	err = s.locks.Do(task.ApplicationID, func() error {
		task, err := s.store.GetTask(ctx, taskID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "load task")
		}
		if task.Status != domain.TaskPending {
			return dErrors.Newf(dErrors.CodePreconditionFailed,
				"task %s is %s, only PENDING tasks can start", taskID, task.Status)
		}

		now := s.now()
		task.Status = domain.TaskInProgress
		task.StartedAt = &now
		task.AssigneeID = assigneeID
		if err := s.store.UpdateTask(ctx, *task); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update task")
		}
		s.metrics.IncrementTaskTransition(string(task.Status))
		out = task
		return nil
	})
	return out, err
}

// CompleteTask stamps completion and unblocks direct dependents whose
// blocked set empties. Only direct dependents are recomputed; transitive
// unblocking happens when they themselves complete.
func (s *TaskService) CompleteTask(ctx context.Context, taskID, actor string) (*domain.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "load task")
	}

	var out *domain.Task
	err = s.locks.Do(task.ApplicationID, func() error {
		task, err := s.store.GetTask(ctx, taskID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "load task")
		}
		switch task.Status {
		case domain.TaskPending, domain.TaskInProgress:
		case domain.TaskBlocked:
			return dErrors.Newf(dErrors.CodePreconditionFailed,
				"task %s is blocked by %v", taskID, task.BlockedBy)
		default:
			return dErrors.Newf(dErrors.CodePreconditionFailed,
				"task %s is already %s", taskID, task.Status)
		}

		now := s.now()
		task.Status = domain.TaskCompleted
		task.CompletedAt = &now
		if err := s.store.UpdateTask(ctx, *task); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update task")
		}
		s.metrics.IncrementTaskTransition(string(task.Status))

		if err := s.unblockDependents(ctx, *task); err != nil {
			return err
		}

		s.emit(ctx, audit.Event{
			Action:        audit.ActionTaskCompleted,
			ApplicationID: task.ApplicationID,
			Actor:         actor,
			Detail:        map[string]any{"task_id": task.ID, "code": task.Code},
		})
		out = task
		return nil
	})
	return out, err
}

// unblockDependents removes the completed code from every direct dependent's
// blocked set; dependents whose set empties go back to PENDING.
func (s *TaskService) unblockDependents(ctx context.Context, completed domain.Task) error {
	tasks, err := s.store.ListTasks(ctx, completed.ApplicationID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "list tasks")
	}

	for _, other := range tasks {
		if !slices.Contains(other.BlockedBy, completed.Code) {
			continue
		}
		other.BlockedBy = slices.DeleteFunc(slices.Clone(other.BlockedBy), func(code string) bool {
			return code == completed.Code
		})
		if len(other.BlockedBy) == 0 && other.Status == domain.TaskBlocked {
			other.Status = domain.TaskPending
			s.metrics.IncrementTaskTransition(string(other.Status))
		}
		if err := s.store.UpdateTask(ctx, other); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "unblock dependent task")
		}
	}
	return nil
}

// CancelTask takes an active task out of the workload. Dependents stay
// blocked; cancellation does not satisfy a dependency.
func (s *TaskService) CancelTask(ctx context.Context, taskID, actor, reason string) (*domain.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "load task")
	}

	var out *domain.Task
	err = s.locks.Do(task.ApplicationID, func() error {
		task, err := s.store.GetTask(ctx, taskID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "load task")
		}
		if !task.Active() {
			return dErrors.Newf(dErrors.CodePreconditionFailed, "task %s is already %s", taskID, task.Status)
		}

		task.Status = domain.TaskCancelled
		if err := s.store.UpdateTask(ctx, *task); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update task")
		}
		s.metrics.IncrementTaskTransition(string(task.Status))
		s.logger.InfoContext(ctx, "task cancelled",
			"task_id", task.ID, "code", task.Code, "actor", actor, "reason", reason)
		out = task
		return nil
	})
	return out, err
}

// FindTasksByAssignee returns an assignee's tasks across applications.
func (s *TaskService) FindTasksByAssignee(ctx context.Context, assigneeID string) ([]domain.Task, error) {
	tasks, err := s.store.ListTasksByAssignee(ctx, assigneeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list tasks by assignee")
	}
	return tasks, nil
}

// ListTasks returns every task on the application, oldest first.
func (s *TaskService) ListTasks(ctx context.Context, applicationID string) ([]domain.Task, error) {
	tasks, err := s.store.ListTasks(ctx, applicationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list tasks")
	}
	return tasks, nil
}

// CheckSLAs flags every active past-due task not yet flagged. Repeated runs
// are idempotent: a task is flagged and notified exactly once.
func (s *TaskService) CheckSLAs(ctx context.Context) (int, error) {
	due, err := s.store.ListActiveTasksDueBefore(ctx, s.now())
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "list past-due tasks")
	}

	flagged := 0
	for _, task := range due {
		if task.SLABreached {
			continue
		}
		task.SLABreached = true
		if err := s.store.UpdateTask(ctx, task); err != nil {
			return flagged, dErrors.Wrap(err, dErrors.CodeInternal, "flag SLA breach")
		}
		flagged++
		s.metrics.IncrementSLABreach()

		s.emit(ctx, audit.Event{
			Action:        audit.ActionSLABreached,
			ApplicationID: task.ApplicationID,
			Detail:        map[string]any{"task_id": task.ID, "code": task.Code, "due_at": task.DueAt},
		})
		if s.notifier != nil {
			if err := s.notifier.NotifyTaskSLABreach(ctx, task); err != nil {
				s.logger.WarnContext(ctx, "SLA breach notification failed",
					"task_id", task.ID, "error", err)
			}
		}
	}
	return flagged, nil
}

func (s *TaskService) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
