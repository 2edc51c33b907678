package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"lendgate/internal/audit"
	"lendgate/internal/domain"
	"lendgate/internal/platform/applock"
	dErrors "lendgate/pkg/domain-errors"
)

type stubNotifier struct {
	mu         sync.Mutex
	breaches   []string
	milestones []domain.MilestoneCode
}

func (n *stubNotifier) NotifyMilestone(_ context.Context, _ string, milestone domain.MilestoneCode) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.milestones = append(n.milestones, milestone)
	return nil
}

func (n *stubNotifier) NotifyTaskSLABreach(_ context.Context, task domain.Task) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.breaches = append(n.breaches, task.Code)
	return nil
}

func (n *stubNotifier) breachCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.breaches)
}

type TaskServiceSuite struct {
	suite.Suite

	ctx      context.Context
	store    *InMemoryStore
	notifier *stubNotifier
	nowTime  time.Time
	service  *TaskService
}

func TestTaskServiceSuite(t *testing.T) {
	suite.Run(t, new(TaskServiceSuite))
}

func (s *TaskServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
	s.notifier = &stubNotifier{}
	s.nowTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	defs, err := LoadDefinitions()
	s.Require().NoError(err)

	service, err := NewTaskService(defs, s.store, applock.New(),
		WithTaskAuditPublisher(audit.NewPublisher(audit.NewInMemoryStore())),
		WithTaskNotifier(s.notifier),
		WithTaskClock(func() time.Time { return s.nowTime }),
	)
	s.Require().NoError(err)
	s.service = service
}

func (s *TaskServiceSuite) taskByCode(appID, code string) domain.Task {
	tasks, err := s.store.ListTasks(s.ctx, appID)
	s.Require().NoError(err)
	for _, task := range tasks {
		if task.Code == code {
			return task
		}
	}
	s.Require().Failf("task not found", "no task %s for %s", code, appID)
	return domain.Task{}
}

func (s *TaskServiceSuite) TestInstantiateComputesDueAndBlocking() {
	created, err := s.service.InstantiateForMilestone(s.ctx, "app-1", domain.MilestoneProcessing)
	s.Require().NoError(err)
	s.Require().Len(created, 3)

	verify := s.taskByCode("app-1", "VERIFY_INCOME")
	s.Equal(domain.TaskBlocked, verify.Status, "dependency COLLECT_DOCS was never instantiated")
	s.Equal([]string{"COLLECT_DOCS"}, verify.BlockedBy)

	appraisal := s.taskByCode("app-1", "ORDER_APPRAISAL")
	s.Equal(domain.TaskPending, appraisal.Status)
	s.Require().NotNil(appraisal.DueAt)
	s.Equal(s.nowTime.Add(24*time.Hour), *appraisal.DueAt)
}

func (s *TaskServiceSuite) TestInstantiateIsIdempotent() {
	_, err := s.service.InstantiateForMilestone(s.ctx, "app-2", domain.MilestoneApplication)
	s.Require().NoError(err)

	again, err := s.service.InstantiateForMilestone(s.ctx, "app-2", domain.MilestoneApplication)
	s.Require().NoError(err)
	s.Empty(again, "re-entering a milestone never duplicates tasks")

	tasks, err := s.store.ListTasks(s.ctx, "app-2")
	s.Require().NoError(err)
	s.Len(tasks, 2)
}

func (s *TaskServiceSuite) TestCompleteUnblocksDirectDependents() {
	_, err := s.service.InstantiateForMilestone(s.ctx, "app-3", domain.MilestoneApplication)
	s.Require().NoError(err)
	_, err = s.service.InstantiateForMilestone(s.ctx, "app-3", domain.MilestoneProcessing)
	s.Require().NoError(err)

	verify := s.taskByCode("app-3", "VERIFY_INCOME")
	s.Require().Equal(domain.TaskBlocked, verify.Status)

	s.Run("completing an unrelated task changes nothing", func() {
		credit := s.taskByCode("app-3", "ORDER_CREDIT")
		_, err := s.service.CompleteTask(s.ctx, credit.ID, "proc-1")
		s.Require().NoError(err)
		s.Equal(domain.TaskBlocked, s.taskByCode("app-3", "VERIFY_INCOME").Status)
	})

	s.Run("completing the dependency unblocks", func() {
		collect := s.taskByCode("app-3", "COLLECT_DOCS")
		done, err := s.service.CompleteTask(s.ctx, collect.ID, "proc-1")
		s.Require().NoError(err)
		s.Require().NotNil(done.CompletedAt)

		verify := s.taskByCode("app-3", "VERIFY_INCOME")
		s.Equal(domain.TaskPending, verify.Status)
		s.Empty(verify.BlockedBy)
	})
}

func (s *TaskServiceSuite) TestCompleteBlockedTaskRejected() {
	_, err := s.service.InstantiateForMilestone(s.ctx, "app-4", domain.MilestoneProcessing)
	s.Require().NoError(err)

	verify := s.taskByCode("app-4", "VERIFY_INCOME")
	_, err = s.service.CompleteTask(s.ctx, verify.ID, "proc-1")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
}

func (s *TaskServiceSuite) TestStartAndCancel() {
	_, err := s.service.InstantiateForMilestone(s.ctx, "app-5", domain.MilestoneApplication)
	s.Require().NoError(err)

	collect := s.taskByCode("app-5", "COLLECT_DOCS")

	started, err := s.service.StartTask(s.ctx, collect.ID, "proc-7")
	s.Require().NoError(err)
	s.Equal(domain.TaskInProgress, started.Status)
	s.Equal("proc-7", started.AssigneeID)
	s.NotNil(started.StartedAt)

	s.Run("starting twice rejected", func() {
		_, err := s.service.StartTask(s.ctx, collect.ID, "proc-7")
		s.Require().Error(err)
	})

	s.Run("assignee lookup", func() {
		mine, err := s.service.FindTasksByAssignee(s.ctx, "proc-7")
		s.Require().NoError(err)
		s.Require().Len(mine, 1)
		s.Equal("COLLECT_DOCS", mine[0].Code)
	})

	cancelled, err := s.service.CancelTask(s.ctx, collect.ID, "proc-7", "duplicate request")
	s.Require().NoError(err)
	s.Equal(domain.TaskCancelled, cancelled.Status)

	s.Run("completed or cancelled tasks cannot be cancelled", func() {
		_, err := s.service.CancelTask(s.ctx, collect.ID, "proc-7", "again")
		s.Require().Error(err)
	})
}

func (s *TaskServiceSuite) TestCheckSLAsIdempotent() {
	_, err := s.service.InstantiateForMilestone(s.ctx, "app-6", domain.MilestoneApplication)
	s.Require().NoError(err)

	s.Run("nothing due yet", func() {
		flagged, err := s.service.CheckSLAs(s.ctx)
		s.Require().NoError(err)
		s.Zero(flagged)
	})

	// Past every template SLA for the milestone.
	s.nowTime = s.nowTime.Add(72 * time.Hour)

	flagged, err := s.service.CheckSLAs(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, flagged)
	s.Equal(2, s.notifier.breachCount())

	s.True(s.taskByCode("app-6", "COLLECT_DOCS").SLABreached)

	s.Run("second sweep flags nothing new", func() {
		flagged, err := s.service.CheckSLAs(s.ctx)
		s.Require().NoError(err)
		s.Zero(flagged)
		s.Equal(2, s.notifier.breachCount(), "breach notification fires exactly once")
	})

	s.Run("completed tasks drop out of the sweep", func() {
		collect := s.taskByCode("app-6", "COLLECT_DOCS")
		_, err := s.service.CompleteTask(s.ctx, collect.ID, "proc-1")
		s.Require().NoError(err)

		flagged, err := s.service.CheckSLAs(s.ctx)
		s.Require().NoError(err)
		s.Zero(flagged)
	})
}
