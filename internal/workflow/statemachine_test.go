package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"lendgate/internal/audit"
	"lendgate/internal/domain"
	"lendgate/internal/platform/applock"
	dErrors "lendgate/pkg/domain-errors"
)

type stubConditions struct {
	counts map[domain.ConditionCategory]int
}

func (s *stubConditions) CountOpenByCategory(_ context.Context, _ string, category domain.ConditionCategory) (int, error) {
	return s.counts[category], nil
}

type stubData struct {
	fields map[string]bool
}

func (s *stubData) FieldSet(_ context.Context, _ string, field string) (bool, error) {
	return s.fields[field], nil
}

type stubDecisions struct {
	kinds map[string]bool
}

func (s *stubDecisions) HasDecision(_ context.Context, _ string, decisionType string) (bool, error) {
	return s.kinds[decisionType], nil
}

type StateMachineSuite struct {
	suite.Suite

	ctx        context.Context
	store      *InMemoryStore
	conditions *stubConditions
	data       *stubData
	decisions  *stubDecisions
	auditStore *audit.InMemoryStore
	nowTime    time.Time
	sm         *StateMachine
}

func TestStateMachineSuite(t *testing.T) {
	suite.Run(t, new(StateMachineSuite))
}

func (s *StateMachineSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
	s.conditions = &stubConditions{counts: map[domain.ConditionCategory]int{}}
	s.data = &stubData{fields: map[string]bool{}}
	s.decisions = &stubDecisions{kinds: map[string]bool{}}
	s.auditStore = audit.NewInMemoryStore()
	s.nowTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	defs, err := LoadDefinitions()
	s.Require().NoError(err)

	locks := applock.New()
	clock := func() time.Time { return s.nowTime }

	tasks, err := NewTaskService(defs, s.store, locks, WithTaskClock(clock))
	s.Require().NoError(err)

	prereqs := NewPrerequisiteChecker(defs, s.store, s.conditions, s.data, s.decisions)

	sm, err := NewStateMachine(defs, s.store, prereqs, tasks, locks,
		WithAuditPublisher(audit.NewPublisher(s.auditStore)),
		WithClock(clock),
	)
	s.Require().NoError(err)
	s.sm = sm
}

func (s *StateMachineSuite) advance(appID string, target domain.MilestoneCode, by domain.ActorKind) *domain.MilestoneHistory {
	// User advances in these tests carry the override flag; enforcement
	// paths call AdvanceMilestone directly.
	row, err := s.sm.AdvanceMilestone(s.ctx, appID, target, by, "test", by == domain.ActorUser)
	s.Require().NoError(err)
	return row
}

func (s *StateMachineSuite) TestInitialStateFallsBackToFirstMilestone() {
	state, err := s.sm.GetWorkflowState(s.ctx, "app-0")
	s.Require().NoError(err)

	s.Equal(domain.MilestoneStarted, state.CurrentMilestone)
	s.Equal(domain.SLAOnTrack, state.SLAStatus)
	s.Require().NotNil(state.NextMilestone)
	s.Equal(domain.MilestoneApplication, *state.NextMilestone)
}

func (s *StateMachineSuite) TestAdvanceOpensRowAndInstantiatesTasks() {
	row := s.advance("app-1", domain.MilestoneApplication, domain.ActorSystem)

	s.Equal(domain.MilestoneApplication, row.Milestone)
	s.Nil(row.ExitedAt)

	tasks, err := s.store.ListTasks(s.ctx, "app-1")
	s.Require().NoError(err)
	s.Len(tasks, 2, "APPLICATION trigger templates instantiated")

	state, err := s.sm.GetWorkflowState(s.ctx, "app-1")
	s.Require().NoError(err)
	s.Equal(domain.MilestoneApplication, state.CurrentMilestone)
	s.Len(state.OpenTasks, 2)
}

func (s *StateMachineSuite) TestMonotonicOrdering() {
	s.advance("app-2", domain.MilestoneApplication, domain.ActorSystem)
	s.advance("app-2", domain.MilestonePreApproved, domain.ActorUser)

	_, err := s.sm.AdvanceMilestone(s.ctx, "app-2", domain.MilestoneApplication, domain.ActorSystem, "test", false)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))

	events, err := s.auditStore.ListByApplication(s.ctx, "app-2")
	s.Require().NoError(err)
	s.Equal(audit.ActionMilestoneAdvanceRejected, events[len(events)-1].Action)
}

func (s *StateMachineSuite) TestSystemAdvanceRejectsWithFullUnmetList() {
	s.advance("app-3", domain.MilestoneApplication, domain.ActorSystem)

	_, err := s.sm.AdvanceMilestone(s.ctx, "app-3", domain.MilestoneSubmitted, domain.ActorSystem, "test", false)
	s.Require().Error(err)

	var unmetErr *UnmetPrerequisitesError
	s.Require().True(errors.As(err, &unmetErr))
	s.Equal(domain.MilestoneSubmitted, unmetErr.Milestone)
	s.Len(unmetErr.Unmet, 2, "PROCESSING milestone and credit report field are both unmet")
}

func (s *StateMachineSuite) TestUserAdvanceWithoutOverrideRejected() {
	s.advance("app-3b", domain.MilestoneApplication, domain.ActorSystem)

	_, err := s.sm.AdvanceMilestone(s.ctx, "app-3b", domain.MilestoneSubmitted, domain.ActorUser, "test", false)
	s.Require().Error(err)

	var unmetErr *UnmetPrerequisitesError
	s.Require().True(errors.As(err, &unmetErr))
}

func (s *StateMachineSuite) TestUserAdvanceOverridesPrerequisites() {
	s.advance("app-4", domain.MilestoneApplication, domain.ActorSystem)

	row := s.advance("app-4", domain.MilestoneSubmitted, domain.ActorUser)
	s.Equal(domain.ActorUser, row.TriggeredBy)

	events, err := s.auditStore.ListByApplication(s.ctx, "app-4")
	s.Require().NoError(err)
	last := events[len(events)-1]
	s.Equal(audit.ActionMilestoneAdvanced, last.Action)
	s.Equal(2, last.Detail["prerequisites_overridden"], "the override is recorded")
}

func (s *StateMachineSuite) TestSingleOpenHistoryRow() {
	s.advance("app-5", domain.MilestoneApplication, domain.ActorSystem)
	s.nowTime = s.nowTime.Add(5 * time.Hour)
	s.advance("app-5", domain.MilestonePreApproved, domain.ActorUser)
	s.nowTime = s.nowTime.Add(3 * time.Hour)
	s.advance("app-5", domain.MilestoneProcessing, domain.ActorSystem)

	history, err := s.sm.History(s.ctx, "app-5")
	s.Require().NoError(err)
	s.Require().Len(history, 3)

	open := 0
	for _, row := range history {
		if row.ExitedAt == nil {
			open++
		} else {
			s.Greater(row.DurationHours, 0.0)
		}
	}
	s.Equal(1, open)
	s.InDelta(5.0, history[0].DurationHours, 0.01)
}

func (s *StateMachineSuite) TestTerminalReachableFromAnywhere() {
	s.advance("app-6", domain.MilestoneApplication, domain.ActorSystem)

	row := s.advance("app-6", domain.MilestoneWithdrawn, domain.ActorUser)
	s.Equal(domain.MilestoneWithdrawn, row.Milestone)

	s.Run("no advance out of a terminal milestone", func() {
		_, err := s.sm.AdvanceMilestone(s.ctx, "app-6", domain.MilestoneProcessing, domain.ActorUser, "test", true)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	})
}

func (s *StateMachineSuite) TestSLAStatusThresholds() {
	s.advance("app-7", domain.MilestoneApplication, domain.ActorSystem)
	s.completeOpenTasks("app-7")

	// APPLICATION carries a 72 hour SLA; 80% is 57.6 hours.
	s.nowTime = s.nowTime.Add(50 * time.Hour)
	state, err := s.sm.GetWorkflowState(s.ctx, "app-7")
	s.Require().NoError(err)
	s.Equal(domain.SLAOnTrack, state.SLAStatus)

	s.nowTime = s.nowTime.Add(10 * time.Hour)
	state, err = s.sm.GetWorkflowState(s.ctx, "app-7")
	s.Require().NoError(err)
	s.Equal(domain.SLAAtRisk, state.SLAStatus)

	s.nowTime = s.nowTime.Add(15 * time.Hour)
	state, err = s.sm.GetWorkflowState(s.ctx, "app-7")
	s.Require().NoError(err)
	s.Equal(domain.SLABreached, state.SLAStatus)
}

func (s *StateMachineSuite) TestOverdueTaskBreachesSLA() {
	s.advance("app-7b", domain.MilestoneApplication, domain.ActorSystem)

	// 30 hours in, APPLICATION (72h SLA) is well inside its window, but the
	// 24 hour ORDER_CREDIT task is overdue.
	s.nowTime = s.nowTime.Add(30 * time.Hour)
	state, err := s.sm.GetWorkflowState(s.ctx, "app-7b")
	s.Require().NoError(err)
	s.Equal(domain.SLABreached, state.SLAStatus)

	s.Run("completing the overdue tasks restores the milestone view", func() {
		s.completeOpenTasks("app-7b")
		state, err := s.sm.GetWorkflowState(s.ctx, "app-7b")
		s.Require().NoError(err)
		s.Equal(domain.SLAOnTrack, state.SLAStatus)
	})
}

func (s *StateMachineSuite) completeOpenTasks(appID string) {
	tasks, err := s.store.ListTasks(s.ctx, appID)
	s.Require().NoError(err)
	for _, task := range tasks {
		if task.Active() {
			task.Status = domain.TaskCompleted
			s.Require().NoError(s.store.UpdateTask(s.ctx, task))
		}
	}
}

func (s *StateMachineSuite) TestBlockersReported() {
	s.advance("app-8", domain.MilestoneApplication, domain.ActorSystem)
	s.advance("app-8", domain.MilestonePreApproved, domain.ActorUser)
	s.advance("app-8", domain.MilestoneProcessing, domain.ActorSystem)

	state, err := s.sm.GetWorkflowState(s.ctx, "app-8")
	s.Require().NoError(err)
	s.Require().NotNil(state.NextMilestone)
	s.Equal(domain.MilestoneSubmitted, *state.NextMilestone)
	s.Contains(state.Blockers, "data field credit_report_received not set")
}

func (s *StateMachineSuite) TestEvaluateAutoAdvance() {
	s.advance("app-9", domain.MilestoneApplication, domain.ActorSystem)
	s.advance("app-9", domain.MilestoneSubmitted, domain.ActorUser)
	s.decisions.kinds["UNDERWRITING"] = true
	s.advance("app-9", domain.MilestoneConditionallyApproved, domain.ActorSystem)

	s.Run("open conditions hold auto-advance back", func() {
		s.conditions.counts[domain.CategoryPTD] = 2
		advanced, err := s.sm.EvaluateAutoAdvance(s.ctx, "app-9")
		s.Require().NoError(err)
		s.Empty(advanced)
	})

	s.Run("clearing conditions lets the system advance", func() {
		s.conditions.counts[domain.CategoryPTD] = 0
		advanced, err := s.sm.EvaluateAutoAdvance(s.ctx, "app-9")
		s.Require().NoError(err)
		s.Equal([]domain.MilestoneCode{domain.MilestoneApproved}, advanced)

		state, err := s.sm.GetWorkflowState(s.ctx, "app-9")
		s.Require().NoError(err)
		s.Equal(domain.MilestoneApproved, state.CurrentMilestone)
	})

	s.Run("walk stops once the entered milestone is not flagged", func() {
		// APPROVED does not auto-advance, even though nothing blocks a user
		// from moving on to DOCS_OUT.
		advanced, err := s.sm.EvaluateAutoAdvance(s.ctx, "app-9")
		s.Require().NoError(err)
		s.Empty(advanced)
	})
}

func (s *StateMachineSuite) TestNoAutoAdvanceFromUnflaggedMilestone() {
	s.advance("app-10", domain.MilestoneApplication, domain.ActorSystem)

	// PRE_APPROVED's prerequisites are satisfied, but APPLICATION itself is
	// not flagged for auto-advance, so the application stays put.
	s.decisions.kinds["PRE_APPROVAL"] = true
	advanced, err := s.sm.EvaluateAutoAdvance(s.ctx, "app-10")
	s.Require().NoError(err)
	s.Empty(advanced)

	state, err := s.sm.GetWorkflowState(s.ctx, "app-10")
	s.Require().NoError(err)
	s.Equal(domain.MilestoneApplication, state.CurrentMilestone)
}

func (s *StateMachineSuite) TestAdvanceIntoImplicitStartRejected() {
	// A fresh application already reads as STARTED; moving "into" it is a
	// lateral move.
	_, err := s.sm.AdvanceMilestone(s.ctx, "app-11", domain.MilestoneStarted, domain.ActorUser, "test", false)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))

	state, err := s.sm.GetWorkflowState(s.ctx, "app-11")
	s.Require().NoError(err)
	s.Equal(domain.MilestoneStarted, state.CurrentMilestone)
}
