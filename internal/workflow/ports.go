package workflow

import (
	"context"

	"lendgate/internal/domain"
)

// DataStateChecker answers DATA_FIELD prerequisites against the loan file
// (the LOS data layer is an external collaborator).
type DataStateChecker interface {
	FieldSet(ctx context.Context, applicationID, field string) (bool, error)
}

// DecisionChecker answers DECISION prerequisites: does a decision of the
// given type exist for the application.
type DecisionChecker interface {
	HasDecision(ctx context.Context, applicationID, decisionType string) (bool, error)
}

// ConditionCounter answers CONDITION_CATEGORY prerequisites. The conditions
// service satisfies it.
type ConditionCounter interface {
	CountOpenByCategory(ctx context.Context, applicationID string, category domain.ConditionCategory) (int, error)
}

// ExternalSyncAdapter pushes milestone changes to downstream systems (LOS,
// CRM). Failures are logged, never rolled back.
type ExternalSyncAdapter interface {
	SyncMilestone(ctx context.Context, applicationID string, milestone domain.MilestoneCode) error
}

// NotificationService alerts interested parties about workflow events.
type NotificationService interface {
	NotifyMilestone(ctx context.Context, applicationID string, milestone domain.MilestoneCode) error
	NotifyTaskSLABreach(ctx context.Context, task domain.Task) error
}
