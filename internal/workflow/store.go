package workflow

import (
	"context"
	"time"

	"lendgate/internal/domain"
)

// Store persists milestone history and tasks. Implementations return
// sentinel.ErrNotFound for unknown IDs and sentinel.ErrConflict for duplicate
// inserts.
type Store interface {
	AppendHistory(ctx context.Context, row domain.MilestoneHistory) error
	UpdateHistory(ctx context.Context, row domain.MilestoneHistory) error
	ListHistory(ctx context.Context, applicationID string) ([]domain.MilestoneHistory, error)
	// OpenHistory returns the single row with a nil ExitedAt, or
	// sentinel.ErrNotFound when the application has no history yet.
	OpenHistory(ctx context.Context, applicationID string) (*domain.MilestoneHistory, error)

	InsertTask(ctx context.Context, task domain.Task) error
	UpdateTask(ctx context.Context, task domain.Task) error
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	ListTasks(ctx context.Context, applicationID string) ([]domain.Task, error)
	ListTasksByAssignee(ctx context.Context, assigneeID string) ([]domain.Task, error)
	// ListActiveTasksDueBefore returns active tasks across all applications
	// whose DueAt precedes cutoff. The SLA sweep feeds on this.
	ListActiveTasksDueBefore(ctx context.Context, cutoff time.Time) ([]domain.Task, error)
}
