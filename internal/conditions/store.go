package conditions

import (
	"context"

	"lendgate/internal/domain"
)

// Store persists conditions. Implementations return sentinel.ErrNotFound for
// unknown IDs and sentinel.ErrConflict for duplicate inserts.
type Store interface {
	Insert(ctx context.Context, condition domain.Condition) error
	Update(ctx context.Context, condition domain.Condition) error
	Get(ctx context.Context, id string) (*domain.Condition, error)
	ListByApplication(ctx context.Context, applicationID string) ([]domain.Condition, error)
}
