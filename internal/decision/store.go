package decision

import (
	"context"

	"lendgate/internal/domain"
)

// Store persists decisions. Implementations return sentinel.ErrNotFound for
// unknown IDs and for applications with no decisions yet.
type Store interface {
	Insert(ctx context.Context, decision domain.Decision) error
	Update(ctx context.Context, decision domain.Decision) error
	Get(ctx context.Context, id string) (*domain.Decision, error)
	// GetLatest returns the single decision with IsLatest=true.
	GetLatest(ctx context.Context, applicationID string) (*domain.Decision, error)
	ListByApplication(ctx context.Context, applicationID string) ([]domain.Decision, error)
}
