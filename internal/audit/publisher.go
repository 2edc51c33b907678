package audit

import (
	"context"
	"time"
)

// Store is a sink for audit events. Implementations must be append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByApplication(ctx context.Context, applicationID string) ([]Event, error)
}

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = event.Action.Category()
	}
	return p.store.Append(ctx, event)
}

func (p *Publisher) List(ctx context.Context, applicationID string) ([]Event, error) {
	return p.store.ListByApplication(ctx, applicationID)
}
