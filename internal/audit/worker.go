package audit

import (
	"context"
	"fmt"
	"log/slog"

	"lendgate/pkg/platform/sentinel"
)

// Worker drains audit events from a channel and persists them, decoupling
// emitters from sink latency. External-sink failures are logged and dropped
// rather than propagated; the local state change they describe has already
// committed.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil && w.logger != nil {
				w.logger.WarnContext(ctx, "audit append failed",
					"action", event.Action,
					"application_id", event.ApplicationID,
					"error", err,
				)
			}
		}
	}
}

// ChannelStore feeds events into a Worker inbox without blocking the caller.
// When the inbox is full the event is dropped with a warning; the durable
// store in front of this sink already has it.
type ChannelStore struct {
	inbox  chan<- Event
	logger *slog.Logger
}

func NewChannelStore(inbox chan<- Event, logger *slog.Logger) *ChannelStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelStore{inbox: inbox, logger: logger}
}

func (s *ChannelStore) Append(ctx context.Context, event Event) error {
	select {
	case s.inbox <- event:
	default:
		s.logger.WarnContext(ctx, "audit inbox full, dropping event",
			"action", event.Action,
			"application_id", event.ApplicationID,
		)
	}
	return nil
}

func (s *ChannelStore) ListByApplication(context.Context, string) ([]Event, error) {
	return nil, fmt.Errorf("channel audit store is write-only: %w", sentinel.ErrUnavailable)
}
