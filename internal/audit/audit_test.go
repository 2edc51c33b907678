package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lendgate/pkg/platform/sentinel"
)

func TestPublisherFillsDefaults(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store)

	err := pub.Emit(context.Background(), Event{
		ApplicationID: "app-1",
		Action:        ActionDecisionCreated,
		Actor:         "uw-1",
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), "app-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, CategoryCompliance, events[0].Category)
	require.WithinDuration(t, time.Now(), events[0].Timestamp, time.Second)
}

func TestActionCategoryDefaultsToOperations(t *testing.T) {
	require.Equal(t, CategoryOperations, Action("something_new").Category())
	require.Equal(t, CategoryCompliance, ActionRulesEvaluated.Category())
	require.Equal(t, CategoryOperations, ActionSLABreached.Category())
}

type failingStore struct{ err error }

func (f *failingStore) Append(context.Context, Event) error { return f.err }
func (f *failingStore) ListByApplication(context.Context, string) ([]Event, error) {
	return nil, f.err
}

func TestTeeStoreAppendsToAllSinks(t *testing.T) {
	durable := NewInMemoryStore()
	broken := &failingStore{err: errors.New("broker down")}
	tee := NewTeeStore(durable, broken)

	err := tee.Append(context.Background(), Event{ApplicationID: "app-2", Action: ActionTaskCompleted})
	require.EqualError(t, err, "broker down")

	// The durable sink still got the event despite the failing one.
	events, err := tee.ListByApplication(context.Background(), "app-2")
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestWorkerDrainsInbox(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewInMemoryStore()
	inbox := make(chan Event, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = NewWorker(store, inbox, nil).Run(ctx)
	}()

	channelStore := NewChannelStore(inbox, nil)
	require.NoError(t, channelStore.Append(ctx, Event{ApplicationID: "app-3", Action: ActionConditionCleared}))

	require.Eventually(t, func() bool {
		events, err := store.ListByApplication(context.Background(), "app-3")
		return err == nil && len(events) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestChannelStoreDropsWhenFull(t *testing.T) {
	inbox := make(chan Event, 1)
	store := NewChannelStore(inbox, nil)

	require.NoError(t, store.Append(context.Background(), Event{ApplicationID: "a"}))
	// Second append finds the inbox full and must not block.
	require.NoError(t, store.Append(context.Background(), Event{ApplicationID: "b"}))
	require.Len(t, inbox, 1)

	_, err := store.ListByApplication(context.Background(), "a")
	require.ErrorIs(t, err, sentinel.ErrUnavailable)
}
