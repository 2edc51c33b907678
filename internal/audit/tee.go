package audit

import "context"

// TeeStore appends to every sink and reads from the first. Main wires the
// durable store first and best-effort sinks (Kafka) after it.
type TeeStore struct {
	stores []Store
}

func NewTeeStore(stores ...Store) *TeeStore {
	return &TeeStore{stores: stores}
}

// Append writes to every sink. The first failure wins; later sinks still
// get the event so a flaky broker cannot starve the durable store.
func (t *TeeStore) Append(ctx context.Context, event Event) error {
	var firstErr error
	for _, store := range t.stores {
		if err := store.Append(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *TeeStore) ListByApplication(ctx context.Context, applicationID string) ([]Event, error) {
	return t.stores[0].ListByApplication(ctx, applicationID)
}
