package appdata

import (
	"context"
	"maps"
	"sync"
)

// InMemoryStore keeps snapshots in process memory for tests and single-node
// deployments.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]map[string]any
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snapshots: make(map[string]map[string]any)}
}

func (s *InMemoryStore) SetFields(_ context.Context, applicationID string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, ok := s.snapshots[applicationID]
	if !ok {
		snapshot = make(map[string]any, len(fields))
		s.snapshots[applicationID] = snapshot
	}
	maps.Copy(snapshot, fields)
	return nil
}

func (s *InMemoryStore) Snapshot(_ context.Context, applicationID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.snapshots[applicationID]))
	maps.Copy(out, s.snapshots[applicationID])
	return out, nil
}
