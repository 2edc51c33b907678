package conditions

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"lendgate/internal/domain"
	"lendgate/pkg/platform/sentinel"
)

// InMemoryStore keeps conditions in memory, keyed by ID with a per-application
// index.
type InMemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]domain.Condition
	byApp map[string][]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:  make(map[string]domain.Condition),
		byApp: make(map[string][]string),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, condition domain.Condition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[condition.ID]; exists {
		return fmt.Errorf("condition %s: %w", condition.ID, sentinel.ErrConflict)
	}
	s.byID[condition.ID] = condition
	s.byApp[condition.ApplicationID] = append(s.byApp[condition.ApplicationID], condition.ID)
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, condition domain.Condition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[condition.ID]; !exists {
		return fmt.Errorf("condition %s: %w", condition.ID, sentinel.ErrNotFound)
	}
	s.byID[condition.ID] = condition
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (*domain.Condition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if condition, ok := s.byID[id]; ok {
		return &condition, nil
	}
	return nil, fmt.Errorf("condition %s: %w", id, sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListByApplication(_ context.Context, applicationID string) ([]domain.Condition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Condition, 0, len(s.byApp[applicationID]))
	for _, id := range s.byApp[applicationID] {
		out = append(out, s.byID[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
