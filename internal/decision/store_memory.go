package decision

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"lendgate/internal/domain"
	"lendgate/pkg/platform/sentinel"
)

// InMemoryStore keeps decisions in memory, keyed by ID with a per-application
// index.
type InMemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]domain.Decision
	byApp map[string][]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:  make(map[string]domain.Decision),
		byApp: make(map[string][]string),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, decision domain.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[decision.ID]; exists {
		return fmt.Errorf("decision %s: %w", decision.ID, sentinel.ErrConflict)
	}
	s.byID[decision.ID] = decision
	s.byApp[decision.ApplicationID] = append(s.byApp[decision.ApplicationID], decision.ID)
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, decision domain.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[decision.ID]; !exists {
		return fmt.Errorf("decision %s: %w", decision.ID, sentinel.ErrNotFound)
	}
	s.byID[decision.ID] = decision
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (*domain.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if decision, ok := s.byID[id]; ok {
		return &decision, nil
	}
	return nil, fmt.Errorf("decision %s: %w", id, sentinel.ErrNotFound)
}

func (s *InMemoryStore) GetLatest(_ context.Context, applicationID string) (*domain.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.byApp[applicationID] {
		if decision := s.byID[id]; decision.IsLatest {
			return &decision, nil
		}
	}
	return nil, fmt.Errorf("application %s: %w", applicationID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListByApplication(_ context.Context, applicationID string) ([]domain.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Decision, 0, len(s.byApp[applicationID]))
	for _, id := range s.byApp[applicationID] {
		out = append(out, s.byID[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
