package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"lendgate/internal/domain"
	"lendgate/pkg/platform/sentinel"
)

// InMemoryStore keeps rule versions and evaluations in memory. It
// intentionally favors clarity over performance.
type InMemoryStore struct {
	mu          sync.RWMutex
	versions    map[string][]domain.RuleVersion
	evaluations map[string]domain.RuleEvaluation
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		versions:    make(map[string][]domain.RuleVersion),
		evaluations: make(map[string]domain.RuleEvaluation),
	}
}

func (s *InMemoryStore) GetActiveRuleVersion(_ context.Context, ruleSet string) (*domain.RuleVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active *domain.RuleVersion
	for i := range s.versions[ruleSet] {
		v := s.versions[ruleSet][i]
		if !v.Active {
			continue
		}
		if active != nil {
			return nil, fmt.Errorf("rule set %q: %w", ruleSet, ErrAmbiguousRuleVersion)
		}
		active = &v
	}
	if active == nil {
		return nil, fmt.Errorf("rule set %q: %w", ruleSet, sentinel.ErrNotFound)
	}
	copied := *active
	return &copied, nil
}

func (s *InMemoryStore) SaveRuleVersion(_ context.Context, version domain.RuleVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.versions[version.RuleSet]
	for i := range existing {
		if existing[i].ID == version.ID {
			existing[i] = version
			return nil
		}
	}
	s.versions[version.RuleSet] = append(existing, version)
	return nil
}

func (s *InMemoryStore) ListRuleVersions(_ context.Context, ruleSet string) ([]domain.RuleVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]domain.RuleVersion{}, s.versions[ruleSet]...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) SaveEvaluation(_ context.Context, evaluation domain.RuleEvaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.evaluations[evaluation.ID]; exists {
		return fmt.Errorf("evaluation %s: %w", evaluation.ID, sentinel.ErrConflict)
	}
	s.evaluations[evaluation.ID] = evaluation
	return nil
}

func (s *InMemoryStore) GetEvaluation(_ context.Context, id string) (*domain.RuleEvaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if eval, ok := s.evaluations[id]; ok {
		return &eval, nil
	}
	return nil, fmt.Errorf("evaluation %s: %w", id, sentinel.ErrNotFound)
}
