package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"lendgate/internal/domain"
	"lendgate/pkg/platform/sentinel"
)

// InMemoryStore keeps history rows and tasks in memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	history map[string][]domain.MilestoneHistory
	tasks   map[string]domain.Task
	byApp   map[string][]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		history: make(map[string][]domain.MilestoneHistory),
		tasks:   make(map[string]domain.Task),
		byApp:   make(map[string][]string),
	}
}

func (s *InMemoryStore) AppendHistory(_ context.Context, row domain.MilestoneHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.history[row.ApplicationID] {
		if existing.ID == row.ID {
			return fmt.Errorf("history row %s: %w", row.ID, sentinel.ErrConflict)
		}
	}
	s.history[row.ApplicationID] = append(s.history[row.ApplicationID], row)
	return nil
}

func (s *InMemoryStore) UpdateHistory(_ context.Context, row domain.MilestoneHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.history[row.ApplicationID]
	for i := range rows {
		if rows[i].ID == row.ID {
			rows[i] = row
			return nil
		}
	}
	return fmt.Errorf("history row %s: %w", row.ID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListHistory(_ context.Context, applicationID string) ([]domain.MilestoneHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]domain.MilestoneHistory{}, s.history[applicationID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].EnteredAt.Before(out[j].EnteredAt) })
	return out, nil
}

func (s *InMemoryStore) OpenHistory(_ context.Context, applicationID string) (*domain.MilestoneHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, row := range s.history[applicationID] {
		if row.ExitedAt == nil {
			copied := row
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("application %s: %w", applicationID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) InsertTask(_ context.Context, task domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task %s: %w", task.ID, sentinel.ErrConflict)
	}
	s.tasks[task.ID] = task
	s.byApp[task.ApplicationID] = append(s.byApp[task.ApplicationID], task.ID)
	return nil
}

func (s *InMemoryStore) UpdateTask(_ context.Context, task domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; !exists {
		return fmt.Errorf("task %s: %w", task.ID, sentinel.ErrNotFound)
	}
	s.tasks[task.ID] = task
	return nil
}

func (s *InMemoryStore) GetTask(_ context.Context, id string) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if task, ok := s.tasks[id]; ok {
		return &task, nil
	}
	return nil, fmt.Errorf("task %s: %w", id, sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListTasks(_ context.Context, applicationID string) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Task, 0, len(s.byApp[applicationID]))
	for _, id := range s.byApp[applicationID] {
		out = append(out, s.tasks[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) ListTasksByAssignee(_ context.Context, assigneeID string) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Task
	for _, task := range s.tasks {
		if task.AssigneeID == assigneeID {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) ListActiveTasksDueBefore(_ context.Context, cutoff time.Time) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Task
	for _, task := range s.tasks {
		if task.Active() && task.DueAt != nil && task.DueAt.Before(cutoff) {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(*out[j].DueAt) })
	return out, nil
}
