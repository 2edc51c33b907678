package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"lendgate/internal/domain"
)

// UnmetPrerequisite describes one gate that currently blocks a milestone.
type UnmetPrerequisite struct {
	Kind   domain.PrerequisiteKind `json:"kind"`
	Ref    string                  `json:"ref"`
	Reason string                  `json:"reason"`
}

// UnmetPrerequisitesError carries the full unmet list so callers can surface
// every blocker at once instead of one per attempt.
type UnmetPrerequisitesError struct {
	Milestone domain.MilestoneCode
	Unmet     []UnmetPrerequisite
}

func (e *UnmetPrerequisitesError) Error() string {
	reasons := make([]string, len(e.Unmet))
	for i, u := range e.Unmet {
		reasons[i] = u.Reason
	}
	return fmt.Sprintf("milestone %s has %d unmet prerequisites: %s",
		e.Milestone, len(e.Unmet), strings.Join(reasons, "; "))
}

// PrerequisiteChecker evaluates every prerequisite of a milestone against the
// application's current state. Checks hit independent backends, so they run
// concurrently.
type PrerequisiteChecker struct {
	defs       *Definitions
	store      Store
	conditions ConditionCounter
	data       DataStateChecker
	decisions  DecisionChecker
}

func NewPrerequisiteChecker(defs *Definitions, store Store, conditions ConditionCounter, data DataStateChecker, decisions DecisionChecker) *PrerequisiteChecker {
	return &PrerequisiteChecker{
		defs:       defs,
		store:      store,
		conditions: conditions,
		data:       data,
		decisions:  decisions,
	}
}

// Check returns every unmet prerequisite for entering milestone. An empty
// slice means the milestone is clear to enter. Collaborator failures abort
// the check; an unreachable backend must not read as "prerequisite met".
func (c *PrerequisiteChecker) Check(ctx context.Context, applicationID string, milestone domain.Milestone) ([]UnmetPrerequisite, error) {
	if len(milestone.Prerequisites) == 0 {
		return nil, nil
	}

	var (
		mu    sync.Mutex
		unmet []UnmetPrerequisite
	)
	g, ctx := errgroup.WithContext(ctx)

	for _, prereq := range milestone.Prerequisites {
		prereq := prereq
		g.Go(func() error {
			reason, err := c.checkOne(ctx, applicationID, prereq)
			if err != nil {
				return err
			}
			if reason == "" {
				return nil
			}
			mu.Lock()
			unmet = append(unmet, UnmetPrerequisite{Kind: prereq.Kind, Ref: prereq.Ref, Reason: reason})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("check prerequisites for %s: %w", milestone.Code, err)
	}

	// Deterministic order for callers and audit records.
	ordered := make([]UnmetPrerequisite, 0, len(unmet))
	for _, prereq := range milestone.Prerequisites {
		for _, u := range unmet {
			if u.Kind == prereq.Kind && u.Ref == prereq.Ref {
				ordered = append(ordered, u)
			}
		}
	}
	return ordered, nil
}

// checkOne returns an empty reason when the prerequisite is satisfied.
func (c *PrerequisiteChecker) checkOne(ctx context.Context, applicationID string, prereq domain.MilestonePrerequisite) (string, error) {
	switch prereq.Kind {
	case domain.PrereqMilestone:
		history, err := c.store.ListHistory(ctx, applicationID)
		if err != nil {
			return "", err
		}
		for _, row := range history {
			if row.Milestone == domain.MilestoneCode(prereq.Ref) {
				return "", nil
			}
		}
		return fmt.Sprintf("milestone %s not yet reached", prereq.Ref), nil

	case domain.PrereqConditionCategory:
		count, err := c.conditions.CountOpenByCategory(ctx, applicationID, domain.ConditionCategory(prereq.Ref))
		if err != nil {
			return "", err
		}
		if count > 0 {
			return fmt.Sprintf("%d open %s conditions", count, prereq.Ref), nil
		}
		return "", nil

	case domain.PrereqTask:
		tasks, err := c.store.ListTasks(ctx, applicationID)
		if err != nil {
			return "", err
		}
		for _, task := range tasks {
			if task.Code == prereq.Ref && task.Status == domain.TaskCompleted {
				return "", nil
			}
		}
		return fmt.Sprintf("task %s not completed", prereq.Ref), nil

	case domain.PrereqDataField:
		set, err := c.data.FieldSet(ctx, applicationID, prereq.Ref)
		if err != nil {
			return "", err
		}
		if !set {
			return fmt.Sprintf("data field %s not set", prereq.Ref), nil
		}
		return "", nil

	case domain.PrereqDecision:
		has, err := c.decisions.HasDecision(ctx, applicationID, prereq.Ref)
		if err != nil {
			return "", err
		}
		if !has {
			return fmt.Sprintf("no %s decision on file", prereq.Ref), nil
		}
		return "", nil

	default:
		return "", fmt.Errorf("unknown prerequisite kind %q", prereq.Kind)
	}
}
