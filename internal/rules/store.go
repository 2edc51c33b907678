package rules

import (
	"context"

	"lendgate/internal/domain"
)

// Store persists rule versions and evaluation records. Swap with concrete
// storage without touching the engine.
type Store interface {
	// GetActiveRuleVersion returns the single active version for a rule set.
	// It returns sentinel.ErrNotFound (wrapped) when none is active and
	// ErrAmbiguousRuleVersion when more than one is; both are configuration
	// errors the engine surfaces rather than resolves.
	GetActiveRuleVersion(ctx context.Context, ruleSet string) (*domain.RuleVersion, error)

	// SaveRuleVersion stores a version. Activating a version does not
	// deactivate siblings; publishing tooling owns that invariant.
	SaveRuleVersion(ctx context.Context, version domain.RuleVersion) error

	// ListRuleVersions returns all versions for a rule set, newest first.
	ListRuleVersions(ctx context.Context, ruleSet string) ([]domain.RuleVersion, error)

	// SaveEvaluation appends an evaluation record. Records are immutable.
	SaveEvaluation(ctx context.Context, evaluation domain.RuleEvaluation) error

	// GetEvaluation fetches one evaluation by ID.
	GetEvaluation(ctx context.Context, id string) (*domain.RuleEvaluation, error)
}
