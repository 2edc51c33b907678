package rules

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lendgate/internal/audit"
	"lendgate/internal/domain"
	"lendgate/internal/rules/cache"
	dErrors "lendgate/pkg/domain-errors"
	"lendgate/pkg/platform/sentinel"
)

// Lifecycle manages rule version publication. Activating a version
// deactivates the previous active one so the single-active invariant holds.
type Lifecycle struct {
	store  Store
	cache  cache.VersionCache
	audit  AuditPublisher
	logger *slog.Logger
	now    func() time.Time
}

func NewLifecycle(store Store, versionCache cache.VersionCache, publisher AuditPublisher, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{
		store:  store,
		cache:  versionCache,
		audit:  publisher,
		logger: logger,
		now:    time.Now,
	}
}

// PublishVersion stores a new version of ruleSet and makes it the active one.
// The previously active version, if any, is closed out with an effectiveTo
// timestamp.
func (l *Lifecycle) PublishVersion(ctx context.Context, ruleSet, versionLabel string, rules []domain.Rule) (*domain.RuleVersion, error) {
	if len(rules) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "a rule version needs at least one rule")
	}

	now := l.now()

	previous, err := l.store.GetActiveRuleVersion(ctx, ruleSet)
	switch {
	case err == nil:
		closed := *previous
		closed.Active = false
		closed.EffectiveTo = &now
		if err := l.store.SaveRuleVersion(ctx, closed); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "deactivate previous rule version")
		}
	case errors.Is(err, sentinel.ErrNotFound):
		// First version for this rule set.
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load previous rule version")
	}

	version := domain.RuleVersion{
		ID:            uuid.NewString(),
		RuleSet:       ruleSet,
		Version:       versionLabel,
		Rules:         rules,
		EffectiveFrom: now,
		Active:        true,
		CreatedAt:     now,
	}
	if err := l.store.SaveRuleVersion(ctx, version); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save rule version")
	}

	if l.cache != nil {
		l.cache.Invalidate(ctx, ruleSet)
	}

	if l.audit != nil {
		err := l.audit.Emit(ctx, audit.Event{
			Action:  audit.ActionRuleVersionActivated,
			Outcome: "activated",
			Detail: map[string]any{
				"rule_set": ruleSet,
				"version":  versionLabel,
				"rules":    len(rules),
			},
		})
		if err != nil {
			l.logger.WarnContext(ctx, "audit emit failed", "rule_set", ruleSet, "error", err)
		}
	}

	l.logger.InfoContext(ctx, "rule version published",
		"rule_set", ruleSet,
		"version", versionLabel,
		"rules", len(rules),
	)
	return &version, nil
}

// ListVersions returns all versions of a rule set, newest first.
func (l *Lifecycle) ListVersions(ctx context.Context, ruleSet string) ([]domain.RuleVersion, error) {
	versions, err := l.store.ListRuleVersions(ctx, ruleSet)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list rule versions")
	}
	return versions, nil
}
