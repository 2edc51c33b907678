//go:build integration

package rules_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"lendgate/internal/domain"
	"lendgate/internal/rules"
	"lendgate/pkg/platform/sentinel"
	"lendgate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *rules.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = rules.NewPostgresStore(s.postgres.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "rule_versions", "rule_evaluations")
	s.Require().NoError(err)
}

func newTestVersion(ruleSet, version string, active bool) domain.RuleVersion {
	return domain.RuleVersion{
		ID:      uuid.NewString(),
		RuleSet: ruleSet,
		Version: version,
		Rules: []domain.Rule{{
			ID:   "DSCR_MIN",
			Name: "Minimum DSCR",
			Condition: domain.RuleCondition{
				Type:     domain.ConditionSimple,
				Field:    "dscr.ratio",
				Operator: domain.OpGte,
				Value:    0.75,
			},
			OnPass:   domain.RuleOutcome{Result: domain.RulePass},
			OnFail:   domain.RuleOutcome{Result: domain.RuleFail},
			Severity: domain.SeverityBlocking,
			Active:   true,
		}},
		EffectiveFrom: time.Now().UTC(),
		Active:        active,
		CreatedAt:     time.Now().UTC(),
	}
}

func (s *PostgresStoreSuite) TestRoundTripActiveVersion() {
	ctx := context.Background()

	version := newTestVersion("dscr-standard", "2024.1", true)
	s.Require().NoError(s.store.SaveRuleVersion(ctx, version))

	got, err := s.store.GetActiveRuleVersion(ctx, "dscr-standard")
	s.Require().NoError(err)
	s.Equal(version.ID, got.ID)
	s.Require().Len(got.Rules, 1)
	s.Equal(domain.OpGte, got.Rules[0].Condition.Operator)
	s.Equal(domain.SeverityBlocking, got.Rules[0].Severity)
}

func (s *PostgresStoreSuite) TestNoActiveVersionIsNotFound() {
	ctx := context.Background()

	version := newTestVersion("dscr-standard", "2024.1", false)
	s.Require().NoError(s.store.SaveRuleVersion(ctx, version))

	_, err := s.store.GetActiveRuleVersion(ctx, "dscr-standard")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestAmbiguousActiveVersions() {
	ctx := context.Background()

	s.Require().NoError(s.store.SaveRuleVersion(ctx, newTestVersion("dscr-standard", "2024.1", true)))
	s.Require().NoError(s.store.SaveRuleVersion(ctx, newTestVersion("dscr-standard", "2024.2", true)))

	_, err := s.store.GetActiveRuleVersion(ctx, "dscr-standard")
	s.ErrorIs(err, rules.ErrAmbiguousRuleVersion)
}

func (s *PostgresStoreSuite) TestUpsertDeactivatesVersion() {
	ctx := context.Background()

	version := newTestVersion("dscr-standard", "2024.1", true)
	s.Require().NoError(s.store.SaveRuleVersion(ctx, version))

	now := time.Now().UTC()
	version.Active = false
	version.EffectiveTo = &now
	s.Require().NoError(s.store.SaveRuleVersion(ctx, version))

	_, err := s.store.GetActiveRuleVersion(ctx, "dscr-standard")
	s.ErrorIs(err, sentinel.ErrNotFound)

	versions, err := s.store.ListRuleVersions(ctx, "dscr-standard")
	s.Require().NoError(err)
	s.Require().Len(versions, 1)
	s.NotNil(versions[0].EffectiveTo)
}

func (s *PostgresStoreSuite) TestListOrdersNewestFirst() {
	ctx := context.Background()

	older := newTestVersion("dscr-standard", "2024.1", false)
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := newTestVersion("dscr-standard", "2024.2", true)

	s.Require().NoError(s.store.SaveRuleVersion(ctx, older))
	s.Require().NoError(s.store.SaveRuleVersion(ctx, newer))

	versions, err := s.store.ListRuleVersions(ctx, "dscr-standard")
	s.Require().NoError(err)
	s.Require().Len(versions, 2)
	s.Equal("2024.2", versions[0].Version)
	s.Equal("2024.1", versions[1].Version)
}

func (s *PostgresStoreSuite) TestEvaluationRoundTrip() {
	ctx := context.Background()

	eval := domain.RuleEvaluation{
		ID:            uuid.NewString(),
		ApplicationID: "app-1",
		RuleSet:       "dscr-standard",
		Version:       "2024.1",
		Overall:       domain.ResultDenied,
		Results: []domain.RuleEvaluationResult{{
			RuleID:   "DSCR_MIN",
			Result:   domain.RuleFail,
			Severity: domain.SeverityBlocking,
			Message:  "dscr.ratio below 0.75",
		}},
		RulesFailed: 1,
		EvaluatedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.store.SaveEvaluation(ctx, eval))

	got, err := s.store.GetEvaluation(ctx, eval.ID)
	s.Require().NoError(err)
	s.Equal(domain.ResultDenied, got.Overall)
	s.Require().Len(got.Results, 1)
	s.Equal(domain.RuleFail, got.Results[0].Result)

	_, err = s.store.GetEvaluation(ctx, uuid.NewString())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentEvaluationWrites verifies evaluation appends do not interfere
// under load.
func (s *PostgresStoreSuite) TestConcurrentEvaluationWrites() {
	ctx := context.Background()
	const goroutines = 30

	var wg sync.WaitGroup
	var failures atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eval := domain.RuleEvaluation{
				ID:            uuid.NewString(),
				ApplicationID: "app-concurrent",
				RuleSet:       "dscr-standard",
				Overall:       domain.ResultApproved,
				EvaluatedAt:   time.Now().UTC(),
			}
			if err := s.store.SaveEvaluation(ctx, eval); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(0), failures.Load(), "all evaluation writes should succeed")
}
