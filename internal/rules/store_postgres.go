package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lendgate/internal/domain"
	"lendgate/pkg/platform/sentinel"
)

// PostgresStore persists rule versions and evaluations in PostgreSQL. Rule
// payloads are stored as jsonb: versions are read-mostly and always loaded
// whole, so relational decomposition of the condition tree buys nothing.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema for reference; migrations own the real DDL.
//
//	CREATE TABLE rule_versions (
//	    id             TEXT PRIMARY KEY,
//	    rule_set       TEXT NOT NULL,
//	    version        TEXT NOT NULL,
//	    rules          JSONB NOT NULL,
//	    effective_from TIMESTAMPTZ NOT NULL,
//	    effective_to   TIMESTAMPTZ,
//	    active         BOOLEAN NOT NULL DEFAULT FALSE,
//	    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE TABLE rule_evaluations (
//	    id             TEXT PRIMARY KEY,
//	    application_id TEXT NOT NULL,
//	    rule_set       TEXT NOT NULL,
//	    payload        JSONB NOT NULL,
//	    evaluated_at   TIMESTAMPTZ NOT NULL
//	);

func (s *PostgresStore) GetActiveRuleVersion(ctx context.Context, ruleSet string) (*domain.RuleVersion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, rule_set, version, rules, effective_from, effective_to, active, created_at
		FROM rule_versions
		WHERE rule_set = $1 AND active`, ruleSet)
	if err != nil {
		return nil, fmt.Errorf("query active rule version: %w", err)
	}
	defer rows.Close()

	var found []domain.RuleVersion
	for rows.Next() {
		v, err := scanRuleVersion(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read active rule versions: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("rule set %q: %w", ruleSet, sentinel.ErrNotFound)
	case 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("rule set %q: %w", ruleSet, ErrAmbiguousRuleVersion)
	}
}

func (s *PostgresStore) SaveRuleVersion(ctx context.Context, version domain.RuleVersion) error {
	rulesJSON, err := json.Marshal(version.Rules)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO rule_versions (id, rule_set, version, rules, effective_from, effective_to, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			rules = EXCLUDED.rules,
			effective_from = EXCLUDED.effective_from,
			effective_to = EXCLUDED.effective_to,
			active = EXCLUDED.active`,
		version.ID, version.RuleSet, version.Version, rulesJSON,
		version.EffectiveFrom, version.EffectiveTo, version.Active, version.CreatedAt)
	if err != nil {
		return fmt.Errorf("save rule version: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRuleVersions(ctx context.Context, ruleSet string) ([]domain.RuleVersion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, rule_set, version, rules, effective_from, effective_to, active, created_at
		FROM rule_versions
		WHERE rule_set = $1
		ORDER BY created_at DESC`, ruleSet)
	if err != nil {
		return nil, fmt.Errorf("list rule versions: %w", err)
	}
	defer rows.Close()

	var out []domain.RuleVersion
	for rows.Next() {
		v, err := scanRuleVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveEvaluation(ctx context.Context, evaluation domain.RuleEvaluation) error {
	payload, err := json.Marshal(evaluation)
	if err != nil {
		return fmt.Errorf("marshal evaluation: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO rule_evaluations (id, application_id, rule_set, payload, evaluated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		evaluation.ID, evaluation.ApplicationID, evaluation.RuleSet, payload, evaluation.EvaluatedAt)
	if err != nil {
		return fmt.Errorf("save evaluation: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEvaluation(ctx context.Context, id string) (*domain.RuleEvaluation, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM rule_evaluations WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("evaluation %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get evaluation: %w", err)
	}
	var eval domain.RuleEvaluation
	if err := json.Unmarshal(payload, &eval); err != nil {
		return nil, fmt.Errorf("unmarshal evaluation: %w", err)
	}
	return &eval, nil
}

func scanRuleVersion(rows pgx.Rows) (domain.RuleVersion, error) {
	var v domain.RuleVersion
	var rulesJSON []byte
	if err := rows.Scan(&v.ID, &v.RuleSet, &v.Version, &rulesJSON,
		&v.EffectiveFrom, &v.EffectiveTo, &v.Active, &v.CreatedAt); err != nil {
		return v, fmt.Errorf("scan rule version: %w", err)
	}
	if err := json.Unmarshal(rulesJSON, &v.Rules); err != nil {
		return v, fmt.Errorf("unmarshal rules: %w", err)
	}
	return v, nil
}
