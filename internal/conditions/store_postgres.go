package conditions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lendgate/internal/domain"
	"lendgate/pkg/platform/sentinel"
)

// PostgresStore persists conditions in PostgreSQL. The auto-clear predicate is
// stored as jsonb because it is opaque to SQL and only ever read whole.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema for reference; migrations own the real DDL.
//
//	CREATE TABLE conditions (
//	    id             TEXT PRIMARY KEY,
//	    application_id TEXT NOT NULL,
//	    code           TEXT NOT NULL,
//	    category       TEXT NOT NULL,
//	    description    TEXT NOT NULL DEFAULT '',
//	    status         TEXT NOT NULL,
//	    source         TEXT NOT NULL,
//	    auto_clear     JSONB,
//	    rule_id        TEXT,
//	    created_at     TIMESTAMPTZ NOT NULL,
//	    cleared_at     TIMESTAMPTZ,
//	    cleared_by     TEXT NOT NULL DEFAULT ''
//	);
//	CREATE INDEX conditions_application_idx ON conditions (application_id, created_at);

func (s *PostgresStore) Insert(ctx context.Context, condition domain.Condition) error {
	autoClear, err := marshalAutoClear(condition.AutoClear)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO conditions (id, application_id, code, category, description, status, source,
			auto_clear, rule_id, created_at, cleared_at, cleared_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		condition.ID, condition.ApplicationID, condition.Code, condition.Category,
		condition.Description, condition.Status, condition.Source,
		autoClear, condition.RuleID, condition.CreatedAt, condition.ClearedAt, condition.ClearedBy)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("condition %s: %w", condition.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert condition: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, condition domain.Condition) error {
	autoClear, err := marshalAutoClear(condition.AutoClear)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE conditions
		SET status = $2, description = $3, auto_clear = $4, cleared_at = $5, cleared_by = $6
		WHERE id = $1`,
		condition.ID, condition.Status, condition.Description, autoClear,
		condition.ClearedAt, condition.ClearedBy)
	if err != nil {
		return fmt.Errorf("update condition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("condition %s: %w", condition.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Condition, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, application_id, code, category, description, status, source,
			auto_clear, rule_id, created_at, cleared_at, cleared_by
		FROM conditions WHERE id = $1`, id)

	condition, err := scanCondition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("condition %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return condition, nil
}

func (s *PostgresStore) ListByApplication(ctx context.Context, applicationID string) ([]domain.Condition, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, application_id, code, category, description, status, source,
			auto_clear, rule_id, created_at, cleared_at, cleared_by
		FROM conditions
		WHERE application_id = $1
		ORDER BY created_at`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list conditions: %w", err)
	}
	defer rows.Close()

	var out []domain.Condition
	for rows.Next() {
		condition, err := scanCondition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *condition)
	}
	return out, rows.Err()
}

func marshalAutoClear(cond *domain.RuleCondition) ([]byte, error) {
	if cond == nil {
		return nil, nil
	}
	payload, err := json.Marshal(cond)
	if err != nil {
		return nil, fmt.Errorf("marshal auto-clear predicate: %w", err)
	}
	return payload, nil
}

func scanCondition(row pgx.Row) (*domain.Condition, error) {
	var c domain.Condition
	var autoClear []byte
	err := row.Scan(&c.ID, &c.ApplicationID, &c.Code, &c.Category, &c.Description,
		&c.Status, &c.Source, &autoClear, &c.RuleID, &c.CreatedAt, &c.ClearedAt, &c.ClearedBy)
	if err != nil {
		return nil, err
	}
	if len(autoClear) > 0 {
		c.AutoClear = &domain.RuleCondition{}
		if err := json.Unmarshal(autoClear, c.AutoClear); err != nil {
			return nil, fmt.Errorf("unmarshal auto-clear predicate: %w", err)
		}
	}
	return &c, nil
}
