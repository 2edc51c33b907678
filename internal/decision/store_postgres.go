package decision

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

// PostgresStore persists decisions in PostgreSQL. The decision body is jsonb;
// only the columns the queries filter on are relational.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema for reference; migrations own the real DDL. The partial unique index
// enforces the single-latest invariant at the database level.
//
//	CREATE TABLE decisions (
//	    id             TEXT PRIMARY KEY,
//	    application_id TEXT NOT NULL,
//	    version        INT NOT NULL,
//	    is_latest      BOOLEAN NOT NULL,
//	    payload        JSONB NOT NULL,
//	    decided_at     TIMESTAMPTZ NOT NULL
//	);
//	CREATE UNIQUE INDEX decisions_latest_idx
//	    ON decisions (application_id) WHERE is_latest;

func (s *PostgresStore) Insert(ctx context.Context, decision domain.Decision) error {
	payload, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO decisions (id, application_id, version, is_latest, payload, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		decision.ID, decision.ApplicationID, decision.Version, decision.IsLatest,
		payload, decision.DecidedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("decision %s: %w", decision.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, decision domain.Decision) error {
	payload, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE decisions SET is_latest = $2, payload = $3 WHERE id = $1`,
		decision.ID, decision.IsLatest, payload)
	if err != nil {
		return fmt.Errorf("update decision: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("decision %s: %w", decision.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Decision, error) {
	return s.queryOne(ctx, `SELECT payload FROM decisions WHERE id = $1`,
		fmt.Sprintf("decision %s", id), id)
}

func (s *PostgresStore) GetLatest(ctx context.Context, applicationID string) (*domain.Decision, error) {
	return s.queryOne(ctx, `SELECT payload FROM decisions WHERE application_id = $1 AND is_latest`,
		fmt.Sprintf("application %s", applicationID), applicationID)
}

func (s *PostgresStore) ListByApplication(ctx context.Context, applicationID string) ([]domain.Decision, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT payload FROM decisions
		WHERE application_id = $1
		ORDER BY version`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []domain.Decision
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		var decision domain.Decision
		if err := json.Unmarshal(payload, &decision); err != nil {
			return nil, fmt.Errorf("unmarshal decision: %w", err)
		}
		out = append(out, decision)
	}
	return out, rows.Err()
}

func (s *PostgresStore) queryOne(ctx context.Context, query, subject string, arg any) (*domain.Decision, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, query, arg).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", subject, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query decision: %w", err)
	}
	var decision domain.Decision
	if err := json.Unmarshal(payload, &decision); err != nil {
		return nil, fmt.Errorf("unmarshal decision: %w", err)
	}
	return &decision, nil
}
