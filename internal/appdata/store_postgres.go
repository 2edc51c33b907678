package appdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists one jsonb snapshot row per application. Merges use
// jsonb concatenation so concurrent writers never clobber each other's
// fields.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema for reference; migrations own the real DDL.
//
//	CREATE TABLE application_data (
//	    application_id TEXT PRIMARY KEY,
//	    snapshot       JSONB NOT NULL DEFAULT '{}'::jsonb,
//	    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
//	);

func (s *PostgresStore) SetFields(ctx context.Context, applicationID string, fields map[string]any) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO application_data (application_id, snapshot, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (application_id) DO UPDATE SET
			snapshot = application_data.snapshot || EXCLUDED.snapshot,
			updated_at = now()`,
		applicationID, payload)
	if err != nil {
		return fmt.Errorf("set application fields: %w", err)
	}
	return nil
}

func (s *PostgresStore) Snapshot(ctx context.Context, applicationID string) (map[string]any, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT snapshot FROM application_data WHERE application_id = $1`, applicationID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get application snapshot: %w", err)
	}

	var snapshot map[string]any
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal application snapshot: %w", err)
	}
	return snapshot, nil
}
