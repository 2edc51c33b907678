package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the durable, queryable audit sink. Rows are append-only;
// there is no update or delete path.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema for reference; migrations own the real DDL.
//
//	CREATE TABLE audit_events (
//	    id             BIGSERIAL PRIMARY KEY,
//	    application_id TEXT NOT NULL,
//	    category       TEXT NOT NULL,
//	    action         TEXT NOT NULL,
//	    actor          TEXT NOT NULL DEFAULT '',
//	    outcome        TEXT NOT NULL DEFAULT '',
//	    reason         TEXT NOT NULL DEFAULT '',
//	    detail         JSONB,
//	    occurred_at    TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX audit_events_application_idx ON audit_events (application_id, occurred_at);

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	var detail []byte
	if event.Detail != nil {
		var err error
		detail, err = json.Marshal(event.Detail)
		if err != nil {
			return fmt.Errorf("marshal audit detail: %w", err)
		}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_events (application_id, category, action, actor, outcome, reason, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ApplicationID, event.Category, event.Action, event.Actor,
		event.Outcome, event.Reason, detail, event.Timestamp)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByApplication(ctx context.Context, applicationID string) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT application_id, category, action, actor, outcome, reason, detail, occurred_at
		FROM audit_events
		WHERE application_id = $1
		ORDER BY occurred_at, id`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var event Event
		var detail []byte
		if err := rows.Scan(&event.ApplicationID, &event.Category, &event.Action,
			&event.Actor, &event.Outcome, &event.Reason, &detail, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &event.Detail); err != nil {
				return nil, fmt.Errorf("unmarshal audit detail: %w", err)
			}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}
