//go:build integration

package containers

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// schema mirrors the DDL documented on each PostgresStore. Integration tests
// run against a throwaway container, so the schema is applied here instead of
// through migrations.
const schema = `
CREATE TABLE IF NOT EXISTS rule_versions (
    id             TEXT PRIMARY KEY,
    rule_set       TEXT NOT NULL,
    version        TEXT NOT NULL,
    rules          JSONB NOT NULL,
    effective_from TIMESTAMPTZ NOT NULL,
    effective_to   TIMESTAMPTZ,
    active         BOOLEAN NOT NULL DEFAULT FALSE,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS rule_evaluations (
    id             TEXT PRIMARY KEY,
    application_id TEXT NOT NULL,
    rule_set       TEXT NOT NULL,
    payload        JSONB NOT NULL,
    evaluated_at   TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS conditions (
    id             TEXT PRIMARY KEY,
    application_id TEXT NOT NULL,
    code           TEXT NOT NULL,
    category       TEXT NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL,
    source         TEXT NOT NULL,
    auto_clear     JSONB,
    rule_id        TEXT,
    created_at     TIMESTAMPTZ NOT NULL,
    cleared_at     TIMESTAMPTZ,
    cleared_by     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS conditions_application_idx ON conditions (application_id, created_at);
CREATE TABLE IF NOT EXISTS milestone_history (
    id             TEXT PRIMARY KEY,
    application_id TEXT NOT NULL,
    milestone      TEXT NOT NULL,
    entered_at     TIMESTAMPTZ NOT NULL,
    exited_at      TIMESTAMPTZ,
    duration_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
    triggered_by   TEXT NOT NULL,
    actor          TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS milestone_history_open_idx
    ON milestone_history (application_id) WHERE exited_at IS NULL;
CREATE TABLE IF NOT EXISTS tasks (
    id             TEXT PRIMARY KEY,
    application_id TEXT NOT NULL,
    code           TEXT NOT NULL,
    title          TEXT NOT NULL,
    status         TEXT NOT NULL,
    priority       TEXT NOT NULL,
    assigned_role  TEXT NOT NULL DEFAULT '',
    assignee_id    TEXT NOT NULL DEFAULT '',
    depends_on     TEXT[] NOT NULL DEFAULT '{}',
    blocked_by     TEXT[] NOT NULL DEFAULT '{}',
    due_at         TIMESTAMPTZ,
    sla_breached   BOOLEAN NOT NULL DEFAULT FALSE,
    created_at     TIMESTAMPTZ NOT NULL,
    started_at     TIMESTAMPTZ,
    completed_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS tasks_application_idx ON tasks (application_id, created_at);
CREATE TABLE IF NOT EXISTS audit_events (
    id             BIGSERIAL PRIMARY KEY,
    application_id TEXT NOT NULL,
    category       TEXT NOT NULL,
    action         TEXT NOT NULL,
    actor          TEXT NOT NULL DEFAULT '',
    outcome        TEXT NOT NULL DEFAULT '',
    reason         TEXT NOT NULL DEFAULT '',
    detail         JSONB,
    occurred_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_events_application_idx ON audit_events (application_id, occurred_at);
CREATE TABLE IF NOT EXISTS application_data (
    application_id TEXT PRIMARY KEY,
    snapshot       JSONB NOT NULL DEFAULT '{}'::jsonb,
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS decisions (
    id             TEXT PRIMARY KEY,
    application_id TEXT NOT NULL,
    version        INT NOT NULL,
    is_latest      BOOLEAN NOT NULL,
    payload        JSONB NOT NULL,
    decided_at     TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS decisions_latest_idx
    ON decisions (application_id) WHERE is_latest;
`

// PostgresContainer wraps a testcontainers Postgres instance with the
// application schema already applied.
type PostgresContainer struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
}

// NewPostgresContainer starts a new Postgres container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("lendgate_test"),
		tcpostgres.WithUsername("lendgate"),
		tcpostgres.WithPassword("lendgate"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	poolCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(poolCtx, dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to create pgx pool: %v", err)
	}
	if err := pool.Ping(poolCtx); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	pc := &PostgresContainer{Container: container, Pool: pool}

	t.Cleanup(func() {
		pc.Pool.Close()
		_ = pc.Container.Terminate(context.Background())
	})

	return pc
}

// TruncateTables empties the given tables. Use between tests for isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	_, err := p.Pool.Exec(ctx, "TRUNCATE TABLE "+strings.Join(tables, ", "))
	return err
}
