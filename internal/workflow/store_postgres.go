package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lendgate/internal/domain"
	"lendgate/pkg/platform/sentinel"
)

// PostgresStore persists milestone history and tasks in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema for reference; migrations own the real DDL. The partial unique index
// enforces the single-open-row invariant at the database level.
//
//	CREATE TABLE milestone_history (
//	    id             TEXT PRIMARY KEY,
//	    application_id TEXT NOT NULL,
//	    milestone      TEXT NOT NULL,
//	    entered_at     TIMESTAMPTZ NOT NULL,
//	    exited_at      TIMESTAMPTZ,
//	    duration_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    triggered_by   TEXT NOT NULL,
//	    actor          TEXT NOT NULL DEFAULT ''
//	);
//	CREATE UNIQUE INDEX milestone_history_open_idx
//	    ON milestone_history (application_id) WHERE exited_at IS NULL;
//
//	CREATE TABLE tasks (
//	    id             TEXT PRIMARY KEY,
//	    application_id TEXT NOT NULL,
//	    code           TEXT NOT NULL,
//	    title          TEXT NOT NULL,
//	    status         TEXT NOT NULL,
//	    priority       TEXT NOT NULL,
//	    assigned_role  TEXT NOT NULL DEFAULT '',
//	    assignee_id    TEXT NOT NULL DEFAULT '',
//	    depends_on     TEXT[] NOT NULL DEFAULT '{}',
//	    blocked_by     TEXT[] NOT NULL DEFAULT '{}',
//	    due_at         TIMESTAMPTZ,
//	    sla_breached   BOOLEAN NOT NULL DEFAULT FALSE,
//	    created_at     TIMESTAMPTZ NOT NULL,
//	    started_at     TIMESTAMPTZ,
//	    completed_at   TIMESTAMPTZ
//	);
//	CREATE INDEX tasks_application_idx ON tasks (application_id, created_at);

func (s *PostgresStore) AppendHistory(ctx context.Context, row domain.MilestoneHistory) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO milestone_history (id, application_id, milestone, entered_at, exited_at,
			duration_hours, triggered_by, actor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		row.ID, row.ApplicationID, row.Milestone, row.EnteredAt, row.ExitedAt,
		row.DurationHours, row.TriggeredBy, row.Actor)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("history row %s: %w", row.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateHistory(ctx context.Context, row domain.MilestoneHistory) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE milestone_history
		SET exited_at = $2, duration_hours = $3
		WHERE id = $1`,
		row.ID, row.ExitedAt, row.DurationHours)
	if err != nil {
		return fmt.Errorf("update history: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("history row %s: %w", row.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListHistory(ctx context.Context, applicationID string) ([]domain.MilestoneHistory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, application_id, milestone, entered_at, exited_at, duration_hours, triggered_by, actor
		FROM milestone_history
		WHERE application_id = $1
		ORDER BY entered_at`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []domain.MilestoneHistory
	for rows.Next() {
		var row domain.MilestoneHistory
		if err := rows.Scan(&row.ID, &row.ApplicationID, &row.Milestone, &row.EnteredAt,
			&row.ExitedAt, &row.DurationHours, &row.TriggeredBy, &row.Actor); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *PostgresStore) OpenHistory(ctx context.Context, applicationID string) (*domain.MilestoneHistory, error) {
	var row domain.MilestoneHistory
	err := s.pool.QueryRow(ctx, `
		SELECT id, application_id, milestone, entered_at, exited_at, duration_hours, triggered_by, actor
		FROM milestone_history
		WHERE application_id = $1 AND exited_at IS NULL`, applicationID).
		Scan(&row.ID, &row.ApplicationID, &row.Milestone, &row.EnteredAt,
			&row.ExitedAt, &row.DurationHours, &row.TriggeredBy, &row.Actor)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("application %s: %w", applicationID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open history row: %w", err)
	}
	return &row, nil
}

const taskColumns = `id, application_id, code, title, status, priority, assigned_role,
	assignee_id, depends_on, blocked_by, due_at, sla_breached, created_at, started_at, completed_at`

func (s *PostgresStore) InsertTask(ctx context.Context, task domain.Task) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		task.ID, task.ApplicationID, task.Code, task.Title, task.Status, task.Priority,
		task.AssignedRole, task.AssigneeID, task.DependsOn, task.BlockedBy,
		task.DueAt, task.SLABreached, task.CreatedAt, task.StartedAt, task.CompletedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("task %s: %w", task.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateTask(ctx context.Context, task domain.Task) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks
		SET status = $2, assignee_id = $3, blocked_by = $4, due_at = $5,
			sla_breached = $6, started_at = $7, completed_at = $8
		WHERE id = $1`,
		task.ID, task.Status, task.AssigneeID, task.BlockedBy, task.DueAt,
		task.SLABreached, task.StartedAt, task.CompletedAt)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task %s: %w", task.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, applicationID string) ([]domain.Task, error) {
	return s.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE application_id = $1
		ORDER BY created_at`, applicationID)
}

func (s *PostgresStore) ListTasksByAssignee(ctx context.Context, assigneeID string) ([]domain.Task, error) {
	return s.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE assignee_id = $1
		ORDER BY created_at`, assigneeID)
}

func (s *PostgresStore) ListActiveTasksDueBefore(ctx context.Context, cutoff time.Time) ([]domain.Task, error) {
	return s.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE status NOT IN ('COMPLETED', 'CANCELLED') AND due_at IS NOT NULL AND due_at < $1
		ORDER BY due_at`, cutoff)
}

func (s *PostgresStore) queryTasks(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *task)
	}
	return out, rows.Err()
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	err := row.Scan(&t.ID, &t.ApplicationID, &t.Code, &t.Title, &t.Status, &t.Priority,
		&t.AssignedRole, &t.AssigneeID, &t.DependsOn, &t.BlockedBy,
		&t.DueAt, &t.SLABreached, &t.CreatedAt, &t.StartedAt, &t.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
