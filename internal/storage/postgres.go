package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Veraticus/recall/internal/agent"
	"github.com/Veraticus/recall/internal/scheduler"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS actor_state (
	identity TEXT PRIMARY KEY,
	state    JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS scheduled_tasks (
	id        TEXT PRIMARY KEY,
	identity  TEXT NOT NULL,
	callback  TEXT NOT NULL,
	fire_time TIMESTAMPTZ NOT NULL,
	payload   JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scheduled_tasks_fire_time
	ON scheduled_tasks (fire_time);
`

// PostgresStore implements Store on a Postgres pool, for deployments where
// several services share one database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to url and applies the schema.
func OpenPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply postgres schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// LoadState implements agent.StateStore.
func (s *PostgresStore) LoadState(ctx context.Context, identity string) (agent.State, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM actor_state WHERE identity = $1`, identity,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return agent.State{}, nil
	}
	if err != nil {
		return agent.State{}, fmt.Errorf("failed to read actor state: %w", err)
	}

	var state agent.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return agent.State{}, fmt.Errorf("failed to decode actor state: %w", err)
	}
	return state, nil
}

// SaveState implements agent.StateStore.
func (s *PostgresStore) SaveState(ctx context.Context, identity string, state agent.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode actor state: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO actor_state (identity, state) VALUES ($1, $2)
		ON CONFLICT (identity) DO UPDATE SET state = excluded.state`,
		identity, raw,
	)
	if err != nil {
		return fmt.Errorf("failed to write actor state: %w", err)
	}
	return nil
}

// CreateTask implements scheduler.TaskStore.
func (s *PostgresStore) CreateTask(ctx context.Context, task scheduler.Task) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheduled_tasks (id, identity, callback, fire_time, payload)
		VALUES ($1, $2, $3, $4, $5)`,
		task.ID, task.Identity, task.Callback, task.FireTime, []byte(task.Payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert scheduled task: %w", err)
	}
	return nil
}

// DueTasks implements scheduler.TaskStore.
func (s *PostgresStore) DueTasks(ctx context.Context, now time.Time, limit int) ([]scheduler.Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, identity, callback, fire_time, payload
		FROM scheduled_tasks
		WHERE fire_time <= $1
		ORDER BY fire_time ASC
		LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query due tasks: %w", err)
	}
	defer rows.Close()

	var tasks []scheduler.Task
	for rows.Next() {
		var (
			task    scheduler.Task
			payload []byte
		)
		if err := rows.Scan(&task.ID, &task.Identity, &task.Callback, &task.FireTime, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan scheduled task: %w", err)
		}
		task.Payload = json.RawMessage(payload)
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate due tasks: %w", err)
	}
	return tasks, nil
}

// DeleteTask implements scheduler.TaskStore.
func (s *PostgresStore) DeleteTask(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM scheduled_tasks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete scheduled task: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
