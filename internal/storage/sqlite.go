package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// Pure-Go SQLite driver registered as "sqlite".
	_ "modernc.org/sqlite"

	"github.com/Veraticus/recall/internal/agent"
	"github.com/Veraticus/recall/internal/scheduler"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS actor_state (
	identity TEXT PRIMARY KEY,
	state    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS scheduled_tasks (
	id        TEXT PRIMARY KEY,
	identity  TEXT NOT NULL,
	callback  TEXT NOT NULL,
	fire_time INTEGER NOT NULL,
	payload   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scheduled_tasks_fire_time
	ON scheduled_tasks (fire_time);
`

// SQLiteStore implements Store on a local SQLite file. It is the default
// backend: single-node durable, no external service.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite allows one writer; serialize at the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// LoadState implements agent.StateStore.
func (s *SQLiteStore) LoadState(ctx context.Context, identity string) (agent.State, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM actor_state WHERE identity = ?`, identity,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return agent.State{}, nil
	}
	if err != nil {
		return agent.State{}, fmt.Errorf("failed to read actor state: %w", err)
	}

	var state agent.State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return agent.State{}, fmt.Errorf("failed to decode actor state: %w", err)
	}
	return state, nil
}

// SaveState implements agent.StateStore.
func (s *SQLiteStore) SaveState(ctx context.Context, identity string, state agent.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode actor state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO actor_state (identity, state) VALUES (?, ?)
		ON CONFLICT(identity) DO UPDATE SET state = excluded.state`,
		identity, string(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to write actor state: %w", err)
	}
	return nil
}

// CreateTask implements scheduler.TaskStore.
func (s *SQLiteStore) CreateTask(ctx context.Context, task scheduler.Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (id, identity, callback, fire_time, payload)
		VALUES (?, ?, ?, ?, ?)`,
		task.ID, task.Identity, task.Callback, task.FireTime.UnixMilli(), string(task.Payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert scheduled task: %w", err)
	}
	return nil
}

// DueTasks implements scheduler.TaskStore.
func (s *SQLiteStore) DueTasks(ctx context.Context, now time.Time, limit int) ([]scheduler.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identity, callback, fire_time, payload
		FROM scheduled_tasks
		WHERE fire_time <= ?
		ORDER BY fire_time ASC
		LIMIT ?`,
		now.UnixMilli(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query due tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []scheduler.Task
	for rows.Next() {
		var (
			task     scheduler.Task
			fireTime int64
			payload  string
		)
		if err := rows.Scan(&task.ID, &task.Identity, &task.Callback, &fireTime, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan scheduled task: %w", err)
		}
		task.FireTime = time.UnixMilli(fireTime)
		task.Payload = json.RawMessage(payload)
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate due tasks: %w", err)
	}
	return tasks, nil
}

// DeleteTask implements scheduler.TaskStore.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete scheduled task: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
