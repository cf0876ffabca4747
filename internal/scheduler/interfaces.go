// Package scheduler provides durable one-shot task scheduling for actor
// callbacks.
package scheduler

import (
	"context"
	"encoding/json"
	"time"
)

// Task is a durable request to invoke a named callback on one identity's
// actor at or after FireTime. It is persisted at registration and removed
// once fired.
type Task struct {
	ID       string          `json:"id"`
	Identity string          `json:"identity"`
	Callback string          `json:"callback"`
	FireTime time.Time       `json:"fire_time"`
	Payload  json.RawMessage `json:"payload"`
}

// TaskStore persists pending tasks. Implementations must make CreateTask
// durable before returning so a registered task survives a process crash.
type TaskStore interface {
	// CreateTask persists a new task.
	CreateTask(ctx context.Context, task Task) error

	// DueTasks returns up to limit tasks with FireTime <= now, oldest first.
	DueTasks(ctx context.Context, now time.Time, limit int) ([]Task, error)

	// DeleteTask removes a task by id. Deleting an absent task is not an
	// error.
	DeleteTask(ctx context.Context, id string) error
}

// DispatchFunc delivers a due task to its owning actor. It must route through
// the same per-identity serialization gate as inbound requests and return
// only after the callback's state mutation committed.
type DispatchFunc func(ctx context.Context, task Task) error
