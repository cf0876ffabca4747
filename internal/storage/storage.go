// Package storage provides the durable backends for actor state and
// scheduled tasks.
//
// One identity's state slot is exclusively written by that identity's actor;
// the store itself enforces nothing beyond durability. The task table is
// shared across identities, but every task addresses exactly one
// identity/callback pair.
package storage

import (
	"github.com/Veraticus/recall/internal/agent"
	"github.com/Veraticus/recall/internal/scheduler"
)

// Store combines per-identity state persistence with the scheduler's task
// table. All backends implement both so a registered reminder and the
// history it will mutate share one durability domain.
type Store interface {
	agent.StateStore
	scheduler.TaskStore

	// Close releases the backend.
	Close() error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
