// Package agent implements per-identity conversational actors.
//
// Each identity maps to exactly one Actor. An actor owns its identity's
// message history and is the only component allowed to mutate it; every
// mutation is one serialized read-modify-write turn, whether it originates
// from an inbound request or a fired reminder.
package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Veraticus/recall/internal/llm"
)

// State is the durable per-identity actor state.
type State struct {
	// History is the append-only conversation, insertion order =
	// chronological order.
	History []llm.Message `json:"history"`
}

// StateStore persists actor state keyed by identity. Loading an identity
// that was never written returns the default (empty) state; identities are
// never deleted.
type StateStore interface {
	// LoadState reads one identity's state.
	LoadState(ctx context.Context, identity string) (State, error)

	// SaveState durably replaces one identity's state.
	SaveState(ctx context.Context, identity string, state State) error
}

// ReminderScheduler registers durable delayed callbacks. The returned id is
// opaque and unique per task.
type ReminderScheduler interface {
	Register(ctx context.Context, identity, callback string, payload json.RawMessage, fireTime time.Time) (string, error)
}
