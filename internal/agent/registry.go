package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Veraticus/recall/internal/llm"
	"github.com/Veraticus/recall/internal/metrics"
	"github.com/Veraticus/recall/internal/scheduler"
)

// Registry maps identities to their actor instances, creating each lazily on
// first use. Identities are never evicted; the actor is the unit of state
// ownership and must stay unique per identity for the lifetime of the
// process.
type Registry struct {
	mu     sync.Mutex
	actors map[string]*Actor

	store     StateStore
	llm       llm.LLM
	scheduler ReminderScheduler
	log       *slog.Logger
	recorder  metrics.Recorder
}

// RegistryConfig holds the collaborators shared by all actors.
type RegistryConfig struct {
	Store     StateStore
	LLM       llm.LLM
	Scheduler ReminderScheduler
	Logger    *slog.Logger
	Recorder  metrics.Recorder
}

// NewRegistry creates an empty actor registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = metrics.Nop()
	}

	return &Registry{
		actors:    make(map[string]*Actor),
		store:     cfg.Store,
		llm:       cfg.LLM,
		scheduler: cfg.Scheduler,
		log:       logger,
		recorder:  recorder,
	}
}

// Get returns the actor owning identity, creating it on first use.
func (r *Registry) Get(identity string) *Actor {
	r.mu.Lock()
	defer r.mu.Unlock()

	actor, exists := r.actors[identity]
	if !exists {
		actor = NewActor(identity, r.store, r.llm, r.scheduler, r.log, r.recorder)
		r.actors[identity] = actor
		r.recorder.ActorsActive(len(r.actors))
	}
	return actor
}

// Len returns the number of actors currently held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actors)
}

// Dispatch delivers a fired task to its owning actor. It is the scheduler's
// dispatch gate: the callback runs under the same turn lock as inbound
// requests, never against state from an unsynchronized goroutine.
//
// A returned error means the task should be retried. Tasks that can never
// succeed (unknown callback, undecodable payload) are logged and dropped so
// they cannot wedge the firing loop; registration only accepts the
// enumerated callback set, so both cases indicate corrupted records.
func (r *Registry) Dispatch(ctx context.Context, task scheduler.Task) error {
	switch task.Callback {
	case CallbackSendReminder:
		var payload ReminderPayload
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			r.log.Error("dropping task with undecodable payload",
				slog.String("task_id", task.ID),
				slog.Any("error", err),
			)
			return nil
		}
		return r.Get(task.Identity).SendReminder(ctx, payload)
	default:
		r.log.Error("dropping task with unknown callback",
			slog.String("task_id", task.ID),
			slog.Any("error", fmt.Errorf("%w: %q", ErrUnknownCallback, task.Callback)),
		)
		return nil
	}
}
