package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/recall/internal/llm"
	"github.com/Veraticus/recall/internal/metrics"
)

const (
	// ActionRemind is the only request action besides plain chat.
	ActionRemind = "remind"

	// CallbackSendReminder names the reminder delivery callback. It is the
	// full enumerated callback set of this actor.
	CallbackSendReminder = "send_reminder"

	// DefaultReminderDelay applies when a reminder request carries no delay
	// or a non-positive one.
	DefaultReminderDelay = 60 * time.Second

	// reminderPrefix marks reminder lines in history.
	reminderPrefix = "⏰ Reminder: "
)

// Request is one parsed inbound request for a single identity.
type Request struct {
	// Action is empty for chat or ActionRemind for a reminder registration.
	Action string
	// Message is the user text; required for both variants.
	Message string
	// DelaySeconds is the reminder delay. Zero or negative values fall back
	// to DefaultReminderDelay.
	DelaySeconds float64
}

// Result is the outcome of a handled request: Response for a chat turn,
// ScheduledID for a reminder registration.
type Result struct {
	Response    string
	ScheduledID string
}

// ReminderPayload is the scheduled-task payload for CallbackSendReminder.
type ReminderPayload struct {
	Message string `json:"message"`
}

// Actor owns one identity's conversation state. All state access goes
// through mu: at most one read-modify-write turn is in flight per identity,
// which is what keeps a fired reminder from racing an in-flight chat turn.
type Actor struct {
	identity  string
	store     StateStore
	llm       llm.LLM
	scheduler ReminderScheduler
	log       *slog.Logger
	recorder  metrics.Recorder
	mu        sync.Mutex
}

// NewActor creates the actor for one identity. Use a Registry to get the
// shared instance instead of constructing actors directly.
func NewActor(identity string, store StateStore, completer llm.LLM, scheduler ReminderScheduler, logger *slog.Logger, recorder metrics.Recorder) *Actor {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.Nop()
	}

	return &Actor{
		identity:  identity,
		store:     store,
		llm:       completer,
		scheduler: scheduler,
		log:       logger.With(slog.String("identity", identity)),
		recorder:  recorder,
	}
}

// Identity returns the identity this actor owns.
func (a *Actor) Identity() string {
	return a.identity
}

// HandleRequest processes one inbound request. Malformed requests fail with
// a ValidationError before any state is touched.
func (a *Actor) HandleRequest(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, &ValidationError{Reason: "message is required"}
	}
	if req.Action != "" && req.Action != ActionRemind {
		return nil, &ValidationError{Reason: fmt.Sprintf("unsupported action %q", req.Action)}
	}

	if req.Action == ActionRemind {
		return a.registerReminder(ctx, req)
	}
	return a.chat(ctx, req.Message)
}

// registerReminder schedules a delayed callback. History is not touched at
// registration time, only when the task fires.
func (a *Actor) registerReminder(ctx context.Context, req Request) (*Result, error) {
	delay := time.Duration(req.DelaySeconds * float64(time.Second))
	if delay <= 0 {
		delay = DefaultReminderDelay
	}
	fireTime := time.Now().Add(delay)

	payload, err := json.Marshal(ReminderPayload{Message: req.Message})
	if err != nil {
		return nil, fmt.Errorf("failed to encode reminder payload: %w", err)
	}

	id, err := a.scheduler.Register(ctx, a.identity, CallbackSendReminder, payload, fireTime)
	if err != nil {
		return nil, &SchedulerFault{Err: err}
	}

	return &Result{ScheduledID: id}, nil
}

// chat runs one conversation turn. The user message is persisted before the
// completion call: a provider failure leaves it in history so a retry does
// not duplicate it.
func (a *Actor) chat(ctx context.Context, message string) (*Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	defer func() { a.recorder.TurnDuration("chat", time.Since(start)) }()

	state, err := a.store.LoadState(ctx, a.identity)
	if err != nil {
		return nil, fmt.Errorf("failed to load actor state: %w", err)
	}

	state.History = append(state.History, llm.Message{Role: llm.RoleUser, Content: message})
	if err := a.store.SaveState(ctx, a.identity, state); err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}

	reply, err := a.llm.Complete(ctx, state.History)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}

	// Empty completions are recorded too, never dropped.
	state.History = append(state.History, llm.Message{Role: llm.RoleAssistant, Content: reply})
	if err := a.store.SaveState(ctx, a.identity, state); err != nil {
		return nil, fmt.Errorf("failed to persist assistant message: %w", err)
	}

	return &Result{Response: reply}, nil
}

// SendReminder is the scheduler-only entry point. It appends the reminder
// line as an assistant message through the same turn lock as chat, and is
// safe to run after a process restart because state round-trips through the
// durable store.
func (a *Actor) SendReminder(ctx context.Context, payload ReminderPayload) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	defer func() { a.recorder.TurnDuration("reminder", time.Since(start)) }()

	state, err := a.store.LoadState(ctx, a.identity)
	if err != nil {
		return fmt.Errorf("failed to load actor state: %w", err)
	}

	state.History = append(state.History, llm.Message{
		Role:    llm.RoleAssistant,
		Content: reminderPrefix + payload.Message,
	})
	if err := a.store.SaveState(ctx, a.identity, state); err != nil {
		return fmt.Errorf("failed to persist reminder: %w", err)
	}

	a.log.Info("reminder delivered", slog.String("message", payload.Message))
	return nil
}
