package agent_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Veraticus/recall/internal/agent"
	"github.com/Veraticus/recall/internal/llm"
	"github.com/Veraticus/recall/internal/scheduler"
	"github.com/Veraticus/recall/internal/storage"
)

func newTestRegistry(t *testing.T) (*agent.Registry, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	registry := agent.NewRegistry(agent.RegistryConfig{
		Store:     store,
		LLM:       &fakeLLM{},
		Scheduler: &fakeScheduler{},
	})
	return registry, store
}

func TestRegistry_GetReturnsSameInstance(t *testing.T) {
	registry, _ := newTestRegistry(t)

	a1 := registry.Get("alice")
	a2 := registry.Get("alice")
	if a1 != a2 {
		t.Error("expected the same actor instance for one identity")
	}
	if a1.Identity() != "alice" {
		t.Errorf("expected identity alice, got %q", a1.Identity())
	}

	b := registry.Get("bob")
	if b == a1 {
		t.Error("expected a distinct actor for a different identity")
	}
	if registry.Len() != 2 {
		t.Errorf("expected 2 actors, got %d", registry.Len())
	}
}

func TestRegistry_IdentitiesAreIsolated(t *testing.T) {
	registry, store := newTestRegistry(t)

	if _, err := registry.Get("alice").HandleRequest(context.Background(), agent.Request{Message: "for alice"}); err != nil {
		t.Fatalf("alice chat failed: %v", err)
	}
	if _, err := registry.Get("bob").HandleRequest(context.Background(), agent.Request{Message: "for bob"}); err != nil {
		t.Fatalf("bob chat failed: %v", err)
	}

	alice := historyOf(t, store, "alice")
	bob := historyOf(t, store, "bob")
	if len(alice) != 2 || len(bob) != 2 {
		t.Fatalf("expected 2 entries each, got alice=%d bob=%d", len(alice), len(bob))
	}
	if alice[0].Content != "for alice" {
		t.Errorf("alice history polluted: %+v", alice)
	}
	if bob[0].Content != "for bob" {
		t.Errorf("bob history polluted: %+v", bob)
	}
}

func TestRegistry_DispatchDeliversReminder(t *testing.T) {
	registry, store := newTestRegistry(t)

	payload, err := json.Marshal(agent.ReminderPayload{Message: "stretch"})
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}

	task := scheduler.Task{
		ID:       "task-1",
		Identity: "alice",
		Callback: agent.CallbackSendReminder,
		FireTime: time.Now(),
		Payload:  payload,
	}
	if err := registry.Dispatch(context.Background(), task); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	history := historyOf(t, store, "alice")
	if len(history) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(history))
	}
	if history[0].Content != "⏰ Reminder: stretch" {
		t.Errorf("unexpected content %q", history[0].Content)
	}
	if history[0].Role != llm.RoleAssistant {
		t.Errorf("unexpected role %q", history[0].Role)
	}
}

func TestRegistry_DispatchDropsUnknownCallback(t *testing.T) {
	registry, store := newTestRegistry(t)

	task := scheduler.Task{
		ID:       "task-1",
		Identity: "alice",
		Callback: "explode",
		FireTime: time.Now(),
		Payload:  json.RawMessage(`{}`),
	}
	// nil means "do not retry": the poisoned task gets deleted.
	if err := registry.Dispatch(context.Background(), task); err != nil {
		t.Fatalf("expected unknown callback to be dropped, got %v", err)
	}

	if history := historyOf(t, store, "alice"); len(history) != 0 {
		t.Errorf("expected no state mutation, got %d entries", len(history))
	}
}

func TestRegistry_DispatchDropsUndecodablePayload(t *testing.T) {
	registry, store := newTestRegistry(t)

	task := scheduler.Task{
		ID:       "task-1",
		Identity: "alice",
		Callback: agent.CallbackSendReminder,
		FireTime: time.Now(),
		Payload:  json.RawMessage(`{not json`),
	}
	if err := registry.Dispatch(context.Background(), task); err != nil {
		t.Fatalf("expected undecodable payload to be dropped, got %v", err)
	}

	if history := historyOf(t, store, "alice"); len(history) != 0 {
		t.Errorf("expected no state mutation, got %d entries", len(history))
	}
}
