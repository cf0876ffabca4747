package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Veraticus/recall/internal/agent"
	"github.com/Veraticus/recall/internal/llm"
	"github.com/Veraticus/recall/internal/scheduler"
)

// MemoryStore is an in-process Store for tests and local runs. It keeps the
// same contract as the durable backends, minus the durability.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]agent.State
	tasks  map[string]scheduler.Task
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]agent.State),
		tasks:  make(map[string]scheduler.Task),
	}
}

// LoadState implements agent.StateStore. Unknown identities get the default
// empty state.
func (s *MemoryStore) LoadState(_ context.Context, identity string) (agent.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, exists := s.states[identity]
	if !exists {
		return agent.State{}, nil
	}

	// Copy so callers never alias the stored slice.
	history := make([]llm.Message, len(state.History))
	copy(history, state.History)
	return agent.State{History: history}, nil
}

// SaveState implements agent.StateStore.
func (s *MemoryStore) SaveState(_ context.Context, identity string, state agent.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]llm.Message, len(state.History))
	copy(history, state.History)
	s.states[identity] = agent.State{History: history}
	return nil
}

// CreateTask implements scheduler.TaskStore.
func (s *MemoryStore) CreateTask(_ context.Context, task scheduler.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[task.ID] = task
	return nil
}

// DueTasks implements scheduler.TaskStore.
func (s *MemoryStore) DueTasks(_ context.Context, now time.Time, limit int) ([]scheduler.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []scheduler.Task
	for _, task := range s.tasks {
		if !task.FireTime.After(now) {
			due = append(due, task)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].FireTime.Before(due[j].FireTime) })

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// DeleteTask implements scheduler.TaskStore.
func (s *MemoryStore) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tasks, id)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
