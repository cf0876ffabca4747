package storage_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/recall/internal/agent"
	"github.com/Veraticus/recall/internal/llm"
	"github.com/Veraticus/recall/internal/scheduler"
	"github.com/Veraticus/recall/internal/storage"
)

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) storage.Store {
		t.Helper()
		return storage.NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) storage.Store {
		t.Helper()
		store, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "recall.db"))
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, store.Close()) })
		return store
	})
}

// testStoreContract runs the behavior every backend must share.
func testStoreContract(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("unknown identity loads default state", func(t *testing.T) {
		store := open(t)

		state, err := store.LoadState(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, state.History)
	})

	t.Run("state round-trips", func(t *testing.T) {
		store := open(t)

		saved := agent.State{History: []llm.Message{
			{Role: llm.RoleUser, Content: "Hello"},
			{Role: llm.RoleAssistant, Content: ""},
		}}
		require.NoError(t, store.SaveState(ctx, "alice", saved))

		loaded, err := store.LoadState(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, saved.History, loaded.History)
	})

	t.Run("save replaces previous state", func(t *testing.T) {
		store := open(t)

		require.NoError(t, store.SaveState(ctx, "alice", agent.State{History: []llm.Message{
			{Role: llm.RoleUser, Content: "first"},
		}}))
		require.NoError(t, store.SaveState(ctx, "alice", agent.State{History: []llm.Message{
			{Role: llm.RoleUser, Content: "first"},
			{Role: llm.RoleAssistant, Content: "second"},
		}}))

		loaded, err := store.LoadState(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, loaded.History, 2)
		assert.Equal(t, "second", loaded.History[1].Content)
	})

	t.Run("identities are isolated", func(t *testing.T) {
		store := open(t)

		require.NoError(t, store.SaveState(ctx, "alice", agent.State{History: []llm.Message{
			{Role: llm.RoleUser, Content: "for alice"},
		}}))

		state, err := store.LoadState(ctx, "bob")
		require.NoError(t, err)
		assert.Empty(t, state.History)
	})

	t.Run("due tasks honor fire time, order and limit", func(t *testing.T) {
		store := open(t)
		now := time.Now()

		mk := func(id string, offset time.Duration) scheduler.Task {
			return scheduler.Task{
				ID:       id,
				Identity: "alice",
				Callback: "send_reminder",
				FireTime: now.Add(offset),
				Payload:  json.RawMessage(`{"message":"hi"}`),
			}
		}
		require.NoError(t, store.CreateTask(ctx, mk("later", -time.Minute)))
		require.NoError(t, store.CreateTask(ctx, mk("earliest", -time.Hour)))
		require.NoError(t, store.CreateTask(ctx, mk("future", time.Hour)))

		due, err := store.DueTasks(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, due, 2)
		assert.Equal(t, "earliest", due[0].ID)
		assert.Equal(t, "later", due[1].ID)

		limited, err := store.DueTasks(ctx, now, 1)
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, "earliest", limited[0].ID)
	})

	t.Run("task payload round-trips", func(t *testing.T) {
		store := open(t)

		task := scheduler.Task{
			ID:       "task-1",
			Identity: "alice",
			Callback: "send_reminder",
			FireTime: time.Now().Add(-time.Second),
			Payload:  json.RawMessage(`{"message":"Take a break"}`),
		}
		require.NoError(t, store.CreateTask(ctx, task))

		due, err := store.DueTasks(ctx, time.Now(), 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, task.ID, due[0].ID)
		assert.Equal(t, task.Identity, due[0].Identity)
		assert.Equal(t, task.Callback, due[0].Callback)
		assert.JSONEq(t, string(task.Payload), string(due[0].Payload))
	})

	t.Run("delete removes a task and tolerates absence", func(t *testing.T) {
		store := open(t)

		task := scheduler.Task{
			ID:       "task-1",
			Identity: "alice",
			Callback: "send_reminder",
			FireTime: time.Now().Add(-time.Second),
			Payload:  json.RawMessage(`{}`),
		}
		require.NoError(t, store.CreateTask(ctx, task))
		require.NoError(t, store.DeleteTask(ctx, task.ID))

		due, err := store.DueTasks(ctx, time.Now(), 10)
		require.NoError(t, err)
		assert.Empty(t, due)

		// Deleting again is not an error.
		require.NoError(t, store.DeleteTask(ctx, task.ID))
	})
}
