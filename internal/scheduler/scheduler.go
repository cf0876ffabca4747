package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/recall/internal/metrics"
)

const (
	// DefaultPollInterval is how often the firing loop checks for due tasks.
	DefaultPollInterval = time.Second

	// dueBatchSize caps how many tasks one poll claims.
	dueBatchSize = 50
)

// Scheduler registers durable tasks and fires them through a dispatch gate.
// Tasks fire at least once: a task is deleted only after its dispatch
// returned successfully, so a crash in between replays it.
type Scheduler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	store    TaskStore
	dispatch DispatchFunc
	interval time.Duration
	log      *slog.Logger
	recorder metrics.Recorder
	wg       sync.WaitGroup
	started  chan struct{}
}

// Options configures a Scheduler.
type Options struct {
	// PollInterval overrides DefaultPollInterval when positive.
	PollInterval time.Duration
	// Logger defaults to slog.Default.
	Logger *slog.Logger
	// Recorder defaults to metrics.Nop.
	Recorder metrics.Recorder
}

// New creates a scheduler that reads tasks from store and delivers them via
// dispatch. Call Start in a goroutine to begin firing.
func New(ctx context.Context, store TaskStore, dispatch DispatchFunc, opts Options) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)

	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.Nop()
	}

	return &Scheduler{
		ctx:      ctx,
		cancel:   cancel,
		store:    store,
		dispatch: dispatch,
		interval: interval,
		log:      logger,
		recorder: recorder,
		started:  make(chan struct{}),
	}
}

// Register persists a task and returns its id. The task is durable as soon
// as Register returns; there is no cancel or update operation.
func (s *Scheduler) Register(ctx context.Context, identity, callback string, payload json.RawMessage, fireTime time.Time) (string, error) {
	task := Task{
		ID:       uuid.NewString(),
		Identity: identity,
		Callback: callback,
		FireTime: fireTime,
		Payload:  payload,
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		return "", fmt.Errorf("failed to persist scheduled task: %w", err)
	}

	s.recorder.ReminderScheduled()
	s.log.Debug("task registered",
		slog.String("task_id", task.ID),
		slog.String("identity", identity),
		slog.String("callback", callback),
		slog.Time("fire_time", fireTime),
	)
	return task.ID, nil
}

// Start runs the firing loop until the scheduler's context is canceled.
// This should be called in a goroutine.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	defer s.wg.Done()

	close(s.started)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.fireDue()
		}
	}
}

// fireDue claims and dispatches all currently due tasks.
func (s *Scheduler) fireDue() {
	tasks, err := s.store.DueTasks(s.ctx, time.Now(), dueBatchSize)
	if err != nil {
		s.log.Error("failed to load due tasks", slog.Any("error", err))
		return
	}

	for _, task := range tasks {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		if err := s.dispatch(s.ctx, task); err != nil {
			// Leave the task in place; it is retried on the next poll.
			s.recorder.ReminderFired(false)
			s.log.Error("task dispatch failed",
				slog.String("task_id", task.ID),
				slog.String("identity", task.Identity),
				slog.Any("error", err),
			)
			continue
		}
		s.recorder.ReminderFired(true)

		// Delete only after the callback committed. A crash before this
		// point redelivers the task (at-least-once).
		if err := s.store.DeleteTask(s.ctx, task.ID); err != nil {
			s.log.Error("failed to delete fired task",
				slog.String("task_id", task.ID),
				slog.Any("error", err),
			)
		}
	}
}

// Shutdown stops the firing loop and waits for in-flight dispatches.
func (s *Scheduler) Shutdown(timeout time.Duration) error {
	s.cancel()

	select {
	case <-s.started:
	case <-time.After(100 * time.Millisecond):
		// Start was never called, nothing to wait for.
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("scheduler shutdown timeout after %v", timeout)
	}
}
