// Package main provides the entry point for the recall conversational agent.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Veraticus/recall/internal/agent"
	"github.com/Veraticus/recall/internal/config"
	"github.com/Veraticus/recall/internal/llm"
	"github.com/Veraticus/recall/internal/metrics"
	"github.com/Veraticus/recall/internal/scheduler"
	"github.com/Veraticus/recall/internal/server"
	"github.com/Veraticus/recall/internal/storage"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 30 * time.Second

	// readHeaderTimeout bounds slow-header clients.
	readHeaderTimeout = 10 * time.Second
)

func main() {
	os.Exit(runMain())
}

func runMain() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutting down gracefully")
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fatal", slog.Any("error", err))
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Error("failed to close store", slog.Any("error", closeErr))
		}
	}()

	var completer llm.LLM
	if cfg.UseMockLLM {
		logger.Info("using mock completion client")
		completer = llm.NewMock()
	} else {
		completer = llm.NewClient(llm.ClientConfig{
			BaseURL: cfg.LLMBaseURL,
			APIKey:  cfg.LLMAPIKey,
			Model:   cfg.LLMModel,
		})
	}

	recorder := metrics.NewPrometheus(prometheus.DefaultRegisterer)

	// The scheduler's dispatch closes over the registry, which in turn needs
	// the scheduler for registrations; the closure resolves only at fire
	// time, after both exist.
	var registry *agent.Registry
	sched := scheduler.New(ctx, store,
		func(ctx context.Context, task scheduler.Task) error {
			return registry.Dispatch(ctx, task)
		},
		scheduler.Options{
			PollInterval: cfg.PollInterval,
			Logger:       logger,
			Recorder:     recorder,
		},
	)
	registry = agent.NewRegistry(agent.RegistryConfig{
		Store:     store,
		LLM:       completer,
		Scheduler: sched,
		Logger:    logger,
		Recorder:  recorder,
	})

	go sched.Start()

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(registry, logger, recorder),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	// The parent context is already canceled; shutdown gets its own.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", slog.Any("error", err))
	}
	if err := sched.Shutdown(ShutdownTimeout); err != nil {
		logger.Error("scheduler shutdown failed", slog.Any("error", err))
	}
	return nil
}

// openStore selects the configured storage backend.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		return storage.OpenSQLite(ctx, cfg.SQLitePath)
	case config.BackendPostgres:
		return storage.OpenPostgres(ctx, cfg.PostgresURL)
	case config.BackendMemory:
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
