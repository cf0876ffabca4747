// Package config loads environment configuration for the recall service.
package config

import (
	"fmt"
	"os"
	"time"
)

// Store backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all environment-driven settings. The core behavior only
// depends on the LLM credential; everything else has local defaults.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string

	// StoreBackend selects sqlite, postgres or memory.
	StoreBackend string
	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string
	// PostgresURL is the connection string for the postgres backend.
	PostgresURL string

	// LLMBaseURL is the completion provider root.
	LLMBaseURL string
	// LLMAPIKey is the provider credential.
	LLMAPIKey string
	// LLMModel names the completion model.
	LLMModel string
	// UseMockLLM replaces the provider with the in-process mock.
	UseMockLLM bool

	// PollInterval is the scheduler's due-task poll period.
	PollInterval time.Duration

	// Debug enables debug logging.
	Debug bool
}

// Load reads all environment variables and validates the combination.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:         getEnv("RECALL_ADDR", ":8080"),
		StoreBackend: getEnv("RECALL_STORE_BACKEND", BackendSQLite),
		SQLitePath:   getEnv("RECALL_SQLITE_PATH", "recall.db"),
		PostgresURL:  getEnv("RECALL_POSTGRES_URL", ""),
		LLMBaseURL:   getEnv("RECALL_LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:    getEnv("RECALL_LLM_API_KEY", ""),
		LLMModel:     getEnv("RECALL_LLM_MODEL", "gpt-4o-mini"),
		UseMockLLM:   getBoolEnv("RECALL_USE_MOCK_LLM", false),
		Debug:        getBoolEnv("RECALL_DEBUG", false),
	}

	interval, err := getDurationEnv("RECALL_POLL_INTERVAL", time.Second)
	if err != nil {
		return nil, err
	}
	cfg.PollInterval = interval

	switch cfg.StoreBackend {
	case BackendSQLite, BackendMemory:
	case BackendPostgres:
		if cfg.PostgresURL == "" {
			return nil, fmt.Errorf("RECALL_POSTGRES_URL must be set for the postgres backend")
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if !cfg.UseMockLLM && cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("RECALL_LLM_API_KEY must be set unless RECALL_USE_MOCK_LLM is enabled")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "TRUE"
}

func getDurationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
