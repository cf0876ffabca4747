package server_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/recall/internal/agent"
	"github.com/Veraticus/recall/internal/llm"
	"github.com/Veraticus/recall/internal/server"
	"github.com/Veraticus/recall/internal/storage"
)

// captureScheduler records the last registration.
type captureScheduler struct {
	identity string
	callback string
	payload  json.RawMessage
	fireTime time.Time
	err      error
}

func (c *captureScheduler) Register(_ context.Context, identity, callback string, payload json.RawMessage, fireTime time.Time) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.identity = identity
	c.callback = callback
	c.payload = payload
	c.fireTime = fireTime
	return "task-1", nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, completer llm.LLM, sched agent.ReminderScheduler) (http.Handler, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	if completer == nil {
		completer = llm.NewMock()
	}
	if sched == nil {
		sched = &captureScheduler{}
	}
	registry := agent.NewRegistry(agent.RegistryConfig{
		Store:     store,
		LLM:       completer,
		Scheduler: sched,
	})
	return server.New(registry, testLogger(), nil), store
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestServer_ChatReturnsResponse(t *testing.T) {
	completer := llm.NewMock()
	completer.Reply = func([]llm.Message) (string, error) { return "Hi Alice!", nil }
	handler, store := newTestServer(t, completer, nil)

	rec := doJSON(t, handler, http.MethodPost, "/", `{"id":"alice","message":"Hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["response"] != "Hi Alice!" {
		t.Errorf("unexpected response body: %v", body)
	}

	state, err := store.LoadState(context.Background(), "alice")
	if err != nil {
		t.Fatalf("failed to load state: %v", err)
	}
	if len(state.History) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(state.History))
	}
	if state.History[0].Content != "Hello" || state.History[1].Content != "Hi Alice!" {
		t.Errorf("unexpected history: %+v", state.History)
	}
}

func TestServer_RemindReturnsScheduledID(t *testing.T) {
	sched := &captureScheduler{}
	handler, store := newTestServer(t, nil, sched)

	rec := doJSON(t, handler, http.MethodPost, "/", `{"id":"alice","action":"remind","message":"Take a break","delay":60}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["scheduledId"] == "" {
		t.Errorf("expected a scheduledId, got %v", body)
	}

	if sched.identity != "alice" || sched.callback != agent.CallbackSendReminder {
		t.Errorf("unexpected registration: identity=%q callback=%q", sched.identity, sched.callback)
	}

	// Registration leaves history untouched.
	state, err := store.LoadState(context.Background(), "alice")
	if err != nil {
		t.Fatalf("failed to load state: %v", err)
	}
	if len(state.History) != 0 {
		t.Errorf("expected empty history, got %+v", state.History)
	}
}

func TestServer_MissingMessageIs400(t *testing.T) {
	handler, store := newTestServer(t, nil, nil)

	rec := doJSON(t, handler, http.MethodPost, "/", `{"id":"bob"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	state, err := store.LoadState(context.Background(), "bob")
	if err != nil {
		t.Fatalf("failed to load state: %v", err)
	}
	if len(state.History) != 0 {
		t.Errorf("expected bob's history to stay empty, got %+v", state.History)
	}
}

func TestServer_InvalidJSONIs400(t *testing.T) {
	handler, _ := newTestServer(t, nil, nil)

	rec := doJSON(t, handler, http.MethodPost, "/", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestServer_MissingIDIs400(t *testing.T) {
	handler, _ := newTestServer(t, nil, nil)

	rec := doJSON(t, handler, http.MethodPost, "/", `{"message":"Hello"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestServer_UnknownActionIs400(t *testing.T) {
	handler, _ := newTestServer(t, nil, nil)

	rec := doJSON(t, handler, http.MethodPost, "/", `{"id":"alice","action":"cancel","message":"Hello"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestServer_UpstreamFailureIs500(t *testing.T) {
	completer := llm.NewMock()
	completer.Reply = func([]llm.Message) (string, error) {
		return "", &llm.ProviderError{StatusCode: http.StatusBadGateway}
	}
	handler, _ := newTestServer(t, completer, nil)

	rec := doJSON(t, handler, http.MethodPost, "/", `{"id":"alice","message":"Hello"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestServer_NonPostIs405(t *testing.T) {
	handler, _ := newTestServer(t, nil, nil)

	rec := doJSON(t, handler, http.MethodGet, "/", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestServer_UnknownPathIs404(t *testing.T) {
	handler, _ := newTestServer(t, nil, nil)

	rec := doJSON(t, handler, http.MethodPost, "/nope", `{"id":"alice","message":"Hello"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_Healthz(t *testing.T) {
	handler, _ := newTestServer(t, nil, nil)

	rec := doJSON(t, handler, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("expected body ok, got %q", rec.Body.String())
	}
}

func TestServer_RequestIDHeaderIsSet(t *testing.T) {
	handler, _ := newTestServer(t, nil, nil)

	rec := doJSON(t, handler, http.MethodGet, "/healthz", "")
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected an X-Request-Id header")
	}
}
