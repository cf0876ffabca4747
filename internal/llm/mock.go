package llm

import (
	"context"
	"fmt"
	"sync"
)

// Mock is an in-process LLM used for local runs and tests. It echoes the last
// user message so conversations stay inspectable without a provider.
type Mock struct {
	mu    sync.Mutex
	calls int

	// Reply, when set, overrides the echo behavior.
	Reply func(messages []Message) (string, error)
}

// NewMock creates a mock completion client.
func NewMock() *Mock {
	return &Mock{}
}

// Complete implements LLM.
func (m *Mock) Complete(_ context.Context, messages []Message) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.Reply != nil {
		return m.Reply(messages)
	}

	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return fmt.Sprintf("You said: %s", messages[i].Content), nil
		}
	}
	return "Hello! How can I help?", nil
}

// Calls returns how many completions were requested.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
