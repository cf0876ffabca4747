// Package llm provides the text-completion client used by conversational actors.
package llm

import (
	"context"
)

// Message is a single entry in a conversation, in the shape the completion
// endpoint consumes: role and content only, no extra metadata.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// LLM abstracts the text-completion provider. Implementations are stateless:
// the full ordered history is supplied on every call, and no retries are
// performed internally.
type LLM interface {
	// Complete sends the ordered message history and returns the generated
	// reply. An empty reply is valid and must be passed through unchanged.
	Complete(ctx context.Context, messages []Message) (string, error)
}
