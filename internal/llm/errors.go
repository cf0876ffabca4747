package llm

import "fmt"

// ProviderError represents a non-success response from the completion
// endpoint.
type ProviderError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("completion provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("completion provider returned status %d: %s", e.StatusCode, e.Body)
}
