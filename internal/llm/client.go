package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBodyBytes caps how much of a failed response body is read for the
// error message.
const maxErrorBodyBytes = 4096

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// ClientConfig holds the settings for a completion client.
type ClientConfig struct {
	// BaseURL is the provider root, e.g. "https://api.example.com/v1".
	BaseURL string
	// APIKey is sent as a bearer credential.
	APIKey string
	// Model names the completion model to invoke.
	Model string
	// HTTPClient overrides the transport. The default client carries no
	// timeout; an unresponsive provider holds only the calling actor's turn,
	// bounded by the caller's context.
	HTTPClient *http.Client
}

// NewClient creates a completion client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}
}

// completionRequest is the provider wire format for a completion call.
type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// completionResponse is the provider wire format for a completion result.
type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Complete implements LLM against the chat-completions endpoint.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", &ProviderError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	var result completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("completion response contained no choices")
	}

	// An empty completion is recorded as-is, not treated as a failure.
	return result.Choices[0].Message.Content, nil
}
