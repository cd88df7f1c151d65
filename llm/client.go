// Package llm provides a uniform chat interface over local and cloud model
// providers.
//
// A Client accepts normalized Messages and returns the provider's native
// response envelope; GetText extracts the completion text without the caller
// knowing which provider produced it. Providers: Ollama (local), OpenRouter,
// Anthropic, and Gemini.
package llm

import (
	"context"
	"errors"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompleteOptions tunes a single completion call.
type CompleteOptions struct {
	// Model overrides the client's configured model when non-empty.
	Model string

	// Temperature controls sampling randomness. Zero means the default of
	// 0.7; callers wanting greedy decoding should use a small positive
	// value such as 0.01.
	Temperature float64
}

const defaultTemperature = 0.7

func (o CompleteOptions) temperature() float64 {
	if o.Temperature == 0 {
		return defaultTemperature
	}
	return o.Temperature
}

// ErrMissingCredentials is returned by New when the selected provider needs
// an API key the configuration does not provide.
var ErrMissingCredentials = errors.New("missing LLM credentials")

// ErrEmptyResponse is returned when a provider answers without any content.
var ErrEmptyResponse = errors.New("empty LLM response")

// Client is a chat-completion provider.
//
// Complete returns the provider's native response envelope so callers that
// need provider-specific fields can type-assert it; everyone else passes it
// straight to GetText.
type Client interface {
	Complete(ctx context.Context, msgs []Message, opts CompleteOptions) (any, error)

	// Model returns the default model name, for logs and response
	// attribution.
	Model() string

	// GetText extracts the completion text from a Complete response.
	// Returns "" for a foreign or nil response value.
	GetText(resp any) string

	// HealthCheck reports whether the provider is reachable and ready.
	HealthCheck(ctx context.Context) bool

	Close() error
}
