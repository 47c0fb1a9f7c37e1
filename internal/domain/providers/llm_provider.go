package providers

import "context"

// LLMMessage is one chat message sent to a model.
type LLMMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMRequest is a provider-neutral completion request.
type LLMRequest struct {
	System      string
	Messages    []LLMMessage
	Temperature float64
	MaxTokens   int
}

// LLMProvider renders text from a prompt.
type LLMProvider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Complete returns the generated text. An empty string is an error.
	Complete(ctx context.Context, req LLMRequest) (string, error)
}
