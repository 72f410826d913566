package interfaces

import "context"

// CompletionRequest is a provider-agnostic single-turn completion
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Model        string  // Provider detected from prefix; empty uses the default provider
	Temperature  float32 // <= 0 uses the provider default
	MaxTokens    int
	JSON         bool // Ask the provider for a JSON object response
}

// TextCompletionService produces text from a prompt
type TextCompletionService interface {
	Complete(ctx context.Context, request *CompletionRequest) (string, error)
}
