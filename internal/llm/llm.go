// Package llm is the boundary to the remote chat-completion service.
package llm

import (
	"context"

	"robopilot/internal/models"
)

// Request is one chat-completion call.
type Request struct {
	Model           string
	Messages        []models.Message
	Tools           []models.ToolSpec
	MaxOutputTokens int
}

// Response carries the assistant message (plain content or one tool call)
// and the usage the service reported.
type Response struct {
	Message      models.Message
	Usage        models.Usage
	FinishReason string
}

// Completer sends a request and returns the model's reply. Failures are
// returned as *ProviderError where the cause is known.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
