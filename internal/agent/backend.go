package agent

import (
	"context"

	"github.com/ashureev/newsdesk/internal/domain"
)

// Backend defines the interface for model inference.
type Backend interface {
	// Run generates a reply for messages using role's instructions. The
	// model may call any of tools zero or more times before answering.
	// A failing tool aborts the run with a *ToolError.
	Run(ctx context.Context, role Role, tools []Tool, messages []domain.Message) (*Response, error)

	// Model returns the model identifier used for generation.
	Model() string
}

// Ensure OpenAIBackend implements Backend.
var _ Backend = (*OpenAIBackend)(nil)
