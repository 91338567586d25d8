package llmclient

import "context"

// Request is a single text-generation call.
type Request struct {
	// Model overrides the client's default model when non-empty.
	Model           string
	Prompt          string
	MaxOutputTokens int
	Temperature     float32
}

// Response is the raw model output.
type Response struct {
	Text  string
	Model string
}

// Client defines the interface for text-generation providers. Cross-cutting
// concerns (logging, usage accounting) are applied via middleware.
type Client interface {
	Name() string
	Generate(ctx context.Context, req Request) (Response, error)
	Close() error
}
