package llm

import "context"

// Request is a single-turn completion request handed to a Provider.
type Request struct {
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float32
}

// Provider performs exactly one outbound completion call per Send.
// Failures must be returned as *CompletionError.
type Provider interface {
	Name() string
	DefaultModel() string
	Send(ctx context.Context, req Request) (string, error)
}

// Completer is what the pipeline depends on: prompt in, raw completion text out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
