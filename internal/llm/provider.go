package llm

import "context"

// Provider is the interface every upstream chat backend implements.
type Provider interface {
	// Complete sends a prompt and returns a completion.
	Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error)
	// Name returns the provider identifier (e.g. "openai", "echo").
	Name() string
}
