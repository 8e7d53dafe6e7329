package llm

import "context"

// EchoProviderName is the registry name of EchoProvider.
const EchoProviderName = "echo"

// EchoProvider answers with the last user message. It needs no network and
// backs the relay when no upstream is configured.
type EchoProvider struct{}

// NewEchoProvider returns an EchoProvider.
func NewEchoProvider() *EchoProvider { return &EchoProvider{} }

func (e *EchoProvider) Name() string { return EchoProviderName }

func (e *EchoProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model := EchoProviderName
	if opts != nil && opts.Model != "" {
		model = opts.Model
	}
	return &Response{
		Content:    prompt.LastUserMessage(),
		Model:      model,
		StopReason: "stop",
	}, nil
}
