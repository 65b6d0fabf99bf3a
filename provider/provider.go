package provider

import (
	"context"
	"fmt"

	"github.com/hupe1980/llmrelay/core"
)

// Request captures the normalized input forwarded to a provider. Messages is
// passed through verbatim; Options gaps are filled with adapter defaults.
type Request struct {
	Messages []core.Message   `json:"messages"`
	Options  core.CallOptions `json:"-"`
}

// Response is the successful result of one provider invocation.
type Response struct {
	// Text is the assistant reply. Adapters return the first text block of
	// the vendor response; an empty Text is possible and is handled by the
	// dispatcher, not here.
	Text string `json:"text"`
	// Model is the concrete model identifier that served the request.
	Model string `json:"model"`
	// Usage carries token statistics when the vendor reports them.
	Usage *core.TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a provider implementation.
type Info struct {
	ID           core.ProviderID `json:"id"`
	DefaultModel string          `json:"default_model"`
}

// Provider is the uniform capability each vendor integration implements.
// Invoke performs one blocking network call; implementations must honor ctx
// cancellation and must return failures as *Error values, never as raw SDK
// errors or panics.
type Provider interface {
	Invoke(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the provider implementation.
	Info() Info
}

// MockProvider is a lightweight in-memory Provider useful for tests & examples.
type MockProvider struct {
	info      Info
	responses map[string]string
	failure   *Error
}

// NewMockProvider constructs a MockProvider with canned responses.
func NewMockProvider(id core.ProviderID, defaultModel string) *MockProvider {
	return &MockProvider{
		info:      Info{ID: id, DefaultModel: defaultModel},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockProvider) AddResponse(prompt, response string) { m.responses[prompt] = response }

// FailWith makes every subsequent Invoke return the given classified failure.
func (m *MockProvider) FailWith(kind FailureKind, cause error) {
	m.failure = NewError(m.info.ID, kind, cause)
}

// Invoke implements Provider; replays the canned response for the last
// message, or a generic echo when none was registered.
func (m *MockProvider) Invoke(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError(m.info.ID, FailureOther, err)
	}
	if m.failure != nil {
		return nil, m.failure
	}
	if len(req.Messages) == 0 {
		return nil, NewError(m.info.ID, FailureOther, fmt.Errorf("no messages provided"))
	}
	last := req.Messages[len(req.Messages)-1].Content
	text, ok := m.responses[last]
	if !ok {
		text = fmt.Sprintf("Mock response to: %s", last)
	}
	model := req.Options.ModelFor(m.info.ID)
	if model == "" {
		model = m.info.DefaultModel
	}
	return &Response{Text: text, Model: model}, nil
}

// Info implements the Provider interface.
func (m *MockProvider) Info() Info { return m.info }
