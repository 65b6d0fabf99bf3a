// Package openai provides a provider adapter for the OpenAI Chat
// Completions API. It adapts llmrelay's normalized Request/Response
// structures into the SDK's message format and back.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hupe1980/llmrelay/core"
	"github.com/hupe1980/llmrelay/provider"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Options configure the OpenAI provider adapter.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
}

// Provider wraps the OpenAI Chat Completions API behind the generic provider.Provider interface.
type Provider struct {
	client *openai.Client
	opts   Options
}

// Compile-time interface assertion.
var _ provider.Provider = (*Provider)(nil)

// New creates a new OpenAI provider using the official client
func New(optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := openai.NewClient(clientOpts...)
	return &Provider{client: &client, opts: opts}
}

// NewFromClient creates a new OpenAI provider from an existing client
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

// Invoke implements a single blocking Chat Completions call. Every failure
// is converted into a classified *provider.Error; a 429 from the vendor is
// reported as FailureRateLimited so the dispatcher can log it as throttling.
func (p *Provider) Invoke(ctx context.Context, req provider.Request) (*provider.Response, error) {
	if len(req.Messages) == 0 {
		return nil, provider.NewError(core.ProviderOpenAI, provider.FailureOther, fmt.Errorf("no messages provided"))
	}

	params := p.buildParams(req)

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, provider.NewError(core.ProviderOpenAI, provider.FailureOther, fmt.Errorf("no choices returned"))
	}

	return &provider.Response{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: &core.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// buildParams assembles the Chat Completions request, letting per-call
// options override the adapter defaults.
func (p *Provider) buildParams(req provider.Request) openai.ChatCompletionNewParams {
	model := p.opts.Model
	if m := req.Options.ModelFor(core.ProviderOpenAI); m != "" {
		model = m
	}
	maxTokens := p.opts.MaxCompletionTokens
	if req.Options.MaxTokens > 0 {
		maxTokens = req.Options.MaxTokens
	}
	temperature := p.opts.Temperature
	if req.Options.Temperature != nil {
		temperature = *req.Options.Temperature
	}

	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req.Messages),
		Model:               model,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	}

	// Recognized pass-through options; unknown keys are ignored.
	if v, ok := req.Options.Extra["top_p"].(float64); ok {
		params.TopP = openai.Float(v)
	}
	if v, ok := req.Options.Extra["presence_penalty"].(float64); ok {
		params.PresencePenalty = openai.Float(v)
	}
	if v, ok := req.Options.Extra["frequency_penalty"].(float64); ok {
		params.FrequencyPenalty = openai.Float(v)
	}

	return params
}

// buildMessages converts llmrelay messages into OpenAI chat messages.
func buildMessages(messages []core.Message) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	for _, m := range messages {
		if m.Content == "" {
			continue
		}
		switch m.Role {
		case core.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case core.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			// Treat unknown roles as user
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// classify maps SDK errors onto the provider failure taxonomy using the
// structured status code when present, falling back to marker sniffing.
func classify(err error) *provider.Error {
	var apierr *openai.Error
	if errors.As(err, &apierr) && apierr.StatusCode == http.StatusTooManyRequests {
		return provider.NewError(core.ProviderOpenAI, provider.FailureRateLimited, fmt.Errorf("openai api error: %w", err))
	}
	return provider.Classify(core.ProviderOpenAI, fmt.Errorf("openai api error: %w", err))
}

// Info returns metadata describing this OpenAI provider implementation.
func (p *Provider) Info() provider.Info {
	return provider.Info{
		ID:           core.ProviderOpenAI,
		DefaultModel: p.opts.Model,
	}
}
