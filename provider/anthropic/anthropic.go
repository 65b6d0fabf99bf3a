// Package anthropic provides a provider adapter for the Anthropic Claude API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/llmrelay/core"
	"github.com/hupe1980/llmrelay/provider"
)

// Options configures the Anthropic provider adapter (model id, temperature,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Provider wraps the Anthropic Messages API behind the generic provider.Provider interface.
type Provider struct {
	client *anthropic.Client
	opts   Options
}

// Compile-time interface assertion.
var _ provider.Provider = (*Provider)(nil)

// New creates a new Anthropic provider using the official client
func New(optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   1024,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Provider{
		client: &client,
		opts:   opts,
	}
}

// NewFromClient creates a new Anthropic provider from an existing client
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   1024,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Provider{
		client: client,
		opts:   opts,
	}
}

// Invoke implements a single blocking Messages API call. Every failure is
// converted into a classified *provider.Error; a 429 from the vendor is
// reported as FailureRateLimited so the dispatcher can log it as throttling.
func (p *Provider) Invoke(ctx context.Context, req provider.Request) (*provider.Response, error) {
	if len(req.Messages) == 0 {
		return nil, provider.NewError(core.ProviderAnthropic, provider.FailureOther, fmt.Errorf("no messages provided"))
	}

	params := p.buildParams(req)

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}

	return &provider.Response{
		Text:  text.String(),
		Model: string(resp.Model),
		Usage: &core.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

// buildParams assembles the Messages API request, letting per-call options
// override the adapter defaults and extracting system messages into the
// dedicated system field.
func (p *Provider) buildParams(req provider.Request) anthropic.MessageNewParams {
	model := p.opts.Model
	if m := req.Options.ModelFor(core.ProviderAnthropic); m != "" {
		model = anthropic.Model(m)
	}
	maxTokens := p.opts.MaxTokens
	if req.Options.MaxTokens > 0 {
		maxTokens = req.Options.MaxTokens
	}
	temperature := p.opts.Temperature
	if req.Options.Temperature != nil {
		temperature = *req.Options.Temperature
	}

	params := anthropic.MessageNewParams{
		Model:       model,
		Messages:    buildMessages(req.Messages),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
	}

	if systemBlocks := extractSystemMessage(req.Messages); len(systemBlocks) > 0 {
		params.System = systemBlocks
	}

	// Recognized pass-through options; unknown keys are ignored.
	if v, ok := req.Options.Extra["top_p"].(float64); ok {
		params.TopP = anthropic.Float(v)
	}
	if v, ok := req.Options.Extra["stop_sequences"].([]string); ok {
		params.StopSequences = v
	}

	return params
}

// buildMessages converts llmrelay messages to Anthropic message format.
func buildMessages(messages []core.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam

	for _, m := range messages {
		if m.Content == "" || m.Role == core.RoleSystem {
			continue // System messages handled separately
		}

		switch m.Role {
		case core.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			// Treat unknown roles as user
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	return out
}

// extractSystemMessage extracts system message blocks
func extractSystemMessage(messages []core.Message) []anthropic.TextBlockParam {
	var systemBlocks []anthropic.TextBlockParam

	for _, m := range messages {
		if m.Role == core.RoleSystem && m.Content != "" {
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{
				Text: m.Content,
			})
		}
	}

	return systemBlocks
}

// classify maps SDK errors onto the provider failure taxonomy using the
// structured status code when present, falling back to marker sniffing.
func classify(err error) *provider.Error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) && apierr.StatusCode == http.StatusTooManyRequests {
		return provider.NewError(core.ProviderAnthropic, provider.FailureRateLimited, fmt.Errorf("anthropic api error: %w", err))
	}
	return provider.Classify(core.ProviderAnthropic, fmt.Errorf("anthropic api error: %w", err))
}

// Info returns metadata describing this Anthropic provider implementation.
func (p *Provider) Info() provider.Info {
	return provider.Info{
		ID:           core.ProviderAnthropic,
		DefaultModel: string(p.opts.Model),
	}
}
