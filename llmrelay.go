// Package llmrelay dispatches chat requests to one of several
// interchangeable LLM providers and transparently substitutes a backup
// provider when the primary fails or is rate-limited. Most applications
// interact with this package by:
//  1. Building a registry.Registry from credentials (explicit, or via
//     config.CredentialsFromEnv) and a declared primary provider
//  2. Creating a Client via New() (optionally injecting a structured logger)
//  3. Calling Call() with a conversation and optional per-call parameters
//
// Each call walks the registry's fixed attempt order sequentially: the
// primary first, then the remaining configured providers. The first provider
// that returns non-empty text wins and is named in the Result; exhaustion
// surfaces a single *AllFailedError naming every attempted provider. All
// defaults are safe for local development and testing; production
// deployments typically supply a structured logger and a call timeout.
package llmrelay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/llmrelay/core"
	"github.com/hupe1980/llmrelay/logging"
	"github.com/hupe1980/llmrelay/provider"
	"github.com/hupe1980/llmrelay/registry"
)

// ErrNoMessages is returned when Call is invoked with an empty conversation.
var ErrNoMessages = errors.New("llmrelay: messages must not be empty")

// errEmptyResponse marks a provider call that succeeded at the transport
// level but produced no text. Treated like a failure: the dispatcher does
// not distinguish "returned nothing" from "errored".
var errEmptyResponse = errors.New("empty response")

// Options configures the Client.
type Options struct {
	// Logger receives per-attempt and terminal dispatch events. Defaults to
	// NoOpLogger; inject logging.NewSlogLogger or any custom sink to observe
	// failover decisions and failure classifications.
	Logger logging.Logger

	// MaxRetries sizes a future per-provider retry policy. The dispatcher
	// currently performs exactly one attempt per provider per call; the
	// value is accepted and kept so configurations stay stable when retry
	// semantics land.
	MaxRetries int

	// CallTimeout bounds each Call end to end. Zero disables the deadline;
	// timeout behavior then rests entirely with the vendor clients. A timed
	// out attempt is classified as an "other" failure and falls through.
	CallTimeout time.Duration
}

// Client is the failover dispatcher. It holds no mutable state across calls;
// the immutable registry built at construction is the only shared data, so a
// single Client is safe for concurrent use.
type Client struct {
	registry *registry.Registry
	opts     Options
}

// New creates a Client over an existing registry.
func New(reg *registry.Registry, optFns ...func(o *Options)) *Client {
	opts := Options{
		Logger:     logging.NoOpLogger{},
		MaxRetries: 2,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Client{registry: reg, opts: opts}
}

// Result is the successful outcome of a dispatched call: the response text
// and the provider that produced it.
type Result struct {
	Text     string           `json:"text"`
	Provider core.ProviderID  `json:"provider"`
	Model    string           `json:"model"`
	Usage    *core.TokenUsage `json:"usage,omitempty"`
}

// AllFailedError is the aggregate dispatch failure raised when every
// configured provider was attempted and none returned usable text. Causes
// retains the classified per-provider failure for observability.
type AllFailedError struct {
	Attempted []core.ProviderID
	Causes    map[core.ProviderID]error
}

// Error implements the error interface.
func (e *AllFailedError) Error() string {
	names := make([]string, len(e.Attempted))
	for i, id := range e.Attempted {
		names[i] = id.String()
	}
	return fmt.Sprintf("llmrelay: all providers failed: %s", strings.Join(names, ", "))
}

// Unwrap exposes the per-provider causes in attempt order for errors.Is /
// errors.As inspection.
func (e *AllFailedError) Unwrap() []error {
	out := make([]error, 0, len(e.Attempted))
	for _, id := range e.Attempted {
		if cause, ok := e.Causes[id]; ok && cause != nil {
			out = append(out, cause)
		}
	}
	return out
}

// Call dispatches the conversation to the first usable provider. The attempt
// order is primary first, then the remaining configured providers in their
// fixed declared order. Unavailable providers are recorded as causes without
// being invoked; a provider failure or an empty response advances to the
// next candidate. On success the sequence short-circuits immediately, so at
// most one provider produces the result.
func (c *Client) Call(ctx context.Context, messages []core.Message, optFns ...func(o *core.CallOptions)) (*Result, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	var options core.CallOptions
	for _, fn := range optFns {
		fn(&options)
	}

	if c.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.CallTimeout)
		defer cancel()
	}

	callID := uuid.NewString()
	start := time.Now()
	handles := c.registry.Handles()

	attempted := make([]core.ProviderID, 0, len(handles))
	causes := make(map[core.ProviderID]error, len(handles))

	for _, h := range handles {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("llmrelay: call aborted: %w", err)
		}

		attempted = append(attempted, h.ID)

		if !h.Available {
			causes[h.ID] = provider.NewError(h.ID, provider.FailureUnavailable, h.Reason)
			c.opts.Logger.Debug("Skipping unavailable provider",
				"call_id", callID, "provider", h.ID.String())
			continue
		}

		c.opts.Logger.Info("Trying provider",
			"call_id", callID, "provider", h.ID.String())

		attemptStart := time.Now()
		resp, err := h.Provider.Invoke(ctx, provider.Request{Messages: messages, Options: options})
		dur := time.Since(attemptStart)

		if err != nil {
			pe := provider.Classify(h.ID, err)
			causes[h.ID] = pe
			c.opts.Logger.Warn("Provider attempt failed",
				"call_id", callID, "provider", h.ID.String(),
				"failure_kind", pe.Kind.String(), "duration", dur, "error", pe.Error())
			continue
		}

		if resp.Text == "" {
			causes[h.ID] = provider.NewError(h.ID, provider.FailureOther, errEmptyResponse)
			c.opts.Logger.Warn("Provider returned empty response",
				"call_id", callID, "provider", h.ID.String(), "duration", dur)
			continue
		}

		c.opts.Logger.Info("Provider succeeded",
			"call_id", callID, "provider", h.ID.String(),
			"model", resp.Model, "duration", dur)

		return &Result{
			Text:     resp.Text,
			Provider: h.ID,
			Model:    resp.Model,
			Usage:    resp.Usage,
		}, nil
	}

	err := &AllFailedError{Attempted: attempted, Causes: causes}
	c.opts.Logger.Error("All providers failed",
		"call_id", callID, "attempted", len(attempted), "duration", time.Since(start))
	return nil, err
}

// Status reports which providers are currently usable and which one is
// primary. Pure read over the registry snapshot taken at construction; no
// network calls and no dependency on prior Call outcomes.
func (c *Client) Status() core.Status {
	return c.registry.Status()
}
