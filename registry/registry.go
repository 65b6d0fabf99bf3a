// Package registry builds the immutable set of provider handles the
// dispatcher iterates over. Construction never fails: a provider with a
// missing credential or a failing constructor is recorded as unavailable
// with its reason, and unavailability only surfaces when a call is actually
// dispatched. After New returns, the registry is never mutated, which makes
// it safe for concurrent reads by in-flight calls.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hupe1980/llmrelay/core"
	"github.com/hupe1980/llmrelay/logging"
	"github.com/hupe1980/llmrelay/provider"
	"github.com/hupe1980/llmrelay/provider/anthropic"
	"github.com/hupe1980/llmrelay/provider/openai"
)

// ErrNoCredential marks a provider that was skipped because no API key was
// supplied for it.
var ErrNoCredential = errors.New("no api key configured")

// ErrUnknownProvider marks a declared primary that matches neither a
// built-in identity nor an injected provider.
var ErrUnknownProvider = errors.New("unknown provider")

// Credentials holds the API keys for the built-in providers. Sourcing them
// from the process environment is the config package's job; the registry
// only consumes explicit values.
type Credentials struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
}

// Handle is the registry's record of one configured provider: its identity,
// whether it initialized with a usable client, and the capability entry
// point. Handles are created once at construction and never mutated.
type Handle struct {
	ID        core.ProviderID
	Provider  provider.Provider // nil when unavailable
	Available bool
	Reason    error // why the provider is unavailable
}

// Builder constructs a provider capability from an API key. Overridable per
// identity so tests can simulate construction failures and callers can swap
// adapter defaults.
type Builder func(apiKey string) (provider.Provider, error)

// Options configures registry construction.
type Options struct {
	// Primary is the provider attempted first on every call.
	Primary core.ProviderID
	// Credentials supplies API keys for the built-in adapters.
	Credentials Credentials
	// Providers injects ready-made capabilities keyed by identity. An
	// injected provider wins over credential-based construction and may add
	// vendors beyond the built-in set.
	Providers map[core.ProviderID]provider.Provider
	// Builders overrides how built-in providers are constructed from their
	// credential. Defaults build the bundled SDK adapters.
	Builders map[core.ProviderID]Builder
	// Logger receives initialization events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Registry is the immutable mapping from provider identity to handle plus
// the declared primary and the fixed attempt order.
type Registry struct {
	primary core.ProviderID
	order   []core.ProviderID
	handles map[core.ProviderID]Handle
}

func defaultBuilders() map[core.ProviderID]Builder {
	return map[core.ProviderID]Builder{
		core.ProviderAnthropic: func(apiKey string) (provider.Provider, error) {
			return anthropic.New(func(o *anthropic.Options) { o.APIKey = apiKey }), nil
		},
		core.ProviderOpenAI: func(apiKey string) (provider.Provider, error) {
			return openai.New(func(o *openai.Options) { o.APIKey = apiKey }), nil
		},
	}
}

// New builds a registry from credentials and injected providers. Exactly one
// identity ends up primary (ProviderAnthropic when unset). The attempt order
// is the built-in declared order followed by extra injected identities in
// lexical order, with the primary moved to the front.
func New(optFns ...func(o *Options)) *Registry {
	opts := Options{
		Primary: core.ProviderAnthropic,
		Logger:  logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	builders := defaultBuilders()
	for id, b := range opts.Builders {
		builders[id] = b
	}

	handles := make(map[core.ProviderID]Handle)
	order := make([]core.ProviderID, 0, len(core.KnownProviders())+len(opts.Providers))

	for _, id := range core.KnownProviders() {
		handles[id] = buildHandle(id, credentialFor(id, opts.Credentials), opts.Providers[id], builders[id], opts.Logger)
		order = append(order, id)
	}

	// Extra injected identities beyond the built-in set, in lexical order
	// to keep the attempt order deterministic.
	var extras []core.ProviderID
	for id, p := range opts.Providers {
		if _, known := handles[id]; known || p == nil {
			continue
		}
		extras = append(extras, id)
	}
	sort.Slice(extras, func(i, j int) bool { return extras[i] < extras[j] })
	for _, id := range extras {
		handles[id] = Handle{ID: id, Provider: opts.Providers[id], Available: true}
		order = append(order, id)
		opts.Logger.Info("Provider registered", "provider", id.String())
	}

	if _, ok := handles[opts.Primary]; !ok {
		// A primary that matches nothing still gets a handle so that status
		// and dispatch failures can name it.
		handles[opts.Primary] = Handle{ID: opts.Primary, Reason: ErrUnknownProvider}
		order = append(order, opts.Primary)
		opts.Logger.Warn("Primary provider is not configured", "provider", opts.Primary.String())
	}

	return &Registry{
		primary: opts.Primary,
		order:   orderWithPrimaryFirst(order, opts.Primary),
		handles: handles,
	}
}

func credentialFor(id core.ProviderID, creds Credentials) string {
	switch id {
	case core.ProviderAnthropic:
		return creds.AnthropicAPIKey
	case core.ProviderOpenAI:
		return creds.OpenAIAPIKey
	default:
		return ""
	}
}

// buildHandle initializes one built-in provider. Injection wins over
// credential construction; a missing credential or a constructor error is
// recorded on the handle instead of aborting the registry.
func buildHandle(id core.ProviderID, apiKey string, injected provider.Provider, builder Builder, logger logging.Logger) Handle {
	if injected != nil {
		logger.Info("Provider registered", "provider", id.String())
		return Handle{ID: id, Provider: injected, Available: true}
	}
	if apiKey == "" {
		logger.Warn("Provider skipped, no API key set", "provider", id.String())
		return Handle{ID: id, Reason: ErrNoCredential}
	}
	p, err := builder(apiKey)
	if err != nil {
		logger.Error("Provider initialization failed", "provider", id.String(), "error", err.Error())
		return Handle{ID: id, Reason: fmt.Errorf("initialize %s: %w", id, err)}
	}
	logger.Info("Provider initialized", "provider", id.String())
	return Handle{ID: id, Provider: p, Available: true}
}

func orderWithPrimaryFirst(order []core.ProviderID, primary core.ProviderID) []core.ProviderID {
	out := make([]core.ProviderID, 0, len(order))
	out = append(out, primary)
	for _, id := range order {
		if id != primary {
			out = append(out, id)
		}
	}
	return out
}

// Primary returns the declared primary provider identity.
func (r *Registry) Primary() core.ProviderID { return r.primary }

// Handle returns the handle for an identity and whether it is configured.
func (r *Registry) Handle(id core.ProviderID) (Handle, bool) {
	h, ok := r.handles[id]
	return h, ok
}

// Handles returns all configured handles in attempt order: primary first,
// then the remainder in their fixed declared order. The slice is a copy;
// callers cannot mutate registry state through it.
func (r *Registry) Handles() []Handle {
	out := make([]Handle, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.handles[id])
	}
	return out
}

// Available returns the handles that initialized successfully, in attempt order.
func (r *Registry) Available() []Handle {
	var out []Handle
	for _, id := range r.order {
		if h := r.handles[id]; h.Available {
			out = append(out, h)
		}
	}
	return out
}

// Status reports construction-time availability per provider and the
// primary identity. Pure read over registry state; never triggers a live
// health check and never reflects call outcomes.
func (r *Registry) Status() core.Status {
	available := make(map[core.ProviderID]bool, len(r.handles))
	for id, h := range r.handles {
		available[id] = h.Available
	}
	return core.Status{Primary: r.primary, Available: available}
}
