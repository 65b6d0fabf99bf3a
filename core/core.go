package core

// ProviderID identifies one vendor integration. The set is open: the two
// built-in identities below cover the bundled adapters, but callers may
// register additional providers under their own IDs.
type ProviderID string

const (
	// ProviderAnthropic is the Anthropic Messages API integration.
	ProviderAnthropic ProviderID = "anthropic"
	// ProviderOpenAI is the OpenAI Chat Completions integration.
	ProviderOpenAI ProviderID = "openai"
)

// String returns the identifier as a plain string.
func (p ProviderID) String() string { return string(p) }

// KnownProviders returns the built-in provider identities in their fixed
// declared order. This order (after moving the primary to the front) is the
// attempt order of the dispatcher, so it must stay deterministic.
func KnownProviders() []ProviderID {
	return []ProviderID{ProviderAnthropic, ProviderOpenAI}
}

// Role labels the author of a chat message.
type Role string

const (
	// RoleSystem marks instructions for the model.
	RoleSystem Role = "system"
	// RoleUser marks end-user input.
	RoleUser Role = "user"
	// RoleAssistant marks prior model output.
	RoleAssistant Role = "assistant"
)

// Message is a single role/content pair. An ordered slice of messages forms
// a conversation; the dispatcher forwards the slice verbatim to whichever
// provider is attempted.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewSystemMessage builds a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage builds a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage builds an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// CallOptions carries per-call generation parameters. Zero values mean
// "unset"; each provider adapter fills gaps with its own defaults, the
// dispatcher never does.
type CallOptions struct {
	// Model overrides the attempted provider's default model identifier.
	Model string
	// ProviderModels overrides Model for specific providers, allowing a
	// different model per vendor in a single call (e.g. a Claude model for
	// anthropic and a GPT model for openai).
	ProviderModels map[ProviderID]string
	// MaxTokens caps the response length. 0 leaves the provider default.
	MaxTokens int64
	// Temperature controls sampling randomness. Nil leaves the provider
	// default; use Float64 to set an explicit value including 0.
	Temperature *float64
	// Extra holds provider-specific pass-through options. Opaque to the
	// dispatcher; adapters pick out the keys they understand.
	Extra map[string]any
}

// ModelFor resolves the model identifier to use for a provider: the
// per-provider override wins over the generic override; empty means the
// adapter default applies.
func (o CallOptions) ModelFor(id ProviderID) string {
	if m, ok := o.ProviderModels[id]; ok && m != "" {
		return m
	}
	return o.Model
}

// Float64 returns a pointer to v, for use with CallOptions.Temperature.
func Float64(v float64) *float64 { return &v }

// TokenUsage captures token usage statistics reported by a provider.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Status is a read-only snapshot of provider availability taken at registry
// construction time. It never reflects live health checks or call outcomes.
type Status struct {
	// Primary is the provider attempted first on every call.
	Primary ProviderID `json:"primary_provider"`
	// Available maps each configured provider to whether it initialized
	// with a usable client.
	Available map[ProviderID]bool `json:"available"`
}
