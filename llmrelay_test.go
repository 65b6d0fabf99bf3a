package llmrelay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/llmrelay/core"
	"github.com/hupe1980/llmrelay/provider"
	"github.com/hupe1980/llmrelay/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// scriptedProvider records invocation order into a shared log so tests can
// assert the dispatcher's attempt sequence.
type scriptedProvider struct {
	id    core.ProviderID
	text  string
	err   error
	log   *[]core.ProviderID
	calls int
}

func (p *scriptedProvider) Invoke(ctx context.Context, req provider.Request) (*provider.Response, error) {
	p.calls++
	if p.log != nil {
		*p.log = append(*p.log, p.id)
	}
	if p.err != nil {
		return nil, p.err
	}
	return &provider.Response{Text: p.text, Model: "scripted-model"}, nil
}

func (p *scriptedProvider) Info() provider.Info {
	return provider.Info{ID: p.id, DefaultModel: "scripted-model"}
}

// recordingLogger captures log events so classification visibility can be
// asserted deterministically.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level string
	msg   string
	args  map[string]any
}

func (l *recordingLogger) record(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kv := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		if k, ok := args[i].(string); ok {
			kv[k] = args[i+1]
		}
	}
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: kv})
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *recordingLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }

func (l *recordingLogger) find(msg string) []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logEntry
	for _, e := range l.entries {
		if e.msg == msg {
			out = append(out, e)
		}
	}
	return out
}

func newTestRegistry(providers map[core.ProviderID]provider.Provider, primary core.ProviderID) *registry.Registry {
	return registry.New(func(o *registry.Options) {
		o.Primary = primary
		o.Providers = providers
	})
}

var question = []core.Message{core.NewUserMessage("What is 2+2?")}

func TestCall_PrimarySucceedsNoFallthrough(t *testing.T) {
	var order []core.ProviderID
	primary := &scriptedProvider{id: core.ProviderAnthropic, text: "4", log: &order}
	fallback := &scriptedProvider{id: core.ProviderOpenAI, text: "never", log: &order}

	client := New(newTestRegistry(map[core.ProviderID]provider.Provider{
		core.ProviderAnthropic: primary,
		core.ProviderOpenAI:    fallback,
	}, core.ProviderAnthropic))

	result, err := client.Call(context.Background(), question)
	require.NoError(t, err)
	assert.Equal(t, "4", result.Text)
	assert.Equal(t, core.ProviderAnthropic, result.Provider)
	assert.Equal(t, []core.ProviderID{core.ProviderAnthropic}, order)
	assert.Zero(t, fallback.calls)
}

func TestCall_PrimaryUnavailableFallbackWins(t *testing.T) {
	// Primary has no credential; only the fallback is injected.
	fallback := provider.NewMockProvider(core.ProviderOpenAI, "gpt-4o-mini")
	fallback.AddResponse("What is 2+2?", "4")

	client := New(newTestRegistry(map[core.ProviderID]provider.Provider{
		core.ProviderOpenAI: fallback,
	}, core.ProviderAnthropic))

	result, err := client.Call(context.Background(), question)
	require.NoError(t, err)
	assert.Equal(t, "4", result.Text)
	assert.Equal(t, core.ProviderOpenAI, result.Provider)
}

func TestCall_PrimaryFailsBeforeFallbackAttempted(t *testing.T) {
	var order []core.ProviderID
	primary := &scriptedProvider{
		id:  core.ProviderAnthropic,
		err: provider.NewError(core.ProviderAnthropic, provider.FailureOther, errors.New("boom")),
		log: &order,
	}
	fallback := &scriptedProvider{id: core.ProviderOpenAI, text: "hello", log: &order}

	client := New(newTestRegistry(map[core.ProviderID]provider.Provider{
		core.ProviderAnthropic: primary,
		core.ProviderOpenAI:    fallback,
	}, core.ProviderAnthropic))

	result, err := client.Call(context.Background(), question)
	require.NoError(t, err)
	assert.Equal(t, core.ProviderOpenAI, result.Provider)
	assert.Equal(t, []core.ProviderID{core.ProviderAnthropic, core.ProviderOpenAI}, order)
}

func TestCall_RateLimitedPrimaryClassificationPreserved(t *testing.T) {
	logger := &recordingLogger{}
	primary := &scriptedProvider{
		id:  core.ProviderAnthropic,
		err: provider.NewError(core.ProviderAnthropic, provider.FailureRateLimited, errors.New("quota exceeded")),
	}
	fallback := &scriptedProvider{id: core.ProviderOpenAI, text: "Hello"}

	client := New(newTestRegistry(map[core.ProviderID]provider.Provider{
		core.ProviderAnthropic: primary,
		core.ProviderOpenAI:    fallback,
	}, core.ProviderAnthropic), func(o *Options) {
		o.Logger = logger
	})

	result, err := client.Call(context.Background(), question)
	require.NoError(t, err)
	assert.Equal(t, "Hello", result.Text)
	assert.Equal(t, core.ProviderOpenAI, result.Provider)

	failures := logger.find("Provider attempt failed")
	require.Len(t, failures, 1)
	assert.Equal(t, "rate_limited", failures[0].args["failure_kind"])
	assert.Equal(t, "anthropic", failures[0].args["provider"])
}

func TestCall_NoProvidersAvailable(t *testing.T) {
	client := New(newTestRegistry(nil, core.ProviderAnthropic))

	_, err := client.Call(context.Background(), question)

	var allFailed *AllFailedError
	require.ErrorAs(t, err, &allFailed)
	assert.ElementsMatch(t,
		[]core.ProviderID{core.ProviderAnthropic, core.ProviderOpenAI},
		allFailed.Attempted)
	assert.Equal(t, provider.FailureUnavailable, provider.KindOf(allFailed.Causes[core.ProviderAnthropic]))
	assert.ErrorIs(t, err, registry.ErrNoCredential)
}

func TestCall_AllAvailableProvidersFailExactlyOnceEach(t *testing.T) {
	primary := &scriptedProvider{
		id:  core.ProviderAnthropic,
		err: provider.NewError(core.ProviderAnthropic, provider.FailureOther, errors.New("fault a")),
	}
	fallback := &scriptedProvider{
		id:  core.ProviderOpenAI,
		err: provider.NewError(core.ProviderOpenAI, provider.FailureOther, errors.New("fault b")),
	}

	client := New(newTestRegistry(map[core.ProviderID]provider.Provider{
		core.ProviderAnthropic: primary,
		core.ProviderOpenAI:    fallback,
	}, core.ProviderAnthropic))

	_, err := client.Call(context.Background(), question)

	var allFailed *AllFailedError
	require.ErrorAs(t, err, &allFailed)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
	assert.Len(t, allFailed.Causes, 2)
}

func TestCall_EmptyResponseFallsThrough(t *testing.T) {
	var order []core.ProviderID
	primary := &scriptedProvider{id: core.ProviderAnthropic, text: "", log: &order}
	fallback := &scriptedProvider{id: core.ProviderOpenAI, text: "filled in", log: &order}

	client := New(newTestRegistry(map[core.ProviderID]provider.Provider{
		core.ProviderAnthropic: primary,
		core.ProviderOpenAI:    fallback,
	}, core.ProviderAnthropic))

	result, err := client.Call(context.Background(), question)
	require.NoError(t, err)
	assert.Equal(t, "filled in", result.Text)
	assert.Equal(t, []core.ProviderID{core.ProviderAnthropic, core.ProviderOpenAI}, order)
}

func TestCall_EmptyMessagesRejected(t *testing.T) {
	client := New(newTestRegistry(nil, core.ProviderAnthropic))

	_, err := client.Call(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestCall_OpenAIPrimaryReordersAttempts(t *testing.T) {
	var order []core.ProviderID
	anthropicP := &scriptedProvider{
		id:  core.ProviderAnthropic,
		err: provider.NewError(core.ProviderAnthropic, provider.FailureOther, errors.New("down")),
		log: &order,
	}
	openaiP := &scriptedProvider{
		id:  core.ProviderOpenAI,
		err: provider.NewError(core.ProviderOpenAI, provider.FailureOther, errors.New("down")),
		log: &order,
	}

	client := New(newTestRegistry(map[core.ProviderID]provider.Provider{
		core.ProviderAnthropic: anthropicP,
		core.ProviderOpenAI:    openaiP,
	}, core.ProviderOpenAI))

	_, err := client.Call(context.Background(), question)
	require.Error(t, err)
	assert.Equal(t, []core.ProviderID{core.ProviderOpenAI, core.ProviderAnthropic}, order)
}

func TestCall_CanceledContextAbortsBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := &scriptedProvider{id: core.ProviderAnthropic, text: "never"}
	client := New(newTestRegistry(map[core.ProviderID]provider.Provider{
		core.ProviderAnthropic: primary,
	}, core.ProviderAnthropic))

	_, err := client.Call(ctx, question)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, primary.calls)
}

func TestCall_CallTimeoutClassifiedAsOtherFailure(t *testing.T) {
	logger := &recordingLogger{}
	slow := &scriptedSlowProvider{id: core.ProviderAnthropic, delay: 50 * time.Millisecond}

	client := New(newTestRegistry(map[core.ProviderID]provider.Provider{
		core.ProviderAnthropic: slow,
	}, core.ProviderAnthropic), func(o *Options) {
		o.Logger = logger
		o.CallTimeout = 5 * time.Millisecond
	})

	_, err := client.Call(context.Background(), question)
	require.Error(t, err)

	var allFailed *AllFailedError
	require.ErrorAs(t, err, &allFailed)
	assert.Equal(t, provider.FailureOther, provider.KindOf(allFailed.Causes[core.ProviderAnthropic]))
}

// scriptedSlowProvider blocks until ctx expires, simulating a hung vendor call.
type scriptedSlowProvider struct {
	id    core.ProviderID
	delay time.Duration
}

func (p *scriptedSlowProvider) Invoke(ctx context.Context, req provider.Request) (*provider.Response, error) {
	select {
	case <-ctx.Done():
		return nil, provider.Classify(p.id, ctx.Err())
	case <-time.After(p.delay):
		return &provider.Response{Text: "late"}, nil
	}
}

func (p *scriptedSlowProvider) Info() provider.Info {
	return provider.Info{ID: p.id, DefaultModel: "slow-model"}
}

func TestStatus_IndependentOfCallHistory(t *testing.T) {
	failing := &scriptedProvider{
		id:  core.ProviderAnthropic,
		err: provider.NewError(core.ProviderAnthropic, provider.FailureOther, errors.New("down")),
	}
	client := New(newTestRegistry(map[core.ProviderID]provider.Provider{
		core.ProviderAnthropic: failing,
	}, core.ProviderAnthropic))

	before := client.Status()
	_, err := client.Call(context.Background(), question)
	require.Error(t, err)
	after := client.Status()

	assert.Equal(t, before, after)
	assert.True(t, after.Available[core.ProviderAnthropic])
	assert.False(t, after.Available[core.ProviderOpenAI])
	assert.Equal(t, core.ProviderAnthropic, after.Primary)
}

func TestCall_ForwardsOptionsUniformly(t *testing.T) {
	captured := &capturingProvider{id: core.ProviderOpenAI, text: "ok"}
	client := New(newTestRegistry(map[core.ProviderID]provider.Provider{
		core.ProviderOpenAI: captured,
	}, core.ProviderOpenAI))

	_, err := client.Call(context.Background(), question, func(o *core.CallOptions) {
		o.MaxTokens = 512
		o.Temperature = core.Float64(0.2)
		o.ProviderModels = map[core.ProviderID]string{core.ProviderOpenAI: "gpt-4o"}
	})
	require.NoError(t, err)

	assert.Equal(t, int64(512), captured.req.Options.MaxTokens)
	require.NotNil(t, captured.req.Options.Temperature)
	assert.Equal(t, 0.2, *captured.req.Options.Temperature)
	assert.Equal(t, "gpt-4o", captured.req.Options.ModelFor(core.ProviderOpenAI))
	assert.Equal(t, question, captured.req.Messages)
}

// capturingProvider retains the last request for parameter assertions.
type capturingProvider struct {
	id   core.ProviderID
	text string
	req  provider.Request
}

func (p *capturingProvider) Invoke(ctx context.Context, req provider.Request) (*provider.Response, error) {
	p.req = req
	return &provider.Response{Text: p.text, Model: "captured-model"}, nil
}

func (p *capturingProvider) Info() provider.Info {
	return provider.Info{ID: p.id, DefaultModel: "captured-model"}
}

// MockCapability exercises the dispatcher against a testify mock, mirroring
// how downstream applications stub the capability boundary.
type MockCapability struct{ mock.Mock }

func (m *MockCapability) Invoke(ctx context.Context, req provider.Request) (*provider.Response, error) {
	args := m.Called(ctx, req)
	if resp, ok := args.Get(0).(*provider.Response); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCapability) Info() provider.Info {
	args := m.Called()
	return args.Get(0).(provider.Info)
}

func TestCall_WithTestifyMockCapability(t *testing.T) {
	capability := &MockCapability{}
	capability.On("Invoke", mock.Anything, mock.Anything).
		Return(&provider.Response{Text: "4", Model: "mock-model"}, nil).Once()

	client := New(newTestRegistry(map[core.ProviderID]provider.Provider{
		core.ProviderAnthropic: capability,
	}, core.ProviderAnthropic))

	result, err := client.Call(context.Background(), question)
	require.NoError(t, err)
	assert.Equal(t, "4", result.Text)
	capability.AssertExpectations(t)
}
