package agent

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youneslaaroussi/railway-llm-template/internal/metrics"
	"github.com/youneslaaroussi/railway-llm-template/pkg/cache"
	"github.com/youneslaaroussi/railway-llm-template/pkg/cachestore"
	"github.com/youneslaaroussi/railway-llm-template/pkg/tool"
	"github.com/youneslaaroussi/railway-llm-template/pkg/tool/builtin"
)

// scriptedProvider replays a fixed sequence of turns
type scriptedProvider struct {
	mu    sync.Mutex
	turns []*CompletionResult
	errs  []error
	calls []CompletionRequest
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) next(req CompletionRequest) (*CompletionResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, req)
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(p.turns) == 0 {
		return &CompletionResult{Content: "out of script"}, nil
	}
	turn := p.turns[0]
	p.turns = p.turns[1:]
	return turn, nil
}

func (p *scriptedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	return p.next(req)
}

func (p *scriptedProvider) CompleteStream(ctx context.Context, req CompletionRequest, ev StreamEvents) (*CompletionResult, error) {
	result, err := p.next(req)
	if err != nil {
		return nil, err
	}
	if ev.OnContent != nil && result.Content != "" {
		// Split into two fragments so tests observe real deltas
		mid := len(result.Content) / 2
		ev.OnContent(result.Content[:mid])
		ev.OnContent(result.Content[mid:])
	}
	return result, nil
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// countingTool records how many times it actually executed
type countingTool struct {
	mu       sync.Mutex
	executed int
	result   any
	err      error
}

func (t *countingTool) Name() string        { return "echo" }
func (t *countingTool) Description() string { return "Echoes its input" }
func (t *countingTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
		"required": []string{"text"},
	}
}

func (t *countingTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.executed++
	if t.err != nil {
		return nil, t.err
	}
	if t.result != nil {
		return t.result, nil
	}
	return map[string]any{"echo": args["text"]}, nil
}

func (t *countingTool) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.executed
}

// effectTool is a countingTool that opts out of result caching
type effectTool struct {
	countingTool
}

func (t *effectTool) Cacheable() bool { return false }

// chattyProvider streams its content one byte at a time
type chattyProvider struct {
	content string
}

func (p *chattyProvider) Name() string { return "chatty" }

func (p *chattyProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	return &CompletionResult{Content: p.content}, nil
}

func (p *chattyProvider) CompleteStream(ctx context.Context, req CompletionRequest, ev StreamEvents) (*CompletionResult, error) {
	if ev.OnContent != nil {
		for i := 0; i < len(p.content); i++ {
			ev.OnContent(p.content[i : i+1])
		}
	}
	return &CompletionResult{Content: p.content}, nil
}

func newTestService(t *testing.T, provider CompletionProvider, tools ...tool.Tool) (*Service, *cachestore.MemoryStore) {
	t.Helper()

	store := cachestore.NewMemory(0)
	logger := zerolog.Nop()
	m := metrics.NewMetrics()

	registry := tool.NewRegistry(logger)
	for _, tl := range tools {
		require.NoError(t, registry.Register(tl))
	}

	svc, err := NewService(ServiceParams{
		Provider:      provider,
		Registry:      registry,
		ResponseCache: cache.NewResponseCache(store, time.Minute, logger, m),
		ToolCache:     cache.NewToolResultCache(store, time.Minute, logger, m),
		Config: Config{
			Model:         "gpt-4o",
			SystemPrompt:  "You are helpful. Current time: {{CURRENT_TIME}}\n{{MEMORIES}}",
			MaxIterations: 5,
		},
		Logger:  logger,
		Metrics: m,
	})
	require.NoError(t, err)
	return svc, store
}

func toolCallTurn(id, name, args string) *CompletionResult {
	return &CompletionResult{
		ToolCalls: []ToolCallRequest{{ID: id, Name: name, Arguments: args}},
	}
}

func TestProcessRequest_MissingCredential(t *testing.T) {
	svc, _ := newTestService(t, nil)

	resp, err := svc.ProcessRequest(context.Background(), AgentRequest{Message: "hello"})
	require.NoError(t, err)

	assert.Equal(t, MsgMissingCredential, resp.Message)
	assert.True(t, resp.Completed)
	assert.NotEmpty(t, resp.SessionID)
	// history: user message + guidance
	require.Len(t, resp.ConversationHistory, 2)
	assert.Equal(t, RoleAssistant, resp.ConversationHistory[1].Role)
}

func TestProcessRequest_SimpleCompletion(t *testing.T) {
	provider := &scriptedProvider{turns: []*CompletionResult{{Content: "hi there"}}}
	svc, _ := newTestService(t, provider)

	resp, err := svc.ProcessRequest(context.Background(), AgentRequest{Message: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "hi there", resp.Message)
	assert.True(t, resp.Completed)
	assert.Empty(t, resp.ToolCalls)
	assert.Equal(t, 1, provider.callCount())
}

func TestProcessRequest_SessionIDPreserved(t *testing.T) {
	provider := &scriptedProvider{turns: []*CompletionResult{{Content: "ok"}}}
	svc, _ := newTestService(t, provider)

	resp, err := svc.ProcessRequest(context.Background(), AgentRequest{Message: "hi", SessionID: "sess-42"})
	require.NoError(t, err)
	assert.Equal(t, "sess-42", resp.SessionID)
}

func TestProcessRequest_ToolCallLoop(t *testing.T) {
	echo := &countingTool{}
	provider := &scriptedProvider{turns: []*CompletionResult{
		toolCallTurn("call_1", "echo", `{"text":"ping"}`),
		{Content: "the tool said ping"},
	}}
	svc, _ := newTestService(t, provider, echo)

	resp, err := svc.ProcessRequest(context.Background(), AgentRequest{Message: "use the tool"})
	require.NoError(t, err)

	assert.Equal(t, "the tool said ping", resp.Message)
	assert.Equal(t, 1, echo.count())
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "echo", resp.ToolCalls[0].Name)

	// transcript: user, assistant(tool calls), tool, assistant(final)
	require.Len(t, resp.ConversationHistory, 4)
	assert.Equal(t, RoleTool, resp.ConversationHistory[2].Role)
	assert.Equal(t, "call_1", resp.ConversationHistory[2].ToolCallID)
	assert.JSONEq(t, `{"echo":"ping"}`, resp.ConversationHistory[2].Content)
}

func TestProcessRequest_UnknownToolContinuesLoop(t *testing.T) {
	provider := &scriptedProvider{turns: []*CompletionResult{
		toolCallTurn("call_1", "nonexistent", `{}`),
		{Content: "recovered"},
	}}
	svc, _ := newTestService(t, provider)

	resp, err := svc.ProcessRequest(context.Background(), AgentRequest{Message: "hi"})
	require.NoError(t, err)

	assert.Equal(t, "recovered", resp.Message)
	assert.True(t, resp.Completed)
	assert.JSONEq(t, `{"error":"Unknown tool: nonexistent"}`, resp.ConversationHistory[2].Content)
}

func TestProcessRequest_ToolErrorFedBackNotCached(t *testing.T) {
	failing := &countingTool{err: tool.NewError("upstream unavailable")}
	provider := &scriptedProvider{turns: []*CompletionResult{
		toolCallTurn("call_1", "echo", `{"text":"x"}`),
		toolCallTurn("call_2", "echo", `{"text":"x"}`),
		{Content: "done"},
	}}
	svc, _ := newTestService(t, provider, failing)

	resp, err := svc.ProcessRequest(context.Background(), AgentRequest{Message: "hi"})
	require.NoError(t, err)

	assert.Equal(t, "done", resp.Message)
	// The error result must not be cached, so the second identical call
	// executes the tool again
	assert.Equal(t, 2, failing.count())
	assert.JSONEq(t, `{"error":"upstream unavailable"}`, resp.ConversationHistory[2].Content)
}

func TestProcessRequest_IterationCeiling(t *testing.T) {
	echo := &countingTool{}
	turns := make([]*CompletionResult, 0, 6)
	for i := 0; i < 6; i++ {
		turns = append(turns, toolCallTurn("call", "echo", `{"text":"again"}`))
	}
	provider := &scriptedProvider{turns: turns}
	svc, _ := newTestService(t, provider, echo)

	resp, err := svc.ProcessRequest(context.Background(), AgentRequest{Message: "loop forever"})
	require.NoError(t, err)

	assert.Equal(t, MsgMaxIterations, resp.Message)
	assert.True(t, resp.Completed)
	assert.Equal(t, 5, provider.callCount())
}

func TestProcessRequest_ToolResultCacheIdempotence(t *testing.T) {
	echo := &countingTool{}
	provider := &scriptedProvider{turns: []*CompletionResult{
		toolCallTurn("call_1", "echo", `{"text":"same"}`),
		toolCallTurn("call_2", "echo", `{"text":"same"}`),
		{Content: "done"},
	}}
	svc, _ := newTestService(t, provider, echo)

	resp, err := svc.ProcessRequest(context.Background(), AgentRequest{Message: "hi"})
	require.NoError(t, err)

	// identical args within TTL execute the tool at most once
	assert.Equal(t, 1, echo.count())
	// second result is byte-for-byte equal to the first's serialization
	assert.Equal(t, resp.ConversationHistory[2].Content, resp.ConversationHistory[4].Content)
}

func TestProcessRequest_NonCacheableToolExecutesEveryCall(t *testing.T) {
	eff := &effectTool{}
	provider := &scriptedProvider{turns: []*CompletionResult{
		toolCallTurn("call_1", "echo", `{"text":"same"}`),
		toolCallTurn("call_2", "echo", `{"text":"same"}`),
		{Content: "done"},
	}}
	svc, store := newTestService(t, provider, eff)

	_, err := svc.ProcessRequest(context.Background(), AgentRequest{Message: "hi"})
	require.NoError(t, err)

	// identical args must not short-circuit a tool that opted out of caching
	assert.Equal(t, 2, eff.count())
	// only the full-response entry lands in the store, no tool results
	assert.Equal(t, 1, store.Len())
}

func TestProcessRequest_MemoryWritesSurviveAcrossSessions(t *testing.T) {
	memStore, err := builtin.NewMemoryStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	defer memStore.Close()

	provider := &scriptedProvider{turns: []*CompletionResult{
		toolCallTurn("call_1", "save_memory", `{"key":"favorite_color","value":"blue"}`),
		{Content: "noted"},
		toolCallTurn("call_2", "save_memory", `{"key":"favorite_color","value":"blue"}`),
		{Content: "noted again"},
	}}
	svc, _ := newTestService(t, provider, builtin.NewMemoryTool(memStore))

	ctx := context.Background()
	_, err = svc.ProcessRequest(ctx, AgentRequest{Message: "remember blue", SessionID: "session-a"})
	require.NoError(t, err)
	_, err = svc.ProcessRequest(ctx, AgentRequest{Message: "remember blue for me too", SessionID: "session-b"})
	require.NoError(t, err)

	a, err := memStore.List(ctx, "session-a")
	require.NoError(t, err)
	require.Len(t, a, 1)

	// identical arguments from a second session must still reach the store
	b, err := memStore.List(ctx, "session-b")
	require.NoError(t, err)
	require.Len(t, b, 1)
	assert.Equal(t, "blue", b[0].Value)
}

func TestProcessRequest_ResponseCacheHit(t *testing.T) {
	provider := &scriptedProvider{turns: []*CompletionResult{{Content: "answer"}}}
	svc, _ := newTestService(t, provider)

	first, err := svc.ProcessRequest(context.Background(), AgentRequest{Message: "cached?"})
	require.NoError(t, err)

	second, err := svc.ProcessRequest(context.Background(), AgentRequest{Message: "cached?", SessionID: "other-session"})
	require.NoError(t, err)

	assert.Equal(t, first.Message, second.Message)
	assert.Equal(t, "other-session", second.SessionID)
	assert.Equal(t, 1, provider.callCount())
}

func TestProcessRequest_ProviderErrorIsTerminalAndNotCached(t *testing.T) {
	provider := &scriptedProvider{errs: []error{assert.AnError}}
	svc, store := newTestService(t, provider)

	resp, err := svc.ProcessRequest(context.Background(), AgentRequest{Message: "boom"})
	require.NoError(t, err)

	assert.Equal(t, MsgGeneric, resp.Message)
	assert.True(t, resp.Completed)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 1, provider.callCount())
}

func TestProcessRequestStream_EventOrderAndSingleComplete(t *testing.T) {
	echo := &countingTool{}
	provider := &scriptedProvider{turns: []*CompletionResult{
		toolCallTurn("call_1", "echo", `{"text":"hi"}`),
		{Content: "all done"},
	}}
	svc, _ := newTestService(t, provider, echo)

	var events []StreamingUpdate
	for u := range svc.ProcessRequestStream(context.Background(), AgentRequest{Message: "go"}) {
		events = append(events, u)
	}

	completes := 0
	var types []UpdateType
	for _, u := range events {
		types = append(types, u.Type)
		if u.Type == UpdateComplete {
			completes++
		}
	}
	assert.Equal(t, 1, completes, "stream must terminate with exactly one complete event")
	assert.Equal(t, UpdateComplete, events[len(events)-1].Type)
	assert.Equal(t, UpdateStatus, events[0].Type)
	assert.Contains(t, types, UpdateToolStart)
	assert.Contains(t, types, UpdateToolComplete)
	assert.Contains(t, types, UpdateContentStream)

	final := events[len(events)-1]
	require.NotNil(t, final.Data)
	assert.Equal(t, "all done", final.Data.Message)
	assert.True(t, final.Data.Completed)
}

func TestProcessRequestStream_ContentFragmentsConcatenate(t *testing.T) {
	provider := &scriptedProvider{turns: []*CompletionResult{{Content: "streamed reply"}}}
	svc, _ := newTestService(t, provider)

	var b strings.Builder
	for u := range svc.ProcessRequestStream(context.Background(), AgentRequest{Message: "go"}) {
		if u.Type == UpdateContentStream {
			b.WriteString(u.Content)
		}
	}
	assert.Equal(t, "streamed reply", b.String())
}

func TestProcessRequestStream_ErrorCarriesSingleComplete(t *testing.T) {
	provider := &scriptedProvider{errs: []error{assert.AnError}}
	svc, _ := newTestService(t, provider)

	var events []StreamingUpdate
	for u := range svc.ProcessRequestStream(context.Background(), AgentRequest{Message: "boom"}) {
		events = append(events, u)
	}

	final := events[len(events)-1]
	assert.Equal(t, UpdateComplete, final.Type)
	assert.Equal(t, MsgGeneric, final.Error)
}

func TestProcessRequestStream_NoResponseCacheWrite(t *testing.T) {
	provider := &scriptedProvider{turns: []*CompletionResult{{Content: "streamed"}}}
	svc, store := newTestService(t, provider)

	for range svc.ProcessRequestStream(context.Background(), AgentRequest{Message: "go"}) {
	}
	assert.Equal(t, 0, store.Len())
}

func TestProcessRequestStream_CancellationStopsLoop(t *testing.T) {
	echo := &countingTool{}
	turns := make([]*CompletionResult, 0, 5)
	for i := 0; i < 5; i++ {
		turns = append(turns, toolCallTurn("call", "echo", `{"text":"again"}`))
	}
	provider := &scriptedProvider{turns: turns}
	svc, _ := newTestService(t, provider, echo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	deadline := time.After(5 * time.Second)
	ch := svc.ProcessRequestStream(ctx, AgentRequest{Message: "go"})
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return // channel closed promptly after cancellation
			}
		case <-deadline:
			t.Fatal("stream did not terminate after cancellation")
		}
	}
}

func TestProcessRequestStream_SlowReaderStillGetsComplete(t *testing.T) {
	// Enough fragments to overrun the channel buffer while the reader lags
	provider := &chattyProvider{content: strings.Repeat("a", 24)}
	svc, _ := newTestService(t, provider)

	var events []StreamingUpdate
	for u := range svc.ProcessRequestStream(context.Background(), AgentRequest{Message: "go"}) {
		events = append(events, u)
		time.Sleep(100 * time.Millisecond)
	}

	require.NotEmpty(t, events)
	final := events[len(events)-1]
	assert.Equal(t, UpdateComplete, final.Type, "terminal event must wait for a connected reader")
	require.NotNil(t, final.Data)
	assert.Equal(t, provider.content, final.Data.Message)
}

func TestFilterHistory(t *testing.T) {
	history := []ConversationMessage{
		{Role: RoleSystem, Content: ""},
		{Role: RoleUser, Content: ""},
		{Role: RoleUser, Content: "hello"},
		{Role: RoleData, Content: "data payload"},
		{Role: RoleAssistant, Content: ""},
		{Role: RoleAssistant, Content: "", ToolCalls: []ToolCallRequest{{ID: "1", Name: "echo", Arguments: "{}"}}},
		{Role: RoleTool, Content: "", ToolCallID: "1"},
		{Role: RoleTool, Content: `{"ok":true}`, ToolCallID: "1"},
	}

	filtered := filterHistory(history)

	require.Len(t, filtered, 5)
	assert.Equal(t, RoleSystem, filtered[0].Role)
	assert.Equal(t, "hello", filtered[1].Content)
	// data relabeled assistant
	assert.Equal(t, RoleAssistant, filtered[2].Role)
	assert.Equal(t, "data payload", filtered[2].Content)
	// empty assistant with tool calls survives
	assert.Len(t, filtered[3].ToolCalls, 1)
	assert.Equal(t, `{"ok":true}`, filtered[4].Content)
}

func TestEndToEnd_CurrencyConversion(t *testing.T) {
	provider := &scriptedProvider{turns: []*CompletionResult{
		toolCallTurn("call_1", "convert_currency", `{"amount":100,"from":"USD","to":"EUR"}`),
		{Content: "100 USD is about 92.41 EUR."},
	}}
	svc, _ := newTestService(t, provider, builtin.NewCurrencyTool())

	resp, err := svc.ProcessRequest(context.Background(), AgentRequest{Message: "Convert 100 USD to EUR"})
	require.NoError(t, err)

	assert.True(t, resp.Completed)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "convert_currency", resp.ToolCalls[0].Name)

	var conversion map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.ConversationHistory[2].Content), &conversion))
	assert.Equal(t, 92.41, conversion["converted"])
	assert.Contains(t, resp.Message, "92.41")
}
