package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/youneslaaroussi/railway-llm-template/internal/metrics"
	"github.com/youneslaaroussi/railway-llm-template/internal/tracing"
	"github.com/youneslaaroussi/railway-llm-template/pkg/cache"
	"github.com/youneslaaroussi/railway-llm-template/pkg/tool"
)

// Config holds orchestrator configuration
type Config struct {
	Model               string
	SystemPrompt        string
	MaxIterations       int
	RequestTimeout      time.Duration
	Temperature         float64
	MaxTokens           int
	ReasoningEffort     string
	MaxCompletionTokens int
}

// Service drives the completion/tool-call loop. History is passed in and
// returned, never retained, so one Service safely serves concurrent requests.
type Service struct {
	provider      CompletionProvider
	registry      *tool.Registry
	responseCache *cache.ResponseCache
	toolCache     *cache.ToolResultCache
	planner       *Planner
	cfg           Config
	logger        zerolog.Logger
	metrics       *metrics.Metrics
}

// ServiceParams collects the dependencies for NewService. Provider may be
// nil when no credential is configured; Planner is optional.
type ServiceParams struct {
	Provider      CompletionProvider
	Registry      *tool.Registry
	ResponseCache *cache.ResponseCache
	ToolCache     *cache.ToolResultCache
	Planner       *Planner
	Config        Config
	Logger        zerolog.Logger
	Metrics       *metrics.Metrics
}

// NewService creates the conversation orchestrator
func NewService(params ServiceParams) (*Service, error) {
	if params.Registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if params.ResponseCache == nil || params.ToolCache == nil {
		return nil, fmt.Errorf("caches are required")
	}
	if params.Metrics == nil {
		return nil, fmt.Errorf("metrics are required")
	}

	cfg := params.Config
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 5
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 120 * time.Second
	}

	return &Service{
		provider:      params.Provider,
		registry:      params.Registry,
		responseCache: params.ResponseCache,
		toolCache:     params.ToolCache,
		planner:       params.Planner,
		cfg:           cfg,
		logger:        params.Logger,
		metrics:       params.Metrics,
	}, nil
}

// ProcessRequest handles a buffered request. The full-response cache is
// consulted first; a hit bypasses the loop entirely, with the current
// request's session id substituted into the cached response.
func (s *Service) ProcessRequest(ctx context.Context, req AgentRequest) (*AgentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	sessionID := resolveSessionID(req.SessionID)
	ctx = tracing.WithSessionID(ctx, sessionID)
	ctx, span := tracing.StartSpan(ctx, "railway.agent", "agent.process_request",
		attribute.String("session_id", sessionID),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, s.logger)
	start := time.Now()

	var cached AgentResponse
	if s.responseCache.Get(ctx, req.Message, req.ConversationHistory, &cached) {
		cached.SessionID = sessionID
		s.metrics.ChatRequestsTotal.WithLabelValues("buffered", "cache_hit").Inc()
		logger.Info().Msg("Returning cached response")
		return &cached, nil
	}

	resp, runErr := s.run(ctx, req, sessionID, nil)
	s.metrics.ChatRequestDuration.WithLabelValues("buffered").Observe(time.Since(start).Seconds())

	if runErr != nil {
		// The response already carries the classified user-facing message;
		// an errored turn is terminal but never cached.
		s.metrics.ChatRequestsTotal.WithLabelValues("buffered", "error").Inc()
		return resp, nil
	}

	s.metrics.ChatRequestsTotal.WithLabelValues("buffered", "success").Inc()
	s.responseCache.Set(ctx, req.Message, req.ConversationHistory, resp)
	return resp, nil
}

// ProcessRequestStream handles a streaming request. The returned channel is
// closed after exactly one terminal "complete" event. Cancelling ctx aborts
// the upstream stream and any in-flight tool execution.
func (s *Service) ProcessRequestStream(ctx context.Context, req AgentRequest) <-chan StreamingUpdate {
	updates := make(chan StreamingUpdate, 16)

	go func() {
		defer close(updates)

		// The caller's context outlives the request timeout: it only ends
		// when the reader has gone away.
		caller := ctx
		ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()

		sessionID := resolveSessionID(req.SessionID)
		ctx = tracing.WithSessionID(ctx, sessionID)
		ctx, span := tracing.StartSpan(ctx, "railway.agent", "agent.process_request_stream",
			attribute.String("session_id", sessionID),
		)
		defer span.End()

		emit := func(u StreamingUpdate) {
			s.metrics.StreamEventsTotal.WithLabelValues(string(u.Type)).Inc()
			select {
			case updates <- u:
			case <-ctx.Done():
			}
		}

		start := time.Now()

		status := newUpdate(UpdateStatus)
		status.Message = "Thinking..."
		emit(status)

		resp, runErr := s.run(ctx, req, sessionID, emit)
		s.metrics.ChatRequestDuration.WithLabelValues("streaming").Observe(time.Since(start).Seconds())

		complete := newUpdate(UpdateComplete)
		complete.Data = resp
		if runErr != nil {
			complete.Error = resp.Message
			s.metrics.ChatRequestsTotal.WithLabelValues("streaming", "error").Inc()
		} else {
			s.metrics.ChatRequestsTotal.WithLabelValues("streaming", "success").Inc()
		}
		s.metrics.StreamEventsTotal.WithLabelValues(string(UpdateComplete)).Inc()

		// The terminal event waits for the reader however slow it is; only a
		// departed reader (cancelled caller context) releases the goroutine
		// without it.
		select {
		case updates <- complete:
		case <-caller.Done():
		}
	}()

	return updates
}

// run executes the bounded completion/tool-call loop. When emit is non-nil
// the streaming provider path is used and incremental events are emitted.
// The returned error marks a classified provider failure; the response is
// always usable.
func (s *Service) run(ctx context.Context, req AgentRequest, sessionID string, emit func(StreamingUpdate)) (*AgentResponse, error) {
	logger := tracing.LoggerFromContext(ctx, s.logger)

	history := make([]ConversationMessage, 0, len(req.ConversationHistory)+1)
	history = append(history, req.ConversationHistory...)
	history = append(history, ConversationMessage{
		Role:      RoleUser,
		Content:   req.Message,
		Timestamp: now(),
	})

	if s.provider == nil {
		logger.Warn().Msg("No completion provider configured, returning guidance message")
		history = append(history, ConversationMessage{Role: RoleAssistant, Content: MsgMissingCredential, Timestamp: now()})
		return s.response(MsgMissingCredential, history, sessionID, nil), nil
	}

	systemPrompt := MaterializeSystemPrompt(s.cfg.SystemPrompt, req.Memories, time.Now())
	schemas := s.toolSchemas()

	skipToolsFirstTurn := false
	if s.planner != nil && len(schemas) > 0 {
		if plan := s.planner.Classify(ctx, req.Message, schemas); plan.Kind == PlanSimple {
			skipToolsFirstTurn = true
		}
	}

	reasoning := IsReasoningModel(s.cfg.Model)
	var executedCalls []ToolCallRequest

	for iteration := 0; iteration < s.cfg.MaxIterations; iteration++ {
		s.metrics.ChatIterationsTotal.Inc()

		tools := schemas
		if iteration == 0 && skipToolsFirstTurn {
			tools = nil
		}

		creq := CompletionRequest{
			Model:               s.cfg.Model,
			SystemPrompt:        systemPrompt,
			Messages:            filterHistory(history),
			Tools:               tools,
			Temperature:         s.cfg.Temperature,
			MaxTokens:           s.cfg.MaxTokens,
			ReasoningEffort:     s.cfg.ReasoningEffort,
			MaxCompletionTokens: s.cfg.MaxCompletionTokens,
		}

		result, err := s.completeTurn(ctx, creq, reasoning, emit)
		if err != nil {
			class, msg := ClassifyProviderError(err)
			logger.Error().Err(err).Str("class", string(class)).Int("iteration", iteration).Msg("Completion call failed")
			history = append(history, ConversationMessage{Role: RoleAssistant, Content: msg, Timestamp: now()})
			return s.response(msg, history, sessionID, executedCalls), err
		}

		if len(result.ToolCalls) == 0 {
			history = append(history, ConversationMessage{Role: RoleAssistant, Content: result.Content, Timestamp: now()})
			if emit != nil {
				u := newUpdate(UpdateContent)
				u.Content = result.Content
				emit(u)
			}
			logger.Info().Int("iterations", iteration+1).Int("tool_calls", len(executedCalls)).Msg("Conversation turn completed")
			return s.response(result.Content, history, sessionID, executedCalls), nil
		}

		history = append(history, ConversationMessage{
			Role:      RoleAssistant,
			Content:   result.Content,
			ToolCalls: result.ToolCalls,
			Timestamp: now(),
		})

		// Sequential dispatch bounds external-API burst load and keeps
		// per-turn cache writes race-free
		for _, tc := range result.ToolCalls {
			if ctx.Err() != nil {
				msg := MsgGeneric
				history = append(history, ConversationMessage{Role: RoleAssistant, Content: msg, Timestamp: now()})
				return s.response(msg, history, sessionID, executedCalls), ctx.Err()
			}
			serialized := s.executeToolCall(ctx, tc, sessionID, emit)
			history = append(history, ConversationMessage{
				Role:       RoleTool,
				Content:    serialized,
				ToolCallID: tc.ID,
				Timestamp:  now(),
			})
			executedCalls = append(executedCalls, tc)
		}
	}

	logger.Warn().Int("max_iterations", s.cfg.MaxIterations).Msg("Iteration ceiling reached")
	history = append(history, ConversationMessage{Role: RoleAssistant, Content: MsgMaxIterations, Timestamp: now()})
	if emit != nil {
		u := newUpdate(UpdateContent)
		u.Content = MsgMaxIterations
		emit(u)
	}
	return s.response(MsgMaxIterations, history, sessionID, executedCalls), nil
}

// completeTurn issues one completion call, on the streaming path wiring
// content and reasoning-progress callbacks through to the event stream.
func (s *Service) completeTurn(ctx context.Context, creq CompletionRequest, reasoning bool, emit func(StreamingUpdate)) (*CompletionResult, error) {
	if emit == nil {
		return s.provider.Complete(ctx, creq)
	}

	start := time.Now()
	if reasoning {
		u := newUpdate(UpdateReasoningStart)
		u.ReasoningEffort = s.cfg.ReasoningEffort
		emit(u)
	}

	result, err := s.provider.CompleteStream(ctx, creq, StreamEvents{
		OnContent: func(delta string) {
			u := newUpdate(UpdateContentStream)
			u.Content = delta
			emit(u)
		},
		OnReasoningTokens: func(total int) {
			if !reasoning {
				return
			}
			u := newUpdate(UpdateReasoningProgress)
			u.ReasoningTokens = total
			u.Duration = humanizeDuration(time.Since(start))
			emit(u)
		},
	})

	if reasoning && err == nil {
		u := newUpdate(UpdateReasoningComplete)
		u.ReasoningTokens = result.Usage.ReasoningTokens
		u.Duration = humanizeDuration(time.Since(start))
		emit(u)
	}

	return result, err
}

// executeToolCall resolves, cache-checks, and runs one tool call, returning
// the serialized result fed back into the transcript. Tool failures never
// abort the turn; they come back as {"error": "..."} for the model to react
// to, and are never cached.
func (s *Service) executeToolCall(ctx context.Context, tc ToolCallRequest, sessionID string, emit func(StreamingUpdate)) string {
	logger := tracing.LoggerFromContext(ctx, s.logger).With().Str("tool", tc.Name).Logger()

	description := ""
	cacheable := true
	if t, ok := s.registry.Lookup(tc.Name); ok {
		description = t.Description()
		if c, ok := t.(tool.Cacheable); ok {
			cacheable = c.Cacheable()
		}
	}

	if emit != nil {
		u := newUpdate(UpdateToolStart)
		u.ToolName = tc.Name
		u.ToolDescription = description
		emit(u)
	}

	args := map[string]any{}
	if raw := tc.Arguments; raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			logger.Warn().Err(err).Msg("Tool call arguments are not valid JSON")
			return s.finishToolCall(tc.Name, serializeToolError(fmt.Sprintf("Invalid tool arguments: %v", err)), "error", emit)
		}
	}
	args[tool.ClientIPArg] = tracing.GetClientIP(ctx)
	args[tool.SessionIDArg] = sessionID

	if cacheable {
		if serialized, hit := s.toolCache.Get(ctx, tc.Name, args); hit {
			logger.Debug().Msg("Tool result served from cache")
			return s.finishToolCall(tc.Name, serialized, "cache_hit", emit)
		}
	}

	start := time.Now()
	result, err := s.registry.Execute(ctx, tc.Name, args)
	s.metrics.ToolExecutionDuration.WithLabelValues(tc.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		logger.Warn().Err(err).Msg("Tool execution failed")
		var toolErr *tool.Error
		if errors.As(err, &toolErr) {
			return s.finishToolCall(tc.Name, serializeToolError(toolErr.Message), "error", emit)
		}
		return s.finishToolCall(tc.Name, serializeToolError(err.Error()), "error", emit)
	}

	serialized, merr := json.Marshal(result)
	if merr != nil {
		logger.Warn().Err(merr).Msg("Tool result is not serializable")
		return s.finishToolCall(tc.Name, serializeToolError("tool result could not be serialized"), "error", emit)
	}

	// Write-through only for cacheable, non-error results
	if cacheable {
		s.toolCache.Set(ctx, tc.Name, args, string(serialized))
	}
	return s.finishToolCall(tc.Name, string(serialized), "success", emit)
}

func (s *Service) finishToolCall(name, serialized, status string, emit func(StreamingUpdate)) string {
	s.metrics.ToolExecutionsTotal.WithLabelValues(name, status).Inc()
	if emit != nil {
		u := newUpdate(UpdateToolComplete)
		u.ToolName = name
		emit(u)
	}
	return serialized
}

func (s *Service) response(message string, history []ConversationMessage, sessionID string, toolCalls []ToolCallRequest) *AgentResponse {
	return &AgentResponse{
		Message:             message,
		ConversationHistory: history,
		SessionID:           sessionID,
		ToolCalls:           toolCalls,
		Completed:           true,
	}
}

// toolSchemas snapshots the registry for the provider request
func (s *Service) toolSchemas() []ToolSchema {
	tools := s.registry.List()
	schemas := make([]ToolSchema, 0, len(tools))
	for _, t := range tools {
		schemas = append(schemas, ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	return schemas
}

// filterHistory converts the transcript to the provider message shape:
// data-role messages are relabeled assistant, user/tool messages with empty
// content are dropped, assistant messages are dropped only when they have
// neither content nor tool calls, and system messages always pass.
func filterHistory(history []ConversationMessage) []ConversationMessage {
	filtered := make([]ConversationMessage, 0, len(history))
	for _, msg := range history {
		if msg.Role == RoleData {
			msg.Role = RoleAssistant
		}
		switch msg.Role {
		case RoleUser, RoleTool:
			if msg.Content == "" {
				continue
			}
		case RoleAssistant:
			if msg.Content == "" && len(msg.ToolCalls) == 0 {
				continue
			}
		case RoleSystem:
			// always passes
		default:
			continue
		}
		filtered = append(filtered, msg)
	}
	return filtered
}

// serializeToolError renders a tool failure in the shape the model expects
func serializeToolError(message string) string {
	b, _ := json.Marshal(tool.Error{Message: message})
	return string(b)
}

func resolveSessionID(supplied string) string {
	if supplied != "" {
		return supplied
	}
	id, _ := gonanoid.New()
	return id
}
