// Package agent implements the conversation orchestrator: the bounded
// completion/tool-call loop behind the buffered and streaming entry points.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ToolSchema describes one tool to the completion API
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// CompletionRequest contains the request parameters for one completion turn
type CompletionRequest struct {
	Model               string
	SystemPrompt        string
	Messages            []ConversationMessage
	Tools               []ToolSchema
	Temperature         float64
	MaxTokens           int
	ReasoningEffort     string
	MaxCompletionTokens int
}

// TokenUsage tracks token consumption for one turn
type TokenUsage struct {
	InputTokens     int
	OutputTokens    int
	ReasoningTokens int
}

// CompletionResult is the accumulated outcome of one completion turn
type CompletionResult struct {
	Content   string
	ToolCalls []ToolCallRequest
	Usage     TokenUsage
}

// StreamEvents receives incremental callbacks while a streaming turn is in
// flight. Either callback may be nil.
type StreamEvents struct {
	// OnContent is invoked with each content fragment as it arrives
	OnContent func(delta string)
	// OnReasoningTokens is invoked with the running reasoning-token total
	// whenever a usage snapshot reports one
	OnReasoningTokens func(total int)
}

// CompletionProvider is a completion API client. Implementations must be safe
// for concurrent use across requests.
type CompletionProvider interface {
	// Name returns the provider name
	Name() string

	// Complete makes one buffered completion call
	Complete(ctx context.Context, request CompletionRequest) (*CompletionResult, error)

	// CompleteStream makes one streaming completion call, invoking ev as
	// fragments arrive, and returns the fully accumulated result. Tool-call
	// fragments are concatenated internally; only complete calls appear in
	// the result.
	CompleteStream(ctx context.Context, request CompletionRequest, ev StreamEvents) (*CompletionResult, error)
}

// reasoningModelPrefixes lists model-name families that perform internal
// deliberation. Such models reject temperature and instead take a reasoning
// effort plus a completion-token cap.
var reasoningModelPrefixes = []string{"o1", "o3", "o4", "gpt-5"}

// IsReasoningModel reports whether the model name belongs to a known
// reasoning-model family.
func IsReasoningModel(model string) bool {
	name := strings.ToLower(model)
	for _, prefix := range reasoningModelPrefixes {
		if name == prefix || strings.HasPrefix(name, prefix+"-") || strings.HasPrefix(name, prefix+".") {
			return true
		}
	}
	return false
}

// humanizeDuration renders an elapsed time the way a person would say it
func humanizeDuration(d time.Duration) string {
	switch {
	case d < 10*time.Second:
		return "a few seconds"
	case d < time.Minute:
		return fmt.Sprintf("about %d seconds", int(d.Round(5*time.Second).Seconds()))
	default:
		minutes := int(d.Round(time.Minute).Minutes())
		if minutes <= 1 {
			return "about a minute"
		}
		return fmt.Sprintf("about %d minutes", minutes)
	}
}
