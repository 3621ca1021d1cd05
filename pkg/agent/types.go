package agent

import "time"

// Conversation roles. The "data" role is accepted on input for compatibility
// with older clients and is relabeled "assistant" before reaching a provider.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
	RoleData      = "data"
)

// ToolCallRequest is a tool invocation requested by the completion model.
// Arguments is the raw JSON string; in the streaming path it is concatenated
// from index-addressed fragments before it is parseable.
type ToolCallRequest struct {
	ID        string `json:"id"`
	Name      string `json:"functionName"`
	Arguments string `json:"arguments"`
}

// ConversationMessage is one entry in the replayed transcript. Order is
// semantically significant: the sequence is sent verbatim to the provider.
type ConversationMessage struct {
	Role       string            `json:"role"`
	Content    string            `json:"content"`
	ToolCalls  []ToolCallRequest `json:"toolCalls,omitempty"`
	ToolCallID string            `json:"toolCallId,omitempty"`
	Timestamp  string            `json:"timestamp,omitempty"`
}

// MemoryEntry pre-seeds the system prompt with a remembered fact
type MemoryEntry struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Category  string `json:"category,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// AgentRequest is the inbound request shape for both entry points
type AgentRequest struct {
	Message             string                `json:"message"`
	ConversationHistory []ConversationMessage `json:"conversationHistory,omitempty"`
	SessionID           string                `json:"sessionId,omitempty"`
	Memories            []MemoryEntry         `json:"memories,omitempty"`
}

// AgentResponse is the buffered response shape. Admission rejections reuse it
// with RateLimited/RetryAfter set so clients have a single response contract.
type AgentResponse struct {
	Message             string                `json:"message"`
	ConversationHistory []ConversationMessage `json:"conversationHistory"`
	SessionID           string                `json:"sessionId"`
	ToolCalls           []ToolCallRequest     `json:"toolCalls,omitempty"`
	Completed           bool                  `json:"completed"`
	RateLimited         bool                  `json:"rateLimited,omitempty"`
	RetryAfter          int                   `json:"retryAfter,omitempty"`
}

// UpdateType discriminates streaming events
type UpdateType string

const (
	UpdateStatus            UpdateType = "status"
	UpdateToolStart         UpdateType = "tool_start"
	UpdateToolProgress      UpdateType = "tool_progress"
	UpdateToolComplete      UpdateType = "tool_complete"
	UpdateContent           UpdateType = "content"
	UpdateContentStream     UpdateType = "content_stream"
	UpdateComplete          UpdateType = "complete"
	UpdateReasoningStart    UpdateType = "reasoning_start"
	UpdateReasoningProgress UpdateType = "reasoning_progress"
	UpdateReasoningComplete UpdateType = "reasoning_complete"
)

// StreamingUpdate is one event on the streaming path. The stream is
// terminated by exactly one "complete" event, which carries either the final
// response in Data or an error message in Error.
type StreamingUpdate struct {
	Type            UpdateType     `json:"type"`
	Timestamp       string         `json:"timestamp"`
	Message         string         `json:"message,omitempty"`
	Content         string         `json:"content,omitempty"`
	ToolName        string         `json:"toolName,omitempty"`
	ToolDescription string         `json:"toolDescription,omitempty"`
	ReasoningTokens int            `json:"reasoningTokens,omitempty"`
	ReasoningEffort string         `json:"reasoningEffort,omitempty"`
	Duration        string         `json:"duration,omitempty"`
	Data            *AgentResponse `json:"data,omitempty"`
	Error           string         `json:"error,omitempty"`
}

func newUpdate(t UpdateType) StreamingUpdate {
	return StreamingUpdate{
		Type:      t,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// now returns the transcript timestamp for newly appended messages
func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
