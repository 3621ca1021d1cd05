package agent

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIProvider implements CompletionProvider for OpenAI
type OpenAIProvider struct {
	client openai.Client
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Complete makes a buffered API call to OpenAI
func (p *OpenAIProvider) Complete(ctx context.Context, request CompletionRequest) (*CompletionResult, error) {
	params, err := buildOpenAIParams(request)
	if err != nil {
		return nil, err
	}

	response, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	choice := response.Choices[0]

	result := &CompletionResult{
		Content: choice.Message.Content,
		Usage: TokenUsage{
			InputTokens:     int(response.Usage.PromptTokens),
			OutputTokens:    int(response.Usage.CompletionTokens),
			ReasoningTokens: int(response.Usage.CompletionTokensDetails.ReasoningTokens),
		},
	}

	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCallRequest{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return result, nil
}

// CompleteStream makes a streaming API call to OpenAI, accumulating content
// and index-addressed tool-call fragments until the turn ends.
func (p *OpenAIProvider) CompleteStream(ctx context.Context, request CompletionRequest, ev StreamEvents) (*CompletionResult, error) {
	params, err := buildOpenAIParams(request)
	if err != nil {
		return nil, err
	}
	// Usage snapshots carry the reasoning-token count during the stream
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			if ev.OnContent != nil {
				ev.OnContent(chunk.Choices[0].Delta.Content)
			}
		}

		if chunk.Usage.CompletionTokensDetails.ReasoningTokens > 0 && ev.OnReasoningTokens != nil {
			ev.OnReasoningTokens(int(chunk.Usage.CompletionTokensDetails.ReasoningTokens))
		}
	}

	if err := stream.Err(); err != nil {
		return nil, err
	}

	if len(acc.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	message := acc.Choices[0].Message

	result := &CompletionResult{
		Content: message.Content,
		Usage: TokenUsage{
			InputTokens:     int(acc.Usage.PromptTokens),
			OutputTokens:    int(acc.Usage.CompletionTokens),
			ReasoningTokens: int(acc.Usage.CompletionTokensDetails.ReasoningTokens),
		},
	}

	for _, tc := range message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCallRequest{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return result, nil
}

// buildOpenAIParams converts a CompletionRequest to the OpenAI request shape
func buildOpenAIParams(request CompletionRequest) (openai.ChatCompletionNewParams, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}

	if request.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(request.SystemPrompt))
	}

	for _, msg := range request.Messages {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				// Assistant message with tool calls - need to construct manually
				toolCalls := []openai.ChatCompletionMessageToolCall{}
				for _, tc := range msg.ToolCalls {
					toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCall{
						ID:   tc.ID,
						Type: "function",
						Function: openai.ChatCompletionMessageToolCallFunction{
							Name:      tc.Name,
							Arguments: tc.Arguments,
						},
					})
				}
				assistantMsg := openai.ChatCompletionMessage{
					Role:      "assistant",
					Content:   msg.Content,
					ToolCalls: toolCalls,
				}
				messages = append(messages, assistantMsg.ToParam())
			} else {
				messages = append(messages, openai.AssistantMessage(msg.Content))
			}
		case RoleTool:
			messages = append(messages, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			return openai.ChatCompletionNewParams{}, fmt.Errorf("unsupported message role: %s", msg.Role)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(request.Model),
		Messages: messages,
	}

	if IsReasoningModel(request.Model) {
		// Reasoning models reject temperature; they take an effort level and
		// a completion-token cap instead
		if request.ReasoningEffort != "" {
			params.ReasoningEffort = shared.ReasoningEffort(request.ReasoningEffort)
		}
		if request.MaxCompletionTokens > 0 {
			params.MaxCompletionTokens = openai.Int(int64(request.MaxCompletionTokens))
		}
	} else {
		if request.Temperature > 0 {
			params.Temperature = openai.Float(request.Temperature)
		}
		if request.MaxTokens > 0 {
			params.MaxTokens = openai.Int(int64(request.MaxTokens))
		}
	}

	if len(request.Tools) > 0 {
		tools := []openai.ChatCompletionToolParam{}
		for _, t := range request.Tools {
			tools = append(tools, openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  openai.FunctionParameters(t.Parameters),
				},
			})
		}
		params.Tools = tools
	}

	return params, nil
}
