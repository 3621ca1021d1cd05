package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

const plannerSystemPrompt = `You are a request classifier. Given a user message, decide whether answering it needs tools.
Respond with JSON only, no prose, in this exact shape:
{"kind":"simple"} when the message can be answered from general knowledge, or
{"kind":"tool","tools":["tool_name", ...]} when one or more of the listed tools is needed.`

// PlanKind discriminates planner decisions
type PlanKind string

const (
	PlanSimple PlanKind = "simple"
	PlanTool   PlanKind = "tool"
)

// Plan is the planner's classification of a request
type Plan struct {
	Kind  PlanKind `json:"kind"`
	Tools []string `json:"tools,omitempty"`
}

// Planner runs a cheap small-model classification pass before the main loop
// so trivially simple requests skip tool schemas on their first turn. Any
// planner failure falls back to tool-enabled execution.
type Planner struct {
	provider CompletionProvider
	model    string
	logger   zerolog.Logger
}

// NewPlanner creates a planner using the given provider and model
func NewPlanner(provider CompletionProvider, model string, logger zerolog.Logger) *Planner {
	return &Planner{provider: provider, model: model, logger: logger}
}

// Classify decides whether the message needs tools. It never returns an
// error: classification is advisory, and failure means "assume tools".
func (p *Planner) Classify(ctx context.Context, message string, available []ToolSchema) Plan {
	fallback := Plan{Kind: PlanTool}

	names := make([]string, 0, len(available))
	for _, t := range available {
		names = append(names, fmt.Sprintf("%s (%s)", t.Name, t.Description))
	}

	result, err := p.provider.Complete(ctx, CompletionRequest{
		Model:        p.model,
		SystemPrompt: plannerSystemPrompt + "\n\nAvailable tools:\n" + strings.Join(names, "\n"),
		Messages: []ConversationMessage{
			{Role: RoleUser, Content: message},
		},
		MaxTokens: 128,
	})
	if err != nil {
		p.logger.Warn().Err(err).Msg("Planner call failed, assuming tools are needed")
		return fallback
	}

	plan, err := parsePlan(result.Content)
	if err != nil {
		p.logger.Warn().Err(err).Str("raw", result.Content).Msg("Planner returned malformed plan, assuming tools are needed")
		return fallback
	}

	p.logger.Debug().Str("kind", string(plan.Kind)).Strs("tools", plan.Tools).Msg("Planner classified request")
	return plan
}

// parsePlan tolerates code fences around the JSON but nothing else
func parsePlan(raw string) (Plan, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var plan Plan
	if err := json.Unmarshal([]byte(cleaned), &plan); err != nil {
		return Plan{}, fmt.Errorf("failed to parse plan: %w", err)
	}
	if plan.Kind != PlanSimple && plan.Kind != PlanTool {
		return Plan{}, fmt.Errorf("unknown plan kind: %q", plan.Kind)
	}
	return plan, nil
}
