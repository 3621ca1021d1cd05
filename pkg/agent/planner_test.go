package agent

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func plannerWith(content string, err error) *Planner {
	p := &scriptedProvider{turns: []*CompletionResult{{Content: content}}}
	if err != nil {
		p.errs = []error{err}
	}
	return NewPlanner(p, "gpt-4o-mini", zerolog.Nop())
}

func TestPlanner_SimpleClassification(t *testing.T) {
	planner := plannerWith(`{"kind":"simple"}`, nil)
	plan := planner.Classify(context.Background(), "What is the capital of France?", nil)
	assert.Equal(t, PlanSimple, plan.Kind)
}

func TestPlanner_ToolClassification(t *testing.T) {
	planner := plannerWith(`{"kind":"tool","tools":["convert_currency"]}`, nil)
	plan := planner.Classify(context.Background(), "Convert 100 USD to EUR", nil)
	assert.Equal(t, PlanTool, plan.Kind)
	assert.Equal(t, []string{"convert_currency"}, plan.Tools)
}

func TestPlanner_ToleratesCodeFences(t *testing.T) {
	planner := plannerWith("```json\n{\"kind\":\"simple\"}\n```", nil)
	plan := planner.Classify(context.Background(), "hi", nil)
	assert.Equal(t, PlanSimple, plan.Kind)
}

func TestPlanner_MalformedPlanFallsBackToTools(t *testing.T) {
	for _, raw := range []string{"not json", `{"kind":"maybe"}`, ""} {
		planner := plannerWith(raw, nil)
		plan := planner.Classify(context.Background(), "hi", nil)
		assert.Equal(t, PlanTool, plan.Kind, "raw=%q", raw)
	}
}

func TestPlanner_ProviderErrorFallsBackToTools(t *testing.T) {
	planner := plannerWith("", assert.AnError)
	plan := planner.Classify(context.Background(), "hi", nil)
	assert.Equal(t, PlanTool, plan.Kind)
}
