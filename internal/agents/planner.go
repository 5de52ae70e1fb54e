package agents

import (
	"context"
	"fmt"

	"agentic-rag-platform/internal/ai"
	"agentic-rag-platform/internal/logger"
	"agentic-rag-platform/internal/prompts"
	"agentic-rag-platform/models"
)

// Planner selects which retrieval agents should handle a query. It only
// ever returns agents that are registered and enabled; unknown selections
// are dropped with a warning.
type Planner struct {
	llm      LLM
	registry *Registry
}

func NewPlanner(llm LLM, registry *Registry) *Planner {
	return &Planner{llm: llm, registry: registry}
}

func (p *Planner) Plan(ctx context.Context, query string) (*models.Plan, error) {
	systemPrompt, userPrompt, err := prompts.RenderPlannerPrompt(query)
	if err != nil {
		return nil, fmt.Errorf("failed to render planner prompt: %w", err)
	}

	result, err := p.llm.Generate(ctx, userPrompt, ai.GenerateOptions{
		SystemPrompt: systemPrompt,
		Temperature:  0.2,
		JSONOutput:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("planner generation failed: %w", err)
	}

	var plan models.Plan
	if err := decodeJSONPayload(result.Text, &plan); err != nil {
		return nil, fmt.Errorf("planner returned unparseable plan: %w", err)
	}

	selected, dropped := p.registry.Filter(plan.AgentsNeeded)
	if len(dropped) > 0 {
		logger.Warn("Planner selected unregistered agents, dropping",
			"dropped", dropped, "query", query)
	}
	plan.AgentsNeeded = selected

	return &plan, nil
}
