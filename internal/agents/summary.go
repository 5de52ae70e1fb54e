package agents

import (
	"context"
	"fmt"

	"agentic-rag-platform/internal/ai"
	"agentic-rag-platform/internal/prompts"
)

// Summarizer produces the final assistant message from all agent findings.
type Summarizer struct {
	llm LLM
}

func NewSummarizer(llm LLM) *Summarizer {
	return &Summarizer{llm: llm}
}

func (s *Summarizer) Summarize(ctx context.Context, query string, findings []prompts.Finding) (string, error) {
	systemPrompt, userPrompt, err := prompts.RenderSummaryPrompt(query, findings)
	if err != nil {
		return "", fmt.Errorf("failed to render summary prompt: %w", err)
	}

	result, err := s.llm.Generate(ctx, userPrompt, ai.GenerateOptions{
		SystemPrompt: systemPrompt,
		Temperature:  0.4,
		MaxTokens:    4096,
	})
	if err != nil {
		return "", fmt.Errorf("summary generation failed: %w", err)
	}

	return result.Text, nil
}
