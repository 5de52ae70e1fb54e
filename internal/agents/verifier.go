package agents

import (
	"context"
	"errors"
	"fmt"

	"agentic-rag-platform/internal/ai"
	"agentic-rag-platform/internal/prompts"
	"agentic-rag-platform/models"
)

// ErrVerdictUnusable marks verifier output that could not be interpreted as
// a verdict. Callers treat it as a failed verification attempt rather than a
// hard failure.
var ErrVerdictUnusable = errors.New("verifier verdict unusable")

// Verifier judges whether the retrieved data answers the query, and when it
// doesn't, proposes a rewritten query for the next attempt.
type Verifier struct {
	llm LLM
}

func NewVerifier(llm LLM) *Verifier {
	return &Verifier{llm: llm}
}

func (v *Verifier) Verify(ctx context.Context, query string, findings []prompts.Finding) (*models.Verdict, error) {
	systemPrompt, userPrompt, err := prompts.RenderVerifierPrompt(query, findings)
	if err != nil {
		return nil, fmt.Errorf("failed to render verifier prompt: %w", err)
	}

	result, err := v.llm.Generate(ctx, userPrompt, ai.GenerateOptions{
		SystemPrompt: systemPrompt,
		Temperature:  0.1,
		JSONOutput:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("verifier generation failed: %w", err)
	}

	var verdict models.Verdict
	if err := decodeJSONPayload(result.Text, &verdict); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerdictUnusable, err)
	}

	if verdict.Status != models.VerdictApproved && verdict.Status != models.VerdictDenied {
		return nil, fmt.Errorf("%w: unknown status %q", ErrVerdictUnusable, verdict.Status)
	}

	return &verdict, nil
}
