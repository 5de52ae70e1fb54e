package agents

import (
	"context"
	"errors"
	"testing"

	"agentic-rag-platform/internal/ai"
	"agentic-rag-platform/internal/prompts"
	"agentic-rag-platform/models"
)

// fakeLLM returns canned responses in order, recording the prompts it saw.
type fakeLLM struct {
	responses []string
	err       error
	calls     int
	prompts   []string
	opts      []ai.GenerateOptions
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, opts ai.GenerateOptions) (*ai.Result, error) {
	f.prompts = append(f.prompts, prompt)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	return &ai.Result{Text: f.responses[idx], TokensUsed: 42}, nil
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := ParseRegistry([]byte(registryYAML))
	if err != nil {
		t.Fatalf("parse registry: %v", err)
	}
	return r
}

func TestPlannerSelectsAgents(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		`{"agents_needed": ["DocumentRetrievalAgent", "DatasetRetrievalAgent"], "justification": "needs docs and figures"}`,
	}}
	planner := NewPlanner(llm, testRegistry(t))

	plan, err := planner.Plan(context.Background(), "what were Q3 revenue figures?")
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	if len(plan.AgentsNeeded) != 2 {
		t.Fatalf("agents = %v, want 2", plan.AgentsNeeded)
	}
	if plan.Justification == "" {
		t.Error("justification should be preserved")
	}
	if !llm.opts[0].JSONOutput {
		t.Error("planner should request JSON output")
	}
}

func TestPlannerDropsUnregisteredAgents(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		`{"agents_needed": ["DocumentRetrievalAgent", "HallucinatedAgent", "WebRetrievalAgent"], "justification": "x"}`,
	}}
	planner := NewPlanner(llm, testRegistry(t))

	plan, err := planner.Plan(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	// HallucinatedAgent is unknown and WebRetrievalAgent is disabled in the
	// test registry; both must be dropped.
	if len(plan.AgentsNeeded) != 1 || plan.AgentsNeeded[0] != "DocumentRetrievalAgent" {
		t.Errorf("agents = %v, want only DocumentRetrievalAgent", plan.AgentsNeeded)
	}
}

func TestPlannerGenerateError(t *testing.T) {
	llm := &fakeLLM{err: errors.New("rate limited")}
	planner := NewPlanner(llm, testRegistry(t))

	if _, err := planner.Plan(context.Background(), "q"); err == nil {
		t.Fatal("expected an error when generation fails")
	}
}

func TestPlannerUnparseablePlan(t *testing.T) {
	llm := &fakeLLM{responses: []string{"I think you should use the document agent."}}
	planner := NewPlanner(llm, testRegistry(t))

	if _, err := planner.Plan(context.Background(), "q"); err == nil {
		t.Fatal("expected an error for a non-JSON plan")
	}
}

func TestVerifierApproved(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		`{"status": "Approved", "reason": "data covers the question", "response": "the answer"}`,
	}}
	verifier := NewVerifier(llm)

	verdict, err := verifier.Verify(context.Background(), "q", []prompts.Finding{
		{Agent: "DocumentRetrievalAgent", Summary: "relevant text"},
	})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if verdict.Status != models.VerdictApproved {
		t.Errorf("status = %q", verdict.Status)
	}
}

func TestVerifierDeniedWithRewrite(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		"```json\n{\"status\": \"Denied\", \"reason\": \"too vague\", \"rewritten_query\": \"Q3 2025 revenue by region\"}\n```",
	}}
	verifier := NewVerifier(llm)

	verdict, err := verifier.Verify(context.Background(), "revenue?", nil)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if verdict.Status != models.VerdictDenied {
		t.Errorf("status = %q", verdict.Status)
	}
	if verdict.RewrittenQuery != "Q3 2025 revenue by region" {
		t.Errorf("rewritten_query = %q", verdict.RewrittenQuery)
	}
}

func TestVerifierRejectsUnknownStatus(t *testing.T) {
	llm := &fakeLLM{responses: []string{`{"status": "Maybe"}`}}
	verifier := NewVerifier(llm)

	_, err := verifier.Verify(context.Background(), "q", nil)
	if err == nil {
		t.Fatal("expected an error for an unknown verdict status")
	}
	if !errors.Is(err, ErrVerdictUnusable) {
		t.Errorf("err = %v, want ErrVerdictUnusable", err)
	}
}

func TestVerifierProseOutputIsUnusable(t *testing.T) {
	llm := &fakeLLM{responses: []string{"I could not evaluate the findings."}}
	verifier := NewVerifier(llm)

	_, err := verifier.Verify(context.Background(), "q", nil)
	if err == nil {
		t.Fatal("expected an error for non-JSON verifier output")
	}
	if !errors.Is(err, ErrVerdictUnusable) {
		t.Errorf("err = %v, want ErrVerdictUnusable", err)
	}
}

func TestSummarizerReturnsText(t *testing.T) {
	llm := &fakeLLM{responses: []string{"Here is the combined answer."}}
	summarizer := NewSummarizer(llm)

	answer, err := summarizer.Summarize(context.Background(), "q", []prompts.Finding{
		{Agent: "DocumentRetrievalAgent", Summary: "finding one"},
	})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if answer != "Here is the combined answer." {
		t.Errorf("answer = %q", answer)
	}
}
