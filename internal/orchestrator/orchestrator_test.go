package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"agentic-rag-platform/internal/agents"
	"agentic-rag-platform/internal/prompts"
	"agentic-rag-platform/models"
)

type fakePlanner struct {
	plans   []*models.Plan
	queries []string
	err     error
}

func (f *fakePlanner) Plan(_ context.Context, query string) (*models.Plan, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	idx := len(f.queries) - 1
	if idx >= len(f.plans) {
		idx = len(f.plans) - 1
	}
	return f.plans[idx], nil
}

type fakeVerifier struct {
	verdicts []*models.Verdict
	errs     []error
	calls    int
	err      error
}

func (f *fakeVerifier) Verify(_ context.Context, _ string, _ []prompts.Finding) (*models.Verdict, error) {
	idx := f.calls
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if idx >= len(f.verdicts) {
		idx = len(f.verdicts) - 1
	}
	return f.verdicts[idx], nil
}

type fakeSummarizer struct {
	answer string
	err    error
}

func (f *fakeSummarizer) Summarize(_ context.Context, _ string, _ []prompts.Finding) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type fakeAgent struct {
	name      string
	retrieval *models.Retrieval
	err       error
	delay     time.Duration
}

func (f *fakeAgent) Name() string { return f.name }

func (f *fakeAgent) Retrieve(ctx context.Context, _ string) (*models.Retrieval, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.retrieval, nil
}

func docAgent() *fakeAgent {
	return &fakeAgent{
		name: "DocumentRetrievalAgent",
		retrieval: &models.Retrieval{
			Agent:   "DocumentRetrievalAgent",
			Summary: "found relevant policy text",
			Citations: []models.Citation{
				{Source: models.CitationDocument, Title: "Policy Handbook", Ref: "page 2"},
			},
		},
	}
}

func planFor(agents ...string) *models.Plan {
	return &models.Plan{AgentsNeeded: agents, Justification: "test plan"}
}

func TestRunApprovedFirstAttempt(t *testing.T) {
	orch := New(
		&fakePlanner{plans: []*models.Plan{planFor("DocumentRetrievalAgent")}},
		&fakeVerifier{verdicts: []*models.Verdict{{Status: models.VerdictApproved, Reason: "covers it"}}},
		&fakeSummarizer{answer: "Final answer."},
		[]agents.Agent{docAgent()},
		3, time.Second, nil,
	)

	outcome, err := orch.Run(context.Background(), "what is the leave policy?")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if outcome.Status != StatusApproved {
		t.Errorf("status = %q, want approved", outcome.Status)
	}
	if outcome.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", outcome.Attempts)
	}
	if !strings.Contains(outcome.Answer, "Final answer.") {
		t.Errorf("answer missing summary: %q", outcome.Answer)
	}
	if !strings.Contains(outcome.Answer, "**Citations:**") {
		t.Errorf("answer missing citations: %q", outcome.Answer)
	}
	if len(outcome.Citations) != 1 {
		t.Errorf("citations = %v", outcome.Citations)
	}
}

func TestRunRetriesWithRewrittenQuery(t *testing.T) {
	planner := &fakePlanner{plans: []*models.Plan{planFor("DocumentRetrievalAgent")}}
	verifier := &fakeVerifier{verdicts: []*models.Verdict{
		{Status: models.VerdictDenied, Reason: "too vague", RewrittenQuery: "2025 parental leave policy"},
		{Status: models.VerdictApproved},
	}}

	orch := New(planner, verifier, &fakeSummarizer{answer: "done"},
		[]agents.Agent{docAgent()}, 3, time.Second, nil)

	outcome, err := orch.Run(context.Background(), "leave?")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if outcome.Status != StatusApproved {
		t.Errorf("status = %q", outcome.Status)
	}
	if outcome.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", outcome.Attempts)
	}
	// Second attempt must re-plan with the rewritten query.
	if len(planner.queries) != 2 || planner.queries[1] != "2025 parental leave policy" {
		t.Errorf("planner queries = %v", planner.queries)
	}
}

func TestRunDeniedWithoutRewriteStops(t *testing.T) {
	orch := New(
		&fakePlanner{plans: []*models.Plan{planFor("DocumentRetrievalAgent")}},
		&fakeVerifier{verdicts: []*models.Verdict{{Status: models.VerdictDenied, Reason: "out of scope"}}},
		&fakeSummarizer{answer: "unused"},
		[]agents.Agent{docAgent()}, 3, time.Second, nil,
	)

	outcome, err := orch.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Status != StatusDenied {
		t.Errorf("status = %q, want denied", outcome.Status)
	}
	if outcome.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", outcome.Attempts)
	}
}

func TestRunExhaustsRetryBudget(t *testing.T) {
	verifier := &fakeVerifier{verdicts: []*models.Verdict{
		{Status: models.VerdictDenied, Reason: "still vague", RewrittenQuery: "retry"},
	}}
	orch := New(
		&fakePlanner{plans: []*models.Plan{planFor("DocumentRetrievalAgent")}},
		verifier, &fakeSummarizer{answer: "unused"},
		[]agents.Agent{docAgent()}, 2, time.Second, nil,
	)

	outcome, err := orch.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Status != StatusExhausted {
		t.Errorf("status = %q, want exhausted", outcome.Status)
	}
	if outcome.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", outcome.Attempts)
	}
	if !strings.Contains(outcome.Answer, "still vague") {
		t.Errorf("answer should carry the last verifier reason: %q", outcome.Answer)
	}
}

func TestRunUnusableVerdictBurnsAttempt(t *testing.T) {
	planner := &fakePlanner{plans: []*models.Plan{planFor("DocumentRetrievalAgent")}}
	verifier := &fakeVerifier{
		errs:     []error{fmt.Errorf("%w: not json", agents.ErrVerdictUnusable)},
		verdicts: []*models.Verdict{nil, {Status: models.VerdictApproved}},
	}

	orch := New(planner, verifier, &fakeSummarizer{answer: "answer"},
		[]agents.Agent{docAgent()}, 3, time.Second, nil)

	outcome, err := orch.Run(context.Background(), "what is the leave policy?")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if outcome.Status != StatusApproved {
		t.Errorf("status = %q, want approved after a retried attempt", outcome.Status)
	}
	if outcome.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", outcome.Attempts)
	}
	// The retry re-plans with the unchanged query.
	if len(planner.queries) != 2 || planner.queries[1] != "what is the leave policy?" {
		t.Errorf("planner queries = %v", planner.queries)
	}

	var sawFailed bool
	for _, trace := range outcome.Traces {
		if trace.Agent == "verifier" && trace.Status == "failed" {
			sawFailed = true
		}
	}
	if !sawFailed {
		t.Errorf("expected a failed verifier trace: %v", outcome.Traces)
	}
}

func TestRunUnusableVerdictsExhaustBudget(t *testing.T) {
	verifier := &fakeVerifier{err: fmt.Errorf("%w: not json", agents.ErrVerdictUnusable)}
	orch := New(
		&fakePlanner{plans: []*models.Plan{planFor("DocumentRetrievalAgent")}},
		verifier, &fakeSummarizer{answer: "unused"},
		[]agents.Agent{docAgent()}, 2, time.Second, nil,
	)

	outcome, err := orch.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run should not surface unusable verdicts as errors: %v", err)
	}
	if outcome.Status != StatusExhausted {
		t.Errorf("status = %q, want exhausted", outcome.Status)
	}
	if verifier.calls != 2 {
		t.Errorf("verifier called %d times, want 2", verifier.calls)
	}
}

func TestRunVerifierHardErrorAborts(t *testing.T) {
	orch := New(
		&fakePlanner{plans: []*models.Plan{planFor("DocumentRetrievalAgent")}},
		&fakeVerifier{err: errors.New("model unavailable")},
		&fakeSummarizer{answer: "unused"},
		[]agents.Agent{docAgent()}, 3, time.Second, nil,
	)

	if _, err := orch.Run(context.Background(), "q"); err == nil {
		t.Fatal("expected transport-level verifier errors to propagate")
	}
}

func TestRunEmptyPlanNeedsRefinement(t *testing.T) {
	orch := New(
		&fakePlanner{plans: []*models.Plan{{Justification: "no agent fits small talk"}}},
		&fakeVerifier{}, &fakeSummarizer{},
		nil, 3, time.Second, nil,
	)

	outcome, err := orch.Run(context.Background(), "hello!")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Status != StatusNeedsRefinement {
		t.Errorf("status = %q, want needs_refinement", outcome.Status)
	}
}

func TestRunAllAgentsFailMeansNoData(t *testing.T) {
	failing := &fakeAgent{name: "DocumentRetrievalAgent", err: errors.New("index offline")}
	orch := New(
		&fakePlanner{plans: []*models.Plan{planFor("DocumentRetrievalAgent")}},
		&fakeVerifier{}, &fakeSummarizer{},
		[]agents.Agent{failing}, 3, time.Second, nil,
	)

	outcome, err := orch.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Status != StatusNoData {
		t.Errorf("status = %q, want no_data", outcome.Status)
	}

	var sawError bool
	for _, trace := range outcome.Traces {
		if trace.Agent == "DocumentRetrievalAgent" && trace.Status == "error" {
			sawError = true
		}
	}
	if !sawError {
		t.Errorf("expected an error trace for the failing agent: %v", outcome.Traces)
	}
}

func TestRunFailedAgentDoesNotAbortOthers(t *testing.T) {
	failing := &fakeAgent{name: "DatasetRetrievalAgent", err: errors.New("mongo down")}
	orch := New(
		&fakePlanner{plans: []*models.Plan{planFor("DocumentRetrievalAgent", "DatasetRetrievalAgent")}},
		&fakeVerifier{verdicts: []*models.Verdict{{Status: models.VerdictApproved}}},
		&fakeSummarizer{answer: "answer"},
		[]agents.Agent{docAgent(), failing}, 3, time.Second, nil,
	)

	outcome, err := orch.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Status != StatusApproved {
		t.Errorf("status = %q, want approved despite one failing agent", outcome.Status)
	}
}

func TestRunAgentTimeout(t *testing.T) {
	slow := &fakeAgent{name: "DocumentRetrievalAgent", delay: 200 * time.Millisecond, retrieval: &models.Retrieval{}}
	orch := New(
		&fakePlanner{plans: []*models.Plan{planFor("DocumentRetrievalAgent")}},
		&fakeVerifier{}, &fakeSummarizer{},
		[]agents.Agent{slow}, 1, 20*time.Millisecond, nil,
	)

	outcome, err := orch.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Status != StatusNoData {
		t.Errorf("status = %q, want no_data after timeout", outcome.Status)
	}

	var sawTimeout bool
	for _, trace := range outcome.Traces {
		if trace.Status == "timeout" {
			sawTimeout = true
		}
	}
	if !sawTimeout {
		t.Errorf("expected a timeout trace: %v", outcome.Traces)
	}
}

func TestRunSummarizerFailureFallsBackToVerifierResponse(t *testing.T) {
	orch := New(
		&fakePlanner{plans: []*models.Plan{planFor("DocumentRetrievalAgent")}},
		&fakeVerifier{verdicts: []*models.Verdict{{Status: models.VerdictApproved, Response: "verifier draft"}}},
		&fakeSummarizer{err: errors.New("model unavailable")},
		[]agents.Agent{docAgent()}, 3, time.Second, nil,
	)

	outcome, err := orch.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(outcome.Answer, "verifier draft") {
		t.Errorf("answer should fall back to verifier response: %q", outcome.Answer)
	}
}

func TestRunSkipsUnwiredAgents(t *testing.T) {
	orch := New(
		&fakePlanner{plans: []*models.Plan{planFor("DocumentRetrievalAgent", "GhostAgent")}},
		&fakeVerifier{verdicts: []*models.Verdict{{Status: models.VerdictApproved}}},
		&fakeSummarizer{answer: "answer"},
		[]agents.Agent{docAgent()}, 3, time.Second, nil,
	)

	outcome, err := orch.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var sawSkipped bool
	for _, trace := range outcome.Traces {
		if trace.Agent == "GhostAgent" && trace.Status == "skipped" {
			sawSkipped = true
		}
	}
	if !sawSkipped {
		t.Errorf("expected a skipped trace for GhostAgent: %v", outcome.Traces)
	}
}
