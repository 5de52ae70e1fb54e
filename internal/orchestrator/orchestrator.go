package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"agentic-rag-platform/internal/agents"
	"agentic-rag-platform/internal/logger"
	"agentic-rag-platform/internal/prompts"
	"agentic-rag-platform/internal/telemetry"
	"agentic-rag-platform/models"
)

// Outcome statuses.
const (
	StatusApproved        = "approved"
	StatusDenied          = "denied"
	StatusNeedsRefinement = "needs_refinement"
	StatusNoData          = "no_data"
	StatusExhausted       = "exhausted"
)

// Outcome is the result of one full orchestration run.
type Outcome struct {
	Answer    string              `json:"answer"`
	Status    string              `json:"status"`
	Attempts  int                 `json:"attempts"`
	Citations []models.Citation   `json:"citations,omitempty"`
	Traces    []models.AgentTrace `json:"traces,omitempty"`
}

// Planner, Verifier and Summarizer interfaces let tests drive the loop with
// canned behavior.
type Planner interface {
	Plan(ctx context.Context, query string) (*models.Plan, error)
}

type Verifier interface {
	Verify(ctx context.Context, query string, findings []prompts.Finding) (*models.Verdict, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, query string, findings []prompts.Finding) (string, error)
}

// Orchestrator runs the plan → retrieve → verify → summarize loop.
type Orchestrator struct {
	planner      Planner
	verifier     Verifier
	summarizer   Summarizer
	retrievers   map[string]agents.Agent
	maxAttempts  int
	agentTimeout time.Duration
	metrics      *telemetry.Metrics
}

func New(planner Planner, verifier Verifier, summarizer Summarizer, retrievers []agents.Agent, maxAttempts int, agentTimeout time.Duration, metrics *telemetry.Metrics) *Orchestrator {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if agentTimeout <= 0 {
		agentTimeout = 90 * time.Second
	}

	byName := make(map[string]agents.Agent, len(retrievers))
	for _, agent := range retrievers {
		byName[agent.Name()] = agent
	}

	return &Orchestrator{
		planner:      planner,
		verifier:     verifier,
		summarizer:   summarizer,
		retrievers:   byName,
		maxAttempts:  maxAttempts,
		agentTimeout: agentTimeout,
		metrics:      metrics,
	}
}

// Run answers a query. Each attempt re-plans with the current query; a
// denied verdict with a rewritten query drives the next attempt, up to
// maxAttempts. An approved verdict always ends the loop.
func (o *Orchestrator) Run(ctx context.Context, query string) (*Outcome, error) {
	tracer := otel.Tracer("orchestrator")
	ctx, span := tracer.Start(ctx, "orchestrator.run")
	defer span.End()

	outcome := &Outcome{}
	currentQuery := query
	var lastVerdict *models.Verdict

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		outcome.Attempts = attempt
		span.SetAttributes(attribute.Int("orchestrator.attempt", attempt))

		plan, err := o.planner.Plan(ctx, currentQuery)
		if err != nil {
			return nil, fmt.Errorf("planning failed on attempt %d: %w", attempt, err)
		}
		outcome.Traces = append(outcome.Traces, models.AgentTrace{
			Agent:   "planner",
			Attempt: attempt,
			Status:  "done",
			Detail:  plan.Justification,
		})

		if len(plan.AgentsNeeded) == 0 {
			outcome.Status = StatusNeedsRefinement
			outcome.Answer = "No retrieval agent matches this query. " + plan.Justification
			return outcome, nil
		}

		retrievals := o.fanOut(ctx, currentQuery, plan.AgentsNeeded, attempt, outcome)
		if len(retrievals) == 0 {
			outcome.Status = StatusNoData
			outcome.Answer = "None of the selected agents returned data for this query. Try rephrasing it or narrowing the topic."
			return outcome, nil
		}

		findings := toFindings(retrievals)

		verdict, err := o.verifier.Verify(ctx, currentQuery, findings)
		if err != nil {
			// Garbage from the verifier burns the attempt, it does not abort
			// the whole exchange. The next attempt re-plans with the same query.
			if errors.Is(err, agents.ErrVerdictUnusable) {
				logger.Warn("Verifier output unusable, retrying",
					"attempt", attempt, "error", err)
				outcome.Traces = append(outcome.Traces, models.AgentTrace{
					Agent:   "verifier",
					Attempt: attempt,
					Status:  "failed",
					Detail:  err.Error(),
				})
				continue
			}
			return nil, fmt.Errorf("verification failed on attempt %d: %w", attempt, err)
		}
		lastVerdict = verdict
		outcome.Traces = append(outcome.Traces, models.AgentTrace{
			Agent:   "verifier",
			Attempt: attempt,
			Status:  "done",
			Detail:  verdict.Status + ": " + verdict.Reason,
		})
		if o.metrics != nil {
			o.metrics.RecordVerdict(verdict.Status, attempt)
		}

		if verdict.Status == models.VerdictApproved {
			answer, err := o.summarizer.Summarize(ctx, query, findings)
			if err != nil {
				logger.Warn("Summary generation failed, falling back to verifier response", "error", err)
				answer = verdict.Response
			}
			outcome.Traces = append(outcome.Traces, models.AgentTrace{
				Agent:   "summary",
				Attempt: attempt,
				Status:  "done",
			})

			citations := collectCitations(retrievals)
			outcome.Status = StatusApproved
			outcome.Citations = DedupeCitations(citations)
			outcome.Answer = AppendCitations(answer, citations)
			return outcome, nil
		}

		if verdict.RewrittenQuery == "" {
			outcome.Status = StatusDenied
			outcome.Answer = "The retrieved data does not answer this query. " + verdict.Reason
			return outcome, nil
		}

		logger.Info("Verifier denied attempt, retrying with rewritten query",
			"attempt", attempt, "rewritten_query", verdict.RewrittenQuery)
		currentQuery = verdict.RewrittenQuery
	}

	outcome.Status = StatusExhausted
	outcome.Answer = "Could not assemble a verified answer within the retry budget."
	if lastVerdict != nil && lastVerdict.Reason != "" {
		outcome.Answer += " Last verifier assessment: " + lastVerdict.Reason
	}
	return outcome, nil
}

// fanOut runs the selected retrieval agents in parallel, each under its own
// timeout. A failed or timed-out agent contributes a trace entry but never
// aborts the others.
func (o *Orchestrator) fanOut(ctx context.Context, query string, names []string, attempt int, outcome *Outcome) map[string]*models.Retrieval {
	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		retrievals = make(map[string]*models.Retrieval)
	)

	for _, name := range names {
		agent, ok := o.retrievers[name]
		if !ok {
			mu.Lock()
			outcome.Traces = append(outcome.Traces, models.AgentTrace{
				Agent:   name,
				Attempt: attempt,
				Status:  "skipped",
				Detail:  "no retriever wired for this agent",
			})
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(agent agents.Agent) {
			defer wg.Done()

			agentCtx, cancel := context.WithTimeout(ctx, o.agentTimeout)
			defer cancel()

			start := time.Now()
			retrieval, err := agent.Retrieve(agentCtx, query)
			elapsed := time.Since(start)

			trace := models.AgentTrace{
				Agent:    agent.Name(),
				Attempt:  attempt,
				Duration: elapsed,
			}

			switch {
			case err != nil && agentCtx.Err() == context.DeadlineExceeded:
				trace.Status = "timeout"
				trace.Detail = fmt.Sprintf("no response within %s", o.agentTimeout)
				logger.Warn("Retrieval agent timed out", "agent", agent.Name(), "attempt", attempt)
			case err != nil:
				trace.Status = "error"
				trace.Detail = err.Error()
				logger.Error("Retrieval agent failed", "agent", agent.Name(), "attempt", attempt, "error", err)
			default:
				trace.Status = "done"
			}
			if o.metrics != nil {
				o.metrics.RecordAgentRun(agent.Name(), trace.Status)
			}

			mu.Lock()
			defer mu.Unlock()
			outcome.Traces = append(outcome.Traces, trace)
			if err == nil && retrieval != nil {
				retrievals[agent.Name()] = retrieval
			}
		}(agent)
	}

	wg.Wait()
	return retrievals
}

func toFindings(retrievals map[string]*models.Retrieval) []prompts.Finding {
	names := make([]string, 0, len(retrievals))
	for name := range retrievals {
		names = append(names, name)
	}
	sort.Strings(names)

	findings := make([]prompts.Finding, 0, len(names))
	for _, name := range names {
		findings = append(findings, prompts.Finding{
			Agent:   name,
			Summary: retrievals[name].Summary,
		})
	}
	return findings
}

func collectCitations(retrievals map[string]*models.Retrieval) []models.Citation {
	names := make([]string, 0, len(retrievals))
	for name := range retrievals {
		names = append(names, name)
	}
	sort.Strings(names)

	var citations []models.Citation
	for _, name := range names {
		citations = append(citations, retrievals[name].Citations...)
	}
	return citations
}
