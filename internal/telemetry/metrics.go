package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter   metric.Int64Counter
	RequestDuration  metric.Float64Histogram
	TokensUsed       metric.Int64Counter
	IndexingDuration metric.Float64Histogram
	AgentRuns        metric.Int64Counter
	VerifierVerdicts metric.Int64Counter
	ChunksStored     metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("agentic-rag-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
	)
	if err != nil {
		return nil, err
	}

	indexingDuration, err := meter.Float64Histogram(
		"indexer.run.duration",
		metric.WithDescription("Document indexing run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	agentRuns, err := meter.Int64Counter(
		"agents.runs.total",
		metric.WithDescription("Retrieval agent executions by outcome"),
	)
	if err != nil {
		return nil, err
	}

	verifierVerdicts, err := meter.Int64Counter(
		"verifier.verdicts.total",
		metric.WithDescription("Verifier verdicts by status"),
	)
	if err != nil {
		return nil, err
	}

	chunksStored, err := meter.Int64Counter(
		"indexer.chunks.stored",
		metric.WithDescription("Total chunks written by the indexer"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:   requestCounter,
		RequestDuration:  requestDuration,
		TokensUsed:       tokensUsed,
		IndexingDuration: indexingDuration,
		AgentRuns:        agentRuns,
		VerifierVerdicts: verifierVerdicts,
		ChunksStored:     chunksStored,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordTokensUsed records Gemini token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	attrs := []attribute.KeyValue{
		attribute.String("gemini.model", model),
		attribute.String("service", "gemini"),
	}

	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(attrs...))
}

// RecordIndexingRun records an indexer run duration with its final status
func (m *Metrics) RecordIndexingRun(duration float64, status string) {
	attrs := []attribute.KeyValue{
		attribute.String("run.status", status),
		attribute.String("service", "indexer"),
	}

	m.IndexingDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordAgentRun records a retrieval agent execution
func (m *Metrics) RecordAgentRun(agent, status string) {
	attrs := []attribute.KeyValue{
		attribute.String("agent.name", agent),
		attribute.String("agent.status", status),
	}

	m.AgentRuns.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordVerdict records a verifier verdict
func (m *Metrics) RecordVerdict(status string, attempt int) {
	attrs := []attribute.KeyValue{
		attribute.String("verdict.status", status),
		attribute.Int("verdict.attempt", attempt),
	}

	m.VerifierVerdicts.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordChunksStored records chunks written for a document
func (m *Metrics) RecordChunksStored(count int64, source string) {
	attrs := []attribute.KeyValue{
		attribute.String("chunk.source", source),
	}

	m.ChunksStored.Add(context.Background(), count, metric.WithAttributes(attrs...))
}
