package indexer

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"agentic-rag-platform/internal/database"
	"agentic-rag-platform/internal/logger"
	"agentic-rag-platform/internal/telemetry"
	"agentic-rag-platform/models"
)

// RunStore persists indexer run state. Satisfied by database.Store.
type RunStore interface {
	CreateRun(ctx context.Context, documentID primitive.ObjectID) (*models.IndexerRun, error)
	GetRun(ctx context.Context, id primitive.ObjectID) (*models.IndexerRun, error)
	UpdateRunProgress(ctx context.Context, id primitive.ObjectID, stage string, counters models.RunCounters) error
	FinishRun(ctx context.Context, id primitive.ObjectID, status string, counters models.RunCounters, errMsg string) error
}

// DocumentStore persists document state. Satisfied by database.Store.
type DocumentStore interface {
	GetDocument(ctx context.Context, id primitive.ObjectID) (*models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id primitive.ObjectID, status, errMsg string) error
	MarkDocumentIndexed(ctx context.Context, id primitive.ObjectID, pages, chunkCount int) error
}

// FailureNotifier is told about failed runs (e.g. to email admins).
type FailureNotifier interface {
	NotifyRunFailure(doc *models.Document, run *models.IndexerRun, cause error)
}

// Runner executes the pipeline for a document and owns the run's status
// lifecycle: pending → running → succeeded/failed.
type Runner struct {
	pipeline *Pipeline
	runs     RunStore
	docs     DocumentStore
	metrics  *telemetry.Metrics
	notifier FailureNotifier
}

func NewRunner(pipeline *Pipeline, runs RunStore, docs DocumentStore, metrics *telemetry.Metrics, notifier FailureNotifier) *Runner {
	return &Runner{
		pipeline: pipeline,
		runs:     runs,
		docs:     docs,
		metrics:  metrics,
		notifier: notifier,
	}
}

// Execute indexes one staged document, returning the finished run.
func (r *Runner) Execute(ctx context.Context, documentID primitive.ObjectID, filePath string) (*models.IndexerRun, error) {
	doc, err := r.docs.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", documentID.Hex(), err)
	}

	run, err := r.runs.CreateRun(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if err := r.docs.UpdateDocumentStatus(ctx, documentID, models.DocumentProcessing, ""); err != nil {
		logger.Warn("Failed to mark document processing", "document_id", documentID.Hex(), "error", err)
	}

	start := time.Now()
	counters, pipelineErr := r.pipeline.Execute(ctx, doc, filePath, func(stage string, c models.RunCounters) {
		if err := r.runs.UpdateRunProgress(ctx, run.ID, stage, c); err != nil {
			logger.Warn("Failed to persist run progress", "run_id", run.ID.Hex(), "stage", stage, "error", err)
		}
	})
	elapsed := time.Since(start).Seconds()

	if pipelineErr != nil {
		if err := r.runs.FinishRun(ctx, run.ID, models.RunFailed, counters, pipelineErr.Error()); err != nil {
			logger.Error("Failed to mark run failed", "run_id", run.ID.Hex(), "error", err)
		}
		if err := r.docs.UpdateDocumentStatus(ctx, documentID, models.DocumentFailed, pipelineErr.Error()); err != nil {
			logger.Error("Failed to mark document failed", "document_id", documentID.Hex(), "error", err)
		}
		if r.metrics != nil {
			r.metrics.RecordIndexingRun(elapsed, models.RunFailed)
		}

		failed, err := r.runs.GetRun(ctx, run.ID)
		if err != nil {
			failed = run
			failed.Status = models.RunFailed
		}
		if r.notifier != nil {
			r.notifier.NotifyRunFailure(doc, failed, pipelineErr)
		}

		logger.Error("Indexing run failed",
			"run_id", run.ID.Hex(), "document_id", documentID.Hex(), "error", pipelineErr)
		return failed, pipelineErr
	}

	if err := r.runs.FinishRun(ctx, run.ID, models.RunSucceeded, counters, ""); err != nil {
		return nil, fmt.Errorf("failed to mark run succeeded: %w", err)
	}
	if err := r.docs.MarkDocumentIndexed(ctx, documentID, counters.Pages, counters.Stored); err != nil {
		logger.Error("Failed to mark document indexed", "document_id", documentID.Hex(), "error", err)
	}
	if r.metrics != nil {
		r.metrics.RecordIndexingRun(elapsed, models.RunSucceeded)
		r.metrics.RecordChunksStored(int64(counters.Stored), doc.Source)
	}

	logger.Info("Indexing run succeeded",
		"run_id", run.ID.Hex(), "document_id", documentID.Hex(),
		"pages", counters.Pages, "chunks", counters.Stored)

	return r.runs.GetRun(ctx, run.ID)
}

// PollRun polls a run until it reaches a terminal state or ctx expires.
func PollRun(ctx context.Context, runs RunStore, runID primitive.ObjectID, interval time.Duration) (*models.IndexerRun, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		run, err := runs.GetRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		if run.Terminal() {
			return run, nil
		}

		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-ticker.C:
		}
	}
}

// statically assert database.Store satisfies the store interfaces.
var (
	_ RunStore      = (*database.Store)(nil)
	_ DocumentStore = (*database.Store)(nil)
	_ ChunkWriter   = (*database.Store)(nil)
)
