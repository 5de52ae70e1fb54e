package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agentic-rag-platform/internal/indexer"
	"agentic-rag-platform/internal/logger"
	"agentic-rag-platform/services"
)

const (
	TaskIndexDocument = "document:index"
	TaskImportDataset = "dataset:import"
	TaskRunCrawl      = "crawl:run"
)

type IndexDocumentPayload struct {
	DocumentID string `json:"document_id"`
	FilePath   string `json:"file_path"`
}

type ImportDatasetPayload struct {
	Name       string `json:"name"`
	FilePath   string `json:"file_path"`
	UploadedBy string `json:"uploaded_by"`
}

type RunCrawlPayload struct {
	CrawlID string `json:"crawl_id"`
}

// Task creators

func NewIndexDocumentTask(documentID, filePath string) (*asynq.Task, error) {
	payload, err := json.Marshal(IndexDocumentPayload{
		DocumentID: documentID,
		FilePath:   filePath,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIndexDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(15*time.Minute),
		asynq.Queue("critical"),
	), nil
}

func NewImportDatasetTask(name, filePath, uploadedBy string) (*asynq.Task, error) {
	payload, err := json.Marshal(ImportDatasetPayload{
		Name:       name,
		FilePath:   filePath,
		UploadedBy: uploadedBy,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskImportDataset,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("default"),
	), nil
}

func NewRunCrawlTask(crawlID string) (*asynq.Task, error) {
	payload, err := json.Marshal(RunCrawlPayload{CrawlID: crawlID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskRunCrawl,
		payload,
		asynq.MaxRetry(2),
		asynq.Timeout(30*time.Minute),
		asynq.Queue("low"),
	), nil
}

// TaskProcessor holds the services the worker handlers dispatch to.
type TaskProcessor struct {
	runner    *indexer.Runner
	datasets  *services.DatasetService
	webIngest *services.WebIngestService
}

func NewTaskProcessor(runner *indexer.Runner, datasets *services.DatasetService, webIngest *services.WebIngestService) *TaskProcessor {
	return &TaskProcessor{
		runner:    runner,
		datasets:  datasets,
		webIngest: webIngest,
	}
}

func (p *TaskProcessor) HandleIndexDocument(ctx context.Context, t *asynq.Task) error {
	var payload IndexDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	documentID, err := primitive.ObjectIDFromHex(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", payload.DocumentID, asynq.SkipRetry)
	}

	logger.Info("Indexing document", "document_id", payload.DocumentID, "file", payload.FilePath)

	run, err := p.runner.Execute(ctx, documentID, payload.FilePath)
	if err != nil {
		// The run record already carries the failure; retrying re-runs the
		// whole pipeline, which is safe because the chunk set is replaced
		// atomically.
		return err
	}

	logger.Info("Document indexed",
		"document_id", payload.DocumentID, "run_id", run.ID.Hex(),
		"chunks", run.Counters.Stored)
	return nil
}

func (p *TaskProcessor) HandleImportDataset(ctx context.Context, t *asynq.Task) error {
	var payload ImportDatasetPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	uploadedBy := primitive.NilObjectID
	if payload.UploadedBy != "" {
		id, err := primitive.ObjectIDFromHex(payload.UploadedBy)
		if err != nil {
			return fmt.Errorf("invalid uploader id %q: %w", payload.UploadedBy, asynq.SkipRetry)
		}
		uploadedBy = id
	}

	logger.Info("Importing dataset", "name", payload.Name, "file", payload.FilePath)

	ds, err := p.datasets.ImportXLSX(ctx, payload.Name, payload.FilePath, uploadedBy)
	if err != nil {
		if services.IsDuplicateDataset(err) {
			logger.Warn("Dataset already imported, skipping", "name", payload.Name)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	logger.Info("Dataset imported", "name", ds.Name, "rows", ds.RowCount)
	return nil
}

func (p *TaskProcessor) HandleRunCrawl(ctx context.Context, t *asynq.Task) error {
	var payload RunCrawlPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	crawlID, err := primitive.ObjectIDFromHex(payload.CrawlID)
	if err != nil {
		return fmt.Errorf("invalid crawl id %q: %w", payload.CrawlID, asynq.SkipRetry)
	}

	return p.webIngest.Ingest(ctx, crawlID)
}
