package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agentic-rag-platform/internal/config"
	"agentic-rag-platform/internal/crawler"
	"agentic-rag-platform/internal/database"
	"agentic-rag-platform/internal/indexer"
	"agentic-rag-platform/internal/logger"
	"agentic-rag-platform/internal/telemetry"
	"agentic-rag-platform/models"
)

// Crawl job statuses
const (
	CrawlPending   = "pending"
	CrawlRunning   = "crawling"
	CrawlCompleted = "completed"
	CrawlFailed    = "failed"
)

// WebIngestService crawls a registered site and feeds the pages through the
// same indexing pipeline used for uploaded documents, so crawls produce
// indexer runs and web-source chunks like any other ingestion.
type WebIngestService struct {
	store    *database.Store
	chunker  indexer.Chunker
	embedder indexer.Embedder
	metrics  *telemetry.Metrics
	notifier indexer.FailureNotifier
	cfg      *config.Config
}

func NewWebIngestService(store *database.Store, chunker indexer.Chunker, embedder indexer.Embedder, metrics *telemetry.Metrics, notifier indexer.FailureNotifier, cfg *config.Config) *WebIngestService {
	return &WebIngestService{
		store:    store,
		chunker:  chunker,
		embedder: embedder,
		metrics:  metrics,
		notifier: notifier,
		cfg:      cfg,
	}
}

// staticPages adapts an already-crawled page set to the pipeline's Extractor
// interface. The file path argument is unused; the pages live in memory.
type staticPages struct {
	pages []models.CrawledPage
}

func (s staticPages) Extract(_ context.Context, _ string) ([]indexer.Page, error) {
	out := make([]indexer.Page, 0, len(s.pages))
	for i, p := range s.pages {
		out = append(out, indexer.Page{
			Number:   i + 1,
			Text:     p.Content,
			Title:    p.Title,
			URL:      p.URL,
			Keywords: p.Keywords,
		})
	}
	return out, nil
}

// Ingest runs one crawl job end to end: crawl, index, update job state.
func (w *WebIngestService) Ingest(ctx context.Context, crawlID primitive.ObjectID) error {
	job, err := w.store.GetCrawl(ctx, crawlID)
	if err != nil {
		return fmt.Errorf("failed to load crawl job %s: %w", crawlID.Hex(), err)
	}

	if err := w.store.UpdateCrawl(ctx, crawlID, bson.M{"status": CrawlRunning, "error": ""}); err != nil {
		return err
	}

	result, err := w.crawl(job)
	if err != nil {
		return w.fail(ctx, crawlID, err)
	}
	if result.Error != nil && len(result.Pages) == 0 {
		return w.fail(ctx, crawlID, result.Error)
	}
	if len(result.Pages) == 0 {
		return w.fail(ctx, crawlID, fmt.Errorf("crawl of %s produced no pages", job.URL))
	}

	docID, err := w.documentFor(ctx, job, result)
	if err != nil {
		return w.fail(ctx, crawlID, err)
	}

	pipeline := indexer.NewPipeline(staticPages{pages: result.Pages}, w.chunker, w.embedder, w.store, w.cfg.CompressionThreshold)
	runner := indexer.NewRunner(pipeline, w.store, w.store, w.metrics, w.notifier)

	run, runErr := runner.Execute(ctx, docID, "")
	if runErr != nil {
		return w.fail(ctx, crawlID, fmt.Errorf("indexing crawled pages failed: %w", runErr))
	}

	now := time.Now()
	update := bson.M{
		"status":        CrawlCompleted,
		"title":         result.Title,
		"pages_found":   result.PagesFound,
		"pages_crawled": len(result.Pages),
		"document_id":   docID,
		"completed_at":  now,
	}
	if err := w.store.UpdateCrawl(ctx, crawlID, update); err != nil {
		return err
	}

	logger.Info("Crawl ingested",
		"crawl_id", crawlID.Hex(), "url", job.URL,
		"pages", len(result.Pages), "chunks", run.Counters.Stored)
	return nil
}

func (w *WebIngestService) crawl(job *models.CrawlJob) (*crawler.CrawlResult, error) {
	maxPages := job.MaxPages
	if maxPages <= 0 {
		maxPages = w.cfg.CrawlMaxPages
	}

	return crawler.CrawlURL(crawler.CrawlConfig{
		URL:            job.URL,
		MaxPages:       maxPages,
		AllowedDomains: job.AllowedDomains,
		AllowedPaths:   job.AllowedPaths,
		FollowLinks:    job.FollowLinks,
		RespectRobots:  job.RespectRobots || w.cfg.CrawlRespectRobots,
	})
}

// documentFor returns the document backing this crawl, creating it on the
// first run and reusing it on recrawls so chunks get replaced in place.
func (w *WebIngestService) documentFor(ctx context.Context, job *models.CrawlJob, result *crawler.CrawlResult) (primitive.ObjectID, error) {
	if !job.DocumentID.IsZero() {
		if _, err := w.store.GetDocument(ctx, job.DocumentID); err == nil {
			return job.DocumentID, nil
		}
		logger.Warn("Crawl job references missing document, creating a new one",
			"crawl_id", job.ID.Hex(), "document_id", job.DocumentID.Hex())
	}

	title := result.Title
	if title == "" {
		title = job.URL
	}

	return w.store.InsertDocument(ctx, &models.Document{
		Title:  title,
		URL:    job.URL,
		Source: models.SourceWeb,
		Status: models.DocumentPending,
	})
}

func (w *WebIngestService) fail(ctx context.Context, crawlID primitive.ObjectID, cause error) error {
	logger.Error("Crawl ingestion failed", "crawl_id", crawlID.Hex(), "error", cause)
	if err := w.store.UpdateCrawl(ctx, crawlID, bson.M{
		"status": CrawlFailed,
		"error":  cause.Error(),
	}); err != nil {
		logger.Error("Failed to mark crawl failed", "crawl_id", crawlID.Hex(), "error", err)
	}
	return cause
}

// RegisterSchedules registers a recurring recrawl for every job with a cron
// schedule. enqueue is called with the crawl ID when the schedule fires,
// typically to push a crawl task onto the work queue.
func (w *WebIngestService) RegisterSchedules(ctx context.Context, sched *crawler.Scheduler, enqueue func(crawlID primitive.ObjectID) error) error {
	jobs, err := w.store.ListCrawls(ctx)
	if err != nil {
		return err
	}

	registered := 0
	for _, job := range jobs {
		if job.Schedule == "" {
			continue
		}
		id := job.ID
		tag := "recrawl:" + id.Hex()
		if err := sched.ScheduleJob(tag, job.Schedule, func() error {
			return enqueue(id)
		}); err != nil {
			logger.Warn("Failed to schedule recrawl", "crawl_id", id.Hex(), "schedule", job.Schedule, "error", err)
			continue
		}
		registered++
	}

	if registered > 0 {
		logger.Info("Recrawl schedules registered", "count", registered)
	}
	return nil
}
