package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agentic-rag-platform/internal/ai"
	"agentic-rag-platform/internal/config"
	"agentic-rag-platform/internal/crawler"
	"agentic-rag-platform/internal/database"
	"agentic-rag-platform/internal/indexer"
	"agentic-rag-platform/internal/logger"
	"agentic-rag-platform/internal/queue"
	"agentic-rag-platform/internal/telemetry"
	"agentic-rag-platform/routes"
	"agentic-rag-platform/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("agentic-rag-worker")
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
	} else {
		defer shutdownTracer()
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	store := database.NewStore(mongoClient.Database(cfg.DBName))

	// Embedder for the indexing pipeline
	embedder, err := ai.NewEmbedder(context.Background(), cfg.GeminiAPIKey, cfg.EmbeddingsModel)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	mailer := services.NewMailer(cfg)
	chunker := services.NewChunker(cfg.MaxChunkSize, cfg.ChunkOverlap, cfg.MinChunkSize)

	// Document indexing: extract → chunk → embed → store
	pipeline := indexer.NewPipeline(
		services.NewPDFExtractor(),
		chunker,
		embedder,
		store,
		cfg.CompressionThreshold,
	)
	runner := indexer.NewRunner(pipeline, store, store, metrics, mailer)

	datasetService := services.NewDatasetService(store)
	webIngest := services.NewWebIngestService(store, chunker, embedder, metrics, mailer, cfg)

	// Redis options for Asynq
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	// Create task processor
	processor := queue.NewTaskProcessor(runner, datasetService, webIngest)

	// Create mux and register handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIndexDocument, processor.HandleIndexDocument)
	mux.HandleFunc(queue.TaskImportDataset, processor.HandleImportDataset)
	mux.HandleFunc(queue.TaskRunCrawl, processor.HandleRunCrawl)

	// Recurring jobs: per-crawl recrawl schedules plus staged upload cleanup
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	sched := crawler.NewScheduler()
	enqueueCrawl := func(crawlID primitive.ObjectID) error {
		task, err := queue.NewRunCrawlTask(crawlID.Hex())
		if err != nil {
			return err
		}
		_, err = asynqClient.Enqueue(task)
		return err
	}
	if err := webIngest.RegisterSchedules(context.Background(), sched, enqueueCrawl); err != nil {
		logger.Warn("Failed to register recrawl schedules", "error", err)
	}
	if err := sched.ScheduleJob("cleanup:uploads", cfg.RecrawlCron, func() error {
		return routes.CleanStagedUploads(cfg.FileStorageDir)
	}); err != nil {
		logger.Warn("Failed to schedule upload cleanup", "error", err)
	}
	sched.Start()
	defer sched.Stop()

	logger.Info("🚀 Starting worker",
		"concurrency", 10, "redis", redisOpt.Addr,
		"queues", "critical(6) default(3) low(1)")

	// Start the server
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
