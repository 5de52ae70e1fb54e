package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"agentic-rag-platform/internal/agents"
	"agentic-rag-platform/internal/ai"
	"agentic-rag-platform/internal/config"
	"agentic-rag-platform/internal/database"
	"agentic-rag-platform/internal/logger"
	"agentic-rag-platform/internal/orchestrator"
	"agentic-rag-platform/internal/telemetry"
	"agentic-rag-platform/middleware"
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

	// Tracing and metrics
	shutdownTracer, err := telemetry.InitTracer("agentic-rag-platform")
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
	db := mongoClient.Database(cfg.DBName)
	store := database.NewStore(db)

	// Connect to Redis
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	// LLM client and embedder
	llm, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiTier, cfg.ChatModel)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer llm.Close()
	if metrics != nil {
		llm.SetMetrics(metrics)
	}

	embedder, err := ai.NewEmbedder(context.Background(), cfg.GeminiAPIKey, cfg.EmbeddingsModel)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	// Agent registry and retrieval agents
	registry, err := agents.LoadRegistry(cfg.AgentStorePath)
	if err != nil {
		log.Fatal("Failed to load agent registry:", err)
	}

	searchService := services.NewSearchService(db, embedder, cfg)

	var retrievers []agents.Agent
	if registry.IsEnabled(agents.DocumentAgentName) {
		retrievers = append(retrievers, agents.NewDocumentAgent(searchService, cfg.RetrievalTopK))
	}
	if registry.IsEnabled(agents.DatasetAgentName) {
		retrievers = append(retrievers, agents.NewDatasetAgent(db, cfg.DatasetRowLimit))
	}
	if registry.IsEnabled(agents.WebAgentName) {
		retrievers = append(retrievers, agents.NewWebAgent(
			llm, cfg.WebSearchEndpoint, cfg.WebResultLimit,
			time.Duration(cfg.WebFetchTimeout)*time.Second, searchService))
	}

	orch := orchestrator.New(
		agents.NewPlanner(llm, registry),
		agents.NewVerifier(llm),
		agents.NewSummarizer(llm),
		retrievers,
		cfg.MaxVerifyAttempts,
		time.Duration(cfg.AgentTimeout)*time.Second,
		metrics,
	)

	mailer := services.NewMailer(cfg)

	// Asynq client for enqueueing background work
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer asynqClient.Close()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	if metrics != nil {
		router.Use(middleware.MetricsMiddleware(metrics))
	}
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	router.Use(middleware.RequestSizeLimit(cfg.MaxFileSize))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := mongoClient.Ping(ctx, nil); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg, rdb)
	roleMiddleware := middleware.NewRoleMiddleware()

	// Setup routes
	routes.SetupAuthRoutes(router, cfg, store, rdb)
	routes.SetupChatRoutes(router, cfg, store, rdb, orch, mailer, authMiddleware, roleMiddleware)
	routes.SetupDocumentRoutes(router, cfg, store, asynqClient, authMiddleware, roleMiddleware)
	routes.SetupDatasetRoutes(router, cfg, store, asynqClient, authMiddleware, roleMiddleware)
	routes.SetupCrawlRoutes(router, cfg, store, asynqClient, authMiddleware, roleMiddleware)
	routes.SetupSearchRoutes(router, cfg, searchService, authMiddleware)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port, "agents", registry.Enabled())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
