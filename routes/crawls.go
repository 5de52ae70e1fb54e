package routes

import (
	"net/http"
	"net/url"

	"agentic-rag-platform/internal/config"
	"agentic-rag-platform/internal/database"
	"agentic-rag-platform/internal/queue"
	"agentic-rag-platform/middleware"
	"agentic-rag-platform/models"
	"agentic-rag-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type crawlRequest struct {
	URL            string   `json:"url" binding:"required"`
	MaxPages       int      `json:"max_pages,omitempty"`
	AllowedDomains []string `json:"allowed_domains,omitempty"`
	AllowedPaths   []string `json:"allowed_paths,omitempty"`
	FollowLinks    bool     `json:"follow_links"`
	Schedule       string   `json:"schedule,omitempty"`
}

func SetupCrawlRoutes(router *gin.Engine, cfg *config.Config, store *database.Store, asynqClient *asynq.Client, authMw *middleware.AuthMiddleware, roles *middleware.RoleMiddleware) {
	crawls := router.Group("/crawls")
	crawls.Use(authMw.RequireAuth())

	// Register a site and enqueue the first crawl
	crawls.POST("", roles.AdminGuard(), func(c *gin.Context) {
		var req crawlRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		parsed, err := url.Parse(req.URL)
		if err != nil || parsed.Host == "" {
			utils.RespondWithBadRequest(c, "Invalid URL", nil)
			return
		}

		maxPages := req.MaxPages
		if maxPages <= 0 || maxPages > cfg.CrawlMaxPages {
			maxPages = cfg.CrawlMaxPages
		}

		job := &models.CrawlJob{
			URL:            req.URL,
			MaxPages:       maxPages,
			AllowedDomains: req.AllowedDomains,
			AllowedPaths:   req.AllowedPaths,
			FollowLinks:    req.FollowLinks,
			RespectRobots:  cfg.CrawlRespectRobots,
			Schedule:       req.Schedule,
		}
		crawlID, err := store.InsertCrawl(c.Request.Context(), job)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to register crawl", nil)
			return
		}

		task, err := queue.NewRunCrawlTask(crawlID.Hex())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to build crawl task", nil)
			return
		}
		info, err := asynqClient.Enqueue(task)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to enqueue crawl", nil)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"crawl_id": crawlID.Hex(),
			"task_id":  info.ID,
			"message":  "crawl queued",
		})
	})

	crawls.GET("", func(c *gin.Context) {
		list, err := store.ListCrawls(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list crawls", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"crawls": list, "count": len(list)})
	})

	crawls.GET("/:id", func(c *gin.Context) {
		crawlID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid crawl ID", nil)
			return
		}

		job, err := store.GetCrawl(c.Request.Context(), crawlID)
		if err != nil {
			utils.RespondWithNotFound(c, "Crawl not found")
			return
		}
		c.JSON(http.StatusOK, job)
	})
}
