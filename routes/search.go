package routes

import (
	"net/http"
	"strconv"

	"agentic-rag-platform/internal/config"
	"agentic-rag-platform/middleware"
	"agentic-rag-platform/services"
	"agentic-rag-platform/utils"

	"github.com/gin-gonic/gin"
)

// SetupSearchRoutes exposes the retrieval layer directly, mainly for
// debugging relevance without running the full agent loop.
func SetupSearchRoutes(router *gin.Engine, cfg *config.Config, search *services.SearchService, authMw *middleware.AuthMiddleware) {
	group := router.Group("/search")
	group.Use(authMw.RequireAuth())

	group.GET("", func(c *gin.Context) {
		query := c.Query("q")
		if query == "" {
			utils.RespondWithBadRequest(c, "Query parameter 'q' is required", nil)
			return
		}

		topK := cfg.RetrievalTopK
		if raw := c.Query("top_k"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 50 {
				topK = parsed
			}
		}

		chunks, err := search.Search(c.Request.Context(), query, topK)
		if err != nil {
			utils.RespondWithInternalError(c, "Search failed", gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"query":   query,
			"results": chunks,
			"count":   len(chunks),
		})
	})
}
