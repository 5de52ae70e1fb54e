package routes

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"agentic-rag-platform/internal/ai"
	"agentic-rag-platform/internal/config"
	"agentic-rag-platform/internal/database"
	"agentic-rag-platform/internal/logger"
	"agentic-rag-platform/internal/orchestrator"
	"agentic-rag-platform/middleware"
	"agentic-rag-platform/models"
	"agentic-rag-platform/services"
	"agentic-rag-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// estimated tokens per orchestrated chat turn, used for the quota check
// before any model call is made
const chatTokenEstimate = 4000

func SetupChatRoutes(router *gin.Engine, cfg *config.Config, store *database.Store, rdb *redis.Client, orch *orchestrator.Orchestrator, mailer *services.Mailer, authMw *middleware.AuthMiddleware, roles *middleware.RoleMiddleware) {
	chat := router.Group("/chat")
	chat.Use(authMw.RequireAuth())
	// Chat burns model tokens, so admins get a higher ceiling here than the
	// global per-IP limit allows.
	chat.Use(middleware.RoleBasedRateLimit(rdb, cfg))

	chat.POST("/send", func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		userID, err := userObjectID(c)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid user ID")
			return
		}
		ctx := c.Request.Context()

		if err := ai.CheckUserQuota(ctx, userID.Hex(), chatTokenEstimate, store.DB()); err != nil {
			if errors.Is(err, ai.ErrQuotaExceeded) {
				utils.RespondWithError(c, http.StatusTooManyRequests,
					"quota_exceeded", "Daily token quota exceeded", nil)
				return
			}
			utils.RespondWithInternalError(c, "Failed to check quota", nil)
			return
		}

		// New conversation unless the client continues an existing one
		conversationID := req.ConversationID
		if conversationID == "" {
			title := req.Message
			if len(title) > 80 {
				title = title[:80]
			}
			conv, err := store.CreateConversation(ctx, userID, title)
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to create conversation", nil)
				return
			}
			conversationID = conv.ID.Hex()
		}

		if err := store.AppendMessage(ctx, &models.Message{
			ConversationID: conversationID,
			UserID:         userID,
			Role:           "user",
			Content:        req.Message,
		}); err != nil {
			logger.Warn("Failed to persist user message", "conversation_id", conversationID, "error", err)
		}

		outcome, err := orch.Run(ctx, req.Message)
		if err != nil {
			requestID := middleware.GetRequestID(c)
			logger.Error("Orchestrator run failed",
				"request_id", requestID, "conversation_id", conversationID, "error", err)
			utils.RespondWithInternalError(c, "Failed to answer the question",
				gin.H{"error": err.Error(), "request_id": requestID})
			return
		}

		if err := store.AppendMessage(ctx, &models.Message{
			ConversationID: conversationID,
			UserID:         userID,
			Role:           "assistant",
			Content:        outcome.Answer,
			Citations:      outcome.Citations,
			Traces:         outcome.Traces,
		}); err != nil {
			logger.Warn("Failed to persist assistant message", "conversation_id", conversationID, "error", err)
		}

		if cfg.EmailChatSummaries && outcome.Status == orchestrator.StatusApproved {
			if user, err := store.FindUserByID(ctx, userID); err == nil && user.Email != "" {
				go func(email, query, answer string) {
					if err := mailer.SendChatSummary(email, query, answer); err != nil {
						logger.Warn("Failed to send chat summary email", "error", err)
					}
				}(user.Email, req.Message, outcome.Answer)
			}
		}

		c.JSON(http.StatusOK, models.ChatResponse{
			Reply:          outcome.Answer,
			Status:         outcome.Status,
			Attempts:       outcome.Attempts,
			Citations:      outcome.Citations,
			Traces:         outcome.Traces,
			ConversationID: conversationID,
			Timestamp:      time.Now(),
		})
	})

	chat.GET("/history/:conversation_id", func(c *gin.Context) {
		userID, err := userObjectID(c)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid user ID")
			return
		}

		limit := int64(100)
		if raw := c.Query("limit"); raw != "" {
			if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
				limit = parsed
			}
		}

		messages, err := store.GetConversationMessages(c.Request.Context(), c.Param("conversation_id"), userID, limit)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load conversation", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"conversation_id": c.Param("conversation_id"),
			"messages":        messages,
			"count":           len(messages),
		})
	})

	chat.GET("/quota", func(c *gin.Context) {
		userID, err := userObjectID(c)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid user ID")
			return
		}

		quota, err := ai.GetUserQuotaStatus(c.Request.Context(), userID.Hex(), store.DB())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load quota", nil)
			return
		}
		c.JSON(http.StatusOK, quota)
	})

	// Admins can raise or lower a user's daily token budget.
	chat.PUT("/quota/:user_id", roles.AdminGuard(), func(c *gin.Context) {
		var req struct {
			DailyTokenLimit int `json:"daily_token_limit" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid quota payload", gin.H{"error": err.Error()})
			return
		}

		targetID, err := primitive.ObjectIDFromHex(c.Param("user_id"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid user ID", nil)
			return
		}

		if err := ai.SetUserQuotaLimit(c.Request.Context(), targetID.Hex(), req.DailyTokenLimit, store.DB()); err != nil {
			utils.RespondWithInternalError(c, "Failed to update quota", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": targetID.Hex(), "daily_token_limit": req.DailyTokenLimit})
	})
}
