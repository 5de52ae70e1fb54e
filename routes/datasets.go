package routes

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"agentic-rag-platform/internal/config"
	"agentic-rag-platform/internal/database"
	"agentic-rag-platform/internal/queue"
	"agentic-rag-platform/middleware"
	"agentic-rag-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

func SetupDatasetRoutes(router *gin.Engine, cfg *config.Config, store *database.Store, asynqClient *asynq.Client, authMw *middleware.AuthMiddleware, roles *middleware.RoleMiddleware) {
	datasets := router.Group("/datasets")
	datasets.Use(authMw.RequireAuth())

	// Upload an xlsx file and enqueue the import
	datasets.POST("", roles.MemberGuard(), func(c *gin.Context) {
		userID, err := userObjectID(c)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid user ID")
			return
		}

		name := strings.TrimSpace(c.PostForm("name"))
		if name == "" {
			utils.RespondWithBadRequest(c, "A dataset name is required", nil)
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "A file is required", gin.H{"error": err.Error()})
			return
		}
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
			utils.RespondWithBadRequest(c, "Only .xlsx files are supported", nil)
			return
		}
		if fileHeader.Size > cfg.MaxFileSize {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge,
				"file_too_large", "File exceeds maximum size",
				gin.H{"max_size": cfg.MaxFileSize, "received": fileHeader.Size})
			return
		}

		if err := os.MkdirAll(cfg.FileStorageDir, 0o755); err != nil {
			utils.RespondWithInternalError(c, "Failed to prepare storage", nil)
			return
		}
		stagedPath := filepath.Join(cfg.FileStorageDir, uuid.NewString()+".xlsx")
		if err := c.SaveUploadedFile(fileHeader, stagedPath); err != nil {
			utils.RespondWithInternalError(c, "Failed to store upload", nil)
			return
		}

		task, err := queue.NewImportDatasetTask(name, stagedPath, userID.Hex())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to build import task", nil)
			return
		}
		info, err := asynqClient.Enqueue(task)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to enqueue import", nil)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"name":    name,
			"task_id": info.ID,
			"message": "dataset queued for import",
		})
	})

	datasets.GET("", func(c *gin.Context) {
		list, err := store.ListDatasets(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list datasets", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"datasets": list, "count": len(list)})
	})

	datasets.GET("/:name", func(c *gin.Context) {
		ds, err := store.FindDatasetByName(c.Request.Context(), c.Param("name"))
		if err != nil {
			utils.RespondWithNotFound(c, "Dataset not found")
			return
		}
		c.JSON(http.StatusOK, ds)
	})
}
