package routes

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"agentic-rag-platform/internal/config"
	"agentic-rag-platform/internal/database"
	"agentic-rag-platform/internal/indexer"
	"agentic-rag-platform/internal/logger"
	"agentic-rag-platform/internal/queue"
	"agentic-rag-platform/middleware"
	"agentic-rag-platform/models"
	"agentic-rag-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func SetupDocumentRoutes(router *gin.Engine, cfg *config.Config, store *database.Store, asynqClient *asynq.Client, authMw *middleware.AuthMiddleware, roles *middleware.RoleMiddleware) {
	docs := router.Group("/documents")
	docs.Use(authMw.RequireAuth())

	// Upload a PDF, stage it on disk and enqueue indexing. Duplicate
	// uploads are detected by checksum and return the existing document.
	docs.POST("", roles.MemberGuard(), func(c *gin.Context) {
		userID, err := userObjectID(c)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid user ID")
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "A file is required", gin.H{"error": err.Error()})
			return
		}

		if fileHeader.Size > cfg.MaxFileSize {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge,
				"file_too_large", "File exceeds maximum size",
				gin.H{"max_size": cfg.MaxFileSize, "received": fileHeader.Size})
			return
		}

		contentType := fileHeader.Header.Get("Content-Type")
		if !typeAllowed(contentType, cfg.AllowedTypes) {
			utils.RespondWithBadRequest(c, "Unsupported file type",
				gin.H{"content_type": contentType, "allowed": cfg.AllowedTypes})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read upload", nil)
			return
		}
		defer file.Close()

		hasher := sha256.New()
		if _, err := io.Copy(hasher, file); err != nil {
			utils.RespondWithInternalError(c, "Failed to hash upload", nil)
			return
		}
		checksum := hex.EncodeToString(hasher.Sum(nil))

		ctx := c.Request.Context()
		if existing, err := store.FindDocumentByChecksum(ctx, checksum); err == nil && existing != nil {
			c.JSON(http.StatusOK, gin.H{
				"message":  "document already uploaded",
				"document": existing,
			})
			return
		} else if err != nil && err != mongo.ErrNoDocuments {
			utils.RespondWithInternalError(c, "Failed to check for duplicates", nil)
			return
		}

		if err := os.MkdirAll(cfg.FileStorageDir, 0o755); err != nil {
			utils.RespondWithInternalError(c, "Failed to prepare storage", nil)
			return
		}
		stagedPath := filepath.Join(cfg.FileStorageDir, uuid.NewString()+".pdf")
		if err := c.SaveUploadedFile(fileHeader, stagedPath); err != nil {
			utils.RespondWithInternalError(c, "Failed to store upload", nil)
			return
		}

		title := c.PostForm("title")
		if title == "" {
			title = fileHeader.Filename
		}

		doc := &models.Document{
			Title:      title,
			Filename:   fileHeader.Filename,
			Source:     models.SourcePDF,
			Size:       fileHeader.Size,
			Checksum:   checksum,
			UploadedBy: userID,
		}
		docID, err := store.InsertDocument(ctx, doc)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create document", nil)
			return
		}

		task, err := queue.NewIndexDocumentTask(docID.Hex(), stagedPath)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to build indexing task", nil)
			return
		}
		info, err := asynqClient.Enqueue(task)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to enqueue indexing", nil)
			return
		}

		logger.Info("Document upload accepted",
			"document_id", docID.Hex(), "task_id", info.ID, "size", fileHeader.Size)

		c.JSON(http.StatusAccepted, gin.H{
			"document_id": docID.Hex(),
			"status":      models.DocumentPending,
			"task_id":     info.ID,
			"message":     "document queued for indexing",
		})
	})

	docs.GET("", func(c *gin.Context) {
		limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
		skip, _ := strconv.ParseInt(c.DefaultQuery("skip", "0"), 10, 64)

		list, err := store.ListDocuments(c.Request.Context(), limit, skip)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list documents", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"documents": list, "count": len(list)})
	})

	docs.GET("/:id", func(c *gin.Context) {
		docID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid document ID", nil)
			return
		}

		doc, err := store.GetDocument(c.Request.Context(), docID)
		if err != nil {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}

		// Recrawls replace chunks out-of-band, so report the live count.
		if count, err := store.CountDocumentChunks(c.Request.Context(), docID); err == nil {
			doc.ChunkCount = int(count)
		}
		c.JSON(http.StatusOK, doc)
	})

	// Latest indexing run for a document
	docs.GET("/:id/run", func(c *gin.Context) {
		docID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid document ID", nil)
			return
		}

		run, err := store.LatestRunForDocument(c.Request.Context(), docID)
		if err != nil {
			utils.RespondWithNotFound(c, "No runs for this document")
			return
		}
		c.JSON(http.StatusOK, run)
	})

	runs := router.Group("/indexer/runs")
	runs.Use(authMw.RequireAuth())

	// ?wait=true blocks until the run is terminal (bounded), so clients can
	// long-poll instead of hammering the endpoint.
	runs.GET("/:id", func(c *gin.Context) {
		runID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid run ID", nil)
			return
		}

		if c.Query("wait") == "true" {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
			defer cancel()

			run, err := indexer.PollRun(ctx, store, runID, 500*time.Millisecond)
			if err == nil {
				c.JSON(http.StatusOK, run)
				return
			}
			// Fall through to a plain read on timeout.
		}

		run, err := store.GetRun(c.Request.Context(), runID)
		if err != nil {
			utils.RespondWithNotFound(c, "Run not found")
			return
		}
		c.JSON(http.StatusOK, run)
	})
}

func typeAllowed(contentType string, allowed []string) bool {
	for _, t := range allowed {
		if t == contentType || t == "*" {
			return true
		}
	}
	return false
}

// staleUploadAge is how long staged files are kept before cleanup.
const staleUploadAge = 24 * time.Hour

// CleanStagedUploads removes staged files older than staleUploadAge. Run
// periodically from the worker.
func CleanStagedUploads(storageDir string) error {
	entries, err := os.ReadDir(storageDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	cutoff := time.Now().Add(-staleUploadAge)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || info.IsDir() {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(storageDir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		logger.Info("Cleaned staged uploads", "removed", removed, "dir", storageDir)
	}
	return nil
}
