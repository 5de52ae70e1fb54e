package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"agentic-rag-platform/internal/config"
	"agentic-rag-platform/models"
	"agentic-rag-platform/utils"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/migrate <command>")
		fmt.Println("Commands:")
		fmt.Println("  indexes       - Create collection and Atlas search/vector indexes")
		fmt.Println("  seed-admin    - Create the initial admin user (ADMIN_USERNAME/ADMIN_PASSWORD)")
		os.Exit(1)
	}

	command := os.Args[1]

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// ConnectMongoDB also creates the regular collection indexes
	client, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.DBName)

	switch command {
	case "indexes":
		if err := createSearchIndexes(db, cfg); err != nil {
			log.Fatalf("Failed to create search indexes: %v", err)
		}
		fmt.Println("Indexes created successfully!")

	case "seed-admin":
		if err := seedAdmin(db, cfg); err != nil {
			log.Fatalf("Failed to seed admin: %v", err)
		}
		fmt.Println("Admin user ready!")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

// createSearchIndexes defines the Atlas vector and text search indexes on
// the chunks collection. On non-Atlas deployments this fails and the search
// service falls back to regex matching, so failures are reported but not
// fatal for the vector index specifically.
func createSearchIndexes(db *mongo.Database, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	chunks := db.Collection("chunks")
	views := chunks.SearchIndexes()

	if cfg.VectorSearchEnabled {
		definition := bson.M{
			"fields": bson.A{
				bson.M{
					"type":          "vector",
					"path":          "vector",
					"numDimensions": cfg.VectorDimensions,
					"similarity":    "cosine",
				},
				bson.M{"type": "filter", "path": "source"},
			},
		}
		opts := mongo.SearchIndexModel{
			Definition: definition,
			Options:    options.SearchIndexes().SetName(cfg.VectorIndexName).SetType("vectorSearch"),
		}
		if _, err := views.CreateOne(ctx, opts); err != nil {
			fmt.Printf("vector index %q not created (requires Atlas): %v\n", cfg.VectorIndexName, err)
		} else {
			fmt.Printf("vector index %q created (dim=%d, cosine)\n", cfg.VectorIndexName, cfg.VectorDimensions)
		}
	}

	if cfg.AtlasTextSearchEnabled {
		definition := bson.M{
			"mappings": bson.M{
				"dynamic": false,
				"fields": bson.M{
					"text":     bson.M{"type": "string"},
					"title":    bson.M{"type": "string"},
					"keywords": bson.M{"type": "string"},
				},
			},
		}
		opts := mongo.SearchIndexModel{
			Definition: definition,
			Options:    options.SearchIndexes().SetName(cfg.SearchIndexName).SetType("search"),
		}
		if _, err := views.CreateOne(ctx, opts); err != nil {
			fmt.Printf("text index %q not created (requires Atlas): %v\n", cfg.SearchIndexName, err)
		} else {
			fmt.Printf("text index %q created\n", cfg.SearchIndexName)
		}
	}

	return nil
}

func seedAdmin(db *mongo.Database, cfg *config.Config) error {
	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		return fmt.Errorf("ADMIN_USERNAME must be set")
	}

	password := os.Getenv("ADMIN_PASSWORD")
	generated := false
	if password == "" {
		var err error
		password, err = utils.GenerateSecureRandomString(24)
		if err != nil {
			return fmt.Errorf("failed to generate admin password: %w", err)
		}
		generated = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	users := db.Collection("users")
	count, err := users.CountDocuments(ctx, bson.M{"username": username})
	if err != nil {
		return err
	}
	if count > 0 {
		fmt.Printf("admin user %q already exists\n", username)
		return nil
	}

	hash, err := utils.HashPassword(password, cfg.BcryptCost)
	if err != nil {
		return err
	}

	now := time.Now()
	_, err = users.InsertOne(ctx, models.User{
		Username:     username,
		Name:         "Administrator",
		PasswordHash: hash,
		Role:         "admin",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return err
	}
	if generated {
		fmt.Printf("admin user %q created with generated password: %s\n", username, password)
	} else {
		fmt.Printf("admin user %q created\n", username)
	}
	return nil
}
