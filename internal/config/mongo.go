package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	// Create indexes
	err = createIndexes(client, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, dbName string) error {
	db := client.Database(dbName)
	ctx := context.Background()

	// Users collection indexes
	usersCollection := db.Collection("users")
	userIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := usersCollection.Indexes().CreateMany(ctx, userIndexes)
	if err != nil {
		return err
	}

	// Documents collection indexes
	documentsCollection := db.Collection("documents")
	documentIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "source", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "checksum", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	_, err = documentsCollection.Indexes().CreateMany(ctx, documentIndexes)
	if err != nil {
		return err
	}

	// Chunks collection indexes for search/vector filters
	chunksCollection := db.Collection("chunks")
	chunkIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "document_id", Value: 1}}},
		{
			Keys:    bson.D{{Key: "chunk_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "document_id", Value: 1}, {Key: "order", Value: 1}}},
	}
	_, err = chunksCollection.Indexes().CreateMany(ctx, chunkIndexes)
	if err != nil {
		return err
	}

	// Indexer runs: polled by id, listed by document and recency
	runsCollection := db.Collection("indexer_runs")
	runIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "document_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "started_at", Value: -1}}},
	}
	_, err = runsCollection.Indexes().CreateMany(ctx, runIndexes)
	if err != nil {
		return err
	}

	// Datasets and rows
	datasetsCollection := db.Collection("datasets")
	_, err = datasetsCollection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return err
	}

	rowsCollection := db.Collection("dataset_rows")
	_, err = rowsCollection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "dataset_id", Value: 1}}},
		{Keys: bson.D{{Key: "dataset_id", Value: 1}, {Key: "row", Value: 1}}},
	})
	if err != nil {
		return err
	}

	// Messages collection indexes
	messagesCollection := db.Collection("messages")
	messageIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
	}
	_, err = messagesCollection.Indexes().CreateMany(ctx, messageIndexes)
	if err != nil {
		return err
	}

	// Crawl jobs
	crawlsCollection := db.Collection("crawls")
	_, err = crawlsCollection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "url", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})
	if err != nil {
		return err
	}

	conversationsCollection := db.Collection("conversations")
	_, err = conversationsCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}},
	})
	if err != nil {
		return err
	}

	// Daily LLM quotas, one document per user
	quotasCollection := db.Collection("llm_quotas")
	_, err = quotasCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	return nil
}
