package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"agentic-rag-platform/internal/config"
	"agentic-rag-platform/internal/logger"
	"agentic-rag-platform/models"
)

// QueryEmbedder produces the query vector for semantic search.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SearchService retrieves chunks by Atlas $vectorSearch, with Atlas text
// search and plain regex as fallbacks for deployments without the vector
// index.
type SearchService struct {
	db                  *mongo.Database
	embedder            QueryEmbedder
	vectorEnabled       bool
	textEnabled         bool
	vectorIndexName     string
	searchIndexName     string
	candidateMultiplier int
	similarityThreshold float64
}

func NewSearchService(db *mongo.Database, embedder QueryEmbedder, cfg *config.Config) *SearchService {
	return &SearchService{
		db:                  db,
		embedder:            embedder,
		vectorEnabled:       cfg.VectorSearchEnabled,
		textEnabled:         cfg.AtlasTextSearchEnabled,
		vectorIndexName:     cfg.VectorIndexName,
		searchIndexName:     cfg.SearchIndexName,
		candidateMultiplier: cfg.CandidateMultiplier,
		similarityThreshold: cfg.SimilarityThreshold,
	}
}

// Search returns the topK most relevant chunks for a query.
func (s *SearchService) Search(ctx context.Context, query string, topK int) ([]models.ScoredChunk, error) {
	tracer := otel.Tracer("search")
	ctx, span := tracer.Start(ctx, "search.chunks")
	defer span.End()

	if topK <= 0 {
		topK = 8
	}
	span.SetAttributes(attribute.Int("search.top_k", topK))

	if s.vectorEnabled && s.embedder != nil {
		chunks, err := s.vectorSearch(ctx, query, topK)
		if err == nil {
			span.SetAttributes(attribute.String("search.mode", "vector"),
				attribute.Int("search.results", len(chunks)))
			return chunks, nil
		}
		logger.Warn("Vector search failed, falling back", "error", err)
	}

	if s.textEnabled {
		chunks, err := s.atlasTextSearch(ctx, query, topK)
		if err == nil {
			span.SetAttributes(attribute.String("search.mode", "atlas_text"),
				attribute.Int("search.results", len(chunks)))
			return chunks, nil
		}
		logger.Warn("Atlas text search failed, falling back to regex", "error", err)
	}

	chunks, err := s.regexSearch(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("search.mode", "regex"),
		attribute.Int("search.results", len(chunks)))
	return chunks, nil
}

func (s *SearchService) vectorSearch(ctx context.Context, query string, topK int) ([]models.ScoredChunk, error) {
	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	numCandidates := topK * s.candidateMultiplier
	if numCandidates < topK {
		numCandidates = topK
	}

	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.M{
			"index":         s.vectorIndexName,
			"path":          "vector",
			"queryVector":   queryVector,
			"numCandidates": numCandidates,
			"limit":         topK,
		}}},
		{{Key: "$set", Value: bson.M{
			"score": bson.M{"$meta": "vectorSearchScore"},
		}}},
		{{Key: "$match", Value: bson.M{
			"score": bson.M{"$gte": s.similarityThreshold},
		}}},
	}

	cursor, err := s.db.Collection("chunks").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("$vectorSearch aggregation failed: %w", err)
	}
	defer cursor.Close(ctx)

	var chunks []models.ScoredChunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("failed to decode vector search results: %w", err)
	}
	return chunks, nil
}

func (s *SearchService) atlasTextSearch(ctx context.Context, query string, topK int) ([]models.ScoredChunk, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$search", Value: bson.M{
			"index": s.searchIndexName,
			"text": bson.M{
				"query": query,
				"path":  []string{"text", "title", "keywords"},
			},
		}}},
		{{Key: "$set", Value: bson.M{
			"score": bson.M{"$meta": "searchScore"},
		}}},
		{{Key: "$limit", Value: topK}},
	}

	cursor, err := s.db.Collection("chunks").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("$search aggregation failed: %w", err)
	}
	defer cursor.Close(ctx)

	var chunks []models.ScoredChunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("failed to decode text search results: %w", err)
	}
	return chunks, nil
}

// regexSearch is the lowest-common-denominator path for local Mongo without
// Atlas search indexes. Compressed chunk text is not matchable here, so only
// uncompressed chunks are considered.
func (s *SearchService) regexSearch(ctx context.Context, query string, topK int) ([]models.ScoredChunk, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	var ors []bson.M
	for _, term := range terms {
		if len(term) < 3 {
			continue
		}
		pattern := regexp.QuoteMeta(term)
		ors = append(ors,
			bson.M{"text": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"title": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"keywords": bson.M{"$regex": pattern, "$options": "i"}},
		)
	}
	if len(ors) == 0 {
		return nil, nil
	}

	cursor, err := s.db.Collection("chunks").Find(ctx,
		bson.M{"$or": ors, "compressed": bson.M{"$ne": true}},
		options.Find().SetLimit(int64(topK)))
	if err != nil {
		return nil, fmt.Errorf("regex chunk search failed: %w", err)
	}
	defer cursor.Close(ctx)

	var plain []models.Chunk
	if err := cursor.All(ctx, &plain); err != nil {
		return nil, fmt.Errorf("failed to decode regex search results: %w", err)
	}

	chunks := make([]models.ScoredChunk, len(plain))
	for i, chunk := range plain {
		chunks[i] = models.ScoredChunk{Chunk: chunk, Score: 0}
	}
	return chunks, nil
}
