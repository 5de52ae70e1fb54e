package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Chunk is a denormalized slice of a document for Atlas Search/VectorSearch.
// Keeping a separate collection enables efficient $search/$vectorSearch.
type Chunk struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	DocumentID primitive.ObjectID `bson:"document_id"`
	ChunkID    string             `bson:"chunk_id"`
	Order      int                `bson:"order"`
	Text       string             `bson:"text"`
	// Compressed marks Text as base64(gzip) when it exceeded the
	// storage threshold at index time.
	Compressed bool      `bson:"compressed,omitempty"`
	Title      string    `bson:"title,omitempty"`
	Page       int       `bson:"page,omitempty"`
	Source     string    `bson:"source"`
	URL        string    `bson:"url,omitempty"`
	Keywords   []string  `bson:"keywords,omitempty"`
	Vector     []float32 `bson:"vector,omitempty"`
}

// ScoredChunk is a retrieval result with its search score attached.
type ScoredChunk struct {
	Chunk `bson:",inline"`
	Score float64 `bson:"score"`
}
