package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document sources
const (
	SourcePDF     = "pdf"
	SourceWeb     = "web"
	SourceDataset = "dataset"
)

// Document statuses
const (
	DocumentPending    = "pending"
	DocumentProcessing = "processing"
	DocumentIndexed    = "indexed"
	DocumentFailed     = "failed"
)

// Document is a unit of ingested content: an uploaded PDF, a crawled
// website, or an imported dataset sheet. Chunks reference it by ID.
type Document struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title      string             `bson:"title" json:"title"`
	Filename   string             `bson:"filename,omitempty" json:"filename,omitempty"`
	URL        string             `bson:"url,omitempty" json:"url,omitempty"`
	Source     string             `bson:"source" json:"source"`
	Status     string             `bson:"status" json:"status"`
	Size       int64              `bson:"size,omitempty" json:"size,omitempty"`
	Pages      int                `bson:"pages,omitempty" json:"pages,omitempty"`
	ChunkCount int                `bson:"chunk_count" json:"chunk_count"`
	Checksum   string             `bson:"checksum,omitempty" json:"checksum,omitempty"`
	Error      string             `bson:"error,omitempty" json:"error,omitempty"`
	UploadedBy primitive.ObjectID `bson:"uploaded_by,omitempty" json:"uploaded_by,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}
