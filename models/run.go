package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Indexer run statuses. Succeeded and failed are terminal: a run never
// transitions out of them.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// IndexerRun records one execution of the indexing pipeline for a document.
// Its status is what clients poll while a document is being indexed.
type IndexerRun struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DocumentID primitive.ObjectID `bson:"document_id" json:"document_id"`
	Status     string             `bson:"status" json:"status"`
	Stage      string             `bson:"stage,omitempty" json:"stage,omitempty"`
	Counters   RunCounters        `bson:"counters" json:"counters"`
	Error      string             `bson:"error,omitempty" json:"error,omitempty"`
	StartedAt  time.Time          `bson:"started_at" json:"started_at"`
	FinishedAt *time.Time         `bson:"finished_at,omitempty" json:"finished_at,omitempty"`
}

// RunCounters tracks per-stage progress of a pipeline run.
type RunCounters struct {
	Pages    int `bson:"pages" json:"pages"`
	Chunks   int `bson:"chunks" json:"chunks"`
	Embedded int `bson:"embedded" json:"embedded"`
	Stored   int `bson:"stored" json:"stored"`
}

// Terminal reports whether the run has reached a final state.
func (r *IndexerRun) Terminal() bool {
	return r.Status == RunSucceeded || r.Status == RunFailed
}
