package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Dataset describes an imported spreadsheet: one sheet, a header row, and
// row documents stored separately in dataset_rows.
type Dataset struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name       string             `bson:"name" json:"name"`
	Filename   string             `bson:"filename" json:"filename"`
	Sheet      string             `bson:"sheet" json:"sheet"`
	Columns    []string           `bson:"columns" json:"columns"`
	RowCount   int                `bson:"row_count" json:"row_count"`
	UploadedBy primitive.ObjectID `bson:"uploaded_by,omitempty" json:"uploaded_by,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

// DatasetRow is a single spreadsheet row keyed by column name.
type DatasetRow struct {
	ID        primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	DatasetID primitive.ObjectID     `bson:"dataset_id" json:"dataset_id"`
	Row       int                    `bson:"row" json:"row"`
	Values    map[string]interface{} `bson:"values" json:"values"`
	// SearchText is the lowercased concatenation of all cell values,
	// precomputed at import time for keyword matching.
	SearchText string `bson:"search_text" json:"-"`
}
