package agents

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"agentic-rag-platform/models"
)

// DatasetAgentName is the planner-facing name of the structured-data retriever.
const DatasetAgentName = "DatasetRetrievalAgent"

// DatasetAgent retrieves rows from imported spreadsheets by keyword match
// over the precomputed row search text.
type DatasetAgent struct {
	db       *mongo.Database
	rowLimit int
}

func NewDatasetAgent(db *mongo.Database, rowLimit int) *DatasetAgent {
	if rowLimit <= 0 {
		rowLimit = 20
	}
	return &DatasetAgent{db: db, rowLimit: rowLimit}
}

func (a *DatasetAgent) Name() string { return DatasetAgentName }

func (a *DatasetAgent) Retrieve(ctx context.Context, query string) (*models.Retrieval, error) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return &models.Retrieval{
			Agent:   a.Name(),
			Summary: "The query contained no searchable terms for structured data.",
		}, nil
	}

	// Any-term match against the precomputed row search text.
	var ors []bson.M
	for _, term := range terms {
		ors = append(ors, bson.M{"search_text": bson.M{
			"$regex": regexp.QuoteMeta(term), "$options": "i",
		}})
	}

	cursor, err := a.db.Collection("dataset_rows").Find(ctx,
		bson.M{"$or": ors},
		options.Find().SetLimit(int64(a.rowLimit)).SetSort(bson.D{{Key: "dataset_id", Value: 1}, {Key: "row", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("dataset row search failed: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []models.DatasetRow
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode dataset rows: %w", err)
	}

	if len(rows) == 0 {
		return &models.Retrieval{
			Agent:   a.Name(),
			Summary: "No imported dataset rows matched this query.",
		}, nil
	}

	datasets, err := a.loadDatasets(ctx, rows)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("Matching rows from imported datasets:\n")

	var citations []models.Citation
	byDataset := groupRowsByDataset(rows)
	for _, datasetID := range sortedDatasetIDs(byDataset) {
		ds, ok := datasets[datasetID]
		name := "unknown dataset"
		if ok {
			name = ds.Name
		}

		fmt.Fprintf(&sb, "\n### Dataset: %s\n", name)
		for _, row := range byDataset[datasetID] {
			fmt.Fprintf(&sb, "- row %d: %s\n", row.Row, renderRow(ds.Columns, row.Values))
		}

		citations = append(citations, models.Citation{
			Source: models.CitationDataset,
			Title:  name,
			Ref:    fmt.Sprintf("%d matching rows", len(byDataset[datasetID])),
		})
	}

	return &models.Retrieval{
		Agent:     a.Name(),
		Summary:   sb.String(),
		Citations: citations,
	}, nil
}

func (a *DatasetAgent) loadDatasets(ctx context.Context, rows []models.DatasetRow) (map[primitive.ObjectID]models.Dataset, error) {
	ids := make([]primitive.ObjectID, 0, len(rows))
	seen := make(map[primitive.ObjectID]bool)
	for _, row := range rows {
		if !seen[row.DatasetID] {
			seen[row.DatasetID] = true
			ids = append(ids, row.DatasetID)
		}
	}

	cursor, err := a.db.Collection("datasets").Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to load datasets: %w", err)
	}
	defer cursor.Close(ctx)

	var datasets []models.Dataset
	if err := cursor.All(ctx, &datasets); err != nil {
		return nil, fmt.Errorf("failed to decode datasets: %w", err)
	}

	byID := make(map[primitive.ObjectID]models.Dataset, len(datasets))
	for _, ds := range datasets {
		byID[ds.ID] = ds
	}
	return byID, nil
}

func groupRowsByDataset(rows []models.DatasetRow) map[primitive.ObjectID][]models.DatasetRow {
	grouped := make(map[primitive.ObjectID][]models.DatasetRow)
	for _, row := range rows {
		grouped[row.DatasetID] = append(grouped[row.DatasetID], row)
	}
	return grouped
}

func sortedDatasetIDs(grouped map[primitive.ObjectID][]models.DatasetRow) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })
	return ids
}

// renderRow renders a row as "col=value" pairs in column order so the LLM
// sees stable, labeled fields.
func renderRow(columns []string, values map[string]interface{}) string {
	parts := make([]string, 0, len(values))
	for _, col := range columns {
		if v, ok := values[col]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", col, v))
		}
	}
	if len(parts) == 0 {
		for k, v := range values {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
		sort.Strings(parts)
	}
	return strings.Join(parts, ", ")
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"that": true, "this": true, "are": true, "was": true, "were": true,
	"what": true, "which": true, "how": true, "any": true, "all": true,
	"show": true, "find": true, "compare": true, "between": true,
	"across": true, "related": true, "about": true,
}

var termPattern = regexp.MustCompile(`[a-zA-Z0-9][a-zA-Z0-9_.-]+`)

// queryTerms extracts lowercase keyword terms from a free-text query.
func queryTerms(query string) []string {
	matches := termPattern.FindAllString(strings.ToLower(query), -1)

	var terms []string
	seen := make(map[string]bool)
	for _, m := range matches {
		if len(m) < 3 || stopwords[m] || seen[m] {
			continue
		}
		seen[m] = true
		terms = append(terms, m)
	}
	return terms
}
