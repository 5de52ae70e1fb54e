package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"agentic-rag-platform/internal/database"
	"agentic-rag-platform/internal/logger"
	"agentic-rag-platform/models"
)

// ErrDuplicateDataset is returned when a dataset with the same name was
// already imported.
var ErrDuplicateDataset = errors.New("dataset already exists")

// IsDuplicateDataset reports whether err came from a duplicate import.
func IsDuplicateDataset(err error) bool {
	return errors.Is(err, ErrDuplicateDataset)
}

// DatasetService imports spreadsheet files into queryable dataset rows.
type DatasetService struct {
	store *database.Store
}

func NewDatasetService(store *database.Store) *DatasetService {
	return &DatasetService{store: store}
}

// ImportXLSX reads the first sheet of an xlsx file: the first row becomes
// the column names, every following row a DatasetRow with precomputed
// search text.
func (s *DatasetService) ImportXLSX(ctx context.Context, name, filePath string, uploadedBy primitive.ObjectID) (*models.Dataset, error) {
	if name == "" {
		return nil, fmt.Errorf("dataset name is required")
	}

	if existing, err := s.store.FindDatasetByName(ctx, name); err == nil && existing != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, ErrDuplicateDataset)
	} else if err != nil && err != mongo.ErrNoDocuments {
		return nil, fmt.Errorf("failed to check dataset name: %w", err)
	}

	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("Failed to close spreadsheet", "file", filePath, "error", err)
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet has no sheets")
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("sheet %q needs a header row and at least one data row", sheet)
	}

	columns := make([]string, 0, len(rows[0]))
	for i, header := range rows[0] {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("column_%d", i+1)
		}
		columns = append(columns, header)
	}

	datasetRows := make([]models.DatasetRow, 0, len(rows)-1)
	for rowIdx, cells := range rows[1:] {
		values := make(map[string]interface{}, len(columns))
		var searchParts []string
		empty := true

		for colIdx, col := range columns {
			cell := ""
			if colIdx < len(cells) {
				cell = strings.TrimSpace(cells[colIdx])
			}
			values[col] = cell
			if cell != "" {
				empty = false
				searchParts = append(searchParts, strings.ToLower(cell))
			}
		}
		if empty {
			continue
		}

		datasetRows = append(datasetRows, models.DatasetRow{
			Row:        rowIdx + 2, // 1-based, counting the header row
			Values:     values,
			SearchText: strings.Join(searchParts, " "),
		})
	}

	if len(datasetRows) == 0 {
		return nil, fmt.Errorf("sheet %q contains no data rows", sheet)
	}

	ds := &models.Dataset{
		Name:       name,
		Filename:   filePath,
		Sheet:      sheet,
		Columns:    columns,
		UploadedBy: uploadedBy,
	}
	if err := s.store.InsertDataset(ctx, ds, datasetRows); err != nil {
		return nil, err
	}

	logger.Info("Dataset imported", "name", name, "sheet", sheet, "rows", len(datasetRows))
	return ds, nil
}
