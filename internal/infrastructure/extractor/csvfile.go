package extractor

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"Costbook/internal/domain"
	"Costbook/internal/extract"
)

// CSVExtractor reads semicolon-delimited spreadsheet exports. The delimiter
// can be overridden per source via the "delimiter" option.
type CSVExtractor struct{}

var _ extract.Extractor = (*CSVExtractor)(nil)

// NewCSVExtractor builds the strategy.
func NewCSVExtractor() *CSVExtractor {
	return &CSVExtractor{}
}

// Name identifies the strategy inside the registry.
func (e *CSVExtractor) Name() string {
	return "csv"
}

// Extract reads every record of the file in order.
func (e *CSVExtractor) Extract(ctx context.Context, req extract.Request) ([]domain.RawRow, error) {
	f, err := os.Open(req.Path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	if d := req.Options["delimiter"]; d != "" {
		reader.Comma = rune(d[0])
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}

	rows := make([]domain.RawRow, 0, len(records))
	for _, cells := range records {
		rows = append(rows, rowFromCells(cells, req.Layout))
	}

	return rows, nil
}
