package extractor

import (
	"context"
	"fmt"
	"os"

	"github.com/PuerkitoBio/goquery"

	"Costbook/internal/domain"
	"Costbook/internal/extract"
)

// HTMLTableExtractor reads spreadsheet exports saved as HTML tables, a common
// shape for legacy .xls estimate files. It extracts every table row verbatim;
// filtering and grouping belong to the assembler.
type HTMLTableExtractor struct{}

var _ extract.Extractor = (*HTMLTableExtractor)(nil)

// NewHTMLTableExtractor builds the strategy.
func NewHTMLTableExtractor() *HTMLTableExtractor {
	return &HTMLTableExtractor{}
}

// Name identifies the strategy inside the registry.
func (e *HTMLTableExtractor) Name() string {
	return "htmltable"
}

// Extract walks all table rows of the document in order.
func (e *HTMLTableExtractor) Extract(ctx context.Context, req extract.Request) ([]domain.RawRow, error) {
	f, err := os.Open(req.Path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	var rows []domain.RawRow
	doc.Find("table tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, cell.Text())
		})
		if len(cells) == 0 {
			return
		}
		rows = append(rows, rowFromCells(cells, req.Layout))
	})

	return rows, nil
}
