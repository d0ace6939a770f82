package extractor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"Costbook/internal/config"
	"Costbook/internal/extract"
)

// testCells renders 15 cells with the interesting positions of the default
// layout filled in.
func testCells(code, desc, unit, qty, price, artPrice, manPrice, total string) []string {
	cells := make([]string, 15)
	cells[0], cells[1], cells[2], cells[3] = code, desc, unit, qty
	cells[8], cells[9], cells[10], cells[14] = price, artPrice, manPrice, total
	return cells
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRowFromCells(t *testing.T) {
	t.Parallel()

	row := rowFromCells(testCells("01.A01", " Tubo PVC ", "m", "2,5", "€ 4,20", "", "", "1.234,56"), extract.DefaultLayout())

	if row.Code != "01.A01" || row.Description != "Tubo PVC" || row.Unit != "m" {
		t.Fatalf("unexpected text cells: %+v", row)
	}
	if row.ComponentQty == nil || *row.ComponentQty != 2.5 {
		t.Errorf("qty = %v, want 2.5", row.ComponentQty)
	}
	if row.ComponentPrice == nil || *row.ComponentPrice != 4.2 {
		t.Errorf("price = %v, want 4.2", row.ComponentPrice)
	}
	if row.ArticlePrice != nil || row.ManpowerPrice != nil {
		t.Error("empty cells must read as nil")
	}
	if row.Total == nil || *row.Total != 1234.56 {
		t.Errorf("total = %v, want 1234.56", row.Total)
	}

	// Short rows must not panic.
	short := rowFromCells([]string{"X", "desc"}, extract.DefaultLayout())
	if short.Code != "X" || short.Total != nil {
		t.Fatalf("short row mapped wrong: %+v", short)
	}
}

func TestHTMLTableExtract(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("<html><body><table>")
	for _, cells := range [][]string{
		testCells("01.A01", "Scavo a sezione", "mc", "", "", "", "", ""),
		testCells("", "Operaio comune", "h", "0,8", "26,00", "", "", ""),
		testCells("", "", "", "", "", "", "", "120,00"),
		testCells("", "", "", "", "", "96,00", "24,00", "120,00"),
	} {
		b.WriteString("<tr>")
		for _, c := range cells {
			b.WriteString("<td>" + c + "</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table></body></html>")

	path := writeFile(t, "estimate.html", b.String())
	rows, err := NewHTMLTableExtractor().Extract(context.Background(), extract.Request{
		Path:   path,
		Layout: extract.DefaultLayout(),
	})
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(rows))
	}
	if rows[0].Code != "01.A01" {
		t.Errorf("first code = %q", rows[0].Code)
	}
	if rows[1].ComponentPrice == nil || *rows[1].ComponentPrice != 26 {
		t.Errorf("component price = %v, want 26", rows[1].ComponentPrice)
	}
	if rows[3].ArticlePrice == nil || *rows[3].ArticlePrice != 96 {
		t.Errorf("article price = %v, want 96", rows[3].ArticlePrice)
	}
}

func TestCSVExtract(t *testing.T) {
	t.Parallel()

	content := strings.Join(testCells("01.B02", "Cavo elettrico", "m", "12", "1,10", "", "", ""), ";") + "\n" +
		strings.Join(testCells("", "", "", "", "", "", "", "13,20"), ";") + "\n"

	path := writeFile(t, "estimate.csv", content)
	rows, err := NewCSVExtractor().Extract(context.Background(), extract.Request{
		Path:   path,
		Layout: extract.DefaultLayout(),
	})
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Code != "01.B02" || rows[0].ComponentQty == nil || *rows[0].ComponentQty != 12 {
		t.Fatalf("first row mapped wrong: %+v", rows[0])
	}
	if rows[1].Total == nil || *rows[1].Total != 13.2 {
		t.Fatalf("total = %v, want 13.2", rows[1].Total)
	}
}

func TestCSVExtractDelimiterOverride(t *testing.T) {
	t.Parallel()

	content := strings.Join(testCells("X1", "Item", "", "", "", "", "", ""), "|") + "\n"
	path := writeFile(t, "pipe.csv", content)

	rows, err := NewCSVExtractor().Extract(context.Background(), extract.Request{
		Path:    path,
		Layout:  extract.DefaultLayout(),
		Options: map[string]string{"delimiter": "|"},
	})
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if len(rows) != 1 || rows[0].Code != "X1" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestFileSourceFetchDocuments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := "<table><tr><td>A</td><td>desc</td></tr></table>"
	if err := os.WriteFile(filepath.Join(dir, "b.html"), []byte(good), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.html"), []byte(good), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := extract.NewRegistry()
	reg.Register(NewHTMLTableExtractor())

	source := NewFileSource(reg, []config.SourceConfig{
		{Name: "test", Extractor: "htmltable", Glob: filepath.Join(dir, "*.html")},
	}, extract.DefaultLayout(), nil)

	docs, err := source.FetchDocuments(context.Background())
	if err != nil {
		t.Fatalf("FetchDocuments error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("documents = %d, want 2", len(docs))
	}
	if docs[0].Name != "a.html" || docs[1].Name != "b.html" {
		t.Fatalf("order = %s, %s; want sorted by path", docs[0].Name, docs[1].Name)
	}
	if docs[0].Hash == "" || docs[0].Hash != docs[1].Hash {
		t.Fatal("identical content must hash identically")
	}
	if len(docs[0].Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(docs[0].Rows))
	}
}

func TestFileSourceUnknownExtractor(t *testing.T) {
	t.Parallel()

	source := NewFileSource(extract.NewRegistry(), []config.SourceConfig{
		{Name: "bad", Extractor: "xlsx", Glob: "*.xlsx"},
	}, extract.DefaultLayout(), nil)

	if _, err := source.FetchDocuments(context.Background()); err == nil {
		t.Fatal("unknown extractor must fail the run, not skip silently")
	}
}
