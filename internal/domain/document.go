package domain

// RawRow is one extracted spreadsheet row in the standard column layout.
// Numeric cells are nil when the cell was empty or not a number.
type RawRow struct {
	Code           string
	Description    string
	Unit           string
	ComponentQty   *float64
	ComponentPrice *float64
	ArticlePrice   *float64
	ManpowerPrice  *float64
	Total          *float64
}

// Document is one extracted source document: its rows in order, plus the
// identity used for idempotent re-ingestion.
type Document struct {
	Name string
	Path string
	Hash string
	Rows []RawRow
}

// DraftRecipe is a parsed but not yet persisted recipe, as produced by the
// row assembler. The footer unit prices seed the recipe's caches on creation.
type DraftRecipe struct {
	Code              string
	Description       string
	UnitMaterialPrice float64
	UnitManpowerPrice float64
	Components        []DraftComponent
}

// DraftComponent is a parsed sub-line of a draft recipe.
type DraftComponent struct {
	Code           string
	Description    string
	Kind           ComponentKind
	QtyCoefficient float64
	UnitPrice      float64
}

// SourceStatus is the tracker's decision for a document about to be ingested.
type SourceStatus string

const (
	SourceNew    SourceStatus = "NEW"
	SourceUpdate SourceStatus = "UPDATE"
	SourceSkip   SourceStatus = "SKIP"
)
