package extract

import (
	"context"
	"fmt"

	"Costbook/internal/domain"
)

// Layout maps the standard bill-of-materials columns onto zero-based cell
// positions of the extracted grid.
type Layout struct {
	Code           int
	Description    int
	Unit           int
	ComponentQty   int
	ArticleQty     int
	ManpowerQty    int
	ComponentPrice int
	ArticlePrice   int
	ManpowerPrice  int
	Total          int
}

// DefaultLayout is the V5 strict column mapping used by the historical
// estimate spreadsheets.
func DefaultLayout() Layout {
	return Layout{
		Code:           0,
		Description:    1,
		Unit:           2,
		ComponentQty:   3,
		ArticleQty:     4,
		ManpowerQty:    5,
		ComponentPrice: 8,
		ArticlePrice:   9,
		ManpowerPrice:  10,
		Total:          14,
	}
}

// Request carries all parameters required to extract one document.
type Request struct {
	Path    string
	Layout  Layout
	Options map[string]string
}

// Extractor captures a single extraction strategy (HTML table, CSV, etc.).
type Extractor interface {
	Name() string
	Extract(ctx context.Context, req Request) ([]domain.RawRow, error)
}

// Registry keeps a mapping from extractor names to their implementations.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: map[string]Extractor{}}
}

// Register adds or replaces an extractor implementation.
func (r *Registry) Register(e Extractor) {
	if r.extractors == nil {
		r.extractors = map[string]Extractor{}
	}
	r.extractors[e.Name()] = e
}

// Resolve returns an extractor by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Extractor, error) {
	if e, ok := r.extractors[name]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("extractor %s is not registered", name)
}
