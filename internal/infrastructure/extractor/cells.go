package extractor

import (
	"strings"

	"Costbook/internal/domain"
	"Costbook/internal/extract"
	"Costbook/internal/recipe"
)

// rowFromCells maps one extracted cell grid row onto the standard layout.
// Missing trailing cells read as empty.
func rowFromCells(cells []string, layout extract.Layout) domain.RawRow {
	at := func(i int) string {
		if i >= 0 && i < len(cells) {
			return cells[i]
		}
		return ""
	}

	return domain.RawRow{
		Code:           strings.TrimSpace(at(layout.Code)),
		Description:    strings.TrimSpace(at(layout.Description)),
		Unit:           strings.TrimSpace(at(layout.Unit)),
		ComponentQty:   recipe.AmountPtr(at(layout.ComponentQty)),
		ComponentPrice: recipe.AmountPtr(at(layout.ComponentPrice)),
		ArticlePrice:   recipe.AmountPtr(at(layout.ArticlePrice)),
		ManpowerPrice:  recipe.AmountPtr(at(layout.ManpowerPrice)),
		Total:          recipe.AmountPtr(at(layout.Total)),
	}
}
