package recipe

import (
	"fmt"
	"log/slog"
	"strings"

	"Costbook/internal/domain"
)

// Assembler rebuilds recipe/component groupings from the flat row stream of
// one document. It is a two-state machine: SCANNING (no open recipe) and
// OPEN (accumulating components). A recipe closes only after the monetary
// total column was seen twice, matching the footer convention of repeating
// totals; the closing row also carries the unit article and manpower prices
// that seed the recipe's caches.
type Assembler struct {
	laborKeywords []string
	logger        *slog.Logger
}

// cursor is the cross-row parse state: the partially built recipe plus the
// footer hit counter.
type cursor struct {
	current    *domain.DraftRecipe
	footerHits int
}

// NewAssembler wires the labor-keyword heuristic; keywords are matched
// case-insensitively against component descriptions.
func NewAssembler(laborKeywords []string, logger *slog.Logger) *Assembler {
	kws := make([]string, 0, len(laborKeywords))
	for _, kw := range laborKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			kws = append(kws, kw)
		}
	}
	return &Assembler{laborKeywords: kws, logger: logger}
}

// Assemble walks the rows of one document and returns the completed drafts
// plus warnings for items discarded mid-parse. An item still open at
// end-of-document is dropped, never persisted; items closed earlier in the
// same document remain valid.
func (a *Assembler) Assemble(rows []domain.RawRow) ([]domain.DraftRecipe, []string) {
	var (
		cur      cursor
		drafts   []domain.DraftRecipe
		warnings []string
	)

	for _, row := range rows {
		// Closing: each total value seen while OPEN bumps the counter;
		// the second one finalizes. A total row below the threshold is a
		// signal-only row and is never stored as a component.
		if cur.current != nil && row.Total != nil {
			cur.footerHits++
			if cur.footerHits >= 2 {
				draft := *cur.current
				draft.UnitMaterialPrice = deref(row.ArticlePrice)
				draft.UnitManpowerPrice = deref(row.ManpowerPrice)
				drafts = append(drafts, draft)
				cur = cursor{}
			}
			continue
		}

		// Opening: a row carrying both code and description without a total.
		if cur.current == nil {
			code := strings.TrimSpace(row.Code)
			desc := strings.TrimSpace(row.Description)
			if code != "" && desc != "" && row.Total == nil {
				cur.current = &domain.DraftRecipe{Code: code, Description: desc}
				cur.footerHits = 0
			}
			continue
		}

		// Body: described rows carrying a unit price or quantity.
		desc := strings.TrimSpace(row.Description)
		if desc == "" || (row.ComponentPrice == nil && row.ComponentQty == nil) {
			continue
		}
		cur.current.Components = append(cur.current.Components, domain.DraftComponent{
			Code:           strings.TrimSpace(row.Code),
			Description:    desc,
			Kind:           a.kindOf(desc),
			QtyCoefficient: deref(row.ComponentQty),
			UnitPrice:      deref(row.ComponentPrice),
		})
	}

	if cur.current != nil {
		warning := fmt.Sprintf("document ended inside item %q (%d components discarded)",
			cur.current.Code, len(cur.current.Components))
		warnings = append(warnings, warning)
		if a.logger != nil {
			a.logger.Warn("incomplete item discarded",
				"code", cur.current.Code,
				"components", len(cur.current.Components))
		}
	}

	return drafts, warnings
}

func (a *Assembler) kindOf(description string) domain.ComponentKind {
	lower := strings.ToLower(description)
	for _, kw := range a.laborKeywords {
		if strings.Contains(lower, kw) {
			return domain.KindLabor
		}
	}
	return domain.KindMaterial
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
