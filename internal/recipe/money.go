package recipe

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount normalizes a spreadsheet cell into a numeric amount. It strips
// currency markers and handles both Italian ("1.234,56") and plain ("1234.56")
// notations. The second return value is false for empty or non-numeric cells.
func ParseAmount(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	s = strings.ReplaceAll(s, "€", "")
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	switch {
	case strings.Contains(s, ",") && strings.Contains(s, "."):
		// Italian thousands + decimal comma.
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}

// AmountPtr is ParseAmount with pointer-or-nil semantics for RawRow cells.
func AmountPtr(cell string) *float64 {
	v, ok := ParseAmount(cell)
	if !ok {
		return nil
	}
	return &v
}
