package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"budgetmail/internal/core"

	"github.com/shopspring/decimal"
)

// sanitizeInput removes control characters except tab and newlines, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// centsDecimal renders cents as a fixed two-decimal string, e.g. "150.00".
func centsDecimal(m core.Money) string {
	return decimal.New(m.Cents, -2).StringFixed(2)
}

// formatDecimal formats an arbitrary decimal amount like core.Money.Format,
// rounding half-up to cents.
func formatDecimal(d decimal.Decimal, symbol string) string {
	neg := d.IsNegative()
	m, err := core.MoneyFromDecimal(d.Abs())
	if err != nil {
		return d.StringFixed(2)
	}
	if neg {
		m.Cents = -m.Cents
	}
	return m.Format(symbol)
}
