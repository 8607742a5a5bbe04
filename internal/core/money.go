// Package core provides money parsing and handling utilities.
//
// Amounts are carried as integer cents. Parsing goes through decimal so that
// values like "12.345" round half-up instead of drifting through float64.
package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	// Prevent overflow when summing many amounts.
	maxCents = decimal.NewFromInt(1 << 53)

	groupedAmount = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)
)

// ParseAmount converts a decimal string to Money.
//
// The decimal separator is a dot. Commas are accepted only as thousands
// separators in groups of three ("1,500.00"); any other comma is rejected.
// Rounds half-up on the third decimal place. Zero is allowed, negative values
// and anything non-numeric return ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34") -> {1234}, nil
//	ParseAmount("1,500") -> {150000}, nil
//	ParseAmount("12,34") -> {}, ErrInvalidAmount
//	ParseAmount("abc")   -> {}, ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		if !groupedAmount.MatchString(s) {
			return Money{}, ErrInvalidAmount
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal rounds d to cents. Negative values are rejected.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Mul(hundred).Round(0)
	if cents.GreaterThan(maxCents) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Sub returns m - o. The result may be negative.
func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Units returns the value in major currency units as a float64 for display
// and charting. Use cents for calculations.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}

// Format renders m with the given currency symbol and thousands separators,
// e.g. Format("₹") on 123456 cents gives "₹1,234.56".
func (m Money) Format(symbol string) string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%s%s.%02d", sign, symbol, humanize.Comma(cents/100), cents%100)
}
