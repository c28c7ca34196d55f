// Package core provides money parsing and handling utilities.
//
// Prices and quantities are decimal values; they are never stored as floats
// so that monthly sums reconcile exactly with their per-category parts.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseDecimal converts a user-entered decimal string into a decimal value.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs,
// exponents and thousands separators are rejected. Zero is allowed here;
// callers decide whether a zero value is meaningful.
//
// Examples:
//
//	ParseDecimal("12.34") -> 12.34, nil
//	ParseDecimal("12,5")  -> 12.5, nil
//	ParseDecimal("-1")    -> error
func ParseDecimal(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, NewValidationError(field, "is required")
	}
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, NewValidationError(field, "invalid number %q", s)
	}
	for _, part := range parts {
		for _, r := range part {
			if !unicode.IsDigit(r) {
				return decimal.Zero, NewValidationError(field, "invalid number %q", s)
			}
		}
	}
	if parts[0] == "" {
		s = "0" + s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, NewValidationError(field, "invalid number %q", s)
	}
	return d, nil
}

// ParsePrice parses a price and requires it to be strictly positive.
func ParsePrice(s string) (decimal.Decimal, error) {
	d, err := ParseDecimal("price", s)
	if err != nil {
		return decimal.Zero, err
	}
	if err := ValidatePrice(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// FormatPrice renders a price with two decimals, e.g. "12.50".
func FormatPrice(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// SumPrices adds prices exactly.
func SumPrices(prices ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, p := range prices {
		total = total.Add(p)
	}
	return total
}
