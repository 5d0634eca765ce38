package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// moneyPrecision is the number of fractional digits kept when a value is rendered
// for humans. Arithmetic itself is never rounded to it.
const moneyPrecision = 8

// SafeParse parses a string into a decimal, returning zero for invalid or empty input.
func SafeParse(value string) decimal.Decimal {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseOptional parses a nullable decimal. Empty or invalid input yields nil.
func ParseOptional(value string) *decimal.Decimal {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil
	}
	return &d
}

// SafeDiv divides a by b, returning zero when b is zero.
func SafeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Div(b)
}

// NonNegative clamps d at zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// FormatPlain rounds to 8 decimal places and strips trailing zeros.
// No thousands separators are ever emitted.
func FormatPlain(d decimal.Decimal) string {
	s := d.Round(moneyPrecision).StringFixed(moneyPrecision)
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}

// FormatInteger rounds half away from zero to a whole number.
func FormatInteger(d decimal.Decimal) string {
	s := d.Round(0).StringFixed(0)
	if s == "-0" {
		return "0"
	}
	return s
}
