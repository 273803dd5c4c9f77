// Package locale provides stateless parsers for locale-formatted dates,
// amounts and currency notation found in bank statement exports.
package locale

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a locale-formatted amount string into a decimal value.
// It handles both comma-decimal (1.234.567,89) and dot-decimal (1,234,567.89)
// notation, currency symbols, and parenthesized negatives. The boolean is
// false when the input carries no parseable number.
func ParseAmount(text string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}

	// Strip currency symbols, codes and spacing; keep digits, separators and sign.
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '.':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			negative = true
		}
	}
	cleaned := b.String()
	if cleaned == "" || !strings.ContainsAny(cleaned, "0123456789") {
		return decimal.Zero, false
	}

	cleaned = normalizeSeparators(cleaned)

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// normalizeSeparators rewrites an amount to canonical dot-decimal form.
// With both separators present, the rightmost one is the decimal mark. With a
// single separator type, it is decimal only when followed by at most two
// digits and appearing once; otherwise it groups thousands.
func normalizeSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// European: dots group, comma is decimal.
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(s, ".") == 1 && len(s)-lastDot-1 <= 2 {
			// Already canonical.
		} else {
			s = strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}
