package catalog

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	DefaultPrice = "10.00"
	ZeroPrice    = "0.00"
)

var leadingNumber = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)`)

// ParsePrice reads the leading numeric part of raw, so "12.50 USD" parses
// as 12.50 while "$12" does not parse at all.
func ParsePrice(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return d, true
	}
	m := leadingNumber.FindString(s)
	if m == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(m, "."))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// NormalizePrice renders raw with exactly two fraction digits. Anything
// that does not parse collapses to "0.00".
func NormalizePrice(raw string) string {
	d, ok := ParsePrice(raw)
	if !ok {
		return ZeroPrice
	}
	return FormatPrice(d)
}

func FormatPrice(d decimal.Decimal) string {
	return d.StringFixed(2)
}
