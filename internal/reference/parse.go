package reference

import (
	"fmt"
	"strings"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

var magnitudes = map[string]decimal.Decimal{
	"K": decimal.NewFromInt(1_000),
	"M": decimal.NewFromInt(1_000_000),
	"B": decimal.NewFromInt(1_000_000_000),
	"T": decimal.NewFromInt(1_000_000_000_000),
}

var hundred = decimal.NewFromInt(100)

// parseValue reads figures such as "0.09%", "$1.2B", "45,123,456" or "1.5 M".
// Percentages are returned as fractions.
func parseValue(raw string) (null.Float, error) {
	s := strings.TrimSpace(raw)
	s = strings.NewReplacer("$", "", ",", "", " ", "", "\u00a0", "").Replace(s)
	if s == "" || s == "-" || s == "--" || strings.EqualFold(s, "N/A") {
		return null.Float{}, fmt.Errorf("no value in %q", raw)
	}

	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSuffix(s, "%")

	mult := decimal.NewFromInt(1)
	if n := len(s); n > 0 {
		if m, ok := magnitudes[strings.ToUpper(s[n-1:])]; ok {
			mult = m
			s = s[:n-1]
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return null.Float{}, fmt.Errorf("parse %q: %w", raw, err)
	}
	d = d.Mul(mult)
	if percent {
		d = d.Div(hundred)
	}
	return null.FloatFrom(d.InexactFloat64()), nil
}
