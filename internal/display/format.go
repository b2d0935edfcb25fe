// Package display renders reports for the terminal.
package display

import (
	"fmt"
	"math"
	"strings"

	"github.com/guregu/null/v6"

	"ETFSentinel/internal/model"
)

const na = "n/a"

// Percent formats a fraction as a percentage with the given decimals.
func Percent(v float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, v*100)
}

// Compact abbreviates large magnitudes: 1.50B, 12.3M, 950.0K.
func Compact(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e12:
		return fmt.Sprintf("%.2fT", v/1e12)
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	}
	return fmt.Sprintf("%.0f", v)
}

// Value formats a metric value in the unit a reader expects for it.
func Value(metric string, v null.Float) string {
	if !v.Valid {
		return na
	}
	switch metric {
	case model.MetricExpenseRatio:
		return Percent(v.Float64, 3)
	case model.MetricAUM:
		return "$" + Compact(v.Float64)
	case model.MetricAvgVolume:
		return Compact(v.Float64)
	case model.MetricVolatility, model.MetricTrackingError, model.MetricMaxDrawdown,
		model.MetricAlpha, model.MetricHighLowSpread:
		return Percent(v.Float64, 2)
	}
	return fmt.Sprintf("%.2f", v.Float64)
}

// Difference formats a record's difference: in the metric's unit for
// absolute rules, as a percentage for relative ones.
func Difference(r model.ValidationRecord) string {
	if !r.Difference.Valid {
		return na
	}
	if r.Rule.Kind == model.Absolute {
		return Value(r.Metric, r.Difference)
	}
	return Percent(r.Difference.Float64, 1)
}

// Label turns a metric key into a column caption.
func Label(metric string) string {
	switch metric {
	case model.MetricAUM:
		return "AUM"
	case model.MetricAvgVolume:
		return "Avg Volume"
	}
	words := strings.Split(metric, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// SeverityText returns the severity of a record, or "n/a" when a side is missing.
func SeverityText(r model.ValidationRecord) string {
	sev, ok := r.Severity()
	if !ok {
		return na
	}
	return strings.ToUpper(string(sev))
}
