package reconcile

import "ETFSentinel/internal/model"

// DefaultRules returns the reconciled metrics in report order.
func DefaultRules() []model.Rule {
	return []model.Rule{
		{
			Metric:     model.MetricExpenseRatio,
			Kind:       model.Absolute,
			Green:      0.0001,
			Yellow:     0.0005,
			YellowNote: "Minor discrepancy in expense ratio",
			RedNote:    "Significant variation in expense ratio reporting",
		},
		{
			Metric:     model.MetricAUM,
			Kind:       model.RelativeToMax,
			Green:      0.10,
			Yellow:     0.25,
			YellowNote: "AUM varies between sources",
			RedNote:    "Large AUM difference, possibly due to reporting date mismatch",
		},
		{
			Metric:     model.MetricAvgVolume,
			Kind:       model.RelativeToMean,
			Green:      0.15,
			Yellow:     0.30,
			YellowNote: "Volume varies between sources",
			RedNote:    "Volume differs significantly, check market conditions",
		},
		{
			Metric:     model.MetricVolatility,
			Kind:       model.RelativeToMean,
			Green:      0.05,
			Yellow:     0.15,
			YellowNote: "Volatility estimates differ in window or method",
			RedNote:    "Volatility differs significantly between sources",
		},
	}
}
