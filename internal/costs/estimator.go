// Package costs estimates the explicit and implicit cost of trading a fund.
package costs

import (
	"fmt"
	"log/slog"

	"github.com/guregu/null/v6"

	"ETFSentinel/internal/model"
)

// AlertKind classifies a cost alert.
type AlertKind string

const (
	AlertWideSpread       AlertKind = "wide_spread"
	AlertMissingQuote     AlertKind = "missing_bid_ask"
	AlertInvalidQuote     AlertKind = "invalid_bid_ask"
	AlertMissingExpense   AlertKind = "missing_expense_ratio"
	AlertImpactFallback   AlertKind = "impact_without_volume"
	AlertPremiumDiscount  AlertKind = "premium_discount"
	AlertMissingIndicated AlertKind = "missing_iiv"
)

// Alert is a human-readable warning attached to an estimate.
type Alert struct {
	Kind    AlertKind `json:"kind"`
	Message string    `json:"message"`
}

// Config holds the estimator constants.
type Config struct {
	// ImpactFactor scales the half spread into a market impact proxy.
	ImpactFactor float64 `yaml:"impact_factor" validate:"gt=0"`
	// WideSpreadPct is the spread fraction at or above which an alert is raised.
	WideSpreadPct float64 `yaml:"wide_spread_pct" validate:"gt=0"`
	// PremiumAlertPct is the absolute premium/discount, in percent, above which an alert is raised.
	PremiumAlertPct float64 `yaml:"premium_alert_pct" validate:"gt=0"`
}

// DefaultConfig returns a 0.1 impact factor, a 0.5% spread alert and a 1% premium alert.
func DefaultConfig() Config {
	return Config{ImpactFactor: 0.1, WideSpreadPct: 0.005, PremiumAlertPct: 1.0}
}

// Explicit holds the costs charged by the fund itself.
type Explicit struct {
	ExpenseRatio null.Float `json:"expense_ratio"`
}

// Implicit holds the costs of crossing the market.
type Implicit struct {
	SpreadCost   null.Float `json:"spread_cost"`
	MarketImpact null.Float `json:"market_impact"`
}

// Total sums the components that are known.
type Total struct {
	OneWay    float64 `json:"one_way"`
	RoundTrip float64 `json:"round_trip"`
}

// Estimate is the full cost breakdown. A null component is unknown, not zero.
type Estimate struct {
	Symbol   string   `json:"symbol"`
	Explicit Explicit `json:"explicit"`
	Implicit Implicit `json:"implicit"`
	Total    Total    `json:"total"`
	Alerts   []Alert  `json:"alerts"`
}

// Estimator computes Estimates. It is stateless.
type Estimator struct {
	cfg    Config
	logger *slog.Logger
}

// NewEstimator creates an Estimator; zero fields take the defaults.
func NewEstimator(cfg Config, logger *slog.Logger) *Estimator {
	def := DefaultConfig()
	if cfg.ImpactFactor <= 0 {
		cfg.ImpactFactor = def.ImpactFactor
	}
	if cfg.WideSpreadPct <= 0 {
		cfg.WideSpreadPct = def.WideSpreadPct
	}
	if cfg.PremiumAlertPct <= 0 {
		cfg.PremiumAlertPct = def.PremiumAlertPct
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Estimator{cfg: cfg, logger: logger}
}

// Estimate builds the cost breakdown from the expense ratio, a quote and the
// average daily volume. Without a usable bid and ask, or with a crossed or
// locked book, the estimate falls back to the expense ratio alone.
func (e *Estimator) Estimate(expenseRatio null.Float, q *model.Quote, avgVolume null.Float) *Estimate {
	est := &Estimate{Explicit: Explicit{ExpenseRatio: expenseRatio}, Alerts: []Alert{}}
	if q != nil {
		est.Symbol = q.Symbol
	}

	if !expenseRatio.Valid {
		est.alert(AlertMissingExpense, "expense ratio unavailable; explicit cost unknown")
	}

	switch {
	case q == nil || !q.HasBidAsk():
		est.alert(AlertMissingQuote, "bid/ask unavailable; estimate uses expense ratio only")
	case q.Crossed():
		est.alert(AlertInvalidQuote, fmt.Sprintf("bid %.4f >= ask %.4f; estimate uses expense ratio only", q.Bid.Float64, q.Ask.Float64))
	default:
		spreadPct := q.SpreadPct().Float64
		half := spreadPct / 2
		est.Implicit.SpreadCost = null.FloatFrom(half)
		est.Implicit.MarketImpact = null.FloatFrom(half * e.cfg.ImpactFactor)
		if !avgVolume.Valid || avgVolume.Float64 <= 0 {
			est.alert(AlertImpactFallback, "volume unavailable; market impact uses the fixed spread factor")
		}
		if spreadPct >= e.cfg.WideSpreadPct {
			est.alert(AlertWideSpread, fmt.Sprintf("wide bid/ask spread: %.2f%%", spreadPct*100))
		}
	}

	one := expenseRatio.ValueOrZero() + est.Implicit.SpreadCost.ValueOrZero() + est.Implicit.MarketImpact.ValueOrZero()
	est.Total = Total{OneWay: one, RoundTrip: 2 * one}

	e.logger.Debug("trading cost estimated", "symbol", est.Symbol, "one_way", one, "alerts", len(est.Alerts))
	return est
}

func (est *Estimate) alert(kind AlertKind, msg string) {
	est.Alerts = append(est.Alerts, Alert{Kind: kind, Message: msg})
}
