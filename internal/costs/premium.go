package costs

import (
	"fmt"
	"math"

	"github.com/guregu/null/v6"

	"ETFSentinel/internal/model"
)

// Premium is the gap between the traded price and the indicative value.
type Premium struct {
	Symbol     string     `json:"symbol"`
	LastPrice  float64    `json:"last_price"`
	Indicative null.Float `json:"iiv"`
	// Percent is positive for a premium and negative for a discount.
	Percent null.Float `json:"premium_discount_pct"`
	Alerts  []Alert    `json:"alerts"`
}

// PremiumDiscount compares the last price with the intraday indicative value.
func (e *Estimator) PremiumDiscount(q *model.Quote) *Premium {
	p := &Premium{Symbol: q.Symbol, LastPrice: q.LastPrice, Indicative: q.IndicativeValue, Alerts: []Alert{}}
	if !q.IndicativeValue.Valid || q.IndicativeValue.Float64 <= 0 || q.LastPrice <= 0 {
		p.Alerts = append(p.Alerts, Alert{Kind: AlertMissingIndicated, Message: "indicative value unavailable; premium/discount unknown"})
		return p
	}
	iiv := q.IndicativeValue.Float64
	pct := (q.LastPrice - iiv) / iiv * 100
	p.Percent = null.FloatFrom(pct)
	if math.Abs(pct) > e.cfg.PremiumAlertPct {
		label := "premium"
		if pct < 0 {
			label = "discount"
		}
		p.Alerts = append(p.Alerts, Alert{Kind: AlertPremiumDiscount, Message: fmt.Sprintf("trading at a %.2f%% %s to indicative value", math.Abs(pct), label)})
	}
	return p
}
