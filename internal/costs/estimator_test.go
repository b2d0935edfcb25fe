package costs

import (
	"testing"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ETFSentinel/internal/model"
)

func quote(bid, ask float64) *model.Quote {
	return &model.Quote{Symbol: "SPY", Bid: null.FloatFrom(bid), Ask: null.FloatFrom(ask), LastPrice: (bid + ask) / 2}
}

func kinds(alerts []Alert) []AlertKind {
	out := make([]AlertKind, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.Kind)
	}
	return out
}

func TestEstimate_Components(t *testing.T) {
	e := NewEstimator(DefaultConfig(), nil)
	est := e.Estimate(null.FloatFrom(0.0009), quote(99.95, 100.05), null.FloatFrom(5e7))

	require.True(t, est.Implicit.SpreadCost.Valid)
	assert.InDelta(t, 0.0005, est.Implicit.SpreadCost.Float64, 1e-12)
	assert.InDelta(t, 0.00005, est.Implicit.MarketImpact.Float64, 1e-12)
	assert.InDelta(t, 0.0009+0.0005+0.00005, est.Total.OneWay, 1e-12)
	assert.Equal(t, 2*est.Total.OneWay, est.Total.RoundTrip)
	assert.Empty(t, est.Alerts)
}

func TestEstimate_SpreadCostLinear(t *testing.T) {
	e := NewEstimator(DefaultConfig(), nil)
	mid := 100.0
	var prev float64
	for i, spread := range []float64{0.01, 0.02, 0.04} {
		est := e.Estimate(null.FloatFrom(0), quote(mid-spread/2, mid+spread/2), null.FloatFrom(1e6))
		got := est.Implicit.SpreadCost.Float64
		assert.InDelta(t, spread/mid/2, got, 1e-12)
		if i > 0 {
			assert.InDelta(t, 2*prev, got, 1e-12)
		}
		prev = got
		assert.InDelta(t, 2*est.Total.OneWay, est.Total.RoundTrip, 1e-15)
	}
}

func TestEstimate_Fallbacks(t *testing.T) {
	e := NewEstimator(DefaultConfig(), nil)
	tests := []struct {
		name      string
		expense   null.Float
		q         *model.Quote
		volume    null.Float
		wantKinds []AlertKind
		wantOne   float64
	}{
		{
			name:      "no quote",
			expense:   null.FloatFrom(0.002),
			wantKinds: []AlertKind{AlertMissingQuote},
			wantOne:   0.002,
		},
		{
			name:      "zero bid",
			expense:   null.FloatFrom(0.002),
			q:         quote(0, 100),
			volume:    null.FloatFrom(1e6),
			wantKinds: []AlertKind{AlertMissingQuote},
			wantOne:   0.002,
		},
		{
			name:      "nothing known",
			q:         &model.Quote{Symbol: "X"},
			wantKinds: []AlertKind{AlertMissingExpense, AlertMissingQuote},
			wantOne:   0,
		},
		{
			name:      "crossed book",
			expense:   null.FloatFrom(0.0003),
			q:         quote(101, 100),
			volume:    null.FloatFrom(1e6),
			wantKinds: []AlertKind{AlertInvalidQuote},
			wantOne:   0.0003,
		},
		{
			name:      "locked book",
			expense:   null.FloatFrom(0.0003),
			q:         quote(100, 100),
			volume:    null.FloatFrom(1e6),
			wantKinds: []AlertKind{AlertInvalidQuote},
			wantOne:   0.0003,
		},
		{
			name:      "wide spread without volume",
			expense:   null.FloatFrom(0.001),
			q:         quote(99, 101),
			wantKinds: []AlertKind{AlertImpactFallback, AlertWideSpread},
			wantOne:   0.001 + 0.01 + 0.001,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est := e.Estimate(tt.expense, tt.q, tt.volume)
			assert.Equal(t, tt.wantKinds, kinds(est.Alerts))
			assert.InDelta(t, tt.wantOne, est.Total.OneWay, 1e-12)
			assert.Equal(t, tt.expense.Valid, est.Explicit.ExpenseRatio.Valid)
		})
	}
}

func TestEstimate_CrossedQuoteLeavesImplicitUnknown(t *testing.T) {
	e := NewEstimator(DefaultConfig(), nil)
	est := e.Estimate(null.FloatFrom(0.0003), quote(101, 100), null.FloatFrom(1e6))
	assert.False(t, est.Implicit.SpreadCost.Valid)
	assert.False(t, est.Implicit.MarketImpact.Valid)
	assert.GreaterOrEqual(t, est.Total.OneWay, 0.0003)
	assert.InDelta(t, 0.0006, est.Total.RoundTrip, 1e-12)
	require.Len(t, est.Alerts, 1)
	assert.Contains(t, est.Alerts[0].Message, "101.0000 >= ask 100.0000")
}

func TestEstimate_UnknownIsNotZero(t *testing.T) {
	e := NewEstimator(DefaultConfig(), nil)
	est := e.Estimate(null.Float{}, nil, null.Float{})
	assert.False(t, est.Explicit.ExpenseRatio.Valid)
	assert.False(t, est.Implicit.SpreadCost.Valid)
	assert.False(t, est.Implicit.MarketImpact.Valid)
	assert.Equal(t, 0.0, est.Total.OneWay)
}

func TestPremiumDiscount(t *testing.T) {
	e := NewEstimator(DefaultConfig(), nil)

	q := &model.Quote{Symbol: "EEM", LastPrice: 40.8, IndicativeValue: null.FloatFrom(40)}
	p := e.PremiumDiscount(q)
	require.True(t, p.Percent.Valid)
	assert.InDelta(t, 2.0, p.Percent.Float64, 1e-9)
	assert.Equal(t, []AlertKind{AlertPremiumDiscount}, kinds(p.Alerts))

	q = &model.Quote{Symbol: "SPY", LastPrice: 499.5, IndicativeValue: null.FloatFrom(500)}
	p = e.PremiumDiscount(q)
	assert.InDelta(t, -0.1, p.Percent.Float64, 1e-9)
	assert.Empty(t, p.Alerts)

	p = e.PremiumDiscount(&model.Quote{Symbol: "SPY", LastPrice: 500})
	assert.False(t, p.Percent.Valid)
	assert.Equal(t, []AlertKind{AlertMissingIndicated}, kinds(p.Alerts))
}
