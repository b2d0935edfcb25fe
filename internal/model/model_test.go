package model

import (
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestNewPriceSeries(t *testing.T) {
	ok := []OHLCV{{Time: day(0), Close: 10}, {Time: day(1), Close: 11}}
	s, err := NewPriceSeries("SPY", ok)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []float64{10, 11}, s.Closes())

	_, err = NewPriceSeries("SPY", []OHLCV{{Time: day(1), Close: 10}, {Time: day(0), Close: 11}})
	assert.Error(t, err, "out of order")

	_, err = NewPriceSeries("SPY", []OHLCV{{Time: day(0), Close: 10}, {Time: day(0).Add(time.Hour), Close: 11}})
	assert.Error(t, err, "duplicate trading day")

	_, err = NewPriceSeries("SPY", []OHLCV{{Time: day(0), Close: 0}})
	assert.Error(t, err, "zero close")
}

func TestPriceSeriesTail(t *testing.T) {
	bars := []OHLCV{{Time: day(0), Close: 1}, {Time: day(1), Close: 2}, {Time: day(2), Close: 3}}
	s, err := NewPriceSeries("X", bars)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3}, s.Tail(2).Closes())
	assert.Same(t, s, s.Tail(10))
	last, ok := s.Last()
	assert.True(t, ok)
	assert.Equal(t, 3.0, last.Close)
}

func TestQuoteDerivedSpread(t *testing.T) {
	q := Quote{Bid: null.FloatFrom(100), Ask: null.FloatFrom(101)}
	assert.InDelta(t, 1.0, q.Spread().Float64, 1e-12)
	assert.InDelta(t, 1.0/100.5, q.SpreadPct().Float64, 1e-12)

	missing := Quote{Bid: null.FloatFrom(100)}
	assert.False(t, missing.Spread().Valid)
	assert.False(t, missing.SpreadPct().Valid)

	nonPositive := Quote{Bid: null.FloatFrom(0), Ask: null.FloatFrom(1)}
	assert.False(t, nonPositive.HasBidAsk())

	crossed := Quote{Bid: null.FloatFrom(101), Ask: null.FloatFrom(100)}
	assert.True(t, crossed.Crossed())
	assert.False(t, crossed.SpreadPct().Valid)

	locked := Quote{Bid: null.FloatFrom(100), Ask: null.FloatFrom(100)}
	assert.True(t, locked.Crossed())
	assert.False(t, locked.SpreadPct().Valid)
	assert.False(t, q.Crossed())
}

func TestRuleDifference(t *testing.T) {
	abs := Rule{Kind: Absolute}
	assert.InDelta(t, 0.0002, abs.Difference(0.0003, 0.0005), 1e-12)

	max := Rule{Kind: RelativeToMax}
	assert.InDelta(t, 0.5, max.Difference(50, 100), 1e-12)
	assert.Equal(t, 0.0, max.Difference(0, 0))

	mean := Rule{Kind: RelativeToMean}
	assert.InDelta(t, 50.0/75.0, mean.Difference(50, 100), 1e-12)
}

func TestValidationRecordSeverity(t *testing.T) {
	rule := Rule{Metric: MetricAUM, Kind: RelativeToMax, Green: 0.10, Yellow: 0.25, RedNote: "large"}
	tests := []struct {
		diff float64
		want Severity
	}{
		{0.0, SeverityGreen},
		{0.10, SeverityGreen},
		{0.2, SeverityYellow},
		{0.25, SeverityYellow},
		{0.3, SeverityRed},
	}
	for _, tt := range tests {
		rec := ValidationRecord{Rule: rule, Difference: null.FloatFrom(tt.diff)}
		sev, ok := rec.Severity()
		assert.True(t, ok)
		assert.Equal(t, tt.want, sev, "diff %.2f", tt.diff)
	}

	oneSided := ValidationRecord{Rule: rule, Our: null.FloatFrom(0.0003)}
	_, ok := oneSided.Severity()
	assert.False(t, ok)
	assert.Empty(t, oneSided.Note())
}
