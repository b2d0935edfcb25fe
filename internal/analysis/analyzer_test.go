package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ETFSentinel/internal/cache"
	"ETFSentinel/internal/calculator"
	"ETFSentinel/internal/collector"
	"ETFSentinel/internal/costs"
	"ETFSentinel/internal/guard"
	"ETFSentinel/internal/liquidity"
	"ETFSentinel/internal/model"
	"ETFSentinel/internal/reconcile"
	"ETFSentinel/internal/reference"
)

var (
	lastBar = time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
	// Evening in New York: the market is closed.
	evening = time.Date(2024, 3, 13, 23, 0, 0, 0, time.UTC)
)

type staticSource struct {
	data *model.ReferenceData
	err  error
}

func (s staticSource) Name() string { return "static" }

func (s staticSource) Fetch(context.Context, string) (*model.ReferenceData, error) {
	return s.data, s.err
}

func newAnalyzer(t *testing.T, p collector.Provider, sources ...reference.Source) *Analyzer {
	t.Helper()
	return newAnalyzerAt(t, evening, p, sources...)
}

func newAnalyzerAt(t *testing.T, now time.Time, p collector.Provider, sources ...reference.Source) *Analyzer {
	t.Helper()
	c := collector.NewCollector(p, guard.New(guard.USEquities(), 0, nil), nil)
	c.Now = func() time.Time { return now }
	clock := cache.NewManualClock(now)
	lookups := cache.NewRateLimited(cache.New(cache.NewMemoryStore(), nil, cache.WithCacheClock(clock)), cache.NewLimiter(10, nil, cache.WithClock(clock)), nil)
	v := reconcile.NewValidator(sources, lookups, nil, nil)
	return New(c,
		calculator.NewEngine(calculator.DefaultConfig(), nil),
		liquidity.NewScorer(liquidity.DefaultConfig(), nil),
		costs.NewEstimator(costs.DefaultConfig(), nil),
		v, nil, nil)
}

func TestAnalyze(t *testing.T) {
	src := staticSource{data: &model.ReferenceData{ExpenseRatio: null.FloatFrom(0.0009), AUM: null.FloatFrom(1.0e9)}}
	a := newAnalyzer(t, &collector.MockProvider{Price: 250, End: lastBar}, src)

	r, err := a.Analyze(context.Background(), "VOO", "SPY", collector.Period1Y, Options{Reconcile: true})
	require.NoError(t, err)
	assert.NotEmpty(t, r.RunID)
	assert.Equal(t, "SPY", r.Benchmark)
	assert.Equal(t, 252, r.Metrics.Observations)

	// 1M shares a day and $1.5B of assets saturate those sub-scores.
	assert.InDelta(t, 40, r.Metrics.Liquidity.VolumeScore, 1e-9)
	assert.InDelta(t, 30, r.Metrics.Liquidity.AssetScore, 1e-9)
	assert.LessOrEqual(t, r.Metrics.Liquidity.Total, 100.0)

	assert.Equal(t, model.MarketClosed, r.Quote.MarketStatus)
	assert.Equal(t, []costs.AlertKind{costs.AlertMissingQuote}, alertKinds(r.Costs.Alerts))
	assert.InDelta(t, 0.0009, r.Costs.Total.OneWay, 1e-12)
	assert.False(t, r.Premium.Percent.Valid)

	require.Len(t, r.Validation, 4)
	er := r.Validation[0]
	sev, ok := er.Severity()
	require.True(t, ok)
	assert.Equal(t, model.SeverityGreen, sev)
	aum := r.Validation[1]
	sev, ok = aum.Severity()
	require.True(t, ok)
	assert.Equal(t, model.SeverityRed, sev)
	assert.Empty(t, r.ValidationWarning)
}

func TestAnalyze_CrossedQuoteIsNotPriced(t *testing.T) {
	// 11:00 in New York on a Wednesday.
	session := time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC)
	mock := &collector.MockProvider{Price: 100, End: lastBar, Quotes: map[string]*model.Quote{
		"X": {Symbol: "X", Bid: null.FloatFrom(101), Ask: null.FloatFrom(100), LastPrice: 100.5, Timestamp: session},
	}}
	a := newAnalyzerAt(t, session, mock)

	r, err := a.Analyze(context.Background(), "X", "SPY", collector.Period1Y, Options{})
	require.NoError(t, err)
	assert.Contains(t, r.QuoteWarning, "invalid quote for X")
	assert.False(t, r.Costs.Implicit.SpreadCost.Valid)
	assert.GreaterOrEqual(t, r.Costs.Total.OneWay, 0.0)
	assert.Contains(t, alertKinds(r.Costs.Alerts), costs.AlertInvalidQuote)
	assert.Less(t, r.Metrics.Liquidity.SpreadScore, 30.0)
}

func TestAnalyze_ReferenceUnavailable(t *testing.T) {
	src := staticSource{err: reference.ErrNoData}
	a := newAnalyzer(t, &collector.MockProvider{Price: 100, End: lastBar}, src)
	r, err := a.Analyze(context.Background(), "SPY", "SPY", collector.Period1Y, Options{Reconcile: true})
	require.NoError(t, err)
	assert.NotEmpty(t, r.ValidationWarning)
	require.Len(t, r.Validation, 4)
	for _, rec := range r.Validation {
		assert.False(t, rec.Difference.Valid, rec.Metric)
	}
}

func TestAnalyze_SelfBenchmark(t *testing.T) {
	a := newAnalyzer(t, &collector.MockProvider{Price: 100, End: lastBar})
	r, err := a.Analyze(context.Background(), "SPY", "SPY", collector.Period1Y, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, r.Metrics.Beta)
	assert.Equal(t, 0.0, r.Metrics.Alpha)
	assert.Nil(t, r.Validation)
}

func TestCompare_FailuresReportedInPlace(t *testing.T) {
	mock := &collector.MockProvider{Price: 100, End: lastBar, Bars: map[string][]model.OHLCV{
		"TINY": {{Time: lastBar, Close: 10, High: 10, Low: 10}},
	}}
	a := newAnalyzer(t, mock)
	results := a.Compare(context.Background(), []string{"SPY", "TINY", "QQQ"}, "SPY", collector.Period1Y, Options{})
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.Nil(t, results[1].Report)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, "QQQ", results[2].Report.Symbol)
}

func TestHistory(t *testing.T) {
	a := newAnalyzer(t, &collector.MockProvider{Price: 100, End: lastBar})
	rows, err := a.History(context.Background(), "QQQ", "SPY")
	require.NoError(t, err)
	require.Len(t, rows, len(collector.HistoryPeriods))
	for _, row := range rows {
		require.NoError(t, row.Err, row.Period)
		assert.Equal(t, row.Period.TradingDays(), row.Observations)
		assert.LessOrEqual(t, row.MaxDrawdown, 0.0)
		assert.Greater(t, row.TrackingError, 0.0)
	}
}

func TestHistory_ShortPeriodsReportInsufficientData(t *testing.T) {
	bars := make([]model.OHLCV, 25)
	for i := range bars {
		bars[i] = model.OHLCV{Time: lastBar.AddDate(0, 0, i-25), Close: 100 + float64(i), High: 101 + float64(i), Low: 99 + float64(i)}
	}
	a := newAnalyzer(t, &collector.MockProvider{Bars: map[string][]model.OHLCV{"NEW": bars}})
	rows, err := a.History(context.Background(), "NEW", "")
	require.NoError(t, err)
	assert.NoError(t, rows[0].Err)
	assert.Equal(t, 0.0, rows[0].MaxDrawdown)
	last := rows[len(rows)-1]
	var ide *calculator.InsufficientDataError
	assert.ErrorAs(t, last.Err, &ide)
}

func alertKinds(alerts []costs.Alert) []costs.AlertKind {
	out := make([]costs.AlertKind, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.Kind)
	}
	return out
}
