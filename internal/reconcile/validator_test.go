package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ETFSentinel/internal/cache"
	"ETFSentinel/internal/model"
	"ETFSentinel/internal/reference"
)

type fakeSource struct {
	name  string
	data  *model.ReferenceData
	err   error
	calls int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(context.Context, string) (*model.ReferenceData, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func newLookups(clock *cache.ManualClock) *cache.RateLimitedCache {
	return cache.NewRateLimited(
		cache.New(cache.NewMemoryStore(), nil, cache.WithCacheClock(clock)),
		cache.NewLimiter(10, nil, cache.WithClock(clock)),
		nil,
	)
}

func byMetric(records []model.ValidationRecord) map[string]model.ValidationRecord {
	out := make(map[string]model.ValidationRecord, len(records))
	for _, r := range records {
		out[r.Metric] = r
	}
	return out
}

func TestValidate_SeverityBands(t *testing.T) {
	clock := cache.NewManualClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	src := &fakeSource{name: "etfdb", data: &model.ReferenceData{
		ExpenseRatio: null.FloatFrom(0.0010),
		AUM:          null.FloatFrom(80e9),
		AvgVolume:    null.FloatFrom(1_400_000),
		Volatility:   null.FloatFrom(0.16),
	}}
	v := NewValidator([]reference.Source{src}, newLookups(clock), nil, nil)

	ours := Ours{
		ExpenseRatio: null.FloatFrom(0.00095),
		AUM:          null.FloatFrom(100e9),
		AvgVolume:    null.FloatFrom(1_000_000),
		Volatility:   null.FloatFrom(0.15),
	}
	records, err := v.Validate(context.Background(), "SPY", ours)
	require.NoError(t, err)
	require.Len(t, records, 4)
	got := byMetric(records)

	tests := []struct {
		metric string
		diff   float64
		sev    model.Severity
	}{
		{model.MetricExpenseRatio, 0.00005, model.SeverityGreen},
		{model.MetricAUM, 0.20, model.SeverityYellow},
		{model.MetricAvgVolume, 400_000.0 / 1_200_000.0, model.SeverityRed},
		{model.MetricVolatility, 0.01 / 0.155, model.SeverityYellow},
	}
	for _, tt := range tests {
		rec := got[tt.metric]
		assert.InDelta(t, tt.diff, rec.Difference.Float64, 1e-9, tt.metric)
		sev, ok := rec.Severity()
		require.True(t, ok, tt.metric)
		assert.Equal(t, tt.sev, sev, tt.metric)
		assert.Equal(t, "etfdb", rec.Source)
	}
	assert.Equal(t, "AUM varies between sources", got[model.MetricAUM].Note())
	assert.Len(t, Flagged(records), 3)
}

func TestValidate_OneSidedRecordHasNoSeverity(t *testing.T) {
	clock := cache.NewManualClock(time.Now())
	src := &fakeSource{name: "etfdb", data: &model.ReferenceData{AUM: null.FloatFrom(5e9)}}
	v := NewValidator([]reference.Source{src}, newLookups(clock), nil, nil)

	records, err := v.Validate(context.Background(), "XYZ", Ours{ExpenseRatio: null.FloatFrom(0.004)})
	require.NoError(t, err)
	got := byMetric(records)

	er := got[model.MetricExpenseRatio]
	assert.True(t, er.Our.Valid)
	assert.False(t, er.External.Valid)
	assert.False(t, er.Difference.Valid)
	_, ok := er.Severity()
	assert.False(t, ok)

	aum := got[model.MetricAUM]
	assert.False(t, aum.Our.Valid)
	assert.True(t, aum.External.Valid)
	_, ok = aum.Severity()
	assert.False(t, ok)
}

func TestValidate_FallsBackThroughSources(t *testing.T) {
	clock := cache.NewManualClock(time.Now())
	primary := &fakeSource{name: "etfdb", err: errors.New("blocked")}
	secondary := &fakeSource{name: "morningstar", data: &model.ReferenceData{ExpenseRatio: null.FloatFrom(0.0003)}}
	fallback := &fakeSource{name: "provider:mock", data: &model.ReferenceData{
		ExpenseRatio: null.FloatFrom(0.9),
		AUM:          null.FloatFrom(1e9),
		AvgVolume:    null.FloatFrom(2e6),
		Volatility:   null.FloatFrom(0.2),
	}}
	v := NewValidator([]reference.Source{primary, secondary, fallback}, newLookups(clock), nil, nil)

	records, err := v.Validate(context.Background(), "VOO", Ours{ExpenseRatio: null.FloatFrom(0.0003), AUM: null.FloatFrom(1e9)})
	require.NoError(t, err)
	got := byMetric(records)
	assert.Equal(t, "morningstar", got[model.MetricExpenseRatio].Source, "first source with the field wins")
	assert.Equal(t, 0.0003, got[model.MetricExpenseRatio].External.Float64)
	assert.Equal(t, "provider:mock", got[model.MetricAUM].Source)
}

func TestValidate_StopsWhenComplete(t *testing.T) {
	clock := cache.NewManualClock(time.Now())
	full := &fakeSource{name: "a", data: &model.ReferenceData{
		ExpenseRatio: null.FloatFrom(0.001), AUM: null.FloatFrom(1), AvgVolume: null.FloatFrom(1), Volatility: null.FloatFrom(1),
	}}
	unused := &fakeSource{name: "b", err: errors.New("unreachable")}
	v := NewValidator([]reference.Source{full, unused}, newLookups(clock), nil, nil)
	_, err := v.Validate(context.Background(), "SPY", Ours{})
	require.NoError(t, err)
	assert.Equal(t, 0, unused.calls)
}

func TestValidate_AllSourcesFailed(t *testing.T) {
	clock := cache.NewManualClock(time.Now())
	a := &fakeSource{name: "a", err: errors.New("timeout")}
	b := &fakeSource{name: "b", err: reference.ErrNoData}
	v := NewValidator([]reference.Source{a, b}, newLookups(clock), nil, nil)

	records, err := v.Validate(context.Background(), "SPY", Ours{AUM: null.FloatFrom(1e9)})
	var efe *ExternalFetchError
	require.ErrorAs(t, err, &efe)
	assert.True(t, IsExternalFetch(err))
	assert.ErrorIs(t, err, reference.ErrNoData)
	assert.Len(t, efe.Errs, 2)
	require.Len(t, records, 4, "records are still reported")
	assert.True(t, byMetric(records)[model.MetricAUM].Our.Valid)
}

func TestValidate_CachedAndRateLimited(t *testing.T) {
	clock := cache.NewManualClock(time.Now())
	src := &fakeSource{name: "etfdb", data: &model.ReferenceData{AUM: null.FloatFrom(1e9)}}
	v := NewValidator([]reference.Source{src}, newLookups(clock), nil, nil)
	ctx := context.Background()

	_, err := v.Validate(ctx, "SPY", Ours{})
	require.NoError(t, err)
	_, err = v.Validate(ctx, "SPY", Ours{})
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls, "second lookup served from cache")

	_, err = v.Validate(ctx, "QQQ", Ours{})
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, []time.Duration{6 * time.Second}, clock.Sleeps())
}

func TestOursFrom(t *testing.T) {
	info := &model.BasicInfo{ExpenseRatio: null.FloatFrom(0.002)}
	m := &model.Metrics{Observations: 252, AvgVolume: 3e6, Volatility: 0.18}
	o := OursFrom(info, m)
	assert.True(t, o.ExpenseRatio.Valid)
	assert.False(t, o.AUM.Valid)
	assert.Equal(t, 3e6, o.AvgVolume.Float64)
	assert.Equal(t, 0.18, o.Volatility.Float64)

	empty := OursFrom(nil, nil)
	assert.False(t, empty.AvgVolume.Valid)
}
