package reference

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ETFSentinel/internal/collector"
	"ETFSentinel/internal/model"
)

const fundPage = `<html><body>
<div class="profile">
  <table>
    <tr><th>Expense Ratio</th><td>0.09%</td></tr>
    <tr><th>Inception</th><td>Jan 22, 1993</td></tr>
  </table>
  <dl>
    <dt>Assets Under Management:</dt><dd>$512.3B</dd>
    <dt>Avg. Volume</dt><dd>75,432,100</dd>
  </dl>
  <div><span><b>Bid/Ask Spread</b></span><span>0.01%</span></div>
</div>
</body></html>`

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"0.09%", 0.0009},
		{"$512.3B", 512.3e9},
		{"75,432,100", 75432100},
		{" 1.5 M ", 1.5e6},
		{"$850K", 850000},
		{"-0.25%", -0.0025},
	}
	for _, tt := range tests {
		got, err := parseValue(tt.in)
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got.Float64, math.Abs(tt.want)*1e-9+1e-12, tt.in)
	}
	for _, bad := range []string{"", "N/A", "--", "Jan 22, 1993"} {
		_, err := parseValue(bad)
		assert.Error(t, err, bad)
	}
}

func TestExtract(t *testing.T) {
	data, err := Extract(fundPage, DefaultLabels)
	require.NoError(t, err)
	assert.InDelta(t, 0.0009, data.ExpenseRatio.Float64, 1e-12)
	assert.InDelta(t, 512.3e9, data.AUM.Float64, 1)
	assert.InDelta(t, 75432100, data.AvgVolume.Float64, 1e-6)
	assert.InDelta(t, 0.0001, data.Spread.Float64, 1e-12)
	assert.False(t, data.Volatility.Valid)
}

func TestExtract_NothingFound(t *testing.T) {
	_, err := Extract(`<html><body><p>Access denied</p></body></html>`, DefaultLabels)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestScraper_HTTPRenderer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/etf/spy/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(fundPage))
	}))
	defer srv.Close()

	s := NewScraper("etfdb", srv.URL+"/etf/%s/", nil, NewHTTPRenderer(5*time.Second), nil)
	assert.Equal(t, "etfdb", s.Name())

	data, err := s.Fetch(context.Background(), "SPY")
	require.NoError(t, err)
	assert.True(t, data.ExpenseRatio.Valid)

	_, err = s.Fetch(context.Background(), "NOPE")
	assert.Error(t, err)
}

type staticRenderer string

func (r staticRenderer) Render(context.Context, string) (string, error) { return string(r), nil }

func TestScraper_CustomLabels(t *testing.T) {
	page := `<ul><li>Fee</li><li>0.20%</li></ul>`
	s := NewScraper("custom", "https://example.test/%s", map[Field][]string{FieldExpenseRatio: {"Fee"}}, staticRenderer(page), nil)
	data, err := s.Fetch(context.Background(), "ABC")
	require.NoError(t, err)
	assert.InDelta(t, 0.002, data.ExpenseRatio.Float64, 1e-12)
}

func TestProviderSource(t *testing.T) {
	mock := &collector.MockProvider{
		Price: 100,
		Quotes: map[string]*model.Quote{
			"SPY": {Symbol: "SPY", Bid: null.FloatFrom(99.95), Ask: null.FloatFrom(100.05), LastPrice: 100},
		},
	}
	src := NewProviderSource(mock)
	assert.Equal(t, "provider:mock", src.Name())

	data, err := src.Fetch(context.Background(), "SPY")
	require.NoError(t, err)
	assert.InDelta(t, 0.0009, data.ExpenseRatio.Float64, 1e-12)
	assert.InDelta(t, 1.5e9, data.AUM.Float64, 1)
	assert.InDelta(t, 1_000_000, data.AvgVolume.Float64, 1e-6)
	assert.InDelta(t, 0.001, data.Spread.Float64, 1e-12)

	failing := NewProviderSource(&collector.MockProvider{Err: errors.New("down")})
	_, err = failing.Fetch(context.Background(), "SPY")
	assert.Error(t, err)
}
