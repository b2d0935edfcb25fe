package collector

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/guregu/null/v6"

	"ETFSentinel/internal/model"
)

// MockProvider returns controllable fixed data for development and testing.
type MockProvider struct {
	Price float64
	// Bars, when set, is returned by History for every symbol.
	Bars map[string][]model.OHLCV
	// Infos and Quotes override the generated values per symbol.
	Infos  map[string]*model.BasicInfo
	Quotes map[string]*model.Quote
	// Err, when set, fails every call.
	Err error
	// End is the date of the last generated bar; zero means today.
	End time.Time
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) History(_ context.Context, symbol string, period Period) ([]model.OHLCV, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if bars, ok := m.Bars[symbol]; ok {
		return bars, nil
	}
	return generateMockBars(m.Price, period.TradingDays(), m.end(), seedOf(symbol)), nil
}

func (m *MockProvider) Info(_ context.Context, symbol string) (*model.BasicInfo, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if info, ok := m.Infos[symbol]; ok {
		return info, nil
	}
	return &model.BasicInfo{
		Symbol:       symbol,
		Name:         fmt.Sprintf("%s Mock Fund", symbol),
		Category:     "Large Blend",
		ExpenseRatio: null.FloatFrom(0.0009),
		TotalAssets:  null.FloatFrom(1.5e9),
	}, nil
}

func (m *MockProvider) Quote(_ context.Context, symbol string) (*model.Quote, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if q, ok := m.Quotes[symbol]; ok {
		return q, nil
	}
	p := m.Price
	return &model.Quote{
		Symbol:          symbol,
		Bid:             null.FloatFrom(p - 0.01),
		Ask:             null.FloatFrom(p + 0.01),
		LastPrice:       p,
		IndicativeValue: null.FloatFrom(p),
		Volume:          null.FloatFrom(1_000_000),
		Timestamp:       time.Now(),
		MarketStatus:    model.MarketOpen,
	}, nil
}

func (m *MockProvider) end() time.Time {
	if !m.End.IsZero() {
		return m.End
	}
	return time.Now().UTC().Truncate(24 * time.Hour)
}

// generateMockBars builds count weekday bars ending at end. The seed shifts
// the oscillation so different symbols are not perfectly correlated.
func generateMockBars(basePrice float64, count int, end time.Time, seed float64) []model.OHLCV {
	if basePrice <= 0 {
		basePrice = 100
	}
	days := make([]time.Time, 0, count)
	for d := end; len(days) < count; d = d.AddDate(0, 0, -1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		days = append(days, d)
	}
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001 + 0.01*math.Sin(float64(i)/3+seed))
		bars[i] = model.OHLCV{
			Time:   days[count-1-i],
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}

func seedOf(symbol string) float64 {
	var s float64
	for _, r := range symbol {
		s += float64(r)
	}
	return s
}
