package model

import (
	"fmt"
	"time"
)

// OHLCV represents a single daily bar.
type OHLCV struct {
	Time   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// DateKey identifies the trading day of a bar. Two series are aligned on it.
func (b OHLCV) DateKey() string {
	return b.Time.Format(time.DateOnly)
}

// PriceSeries holds the daily history of one ticker, ordered by date.
// It is owned by the caller; consumers only read it.
type PriceSeries struct {
	Symbol    string
	Bars      []OHLCV
	FetchedAt time.Time
}

// NewPriceSeries checks ordering and price sanity before wrapping bars.
// Dates must be unique and strictly increasing and every close positive.
func NewPriceSeries(symbol string, bars []OHLCV) (*PriceSeries, error) {
	for i, b := range bars {
		if b.Close <= 0 {
			return nil, fmt.Errorf("%s: non-positive close %.4f on %s", symbol, b.Close, b.DateKey())
		}
		if b.Volume < 0 {
			return nil, fmt.Errorf("%s: negative volume on %s", symbol, b.DateKey())
		}
		if i == 0 {
			continue
		}
		prev := bars[i-1]
		if !b.Time.After(prev.Time) || b.DateKey() == prev.DateKey() {
			return nil, fmt.Errorf("%s: dates not strictly increasing at %s", symbol, b.DateKey())
		}
	}
	return &PriceSeries{Symbol: symbol, Bars: bars, FetchedAt: time.Now()}, nil
}

// Len returns the number of bars.
func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Closes returns the close prices in date order.
func (s *PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Last returns the most recent bar.
func (s *PriceSeries) Last() (OHLCV, bool) {
	if s.Len() == 0 {
		return OHLCV{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Tail returns a series sharing the last n bars. The backing array is not copied.
func (s *PriceSeries) Tail(n int) *PriceSeries {
	if n >= len(s.Bars) {
		return s
	}
	return &PriceSeries{Symbol: s.Symbol, Bars: s.Bars[len(s.Bars)-n:], FetchedAt: s.FetchedAt}
}
