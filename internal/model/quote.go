package model

import (
	"time"

	"github.com/guregu/null/v6"
)

// MarketStatus tells whether a quote was taken during the regular session.
type MarketStatus string

const (
	MarketOpen   MarketStatus = "open"
	MarketClosed MarketStatus = "closed"
)

// Quote is a point-in-time snapshot of the order book top and last trade.
// Spread and SpreadPct are derived from Bid and Ask on every call.
type Quote struct {
	Symbol          string       `json:"symbol"`
	Bid             null.Float   `json:"bid"`
	Ask             null.Float   `json:"ask"`
	LastPrice       float64      `json:"last_price"`
	IndicativeValue null.Float   `json:"iiv"`
	Volume          null.Float   `json:"volume"`
	Timestamp       time.Time    `json:"timestamp"`
	MarketStatus    MarketStatus `json:"market_status"`
}

// HasBidAsk reports whether both sides are present and positive.
func (q *Quote) HasBidAsk() bool {
	return q.Bid.Valid && q.Ask.Valid && q.Bid.Float64 > 0 && q.Ask.Float64 > 0
}

// Crossed reports whether both sides are present but bid is at or above ask.
func (q *Quote) Crossed() bool {
	return q.HasBidAsk() && q.Bid.Float64 >= q.Ask.Float64
}

// Mid returns the bid/ask midpoint.
func (q *Quote) Mid() null.Float {
	if !q.HasBidAsk() {
		return null.Float{}
	}
	return null.FloatFrom((q.Bid.Float64 + q.Ask.Float64) / 2)
}

// Spread returns ask minus bid.
func (q *Quote) Spread() null.Float {
	if !q.HasBidAsk() {
		return null.Float{}
	}
	return null.FloatFrom(q.Ask.Float64 - q.Bid.Float64)
}

// SpreadPct returns the spread as a fraction of the midpoint. It is null for
// a crossed or locked book.
func (q *Quote) SpreadPct() null.Float {
	if !q.HasBidAsk() || q.Crossed() {
		return null.Float{}
	}
	return null.FloatFrom(q.Spread().Float64 / q.Mid().Float64)
}
