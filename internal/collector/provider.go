package collector

import (
	"context"
	"fmt"

	"ETFSentinel/internal/calculator"
	"ETFSentinel/internal/model"
)

// Provider is a source of market data for funds.
type Provider interface {
	History(ctx context.Context, symbol string, period Period) ([]model.OHLCV, error)
	Info(ctx context.Context, symbol string) (*model.BasicInfo, error)
	Quote(ctx context.Context, symbol string) (*model.Quote, error)
	Name() string
}

// Period is a lookback window in the provider's range notation.
type Period string

const (
	Period1M Period = "1mo"
	Period3M Period = "3mo"
	Period6M Period = "6mo"
	Period1Y Period = "1y"
	Period2Y Period = "2y"
)

// HistoryPeriods are the lookbacks reported by historical tracking.
var HistoryPeriods = []Period{Period1M, Period3M, Period6M, Period1Y}

// ParsePeriod validates a period string.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case Period1M, Period3M, Period6M, Period1Y, Period2Y:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q (want 1mo, 3mo, 6mo, 1y or 2y)", s)
}

// TradingDays approximates the number of daily bars in the period.
func (p Period) TradingDays() int {
	switch p {
	case Period1M:
		return 21
	case Period3M:
		return 63
	case Period6M:
		return 126
	case Period2Y:
		return 504
	default:
		return 252
	}
}

// MinRecords is the shortest series accepted for the period.
func (p Period) MinRecords() int {
	switch p {
	case Period1M, Period3M, Period6M:
		return calculator.MinShortLookbackRecords
	default:
		return calculator.MinMetricsRecords
	}
}
