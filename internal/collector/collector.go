package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ETFSentinel/internal/calculator"
	"ETFSentinel/internal/guard"
	"ETFSentinel/internal/model"
)

// Snapshot is everything collected about one fund for one analysis run.
type Snapshot struct {
	Symbol    string
	Benchmark string
	Period    Period
	Series    *model.PriceSeries
	// BenchSeries is nil when the fund is its own benchmark.
	BenchSeries *model.PriceSeries
	Info        *model.BasicInfo
	Quote       *model.Quote
	// QuoteErr is the advisory guard result for a live quote.
	QuoteErr error
}

// SelfBenchmark reports whether the fund is compared with itself.
func (s *Snapshot) SelfBenchmark() bool { return s.BenchSeries == nil }

// Collector orchestrates data fetching for an analysis.
type Collector struct {
	Provider Provider
	Guard    *guard.Guard
	Now      func() time.Time
	logger   *slog.Logger
}

// NewCollector creates a new Collector.
func NewCollector(provider Provider, g *guard.Guard, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if g == nil {
		g = guard.New(guard.USEquities(), 0, logger)
	}
	return &Collector{Provider: provider, Guard: g, Now: time.Now, logger: logger}
}

// Series fetches and validates the history of symbol for period.
func (c *Collector) Series(ctx context.Context, symbol string, period Period) (*model.PriceSeries, error) {
	bars, err := c.Provider.History(ctx, symbol, period)
	if err != nil {
		return nil, fmt.Errorf("fetch %s history: %w", symbol, err)
	}
	series, err := model.NewPriceSeries(symbol, bars)
	if err != nil {
		return nil, err
	}
	series.FetchedAt = c.Now()
	if need := period.MinRecords(); series.Len() < need {
		return nil, &calculator.InsufficientDataError{Symbol: symbol, Need: need, Have: series.Len()}
	}
	return series, nil
}

// Collect fetches the subject history, the benchmark history (unless it is
// the subject itself), the fund profile and a quote. Profile and quote
// failures degrade to empty values; history failures abort.
func (c *Collector) Collect(ctx context.Context, symbol, benchmark string, period Period) (*Snapshot, error) {
	snap := &Snapshot{Symbol: symbol, Benchmark: benchmark, Period: period}

	series, err := c.Series(ctx, symbol, period)
	if err != nil {
		return nil, err
	}
	snap.Series = series

	if benchmark != "" && benchmark != symbol {
		bench, err := c.Series(ctx, benchmark, period)
		if err != nil {
			return nil, fmt.Errorf("benchmark: %w", err)
		}
		snap.BenchSeries = bench
	} else {
		snap.Benchmark = symbol
	}

	info, err := c.Provider.Info(ctx, symbol)
	if err != nil {
		c.logger.Warn("fund profile unavailable", "symbol", symbol, "provider", c.Provider.Name(), "err", err)
		info = &model.BasicInfo{Symbol: symbol}
	}
	snap.Info = info

	snap.Quote, snap.QuoteErr = c.quote(ctx, series)
	return snap, nil
}

// quote returns a live quote while the market is open and the last known
// values otherwise.
func (c *Collector) quote(ctx context.Context, series *model.PriceSeries) (*model.Quote, error) {
	now := c.Now()
	if !c.Guard.IsMarketOpen(now) {
		c.logger.Debug("market closed, using last known values", "symbol", series.Symbol)
		return LastKnown(series), nil
	}
	q, err := c.Provider.Quote(ctx, series.Symbol)
	if err != nil {
		c.logger.Warn("quote unavailable, using last known values", "symbol", series.Symbol, "err", err)
		return LastKnown(series), nil
	}
	if err := c.Guard.Validate(q, now); err != nil {
		var stale *guard.StaleDataError
		if errors.As(err, &stale) {
			c.logger.Info("quote is stale", "symbol", series.Symbol, "age", stale.Age)
		}
		return q, err
	}
	return q, nil
}

// LastKnown builds a closed-market quote from the most recent bar.
func LastKnown(series *model.PriceSeries) *model.Quote {
	q := &model.Quote{Symbol: series.Symbol, MarketStatus: model.MarketClosed}
	if last, ok := series.Last(); ok {
		q.LastPrice = last.Close
		q.Timestamp = last.Time
	}
	return q
}
