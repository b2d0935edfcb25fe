// Package analysis runs the full pipeline for a fund: collection, metrics,
// liquidity, trading costs and reconciliation.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/guregu/null/v6"

	"ETFSentinel/internal/calculator"
	"ETFSentinel/internal/collector"
	"ETFSentinel/internal/costs"
	"ETFSentinel/internal/liquidity"
	"ETFSentinel/internal/model"
	"ETFSentinel/internal/reconcile"
	"ETFSentinel/internal/recorder"
)

// Report is the result of analysing one fund.
type Report struct {
	RunID       string
	GeneratedAt time.Time
	Symbol      string
	Benchmark   string
	Period      collector.Period

	Info    *model.BasicInfo
	Metrics *model.Metrics
	Quote   *model.Quote
	// QuoteWarning describes an advisory guard failure on the live quote.
	QuoteWarning string
	Costs        *costs.Estimate
	Premium      *costs.Premium

	Validation []model.ValidationRecord
	// ValidationWarning is set when no reference source could be reached.
	ValidationWarning string
}

// Options selects optional stages.
type Options struct {
	Reconcile bool
}

// Analyzer wires the pipeline stages together.
type Analyzer struct {
	collector *collector.Collector
	engine    *calculator.Engine
	scorer    *liquidity.Scorer
	estimator *costs.Estimator
	validator *reconcile.Validator
	recorder  recorder.Recorder
	logger    *slog.Logger
}

// New creates an Analyzer. validator may be nil when reconciliation is not
// configured; rec may be nil to skip persistence.
func New(c *collector.Collector, e *calculator.Engine, s *liquidity.Scorer, est *costs.Estimator,
	v *reconcile.Validator, rec recorder.Recorder, logger *slog.Logger) *Analyzer {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{collector: c, engine: e, scorer: s, estimator: est, validator: v, recorder: rec, logger: logger}
}

// Analyze collects data for ticker and computes its report.
func (a *Analyzer) Analyze(ctx context.Context, ticker, benchmark string, period collector.Period, opts Options) (*Report, error) {
	snap, err := a.collector.Collect(ctx, ticker, benchmark, period)
	if err != nil {
		return nil, err
	}
	return a.analyzeSnapshot(ctx, snap, opts)
}

func (a *Analyzer) analyzeSnapshot(ctx context.Context, snap *collector.Snapshot, opts Options) (*Report, error) {
	metrics, err := a.engine.Compute(snap.Series, snap.BenchSeries)
	if err != nil {
		return nil, fmt.Errorf("compute metrics for %s: %w", snap.Symbol, err)
	}

	q := snap.Quote
	metrics.Liquidity = a.scorer.ScoreFromSeries(liquidity.Inputs{
		ObservedSpread: q.SpreadPct(),
		TotalAssets:    snap.Info.TotalAssets,
	}, metrics)

	report := &Report{
		RunID:       recorder.NewRunID(),
		GeneratedAt: time.Now(),
		Symbol:      snap.Symbol,
		Benchmark:   snap.Benchmark,
		Period:      snap.Period,
		Info:        snap.Info,
		Metrics:     metrics,
		Quote:       q,
		Costs:       a.estimator.Estimate(snap.Info.ExpenseRatio, q, null.FloatFrom(metrics.AvgVolume)),
		Premium:     a.estimator.PremiumDiscount(q),
	}
	if snap.QuoteErr != nil {
		report.QuoteWarning = snap.QuoteErr.Error()
	}

	if opts.Reconcile && a.validator != nil {
		records, err := a.validator.Validate(ctx, snap.Symbol, reconcile.OursFrom(snap.Info, metrics))
		switch {
		case reconcile.IsExternalFetch(err):
			report.ValidationWarning = err.Error()
		case err != nil:
			return nil, fmt.Errorf("reconcile %s: %w", snap.Symbol, err)
		}
		report.Validation = records
	}

	a.record(ctx, report)
	return report, nil
}

func (a *Analyzer) record(ctx context.Context, r *Report) {
	err := a.recorder.RecordMetrics(ctx, &recorder.MetricSnapshot{
		RunID:      r.RunID,
		Symbol:     r.Symbol,
		Period:     string(r.Period),
		Metrics:    r.Metrics,
		OneWayCost: null.FloatFrom(r.Costs.Total.OneWay),
		PremiumPct: r.Premium.Percent,
		At:         r.GeneratedAt,
	})
	if err != nil {
		a.logger.Warn("record metrics failed", "symbol", r.Symbol, "err", err)
	}
	if len(r.Validation) == 0 {
		return
	}
	err = a.recorder.RecordValidation(ctx, &recorder.ValidationEvent{
		RunID:   r.RunID,
		Symbol:  r.Symbol,
		Records: r.Validation,
		At:      r.GeneratedAt,
	})
	if err != nil {
		a.logger.Warn("record validation failed", "symbol", r.Symbol, "err", err)
	}
}

// CompareResult is one row of a comparison. Exactly one of Report and Err is set.
type CompareResult struct {
	Ticker string
	Report *Report
	Err    error
}

// Compare analyses tickers one after another against the same benchmark.
// A failing ticker is reported in place and does not stop the others.
func (a *Analyzer) Compare(ctx context.Context, tickers []string, benchmark string, period collector.Period, opts Options) []CompareResult {
	out := make([]CompareResult, 0, len(tickers))
	for _, t := range tickers {
		if ctx.Err() != nil {
			out = append(out, CompareResult{Ticker: t, Err: ctx.Err()})
			continue
		}
		r, err := a.Analyze(ctx, t, benchmark, period, opts)
		if err != nil {
			a.logger.Warn("comparison entry failed", "ticker", t, "err", err)
		}
		out = append(out, CompareResult{Ticker: t, Report: r, Err: err})
	}
	return out
}

// HistoryRow holds the tracking metrics of one lookback period.
type HistoryRow struct {
	Period        collector.Period
	Observations  int
	Volatility    float64
	Sharpe        float64
	MaxDrawdown   float64
	TrackingError float64
	Err           error
}

// History computes tracking metrics over each standard lookback period.
// Periods without enough data carry an error instead of aborting the rest.
func (a *Analyzer) History(ctx context.Context, ticker, benchmark string) ([]HistoryRow, error) {
	rows := make([]HistoryRow, 0, len(collector.HistoryPeriods))
	for _, p := range collector.HistoryPeriods {
		row := HistoryRow{Period: p}
		series, err := a.collector.Series(ctx, ticker, p)
		if err != nil {
			var ide *calculator.InsufficientDataError
			if !errors.As(err, &ide) {
				return nil, err
			}
			row.Err = err
			rows = append(rows, row)
			continue
		}
		r, err := calculator.Returns(series)
		if err != nil {
			row.Err = err
			rows = append(rows, row)
			continue
		}
		row.Observations = series.Len()
		row.Volatility = a.engine.Volatility(r)
		row.Sharpe = a.engine.Sharpe(r)
		row.MaxDrawdown = calculator.MaxDrawdown(series.Closes())

		if benchmark != "" && benchmark != ticker {
			bench, err := a.collector.Series(ctx, benchmark, p)
			if err == nil {
				if br, err := calculator.Returns(bench); err == nil {
					row.TrackingError = a.engine.TrackingError(r, br)
				}
			} else {
				a.logger.Warn("benchmark history unavailable", "benchmark", benchmark, "period", p, "err", err)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
