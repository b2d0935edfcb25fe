// Package reconcile compares computed fund metrics with externally sourced values.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/guregu/null/v6"

	"ETFSentinel/internal/cache"
	"ETFSentinel/internal/model"
	"ETFSentinel/internal/reference"
)

// ExternalFetchError is returned when every reference source failed.
type ExternalFetchError struct {
	Ticker string
	Errs   []error
}

func (e *ExternalFetchError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("all reference sources failed for %s: %s", e.Ticker, strings.Join(msgs, "; "))
}

func (e *ExternalFetchError) Unwrap() []error { return e.Errs }

// Ours holds our side of each reconciled metric.
type Ours struct {
	ExpenseRatio null.Float
	AUM          null.Float
	AvgVolume    null.Float
	Volatility   null.Float
}

// OursFrom reads our values from the fund profile and the metrics bundle.
func OursFrom(info *model.BasicInfo, m *model.Metrics) Ours {
	var o Ours
	if info != nil {
		o.ExpenseRatio = info.ExpenseRatio
		o.AUM = info.TotalAssets
	}
	if m != nil {
		if m.AvgVolume > 0 {
			o.AvgVolume = null.FloatFrom(m.AvgVolume)
		}
		if m.Observations > 0 {
			o.Volatility = null.FloatFrom(m.Volatility)
		}
	}
	return o
}

func (o Ours) value(metric string) null.Float {
	switch metric {
	case model.MetricExpenseRatio:
		return o.ExpenseRatio
	case model.MetricAUM:
		return o.AUM
	case model.MetricAvgVolume:
		return o.AvgVolume
	case model.MetricVolatility:
		return o.Volatility
	}
	return null.Float{}
}

func externalValue(d *model.ReferenceData, metric string) null.Float {
	switch metric {
	case model.MetricExpenseRatio:
		return d.ExpenseRatio
	case model.MetricAUM:
		return d.AUM
	case model.MetricAvgVolume:
		return d.AvgVolume
	case model.MetricVolatility:
		return d.Volatility
	}
	return null.Float{}
}

// Validator reconciles funds against an ordered list of reference sources.
// Lookups go through a shared rate-limited cache keyed by ticker and source.
type Validator struct {
	sources []reference.Source
	lookups *cache.RateLimitedCache
	rules   []model.Rule
	logger  *slog.Logger
}

// NewValidator creates a Validator. A nil rules slice uses DefaultRules.
func NewValidator(sources []reference.Source, lookups *cache.RateLimitedCache, rules []model.Rule, logger *slog.Logger) *Validator {
	if rules == nil {
		rules = DefaultRules()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{sources: sources, lookups: lookups, rules: rules, logger: logger}
}

// Rules returns the rules in report order.
func (v *Validator) Rules() []model.Rule { return v.rules }

// Validate returns one record per rule. For each metric the first source, in
// order, that reports it supplies the external value. Source failures fall
// through to the next source; an *ExternalFetchError is returned alongside
// the records only when every source failed.
func (v *Validator) Validate(ctx context.Context, ticker string, ours Ours) ([]model.ValidationRecord, error) {
	records := make([]model.ValidationRecord, len(v.rules))
	for i, r := range v.rules {
		records[i] = model.ValidationRecord{Metric: r.Metric, Our: ours.value(r.Metric), Rule: r}
	}

	var errs []error
	pending := len(records)
	for _, src := range v.sources {
		if pending == 0 {
			break
		}
		data, err := cache.Fetch(ctx, v.lookups, ticker, src.Name(), func(ctx context.Context) (model.ReferenceData, error) {
			d, err := src.Fetch(ctx, ticker)
			if err != nil {
				return model.ReferenceData{}, err
			}
			return *d, nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return records, ctx.Err()
			}
			v.logger.Warn("reference source failed", "ticker", ticker, "source", src.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		for i := range records {
			if records[i].External.Valid {
				continue
			}
			if ext := externalValue(&data, records[i].Metric); ext.Valid {
				records[i].External = ext
				records[i].Source = src.Name()
				pending--
			}
		}
	}

	for i := range records {
		rec := &records[i]
		if rec.Our.Valid && rec.External.Valid {
			rec.Difference = null.FloatFrom(rec.Rule.Difference(rec.Our.Float64, rec.External.Float64))
		}
	}

	if len(v.sources) > 0 && len(errs) == len(v.sources) {
		return records, &ExternalFetchError{Ticker: ticker, Errs: errs}
	}
	return records, nil
}

// Flagged returns the records classified yellow or red.
func Flagged(records []model.ValidationRecord) []model.ValidationRecord {
	var out []model.ValidationRecord
	for _, r := range records {
		if sev, ok := r.Severity(); ok && sev != model.SeverityGreen {
			out = append(out, r)
		}
	}
	return out
}

// IsExternalFetch reports whether err means no reference source was reachable.
func IsExternalFetch(err error) bool {
	var efe *ExternalFetchError
	return errors.As(err, &efe)
}
