package reference

import (
	"context"
	"fmt"

	"github.com/guregu/null/v6"

	"ETFSentinel/internal/calculator"
	"ETFSentinel/internal/collector"
	"ETFSentinel/internal/model"
)

// volumeReporter is implemented by providers that publish an average daily volume.
type volumeReporter interface {
	AverageVolume(ctx context.Context, symbol string) (null.Float, error)
}

// ProviderSource derives reference data from the market-data provider. It is
// the fallback when no scraped source yields a value.
type ProviderSource struct {
	provider collector.Provider
}

// NewProviderSource wraps p.
func NewProviderSource(p collector.Provider) *ProviderSource {
	return &ProviderSource{provider: p}
}

func (s *ProviderSource) Name() string { return "provider:" + s.provider.Name() }

func (s *ProviderSource) Fetch(ctx context.Context, ticker string) (*model.ReferenceData, error) {
	data := &model.ReferenceData{}

	info, err := s.provider.Info(ctx, ticker)
	if err == nil {
		data.ExpenseRatio = info.ExpenseRatio
		data.AUM = info.TotalAssets
	}

	if vr, ok := s.provider.(volumeReporter); ok {
		if v, err := vr.AverageVolume(ctx, ticker); err == nil {
			data.AvgVolume = v
		}
	}
	if !data.AvgVolume.Valid {
		if bars, err := s.provider.History(ctx, ticker, collector.Period3M); err == nil && len(bars) > 0 {
			data.AvgVolume = null.FloatFrom(calculator.AverageVolume(bars, 0))
		}
	}

	if q, err := s.provider.Quote(ctx, ticker); err == nil {
		data.Spread = q.SpreadPct()
	}

	if data.Empty() {
		if err == nil {
			err = ErrNoData
		}
		return nil, fmt.Errorf("%s %s: %w", s.Name(), ticker, err)
	}
	return data, nil
}
