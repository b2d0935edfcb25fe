package calculator

import "ETFSentinel/internal/model"

// ReturnSeries holds daily simple returns keyed by the later date of each pair.
type ReturnSeries struct {
	Dates  []string
	Values []float64
}

// Len returns the number of returns.
func (r *ReturnSeries) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Values)
}

// Returns computes the percentage change between consecutive closes.
// The result is always one record shorter than the series.
func Returns(series *model.PriceSeries) (*ReturnSeries, error) {
	if series.Len() < 2 {
		return nil, &InsufficientDataError{Symbol: symbolOf(series), Need: 2, Have: series.Len()}
	}
	bars := series.Bars
	out := &ReturnSeries{
		Dates:  make([]string, 0, len(bars)-1),
		Values: make([]float64, 0, len(bars)-1),
	}
	for i := 1; i < len(bars); i++ {
		out.Dates = append(out.Dates, bars[i].DateKey())
		out.Values = append(out.Values, bars[i].Close/bars[i-1].Close-1)
	}
	return out, nil
}

// align inner-joins two return series on their dates. Order follows a; dates
// missing from either side are dropped from the result only.
func align(a, b *ReturnSeries) (x, y []float64) {
	if a.Len() == 0 || b.Len() == 0 {
		return nil, nil
	}
	idx := make(map[string]int, len(b.Dates))
	for i, d := range b.Dates {
		idx[d] = i
	}
	for i, d := range a.Dates {
		j, ok := idx[d]
		if !ok {
			continue
		}
		x = append(x, a.Values[i])
		y = append(y, b.Values[j])
	}
	return x, y
}

func symbolOf(series *model.PriceSeries) string {
	if series == nil {
		return ""
	}
	return series.Symbol
}
