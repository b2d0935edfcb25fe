package calculator

import "ETFSentinel/internal/model"

// AverageVolume returns the mean daily volume over the most recent window bars.
// A non-positive window uses the whole series.
func AverageVolume(bars []model.OHLCV, window int) float64 {
	bars = lastN(bars, window)
	if len(bars) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range bars {
		sum += b.Volume
	}
	return sum / float64(len(bars))
}

// HighLowSpreadPct returns the average high-low range as a fraction of the average close.
// Bars without a usable range are skipped.
func HighLowSpreadPct(bars []model.OHLCV, window int) float64 {
	bars = lastN(bars, window)
	var sumRange, sumClose float64
	n := 0
	for _, b := range bars {
		if b.High <= 0 || b.Low <= 0 || b.High < b.Low {
			continue
		}
		sumRange += b.High - b.Low
		sumClose += b.Close
		n++
	}
	if n == 0 || sumClose == 0 {
		return 0
	}
	return (sumRange / float64(n)) / (sumClose / float64(n))
}

func lastN(bars []model.OHLCV, n int) []model.OHLCV {
	if n <= 0 || n >= len(bars) {
		return bars
	}
	return bars[len(bars)-n:]
}
