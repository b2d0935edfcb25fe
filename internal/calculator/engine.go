package calculator

import (
	"fmt"
	"log/slog"
	"math"

	"ETFSentinel/internal/model"
)

const (
	// MinMetricsRecords is the shortest series a full metrics bundle is computed on.
	MinMetricsRecords = 30
	// MinShortLookbackRecords is the shortest series accepted for short-lookback tracking.
	MinShortLookbackRecords = 20
)

// Config holds the annualization constants.
type Config struct {
	RiskFreeRate float64 `yaml:"risk_free_rate" validate:"gte=0,lt=1"`
	TradingDays  int     `yaml:"trading_days" validate:"gt=0"`
	// VolumeWindow is the number of recent bars averaged for volume and high-low spread.
	VolumeWindow int `yaml:"volume_window" validate:"gte=0"`
}

// DefaultConfig returns a 5% risk-free rate over 252 trading days.
func DefaultConfig() Config {
	return Config{RiskFreeRate: 0.05, TradingDays: 252, VolumeWindow: 30}
}

// Engine computes risk, performance and benchmark-relative metrics.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// NewEngine creates an Engine. Zero config fields fall back to DefaultConfig.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	def := DefaultConfig()
	if cfg.TradingDays <= 0 {
		cfg.TradingDays = def.TradingDays
	}
	if cfg.VolumeWindow < 0 {
		cfg.VolumeWindow = def.VolumeWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Config returns the engine's constants.
func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) days() float64 { return float64(e.cfg.TradingDays) }

func (e *Engine) dailyRiskFree() float64 { return e.cfg.RiskFreeRate / e.days() }

// Volatility is the annualized sample standard deviation of daily returns.
func (e *Engine) Volatility(r *ReturnSeries) float64 {
	if r.Len() < 2 {
		return 0
	}
	return stddev(r.Values) * math.Sqrt(e.days())
}

// Sharpe is the annualized mean excess return over the annualized volatility.
func (e *Engine) Sharpe(r *ReturnSeries) float64 {
	if r.Len() < 2 {
		return 0
	}
	sd := stddev(r.Values)
	if sd == 0 {
		return 0
	}
	return e.annualExcess(r.Values) / (sd * math.Sqrt(e.days()))
}

// Sortino is the Sharpe numerator over the annualized root-mean-square of negative excess returns.
func (e *Engine) Sortino(r *ReturnSeries) float64 {
	if r.Len() == 0 {
		return 0
	}
	rf := e.dailyRiskFree()
	var sumSq float64
	n := 0
	for _, v := range r.Values {
		if ex := v - rf; ex < 0 {
			sumSq += ex * ex
			n++
		}
	}
	if n == 0 {
		return 0
	}
	downside := math.Sqrt(sumSq/float64(n)) * math.Sqrt(e.days())
	if downside == 0 {
		return 0
	}
	return e.annualExcess(r.Values) / downside
}

func (e *Engine) annualExcess(values []float64) float64 {
	rf := e.dailyRiskFree()
	sum := 0.0
	for _, v := range values {
		sum += v - rf
	}
	return sum / float64(len(values)) * e.days()
}

// MaxDrawdown returns the most negative decline from a running peak. It is never positive.
func MaxDrawdown(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	peak := prices[0]
	worst := 0.0
	for _, p := range prices {
		if p > peak {
			peak = p
		}
		if peak <= 0 {
			continue
		}
		if dd := (p - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return worst
}

// TrackingError is the annualized standard deviation of aligned return differences.
// Fewer than two aligned dates yield 0.
func (e *Engine) TrackingError(etf, bench *ReturnSeries) float64 {
	x, y := align(etf, bench)
	if len(x) < 2 {
		return 0
	}
	return stddev(diff(x, y)) * math.Sqrt(e.days())
}

// Beta is cov(etf, bench) / var(bench) over aligned dates. A flat benchmark yields 0.
func (e *Engine) Beta(etf, bench *ReturnSeries) float64 {
	x, y := align(etf, bench)
	return beta(x, y)
}

func beta(x, y []float64) float64 {
	v := variance(y)
	if v == 0 {
		return 0
	}
	return covariance(x, y) / v
}

// Alpha is Jensen's alpha on annualized compounded returns over aligned dates.
func (e *Engine) Alpha(etf, bench *ReturnSeries) float64 {
	x, y := align(etf, bench)
	if len(x) == 0 {
		return 0
	}
	annE := math.Pow(1+mean(x), e.days()) - 1
	annB := math.Pow(1+mean(y), e.days()) - 1
	rf := e.cfg.RiskFreeRate
	return annE - (rf + beta(x, y)*(annB-rf))
}

// InformationRatio is the annualized mean active return over the annualized tracking error.
func (e *Engine) InformationRatio(etf, bench *ReturnSeries) float64 {
	x, y := align(etf, bench)
	active := diff(x, y)
	denom := stddev(active) * math.Sqrt(e.days())
	if denom == 0 {
		return 0
	}
	return mean(active) * e.days() / denom
}

// CaptureRatios compares average subject returns with average benchmark returns
// on up-market and down-market days. An empty side yields 0.
func (e *Engine) CaptureRatios(etf, bench *ReturnSeries) (up, down float64) {
	x, y := align(etf, bench)
	var upE, upB, downE, downB []float64
	for i := range y {
		switch {
		case y[i] > 0:
			upE = append(upE, x[i])
			upB = append(upB, y[i])
		case y[i] < 0:
			downE = append(downE, x[i])
			downB = append(downB, y[i])
		}
	}
	return ratioOfMeans(upE, upB), ratioOfMeans(downE, downB)
}

func ratioOfMeans(num, den []float64) float64 {
	if len(den) == 0 {
		return 0
	}
	m := mean(den)
	if m == 0 {
		return 0
	}
	return mean(num) / m
}

func diff(x, y []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] - y[i]
	}
	return out
}

// Compute builds the full metrics bundle for subject against bench.
// bench is ignored when it is nil or names the same ticker as subject; the
// benchmark-relative fields then take the self-benchmark values
// (alpha 0, beta 1, tracking error 0, information ratio 0, captures 1).
// The liquidity sub-scores are left for the caller to fill.
func (e *Engine) Compute(subject, bench *model.PriceSeries) (*model.Metrics, error) {
	if subject.Len() < MinMetricsRecords {
		return nil, &InsufficientDataError{Symbol: symbolOf(subject), Need: MinMetricsRecords, Have: subject.Len()}
	}
	r, err := Returns(subject)
	if err != nil {
		return nil, err
	}

	m := &model.Metrics{
		Symbol:           subject.Symbol,
		Benchmark:        subject.Symbol,
		Observations:     subject.Len(),
		Volatility:       e.Volatility(r),
		Sharpe:           e.Sharpe(r),
		Sortino:          e.Sortino(r),
		MaxDrawdown:      MaxDrawdown(subject.Closes()),
		AvgVolume:        AverageVolume(subject.Bars, e.cfg.VolumeWindow),
		HighLowSpreadPct: HighLowSpreadPct(subject.Bars, e.cfg.VolumeWindow),
	}

	if bench == nil || bench.Symbol == subject.Symbol {
		m.Beta = 1
		m.UpCapture = 1
		m.DownCapture = 1
		return m, nil
	}

	br, err := Returns(bench)
	if err != nil {
		return nil, fmt.Errorf("benchmark returns: %w", err)
	}
	m.Benchmark = bench.Symbol
	m.TrackingError = e.TrackingError(r, br)
	m.Beta = e.Beta(r, br)
	m.Alpha = e.Alpha(r, br)
	m.InformationRatio = e.InformationRatio(r, br)
	m.UpCapture, m.DownCapture = e.CaptureRatios(r, br)

	if x, _ := align(r, br); len(x) == 0 {
		e.logger.Warn("no overlapping dates with benchmark", "symbol", subject.Symbol, "benchmark", bench.Symbol)
	}
	return m, nil
}
