package model

// Metric names used across the bundle, the reconciliation records and the recorder.
const (
	MetricVolatility       = "volatility"
	MetricTrackingError    = "tracking_error"
	MetricLiquidityScore   = "liquidity_score"
	MetricVolumeScore      = "liquidity_volume_score"
	MetricSpreadScore      = "liquidity_spread_score"
	MetricAssetScore       = "liquidity_asset_score"
	MetricSharpe           = "sharpe_ratio"
	MetricSortino          = "sortino_ratio"
	MetricMaxDrawdown      = "max_drawdown"
	MetricAlpha            = "alpha"
	MetricBeta             = "beta"
	MetricInformationRatio = "information_ratio"
	MetricUpCapture        = "up_capture"
	MetricDownCapture      = "down_capture"
	MetricAvgVolume        = "avg_volume"
	MetricHighLowSpread    = "high_low_spread_pct"

	MetricExpenseRatio = "expense_ratio"
	MetricAUM          = "aum"
)

// LiquidityScore is the bounded composite score and its three capped parts.
type LiquidityScore struct {
	Total       float64 `json:"total"`
	VolumeScore float64 `json:"volume_score"`
	SpreadScore float64 `json:"spread_score"`
	AssetScore  float64 `json:"asset_score"`
}

// Metrics is the bundle produced by one full recomputation for a fund.
type Metrics struct {
	Symbol       string `json:"symbol"`
	Benchmark    string `json:"benchmark"`
	Observations int    `json:"observations"`

	Volatility       float64 `json:"volatility"`
	TrackingError    float64 `json:"tracking_error"`
	Sharpe           float64 `json:"sharpe_ratio"`
	Sortino          float64 `json:"sortino_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	Alpha            float64 `json:"alpha"`
	Beta             float64 `json:"beta"`
	InformationRatio float64 `json:"information_ratio"`
	UpCapture        float64 `json:"up_capture"`
	DownCapture      float64 `json:"down_capture"`

	AvgVolume        float64 `json:"avg_volume"`
	HighLowSpreadPct float64 `json:"high_low_spread_pct"`

	Liquidity LiquidityScore `json:"liquidity"`
}

// Values flattens the bundle into a metric name to value mapping.
func (m *Metrics) Values() map[string]float64 {
	return map[string]float64{
		MetricVolatility:       m.Volatility,
		MetricTrackingError:    m.TrackingError,
		MetricLiquidityScore:   m.Liquidity.Total,
		MetricVolumeScore:      m.Liquidity.VolumeScore,
		MetricSpreadScore:      m.Liquidity.SpreadScore,
		MetricAssetScore:       m.Liquidity.AssetScore,
		MetricSharpe:           m.Sharpe,
		MetricSortino:          m.Sortino,
		MetricMaxDrawdown:      m.MaxDrawdown,
		MetricAlpha:            m.Alpha,
		MetricBeta:             m.Beta,
		MetricInformationRatio: m.InformationRatio,
		MetricUpCapture:        m.UpCapture,
		MetricDownCapture:      m.DownCapture,
		MetricAvgVolume:        m.AvgVolume,
		MetricHighLowSpread:    m.HighLowSpreadPct,
	}
}
