// Package liquidity scores how easily a fund can be traded.
package liquidity

import (
	"log/slog"
	"math"

	"github.com/guregu/null/v6"

	"ETFSentinel/internal/model"
)

// Config holds the calibration of the three sub-scores.
type Config struct {
	VolumeCap float64 `yaml:"volume_cap"`
	SpreadCap float64 `yaml:"spread_cap"`
	AssetCap  float64 `yaml:"asset_cap"`
	// SaturationVolume is the average daily share volume that earns the full volume score.
	SaturationVolume float64 `yaml:"saturation_volume" validate:"gt=0"`
	// ReferenceSpread is the spread fraction that earns the full spread score.
	ReferenceSpread float64 `yaml:"reference_spread" validate:"gt=0"`
	// SaturationAssets is the AUM in dollars that earns the full asset score.
	SaturationAssets float64 `yaml:"saturation_assets" validate:"gt=0"`
}

// DefaultConfig saturates at 1M shares a day, a 1bp spread and $1B of assets.
func DefaultConfig() Config {
	return Config{
		VolumeCap:        40,
		SpreadCap:        30,
		AssetCap:         30,
		SaturationVolume: 1_000_000,
		ReferenceSpread:  0.0001,
		SaturationAssets: 1_000_000_000,
	}
}

// Inputs are the optional observations a score is built from.
type Inputs struct {
	AvgVolume null.Float
	// HighLowSpread is the series-derived fallback spread fraction.
	HighLowSpread null.Float
	// ObservedSpread is a real-time spread fraction; preferred when positive.
	ObservedSpread null.Float
	TotalAssets    null.Float
}

// Scorer turns Inputs into a bounded 0-100 score.
type Scorer struct {
	cfg    Config
	logger *slog.Logger
}

// NewScorer creates a Scorer; zero calibration fields take the defaults.
func NewScorer(cfg Config, logger *slog.Logger) *Scorer {
	def := DefaultConfig()
	if cfg.VolumeCap <= 0 {
		cfg.VolumeCap = def.VolumeCap
	}
	if cfg.SpreadCap <= 0 {
		cfg.SpreadCap = def.SpreadCap
	}
	if cfg.AssetCap <= 0 {
		cfg.AssetCap = def.AssetCap
	}
	if cfg.SaturationVolume <= 0 {
		cfg.SaturationVolume = def.SaturationVolume
	}
	if cfg.ReferenceSpread <= 0 {
		cfg.ReferenceSpread = def.ReferenceSpread
	}
	if cfg.SaturationAssets <= 0 {
		cfg.SaturationAssets = def.SaturationAssets
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{cfg: cfg, logger: logger}
}

// Score computes the composite score. Missing or unusable inputs contribute 0.
func (s *Scorer) Score(in Inputs) model.LiquidityScore {
	out := model.LiquidityScore{
		VolumeScore: s.volumeScore(in.AvgVolume),
		SpreadScore: s.spreadScore(in),
		AssetScore:  s.assetScore(in.TotalAssets),
	}
	out.Total = math.Min(100, out.VolumeScore+out.SpreadScore+out.AssetScore)
	return out
}

// ScoreFromSeries fills any volume or spread input left empty from the series.
func (s *Scorer) ScoreFromSeries(in Inputs, m *model.Metrics) model.LiquidityScore {
	if m != nil {
		if !in.AvgVolume.Valid && m.AvgVolume > 0 {
			in.AvgVolume = null.FloatFrom(m.AvgVolume)
		}
		if !in.HighLowSpread.Valid && m.HighLowSpreadPct > 0 {
			in.HighLowSpread = null.FloatFrom(m.HighLowSpreadPct)
		}
	}
	return s.Score(in)
}

func (s *Scorer) volumeScore(vol null.Float) float64 {
	if !usable(vol) || vol.Float64 < 0 {
		s.logger.Debug("volume score skipped", "volume", vol.Ptr())
		return 0
	}
	return math.Min(s.cfg.VolumeCap, s.cfg.VolumeCap*vol.Float64/s.cfg.SaturationVolume)
}

func (s *Scorer) spreadScore(in Inputs) float64 {
	spread := in.ObservedSpread
	if !usable(spread) || spread.Float64 <= 0 {
		spread = in.HighLowSpread
	}
	if !usable(spread) || spread.Float64 < 0 {
		s.logger.Debug("spread score skipped")
		return 0
	}
	if spread.Float64 == 0 {
		return s.cfg.SpreadCap
	}
	return math.Min(s.cfg.SpreadCap, s.cfg.SpreadCap*s.cfg.ReferenceSpread/spread.Float64)
}

func (s *Scorer) assetScore(aum null.Float) float64 {
	if !usable(aum) || aum.Float64 < 0 {
		s.logger.Debug("asset score skipped", "aum", aum.Ptr())
		return 0
	}
	return math.Min(s.cfg.AssetCap, s.cfg.AssetCap*aum.Float64/s.cfg.SaturationAssets)
}

func usable(v null.Float) bool {
	return v.Valid && !math.IsNaN(v.Float64) && !math.IsInf(v.Float64, 0)
}
