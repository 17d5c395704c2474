package strategy

import (
	"fmt"
	"math"

	"scalp-bot/internal/config"
	"scalp-bot/internal/indicator"
	"scalp-bot/internal/position"
)

// Momentum 在短中期动能同向且量能配合时顺势入场。
type Momentum struct {
	cfg config.StrategyConfig
}

// NewMomentum 创建动量策略。
func NewMomentum(cfg config.StrategyConfig) *Momentum {
	return &Momentum{cfg: cfg}
}

func (s *Momentum) Name() string                  { return "momentum" }
func (s *Momentum) Params() config.StrategyConfig { return s.cfg }

const (
	momentumShortMin  = 0.55
	momentumMedMin    = 0.35
	momentumVolumeMin = 1.2
	momentumRSICap    = 68.0
)

// Evaluate 要求3根与10根动能同向、MACD 柱同向且量能不低于 1.2 倍。
func (s *Momentum) Evaluate(snap indicator.Snapshot) (Signal, bool) {
	if math.IsNaN(snap.RSI) || math.IsNaN(snap.MACDHist) {
		return Signal{}, false
	}
	if snap.VolumeRatio < momentumVolumeMin {
		return Signal{}, false
	}

	longOK := snap.Momentum3 > momentumShortMin &&
		snap.Momentum10 > momentumMedMin &&
		snap.MACDHist > 0 &&
		snap.RSI < momentumRSICap
	shortOK := snap.Momentum3 < -momentumShortMin &&
		snap.Momentum10 < -momentumMedMin &&
		snap.MACDHist < 0 &&
		snap.RSI > 100-momentumRSICap

	if !longOK && !shortOK {
		return Signal{}, false
	}

	side := position.SideLong
	momStrength := snap.Momentum3
	if shortOK {
		side = position.SideShort
		momStrength = -snap.Momentum3
	}

	conf := confidence(30,
		(momStrength-momentumShortMin)*20,
		volumeBonus(snap.VolumeRatio),
		math.Min(math.Abs(snap.MACDHist)*100, 10),
	)
	if conf < s.cfg.ConfidenceThreshold {
		return Signal{}, false
	}

	return Signal{
		Side:       side,
		Confidence: conf,
		Reason: fmt.Sprintf("动量共振 mom3=%.2f%% mom10=%.2f%% vol=%.2fx",
			snap.Momentum3, snap.Momentum10, snap.VolumeRatio),
	}, true
}
