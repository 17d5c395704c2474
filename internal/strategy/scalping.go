package strategy

import (
	"fmt"
	"math"

	"scalp-bot/internal/config"
	"scalp-bot/internal/indicator"
	"scalp-bot/internal/position"
)

// Scalping 在超买超卖区寻找短线反转，要求波动足够覆盖交易成本。
type Scalping struct {
	cfg config.StrategyConfig
}

// NewScalping 创建剥头皮策略。
func NewScalping(cfg config.StrategyConfig) *Scalping {
	return &Scalping{cfg: cfg}
}

func (s *Scalping) Name() string                  { return "scalping" }
func (s *Scalping) Params() config.StrategyConfig { return s.cfg }

const (
	scalpRSIOversold   = 42.0
	scalpRSIOverbought = 58.0
	scalpMomentumMin   = 0.12
	scalpVolumeMin     = 1.2
	scalpATRPctMin     = 0.5
)

// Evaluate 要求 RSI 进入超买/超卖区且3根动能已开始反向，ATR 不低于
// 0.5% 以保证目标利润扣完成本后仍为正。
func (s *Scalping) Evaluate(snap indicator.Snapshot) (Signal, bool) {
	if math.IsNaN(snap.RSI) {
		return Signal{}, false
	}
	if snap.VolumeRatio < scalpVolumeMin || snap.ATRPct < scalpATRPctMin {
		return Signal{}, false
	}

	longOK := snap.RSI < scalpRSIOversold && snap.Momentum3 > scalpMomentumMin
	shortOK := snap.RSI > scalpRSIOverbought && snap.Momentum3 < -scalpMomentumMin

	if !longOK && !shortOK {
		return Signal{}, false
	}

	side := position.SideLong
	rsiEdge := scalpRSIOversold - snap.RSI
	if shortOK {
		side = position.SideShort
		rsiEdge = snap.RSI - scalpRSIOverbought
	}

	conf := confidence(25,
		rsiEdge*1.5,
		volumeBonus(snap.VolumeRatio),
		math.Min((snap.ATRPct-scalpATRPctMin)*10, 10),
	)
	if conf < s.cfg.ConfidenceThreshold {
		return Signal{}, false
	}

	return Signal{
		Side:       side,
		Confidence: conf,
		Reason: fmt.Sprintf("短线反转 rsi=%.1f mom3=%.2f%% atr=%.2f%%",
			snap.RSI, snap.Momentum3, snap.ATRPct),
	}, true
}
