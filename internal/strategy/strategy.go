package strategy

import (
	"scalp-bot/internal/config"
	"scalp-bot/internal/indicator"
	"scalp-bot/internal/position"
)

// Signal 为策略产出的开仓信号。
type Signal struct {
	Side       position.Side
	Confidence float64
	Reason     string
}

// Strategy 由各策略实现。Evaluate 对单个交易对的指标快照给出信号，
// 无信号时第二个返回值为 false。
type Strategy interface {
	Name() string
	Params() config.StrategyConfig
	Evaluate(snap indicator.Snapshot) (Signal, bool)
}

// Enabled 依配置装配启用的策略集。
func Enabled(cfg config.StrategiesConfig) []Strategy {
	var out []Strategy
	if cfg.Momentum.Enabled {
		out = append(out, NewMomentum(cfg.Momentum))
	}
	if cfg.Scalping.Enabled {
		out = append(out, NewScalping(cfg.Scalping))
	}
	if cfg.DayTrading.Enabled {
		out = append(out, NewDayTrading(cfg.DayTrading))
	}
	return out
}

// confidence 把基础分与各项加分合成 0-100 的置信度。
func confidence(base float64, bonuses ...float64) float64 {
	score := base
	for _, b := range bonuses {
		score += b
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// volumeBonus 按量能放大程度加分，上限 15。
func volumeBonus(volumeRatio float64) float64 {
	if volumeRatio <= 1 {
		return 0
	}
	bonus := (volumeRatio - 1) * 10
	if bonus > 15 {
		bonus = 15
	}
	return bonus
}
