package strategy

import (
	"fmt"
	"math"

	"scalp-bot/internal/config"
	"scalp-bot/internal/indicator"
	"scalp-bot/internal/position"
)

// DayTrading 跟随快慢均线排列做日内趋势，持仓周期长于其他策略。
type DayTrading struct {
	cfg config.StrategyConfig
}

// NewDayTrading 创建日内趋势策略。
func NewDayTrading(cfg config.StrategyConfig) *DayTrading {
	return &DayTrading{cfg: cfg}
}

func (s *DayTrading) Name() string                  { return "day_trading" }
func (s *DayTrading) Params() config.StrategyConfig { return s.cfg }

const (
	dayRSILongMin  = 52.0
	dayRSIShortMax = 48.0
	dayRSICap      = 70.0
)

// Evaluate 要求均线多头/空头排列、MACD 柱同向且 RSI 落在趋势确认区。
// 价格需站在中轨趋势侧，避免在布林带边缘追入。
func (s *DayTrading) Evaluate(snap indicator.Snapshot) (Signal, bool) {
	if math.IsNaN(snap.EMA9) || math.IsNaN(snap.EMA21) || math.IsNaN(snap.BBMiddle) {
		return Signal{}, false
	}

	emaSpreadPct := (snap.EMA9 - snap.EMA21) / snap.EMA21 * 100

	longOK := snap.EMA9 > snap.EMA21 &&
		snap.MACDHist > 0 &&
		snap.RSI > dayRSILongMin && snap.RSI < dayRSICap &&
		snap.Close > snap.BBMiddle &&
		snap.Close < snap.BBUpper
	shortOK := snap.EMA9 < snap.EMA21 &&
		snap.MACDHist < 0 &&
		snap.RSI < dayRSIShortMax && snap.RSI > 100-dayRSICap &&
		snap.Close < snap.BBMiddle &&
		snap.Close > snap.BBLower

	if !longOK && !shortOK {
		return Signal{}, false
	}

	side := position.SideLong
	if shortOK {
		side = position.SideShort
	}

	conf := confidence(30,
		math.Min(math.Abs(emaSpreadPct)*15, 20),
		volumeBonus(snap.VolumeRatio),
		math.Min(math.Abs(snap.MACDHist)*100, 10),
	)
	if conf < s.cfg.ConfidenceThreshold {
		return Signal{}, false
	}

	return Signal{
		Side:       side,
		Confidence: conf,
		Reason: fmt.Sprintf("趋势确认 ema_spread=%.3f%% rsi=%.1f macd_hist=%.4f",
			emaSpreadPct, snap.RSI, snap.MACDHist),
	}, true
}
