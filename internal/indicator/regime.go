package indicator

import "math"

// Regime 描述当前市场状态。
type Regime string

const (
	RegimeStrongUptrend   Regime = "STRONG_UPTREND"
	RegimeUptrend         Regime = "UPTREND"
	RegimeDowntrend       Regime = "DOWNTREND"
	RegimeStrongDowntrend Regime = "STRONG_DOWNTREND"
	RegimeHighVolatility  Regime = "HIGH_VOLATILITY"
	RegimeRanging         Regime = "RANGING"
	RegimeUnknown         Regime = "UNKNOWN"
)

// DetectRegime 依据指标快照给出市场状态。高波动优先于趋势判断，
// 趋势由快慢均线相对位置与10根动能共同确认。
func DetectRegime(snap Snapshot) Regime {
	if math.IsNaN(snap.EMA9) || math.IsNaN(snap.EMA21) || math.IsNaN(snap.Close) {
		return RegimeUnknown
	}

	if snap.ATRPct > 3.0 {
		return RegimeHighVolatility
	}

	switch {
	case snap.EMA9 > snap.EMA21 && snap.Close > snap.EMA9:
		if snap.Momentum10 > 1.5 {
			return RegimeStrongUptrend
		}
		return RegimeUptrend
	case snap.EMA9 < snap.EMA21 && snap.Close < snap.EMA9:
		if snap.Momentum10 < -1.5 {
			return RegimeStrongDowntrend
		}
		return RegimeDowntrend
	}

	return RegimeRanging
}

// RegimeFavorsSide 判断市场状态是否允许在该方向开仓。高波动与未知
// 状态下双向禁止。
func RegimeFavorsSide(r Regime, long bool) bool {
	switch r {
	case RegimeHighVolatility, RegimeUnknown:
		return false
	case RegimeStrongUptrend, RegimeUptrend:
		return long
	case RegimeStrongDowntrend, RegimeDowntrend:
		return !long
	}
	// 震荡市双向放行，由策略阈值自行约束。
	return true
}
