package stats

import (
	"math"

	"scalp-bot/internal/store"
)

// Summary 为交易历史的绩效汇总。
type Summary struct {
	TotalTrades   int     `json:"total_trades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"win_rate"`
	TotalPnL      float64 `json:"total_pnl"`
	ProfitFactor  float64 `json:"profit_factor"`
	AvgNetPct     float64 `json:"avg_net_pct"`
	MaxDrawdown   float64 `json:"max_drawdown_pct"`
	TotalFees     float64 `json:"total_fees"`
	TotalSlippage float64 `json:"total_slippage"`
	TotalSpread   float64 `json:"total_spread"`
}

// Summarize 汇总全部成交记录。记录需按平仓时间升序，回撤沿资金曲线
// 逐笔计算。
func Summarize(trades []store.TradeRecord, initialCapital float64) Summary {
	var s Summary
	s.TotalTrades = len(trades)
	if len(trades) == 0 {
		return s
	}

	var grossWins, grossLosses, netPctSum float64
	equity := initialCapital
	peak := initialCapital

	for _, t := range trades {
		s.TotalPnL += t.NetPnL
		s.TotalFees += t.EntryFee + t.ExitFee
		s.TotalSlippage += t.SlippageCost
		s.TotalSpread += t.SpreadCost
		netPctSum += t.NetPct

		if t.NetPnL >= 0 {
			s.Wins++
			grossWins += t.NetPnL
		} else {
			s.Losses++
			grossLosses += -t.NetPnL
		}

		equity += t.NetPnL
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			if dd := (peak - equity) / peak * 100; dd > s.MaxDrawdown {
				s.MaxDrawdown = dd
			}
		}
	}

	s.WinRate = float64(s.Wins) / float64(s.TotalTrades) * 100
	s.AvgNetPct = netPctSum / float64(s.TotalTrades)

	// 无亏损时利润因子封顶，保持可 JSON 序列化。
	switch {
	case grossLosses > 0:
		s.ProfitFactor = math.Min(grossWins/grossLosses, 999)
	case grossWins > 0:
		s.ProfitFactor = 999
	}

	return s
}

// ByStrategy 按策略分组汇总。各组的回撤独立沿该策略的成交序列计算。
func ByStrategy(trades []store.TradeRecord, initialCapital float64) map[string]Summary {
	grouped := make(map[string][]store.TradeRecord)
	for _, t := range trades {
		grouped[t.Strategy] = append(grouped[t.Strategy], t)
	}

	out := make(map[string]Summary, len(grouped))
	for name, group := range grouped {
		out[name] = Summarize(group, initialCapital)
	}
	return out
}
