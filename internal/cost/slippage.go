package cost

import "strings"

// Direction 表示一次成交的买卖方向。
type Direction int

const (
	DirectionBuy Direction = iota
	DirectionSell
)

// String 实现 fmt.Stringer。
func (d Direction) String() string {
	if d == DirectionBuy {
		return "buy"
	}
	return "sell"
}

// 基础滑点（小数）。流动性越好的交易对滑点越低。
var baseSlippage = map[string]float64{
	"BTCUSDT": 0.0002,
	"ETHUSDT": 0.0003,
	"BNBUSDT": 0.0004,
	"SOLUSDT": 0.0004,
}

const (
	defaultSlippage = 0.0005
	minSlippage     = 0.0001
	maxSlippage     = 0.002
)

// SlippagePct 返回在给定波动率下的滑点（小数）。波动率按 1+0.5v 放大基础
// 滑点，结果夹在 [0.0001, 0.002] 区间内。
func SlippagePct(symbol string, volatility float64) float64 {
	base, ok := baseSlippage[normalizeSymbol(symbol)]
	if !ok {
		base = defaultSlippage
	}
	if volatility < 0 {
		volatility = 0
	}

	s := base * (1 + 0.5*volatility)
	if s < minSlippage {
		s = minSlippage
	}
	if s > maxSlippage {
		s = maxSlippage
	}
	return s
}

// ApplySlippage 把滑点施加到价格上。买单向上偏移，卖单向下偏移。
func ApplySlippage(symbol string, price float64, dir Direction, volatility float64) float64 {
	s := SlippagePct(symbol, volatility)
	if dir == DirectionBuy {
		return price * (1 + s)
	}
	return price * (1 - s)
}

// normalizeSymbol 把 "BTC/USDT" 归一为 "BTCUSDT"。
func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}
