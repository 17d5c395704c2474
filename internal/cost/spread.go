package cost

// 典型买卖价差（小数），按交易对区分。
var baseSpread = map[string]float64{
	"BTCUSDT": 0.0003,
	"ETHUSDT": 0.0005,
	"BNBUSDT": 0.0008,
	"SOLUSDT": 0.0008,
}

const defaultSpread = 0.0010

// SpreadPct 返回交易对的典型价差（小数）。
func SpreadPct(symbol string) float64 {
	if s, ok := baseSpread[normalizeSymbol(symbol)]; ok {
		return s
	}
	return defaultSpread
}

// Bid 由中间价推出买一价。
func Bid(symbol string, mid float64) float64 {
	return mid * (1 - SpreadPct(symbol)/2)
}

// Ask 由中间价推出卖一价。
func Ask(symbol string, mid float64) float64 {
	return mid * (1 + SpreadPct(symbol)/2)
}
