package cost

import "strings"

// FeeSchedule 给出一侧成交的费率（小数，非百分比）。
type FeeSchedule struct {
	Maker float64
	Taker float64
}

// 各交易所现货费率。合约费率两家一致。
var (
	bybitSpot   = FeeSchedule{Maker: 0.00055, Taker: 0.00075}
	binanceSpot = FeeSchedule{Maker: 0.001, Taker: 0.001}
	futuresFees = FeeSchedule{Maker: 0.0002, Taker: 0.0004}
)

// 最低止盈下限（百分比），低于此值的目标扣完成本后无利可图。
const (
	minTakeProfitFloorSpot    = 0.40
	minTakeProfitFloorFutures = 0.25
)

// Fees 按费率交易所与交易类型返回费率表。未知交易所按 binance 现货兜底。
func Fees(exchange, tradingType string) FeeSchedule {
	if strings.EqualFold(tradingType, "futures") {
		return futuresFees
	}
	if strings.EqualFold(exchange, "bybit") {
		return bybitSpot
	}
	return binanceSpot
}

// Rate 按挂单方式取费率。
func (f FeeSchedule) Rate(useMaker bool) float64 {
	if useMaker {
		return f.Maker
	}
	return f.Taker
}

func minTakeProfitFloor(tradingType string) float64 {
	if strings.EqualFold(tradingType, "futures") {
		return minTakeProfitFloorFutures
	}
	return minTakeProfitFloorSpot
}
