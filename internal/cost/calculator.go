package cost

import (
	"go.uber.org/zap"

	"scalp-bot/internal/config"
	"scalp-bot/internal/position"
)

// Breakdown 是一次平仓的完整成本拆解。金额均为 USDT。
type Breakdown struct {
	Gross         float64
	EntryFee      float64
	ExitFee       float64
	EntrySlippage float64
	ExitSlippage  float64
	SpreadCost    float64
	TotalCost     float64
	Net           float64
	NetPct        float64
}

// Calculator 把费率、滑点与价差合成净收益与成交价。
type Calculator struct {
	fees        FeeSchedule
	useMaker    bool
	tradingType string
	marginPct   float64
	logger      *zap.Logger
}

// NewCalculator 按交易配置创建成本计算器。
func NewCalculator(trading config.TradingConfig, costs config.CostConfig, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{
		fees:        Fees(trading.FeeExchange, trading.TradingType),
		useMaker:    trading.UseMakerOrders,
		tradingType: trading.TradingType,
		marginPct:   costs.MinProfitMarginPct,
		logger:      logger,
	}
}

// FeeRate 返回单侧成交费率（小数）。
func (c *Calculator) FeeRate() float64 {
	return c.fees.Rate(c.useMaker)
}

// RoundTripFeePct 返回一买一卖的总费率（百分比）。
func (c *Calculator) RoundTripFeePct() float64 {
	return c.FeeRate() * 2 * 100
}

// BreakevenPct 返回覆盖全部交易成本所需的最小毛收益率（百分比）。
// 组成为双边费率、双边滑点、一次价差与最小利润边际。
func (c *Calculator) BreakevenPct(symbol string) float64 {
	slip := SlippagePct(symbol, 0)
	spread := SpreadPct(symbol)
	return c.RoundTripFeePct() + 2*slip*100 + spread*100 + c.marginPct
}

// MinTakeProfitPct 返回止盈目标的下限（百分比）。取成本保本线与交易
// 类型下限中的较大者。
func (c *Calculator) MinTakeProfitPct(symbol string) float64 {
	floor := minTakeProfitFloor(c.tradingType)
	if be := c.BreakevenPct(symbol); be > floor {
		return be
	}
	return floor
}

// FillPrice 把一笔纸面成交的理论价折算为实际成交价。先按价差跨到对手
// 盘口，再叠加滑点。
func (c *Calculator) FillPrice(symbol string, mid float64, dir Direction, volatility float64) float64 {
	var quoted float64
	if dir == DirectionBuy {
		quoted = Ask(symbol, mid)
	} else {
		quoted = Bid(symbol, mid)
	}
	return ApplySlippage(symbol, quoted, dir, volatility)
}

// CloseDirection 返回平仓时的成交方向。
func CloseDirection(side position.Side) Direction {
	if side == position.SideLong {
		return DirectionSell
	}
	return DirectionBuy
}

// OpenDirection 返回开仓时的成交方向。
func OpenDirection(side position.Side) Direction {
	if side == position.SideLong {
		return DirectionBuy
	}
	return DirectionSell
}

// NetProfit 计算一笔（或部分）平仓的净收益拆解。entry/exit 为名义价，
// 拆解中单独列出费率、滑点与价差成本。
func (c *Calculator) NetProfit(side position.Side, symbol string, entry, exit, qty float64) Breakdown {
	if entry <= 0 || exit <= 0 || qty <= 0 {
		c.logger.Warn("成本计算输入非法",
			zap.String("symbol", symbol),
			zap.Float64("entry", entry),
			zap.Float64("exit", exit),
			zap.Float64("qty", qty),
		)
		return Breakdown{}
	}

	var gross float64
	if side == position.SideLong {
		gross = (exit - entry) * qty
	} else {
		gross = (entry - exit) * qty
	}

	feeRate := c.FeeRate()
	slip := SlippagePct(symbol, 0)
	spread := SpreadPct(symbol)

	bd := Breakdown{
		Gross:         gross,
		EntryFee:      entry * qty * feeRate,
		ExitFee:       exit * qty * feeRate,
		EntrySlippage: entry * qty * slip,
		ExitSlippage:  exit * qty * slip,
		SpreadCost:    (entry + exit) / 2 * qty * spread,
	}
	bd.TotalCost = bd.EntryFee + bd.ExitFee + bd.EntrySlippage + bd.ExitSlippage + bd.SpreadCost
	bd.Net = bd.Gross - bd.TotalCost
	bd.NetPct = bd.Net / (entry * qty) * 100

	return bd
}
