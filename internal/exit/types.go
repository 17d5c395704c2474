package exit

import (
	"time"

	"scalp-bot/internal/position"
)

// Kind 表示退出信号类型。
type Kind string

const (
	// KindTakeProfit 价格触达止盈目标，全平。
	KindTakeProfit Kind = "TAKE_PROFIT"
	// KindPartialFeesProfit 利润已覆盖全部交易成本，部分止盈锁定费用。
	KindPartialFeesProfit Kind = "PARTIAL_FEES_PROFIT"
	// KindBreakevenProfit 部分止盈后价格回落至保本线，全平保住剩余利润。
	KindBreakevenProfit Kind = "BREAKEVEN_PROFIT"
	// KindStopLoss 价格触达止损，全平。
	KindStopLoss Kind = "STOP_LOSS"
	// KindTimeLimit 持仓超过策略最大持有时间，全平。
	KindTimeLimit Kind = "TIME_LIMIT"
)

// Entry 为监控登记项，是持仓在监控器中的只读投影。
type Entry struct {
	Symbol     string
	Strategy   string
	Side       position.Side
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64

	// PartialProfit 表示分批止盈仍处于待触发状态。
	PartialProfit bool
	// BreakevenPct 为覆盖全部成本所需的最小毛收益率（百分比）。
	BreakevenPct float64
	// BreakevenFloor 为部分止盈后设置的保本价，0 表示未设置。
	BreakevenFloor float64
}

// Event 为监控器发出的退出信号。
type Event struct {
	Symbol   string
	Strategy string
	Kind     Kind
	Price    float64
	At       time.Time
}
