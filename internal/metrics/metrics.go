package metrics

import "github.com/prometheus/client_golang/prometheus"

// 导出给 /metrics 的运行指标。
var (
	SignalsGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scalp_bot_signals_generated_total",
		Help: "策略产生的开仓信号数",
	}, []string{"strategy", "symbol"})

	PositionsOpened = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scalp_bot_positions_opened_total",
		Help: "实际开仓数",
	}, []string{"strategy", "symbol"})

	ExitSignals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scalp_bot_exit_signals_total",
		Help: "持仓监控发出的退出信号数",
	}, []string{"kind"})

	TradesClosed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scalp_bot_trades_closed_total",
		Help: "平仓笔数(含部分平仓)",
	}, []string{"strategy", "reason"})

	OpenPositions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scalp_bot_open_positions",
		Help: "当前在途持仓数",
	})

	Capital = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scalp_bot_capital_usd",
		Help: "当前资金(USDT)",
	})

	RealizedPnL = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scalp_bot_realized_pnl_usd",
		Help: "累计已实现净收益(USDT)",
	})
)

func init() {
	prometheus.MustRegister(
		SignalsGenerated,
		PositionsOpened,
		ExitSignals,
		TradesClosed,
		OpenPositions,
		Capital,
		RealizedPnL,
	)
}
