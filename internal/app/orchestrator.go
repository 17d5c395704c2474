package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"scalp-bot/internal/ai"
	"scalp-bot/internal/config"
	"scalp-bot/internal/cost"
	"scalp-bot/internal/exchange"
	"scalp-bot/internal/exit"
	"scalp-bot/internal/indicator"
	"scalp-bot/internal/metrics"
	"scalp-bot/internal/position"
	"scalp-bot/internal/risk"
	"scalp-bot/internal/store"
	"scalp-bot/internal/strategy"
)

// orchestrator 驱动扫描循环：拉取K线、计算指标、跑策略、过风控、
// 开仓并登记监控。持仓超时的兜底平仓也在这里触发。
type orchestrator struct {
	cfg    *config.Config
	logger *zap.Logger

	client     *exchange.Client
	orders     *exchange.OrderClient
	prices     *priceSource
	indicators *indicator.Calculator
	costModel  *cost.Calculator
	strategies []strategy.Strategy
	validator  *ai.Validator
	gate       *risk.Gate
	ledger     *position.Manager
	monitor    *exit.Monitor
	dispatcher *exit.Dispatcher
	trades     *store.TradeStore
}

// Run 启动扫描循环。启动即扫描一次，此后按 scan_interval 执行。
func (o *orchestrator) Run(ctx context.Context) error {
	o.logger.Info("扫描循环启动",
		zap.Strings("symbols", o.cfg.Trading.Symbols),
		zap.Duration("interval", o.cfg.Trading.ScanInterval),
	)

	o.scan(ctx)

	ticker := time.NewTicker(o.cfg.Trading.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("扫描循环停止")
			return ctx.Err()
		case <-ticker.C:
			o.scan(ctx)
			o.checkTimeLimits(ctx)
		}
	}
}

func (o *orchestrator) scan(ctx context.Context) {
	if ok, reason := o.gate.CanTrade(); !ok {
		o.logger.Info("本轮扫描跳过", zap.String("reason", reason))
		return
	}

	for _, symbol := range o.cfg.Trading.Symbols {
		if ctx.Err() != nil {
			return
		}
		if err := o.scanSymbol(ctx, symbol); err != nil {
			if errors.Is(err, exchange.ErrMaintenance) {
				o.logger.Warn("交易所维护中，本轮扫描终止")
				return
			}
			o.logger.Error("扫描交易对失败", zap.String("symbol", symbol), zap.Error(err))
		}
	}
}

func (o *orchestrator) scanSymbol(ctx context.Context, symbol string) error {
	candles, err := o.client.FetchCandles(ctx, symbol, o.cfg.Exchange.Timeframe, int64(o.cfg.Exchange.CandleLimit))
	if err != nil {
		return err
	}

	snap, err := o.indicators.Compute(symbol, candles)
	if err != nil {
		return err
	}

	regime := indicator.DetectRegime(snap)

	for _, strat := range o.strategies {
		if o.ledger.Has(symbol, strat.Name()) {
			continue
		}

		signal, ok := strat.Evaluate(snap)
		if !ok {
			continue
		}

		if !indicator.RegimeFavorsSide(regime, signal.Side == position.SideLong) {
			o.logger.Debug("信号与市场状态不符，放弃",
				zap.String("symbol", symbol),
				zap.String("strategy", strat.Name()),
				zap.String("regime", string(regime)),
			)
			continue
		}

		metrics.SignalsGenerated.WithLabelValues(strat.Name(), symbol).Inc()

		signal = o.reviewSignal(ctx, symbol, strat, signal, snap, regime)
		if signal.Confidence < strat.Params().ConfidenceThreshold {
			continue
		}

		o.tryEnter(ctx, symbol, strat, signal, snap)
	}

	return nil
}

// reviewSignal 交给大模型复核。复核失败按放行处理，置信度不变。
func (o *orchestrator) reviewSignal(ctx context.Context, symbol string, strat strategy.Strategy, signal strategy.Signal, snap indicator.Snapshot, regime indicator.Regime) strategy.Signal {
	if o.validator == nil {
		return signal
	}

	verdict, err := o.validator.Review(ctx, ai.ReviewRequest{
		Symbol:     symbol,
		Strategy:   strat.Name(),
		Side:       signal.Side,
		Confidence: signal.Confidence,
		Reason:     signal.Reason,
		Price:      snap.Close,
		Regime:     regime,
		Snapshot:   snap,
	})
	if err != nil {
		o.logger.Warn("信号复核不可用，按放行处理", zap.Error(err))
		return signal
	}

	if !verdict.Approve {
		o.logger.Info("信号被复核否决",
			zap.String("symbol", symbol),
			zap.String("strategy", strat.Name()),
			zap.String("reason", verdict.Reason),
		)
		signal.Confidence = 0
		return signal
	}

	signal.Confidence += verdict.ConfidenceDelta
	if signal.Confidence > 100 {
		signal.Confidence = 100
	}
	if signal.Confidence < 0 {
		signal.Confidence = 0
	}
	return signal
}

func (o *orchestrator) tryEnter(ctx context.Context, symbol string, strat strategy.Strategy, signal strategy.Signal, snap indicator.Snapshot) {
	params := strat.Params()

	if ok, reason := o.gate.CanOpenPosition(o.ledger.Count()); !ok {
		o.logger.Debug("开仓被风控拒绝", zap.String("symbol", symbol), zap.String("reason", reason))
		return
	}

	// 止盈目标不足以覆盖成本的信号没有执行价值。
	if minTP := o.costModel.MinTakeProfitPct(symbol); params.TakeProfitPct < minTP {
		o.logger.Warn("止盈目标低于成本保本线，放弃",
			zap.String("symbol", symbol),
			zap.String("strategy", strat.Name()),
			zap.Float64("take_profit_pct", params.TakeProfitPct),
			zap.Float64("min_required_pct", minTP),
		)
		return
	}

	sizeUSD, _ := o.gate.PositionSize(snap.Close, signal.Confidence)
	if sizeUSD <= 0 {
		o.logger.Debug("资金不足以满足最小仓位", zap.String("symbol", symbol))
		return
	}

	dir := cost.OpenDirection(signal.Side)
	fill := o.costModel.FillPrice(symbol, snap.Close, dir, snap.ATRPct/100)
	qty := sizeUSD / fill

	order, err := o.orders.MarketOrder(ctx, symbol, dir.String(), qty, fill)
	if err != nil {
		o.logger.Error("开仓下单失败", zap.String("symbol", symbol), zap.Error(err))
		return
	}

	stop := o.gate.StopLoss(order.Price, signal.Side, params.StopLossPct)
	take := o.gate.TakeProfit(order.Price, signal.Side, params.TakeProfitPct)

	pos, err := o.ledger.Open(position.OpenRequest{
		Symbol:     symbol,
		Strategy:   strat.Name(),
		Side:       signal.Side,
		EntryPrice: order.Price,
		Quantity:   order.Amount,
		StopLoss:   stop,
		TakeProfit: take,
	})
	if err != nil {
		if errors.Is(err, position.ErrDuplicate) {
			o.logger.Debug("同键持仓已存在，放弃", zap.String("symbol", symbol), zap.String("strategy", strat.Name()))
			return
		}
		o.logger.Error("账本开仓失败", zap.Error(err))
		return
	}

	o.monitor.Track(exit.Entry{
		Symbol:        symbol,
		Strategy:      strat.Name(),
		Side:          pos.Side,
		EntryPrice:    pos.EntryPrice,
		StopLoss:      pos.StopLoss,
		TakeProfit:    pos.TakeProfit,
		PartialProfit: o.cfg.Trading.PartialProfit,
		BreakevenPct:  o.costModel.BreakevenPct(symbol),
	})

	if o.trades != nil {
		if err := o.trades.SaveOpen(ctx, store.OpenPositionRecord{
			ID:         pos.ID,
			Symbol:     pos.Symbol,
			Strategy:   pos.Strategy,
			Side:       string(pos.Side),
			EntryPrice: pos.EntryPrice,
			Quantity:   pos.Quantity,
			StopLoss:   pos.StopLoss,
			TakeProfit: pos.TakeProfit,
			OpenedAt:   pos.OpenedAt,
		}); err != nil {
			o.logger.Warn("保存在途持仓快照失败", zap.Error(err))
		}
	}

	metrics.PositionsOpened.WithLabelValues(strat.Name(), symbol).Inc()
	metrics.OpenPositions.Set(float64(o.ledger.Count()))

	o.logger.Info("新开仓",
		zap.String("symbol", symbol),
		zap.String("strategy", strat.Name()),
		zap.String("side", string(pos.Side)),
		zap.Float64("entry", pos.EntryPrice),
		zap.Float64("size_usd", sizeUSD),
		zap.Float64("confidence", signal.Confidence),
		zap.String("reason", signal.Reason),
	)
}

// checkTimeLimits 兜底平掉超过策略最大持有时间的持仓。
func (o *orchestrator) checkTimeLimits(ctx context.Context) {
	now := time.Now()
	for _, pos := range o.ledger.List() {
		params, ok := o.strategyParams(pos.Strategy)
		if !ok || params.MaxHoldTime <= 0 {
			continue
		}
		if now.Sub(pos.OpenedAt) < params.MaxHoldTime {
			continue
		}

		price, ok := o.prices.CurrentPrice(ctx, pos.Symbol)
		if !ok {
			continue
		}

		o.logger.Info("持仓超时，强制平仓",
			zap.String("symbol", pos.Symbol),
			zap.String("strategy", pos.Strategy),
			zap.Duration("held", now.Sub(pos.OpenedAt)),
		)
		o.dispatcher.CloseNow(ctx, pos.Symbol, pos.Strategy, price, exit.KindTimeLimit)
	}
}

// restore 在启动时从 SQLite 重建在途持仓与资金状态。
func (o *orchestrator) restore(ctx context.Context) error {
	if o.trades == nil {
		return nil
	}

	history, err := o.trades.All(ctx)
	if err != nil {
		return err
	}
	var realized float64
	for _, t := range history {
		realized += t.NetPnL
	}
	if len(history) > 0 {
		o.gate.SetCapital(o.cfg.Trading.InitialCapital + realized)
		metrics.RealizedPnL.Set(realized)
	}

	records, err := o.trades.LoadOpen(ctx)
	if err != nil {
		return err
	}

	for _, rec := range records {
		pos := position.Position{
			ID:                 rec.ID,
			Symbol:             rec.Symbol,
			Strategy:           rec.Strategy,
			Side:               position.Side(rec.Side),
			EntryPrice:         rec.EntryPrice,
			Quantity:           rec.Quantity,
			StopLoss:           rec.StopLoss,
			TakeProfit:         rec.TakeProfit,
			OpenedAt:           rec.OpenedAt,
			PartialProfitTaken: rec.PartialProfitTaken,
		}
		if err := o.ledger.Restore(pos); err != nil {
			o.logger.Warn("恢复持仓失败", zap.String("id", rec.ID), zap.Error(err))
			continue
		}

		breakevenPct := o.costModel.BreakevenPct(rec.Symbol)
		entry := exit.Entry{
			Symbol:        rec.Symbol,
			Strategy:      rec.Strategy,
			Side:          pos.Side,
			EntryPrice:    rec.EntryPrice,
			StopLoss:      rec.StopLoss,
			TakeProfit:    rec.TakeProfit,
			PartialProfit: o.cfg.Trading.PartialProfit && !rec.PartialProfitTaken,
			BreakevenPct:  breakevenPct,
		}
		if rec.PartialProfitTaken {
			if pos.Side == position.SideLong {
				entry.BreakevenFloor = rec.EntryPrice * (1 + breakevenPct/100)
			} else {
				entry.BreakevenFloor = rec.EntryPrice * (1 - breakevenPct/100)
			}
		}
		o.monitor.Track(entry)
	}

	metrics.OpenPositions.Set(float64(o.ledger.Count()))
	metrics.Capital.Set(o.gate.Capital())

	if len(records) > 0 {
		o.logger.Info("在途持仓已恢复", zap.Int("count", len(records)))
	}
	return nil
}

func (o *orchestrator) strategyParams(name string) (config.StrategyConfig, bool) {
	switch name {
	case "momentum":
		return o.cfg.Strategies.Momentum, true
	case "scalping":
		return o.cfg.Strategies.Scalping, true
	case "day_trading":
		return o.cfg.Strategies.DayTrading, true
	}
	return config.StrategyConfig{}, false
}
