package exit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"scalp-bot/internal/compound"
	"scalp-bot/internal/cost"
	"scalp-bot/internal/exchange"
	"scalp-bot/internal/metrics"
	"scalp-bot/internal/position"
	"scalp-bot/internal/risk"
	"scalp-bot/internal/store"
)

// Dispatcher 消费监控器的退出信号并落地为平仓动作：校验、定价、
// 平仓、风控入账、复投与持久化。信号重复到达时由账本幂等吸收。
type Dispatcher struct {
	ledger     *position.Manager
	monitor    *Monitor
	calc       *cost.Calculator
	gate       *risk.Gate
	compounder *compound.Manager
	trades     *store.TradeStore
	orders     *exchange.OrderClient
	logger     *zap.Logger

	partialEnabled bool
	partialPct     float64
}

// Deps 为调度器的全部依赖。trades 可为 nil（测试场景）。
type Deps struct {
	Ledger     *position.Manager
	Monitor    *Monitor
	Calculator *cost.Calculator
	Gate       *risk.Gate
	Compounder *compound.Manager
	Trades     *store.TradeStore
	Orders     *exchange.OrderClient

	PartialEnabled bool
	PartialPct     float64
}

// NewDispatcher 创建退出信号调度器。
func NewDispatcher(deps Deps, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	partialPct := deps.PartialPct
	if partialPct <= 0 || partialPct > 100 {
		partialPct = 50
	}
	return &Dispatcher{
		ledger:         deps.Ledger,
		monitor:        deps.Monitor,
		calc:           deps.Calculator,
		gate:           deps.Gate,
		compounder:     deps.Compounder,
		trades:         deps.Trades,
		orders:         deps.Orders,
		logger:         logger,
		partialEnabled: deps.PartialEnabled,
		partialPct:     partialPct,
	}
}

// Run 启动调度循环，ctx 取消后返回。队列中未消费的信号随之丢弃，
// 持仓状态已在 SQLite 中，重启后由恢复流程重建监控。
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("退出调度器启动")

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("退出调度器停止")
			return ctx.Err()
		case event := <-d.monitor.Events():
			d.Handle(ctx, event)
		}
	}
}

// Handle 处理单个退出信号。
func (d *Dispatcher) Handle(ctx context.Context, event Event) {
	// 先校验持仓仍然存在，过期信号直接清理监控。
	pos, ok := d.ledger.Get(event.Symbol, event.Strategy)
	if !ok {
		d.monitor.Untrack(event.Symbol, event.Strategy)
		d.logger.Debug("过期退出信号",
			zap.String("symbol", event.Symbol),
			zap.String("strategy", event.Strategy),
			zap.String("kind", string(event.Kind)),
		)
		return
	}

	d.monitor.Untrack(event.Symbol, event.Strategy)

	if event.Kind == KindPartialFeesProfit {
		if d.partialEnabled && !pos.PartialProfitTaken {
			d.handlePartial(ctx, event, pos)
			return
		}
		// 分批完成后队列里可能还积压着旧的分批信号，剩余仓位只按
		// 止盈、止损或保本线退出，这里丢弃信号并恢复监控。
		if pos.PartialProfitTaken {
			d.logger.Debug("重复分批止盈信号，忽略",
				zap.String("symbol", event.Symbol),
				zap.String("strategy", event.Strategy),
			)
			d.retrack(pos)
			return
		}
		// 未启用分批时该信号按全平兜底处理。
	}
	d.handleFull(ctx, event, pos)
}

// CloseNow 立即按当前价全平，供超时持仓等外部触发使用。
func (d *Dispatcher) CloseNow(ctx context.Context, symbol, strategy string, price float64, kind Kind) {
	d.Handle(ctx, Event{
		Symbol:   symbol,
		Strategy: strategy,
		Kind:     kind,
		Price:    price,
		At:       time.Now(),
	})
}

func (d *Dispatcher) handleFull(ctx context.Context, event Event, pos position.Position) {
	dir := cost.CloseDirection(pos.Side)
	fill := d.calc.FillPrice(pos.Symbol, event.Price, dir, 0)

	if d.orders != nil {
		if _, err := d.orders.MarketOrder(ctx, pos.Symbol, dir.String(), pos.Quantity, fill); err != nil {
			d.logger.Error("平仓下单失败，恢复监控",
				zap.String("symbol", pos.Symbol),
				zap.String("strategy", pos.Strategy),
				zap.Error(err),
			)
			d.retrack(pos)
			return
		}
	}

	bd := d.calc.NetProfit(pos.Side, pos.Symbol, pos.EntryPrice, fill, pos.Quantity)

	closed, err := d.ledger.Close(pos.Symbol, pos.Strategy, fill, bd.Net)
	if err != nil {
		// 并发竞争下另一条信号已完成平仓。
		if errors.Is(err, position.ErrNotFound) {
			return
		}
		d.logger.Error("账本平仓失败", zap.Error(err))
		return
	}

	d.settle(ctx, closed, event.Kind, fill, closed.Parts[len(closed.Parts)-1].Quantity, bd, false)

	if d.trades != nil {
		if err := d.trades.DeleteOpen(ctx, closed.ID); err != nil {
			d.logger.Warn("清理在途持仓快照失败", zap.Error(err))
		}
	}

	d.logger.Info("持仓已全平",
		zap.String("symbol", pos.Symbol),
		zap.String("strategy", pos.Strategy),
		zap.String("kind", string(event.Kind)),
		zap.Float64("fill", fill),
		zap.Float64("net_pnl", bd.Net),
	)
}

func (d *Dispatcher) handlePartial(ctx context.Context, event Event, pos position.Position) {
	dir := cost.CloseDirection(pos.Side)
	fill := d.calc.FillPrice(pos.Symbol, event.Price, dir, 0)
	qty := pos.Quantity * d.partialPct / 100

	if d.orders != nil {
		if _, err := d.orders.MarketOrder(ctx, pos.Symbol, dir.String(), qty, fill); err != nil {
			d.logger.Error("部分平仓下单失败，恢复监控",
				zap.String("symbol", pos.Symbol),
				zap.String("strategy", pos.Strategy),
				zap.Error(err),
			)
			d.retrack(pos)
			return
		}
	}

	bd := d.calc.NetProfit(pos.Side, pos.Symbol, pos.EntryPrice, fill, qty)

	res, err := d.ledger.PartialClose(pos.Symbol, pos.Strategy, qty, fill, bd.Net)
	if err != nil {
		if errors.Is(err, position.ErrNotFound) {
			return
		}
		d.logger.Error("账本减仓失败", zap.Error(err))
		return
	}

	if err := d.ledger.MarkPartialProfitTaken(pos.Symbol, pos.Strategy); err != nil &&
		!errors.Is(err, position.ErrNotFound) {
		d.logger.Warn("标记分批止盈失败", zap.Error(err))
	}

	d.settle(ctx, res.Position, event.Kind, fill, res.ClosedQty, bd, !res.Finalized)

	if res.Finalized {
		if d.trades != nil {
			if err := d.trades.DeleteOpen(ctx, res.Position.ID); err != nil {
				d.logger.Warn("清理在途持仓快照失败", zap.Error(err))
			}
		}
		return
	}

	// 剩余仓位重新登记：分批止盈解除，改挂保本线保护已锁定的利润。
	breakevenPct := d.calc.BreakevenPct(pos.Symbol)
	d.monitor.Track(Entry{
		Symbol:         pos.Symbol,
		Strategy:       pos.Strategy,
		Side:           pos.Side,
		EntryPrice:     pos.EntryPrice,
		StopLoss:       pos.StopLoss,
		TakeProfit:     pos.TakeProfit,
		PartialProfit:  false,
		BreakevenPct:   breakevenPct,
		BreakevenFloor: breakevenFloor(pos.Side, pos.EntryPrice, breakevenPct),
	})

	if d.trades != nil {
		if err := d.trades.SaveOpen(ctx, store.OpenPositionRecord{
			ID:                 res.Position.ID,
			Symbol:             res.Position.Symbol,
			Strategy:           res.Position.Strategy,
			Side:               string(res.Position.Side),
			EntryPrice:         res.Position.EntryPrice,
			Quantity:           res.Position.Quantity,
			StopLoss:           res.Position.StopLoss,
			TakeProfit:         res.Position.TakeProfit,
			OpenedAt:           res.Position.OpenedAt,
			PartialProfitTaken: true,
		}); err != nil {
			d.logger.Warn("更新在途持仓快照失败", zap.Error(err))
		}
	}

	d.logger.Info("分批止盈完成",
		zap.String("symbol", pos.Symbol),
		zap.String("strategy", pos.Strategy),
		zap.Float64("closed_qty", res.ClosedQty),
		zap.Float64("remaining", res.Remaining),
		zap.Float64("net_pnl", bd.Net),
	)
}

// settle 统一处理风控入账、复投与成交记录。
func (d *Dispatcher) settle(ctx context.Context, pos position.Position, kind Kind, fill, qty float64, bd cost.Breakdown, partial bool) {
	d.gate.RecordTrade(ctx, bd.Net)

	if compounded := d.compounder.AddProfit(bd.Net); compounded > 0 {
		d.gate.AddCapital(compounded)
	}

	metrics.TradesClosed.WithLabelValues(pos.Strategy, string(kind)).Inc()
	metrics.OpenPositions.Set(float64(d.ledger.Count()))
	metrics.Capital.Set(d.gate.Capital())
	metrics.RealizedPnL.Add(bd.Net)

	if d.trades == nil {
		return
	}
	if err := d.trades.Save(ctx, store.TradeRecord{
		ID:           pos.ID + recordSuffix(partial, len(pos.Parts)),
		Symbol:       pos.Symbol,
		Strategy:     pos.Strategy,
		Side:         string(pos.Side),
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    fill,
		Quantity:     qty,
		EntryTime:    pos.OpenedAt,
		ExitTime:     time.Now(),
		Reason:       string(kind),
		Partial:      partial,
		GrossPnL:     bd.Gross,
		EntryFee:     bd.EntryFee,
		ExitFee:      bd.ExitFee,
		SlippageCost: bd.EntrySlippage + bd.ExitSlippage,
		SpreadCost:   bd.SpreadCost,
		TotalCost:    bd.TotalCost,
		NetPnL:       bd.Net,
		NetPct:       bd.NetPct,
	}); err != nil {
		d.logger.Warn("保存交易记录失败", zap.Error(err))
	}
}

// retrack 在下单失败后按持仓当前状态恢复监控。
func (d *Dispatcher) retrack(pos position.Position) {
	breakevenPct := d.calc.BreakevenPct(pos.Symbol)
	entry := Entry{
		Symbol:        pos.Symbol,
		Strategy:      pos.Strategy,
		Side:          pos.Side,
		EntryPrice:    pos.EntryPrice,
		StopLoss:      pos.StopLoss,
		TakeProfit:    pos.TakeProfit,
		PartialProfit: d.partialEnabled && !pos.PartialProfitTaken,
		BreakevenPct:  breakevenPct,
	}
	if pos.PartialProfitTaken {
		entry.BreakevenFloor = breakevenFloor(pos.Side, pos.EntryPrice, breakevenPct)
	}
	d.monitor.Track(entry)
}

// breakevenFloor 返回保本价。多头在入场价上方、空头在下方留出覆盖
// 成本的空间。
func breakevenFloor(side position.Side, entryPrice, breakevenPct float64) float64 {
	if side == position.SideLong {
		return entryPrice * (1 + breakevenPct/100)
	}
	return entryPrice * (1 - breakevenPct/100)
}

// recordSuffix 保证同一持仓的多条成交记录主键不冲突。
func recordSuffix(partial bool, part int) string {
	if !partial {
		return ""
	}
	return "-p" + strconv.Itoa(part)
}
