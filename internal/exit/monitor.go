package exit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"scalp-bot/internal/metrics"
	"scalp-bot/internal/position"
)

// PriceSource 提供交易对的最新价格。获取失败时第二个返回值为 false，
// 监控器跳过该交易对等待下一轮。
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, bool)
}

// Monitor 以固定节奏检查全部登记持仓的价格，按优先级发出退出信号。
// 同一登记项每轮最多发出一个信号。信号可能在被消费前重复发出，
// 消费端依赖账本的幂等平仓吸收重复。
type Monitor struct {
	mu      sync.Mutex
	entries map[string]Entry

	events   chan Event
	prices   PriceSource
	interval time.Duration
	logger   *zap.Logger
}

// queueCapacity 为信号通道容量，溢出的信号丢弃并在下一轮重新产生。
const queueCapacity = 256

// NewMonitor 创建持仓监控器。
func NewMonitor(prices PriceSource, interval time.Duration, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Monitor{
		entries:  make(map[string]Entry),
		events:   make(chan Event, queueCapacity),
		prices:   prices,
		interval: interval,
		logger:   logger,
	}
}

// Events 返回退出信号通道。
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// Track 登记或覆盖一个监控项。
func (m *Monitor) Track(entry Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[position.Key(entry.Symbol, entry.Strategy)] = entry
}

// Untrack 移除监控项。移除不存在的键无副作用。
func (m *Monitor) Untrack(symbol, strategy string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, position.Key(symbol, strategy))
}

// Tracked 返回当前监控项数量。
func (m *Monitor) Tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}

// Run 启动监控循环，ctx 取消后返回。
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("持仓监控启动", zap.Duration("interval", m.interval))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("持仓监控停止")
			return ctx.Err()
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick 对全部监控项执行一轮检查。先在锁内做快照再逐个查价，避免
// 价格查询阻塞 Track/Untrack。
func (m *Monitor) tick(ctx context.Context) {
	m.mu.Lock()
	snapshot := make([]Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		snapshot = append(snapshot, entry)
	}
	m.mu.Unlock()

	for _, entry := range snapshot {
		if ctx.Err() != nil {
			return
		}

		price, ok := m.prices.CurrentPrice(ctx, entry.Symbol)
		if !ok || price <= 0 {
			continue
		}

		event, fired := Evaluate(entry, price)
		if !fired {
			continue
		}

		metrics.ExitSignals.WithLabelValues(string(event.Kind)).Inc()

		select {
		case m.events <- event:
		default:
			m.logger.Warn("退出信号队列已满，信号丢弃",
				zap.String("symbol", event.Symbol),
				zap.String("strategy", event.Strategy),
				zap.String("kind", string(event.Kind)),
			)
		}
	}
}

// Evaluate 按优先级判定一个监控项是否触发退出：
// 止盈目标 > 分批止盈 > 保本离场 > 止损。
// 保本离场有两种形态：从未启用分批的持仓在利润覆盖成本后直接全平；
// 分批完成后的剩余仓位改由保本线保护，价格回落到线上即离场。
func Evaluate(entry Entry, price float64) (Event, bool) {
	long := entry.Side == position.SideLong

	profitPct := (price - entry.EntryPrice) / entry.EntryPrice * 100
	if !long {
		profitPct = -profitPct
	}

	var kind Kind
	switch {
	case long && price >= entry.TakeProfit,
		!long && price <= entry.TakeProfit:
		kind = KindTakeProfit

	case entry.PartialProfit && profitPct >= entry.BreakevenPct:
		kind = KindPartialFeesProfit

	case !entry.PartialProfit && entry.BreakevenFloor <= 0 &&
		entry.BreakevenPct > 0 && profitPct >= entry.BreakevenPct:
		kind = KindBreakevenProfit

	case !entry.PartialProfit && entry.BreakevenFloor > 0 &&
		(long && price <= entry.BreakevenFloor || !long && price >= entry.BreakevenFloor):
		kind = KindBreakevenProfit

	case long && price <= entry.StopLoss,
		!long && price >= entry.StopLoss:
		kind = KindStopLoss

	default:
		return Event{}, false
	}

	return Event{
		Symbol:   entry.Symbol,
		Strategy: entry.Strategy,
		Kind:     kind,
		Price:    price,
		At:       time.Now(),
	}, true
}
