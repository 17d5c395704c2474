package exit

import (
	"context"
	"math"
	"testing"
	"time"

	"scalp-bot/internal/compound"
	"scalp-bot/internal/config"
	"scalp-bot/internal/cost"
	"scalp-bot/internal/position"
	"scalp-bot/internal/risk"
)

type dispatcherFixture struct {
	ledger     *position.Manager
	monitor    *Monitor
	gate       *risk.Gate
	dispatcher *Dispatcher
	calc       *cost.Calculator
}

func newFixture(t *testing.T, partialEnabled bool) *dispatcherFixture {
	t.Helper()

	ledger := position.NewManager(nil)
	monitor := NewMonitor(&stubPrices{}, time.Second, nil)
	calc := cost.NewCalculator(config.TradingConfig{
		FeeExchange: "bybit",
		TradingType: "spot",
	}, config.CostConfig{MinProfitMarginPct: 0.05}, nil)
	gate := risk.NewGate(config.RiskConfig{
		MaxPositionSizePct:  2.0,
		MaxTotalPositions:   5,
		MaxDailyTrades:      100,
		MaxDailyLossPct:     50,
		MaxDrawdownPct:      50,
		BasePositionSizePct: 1.0,
		MinPositionSizeUSD:  10,
		MaxPositionSizeUSD:  200,
	}, 10000, nil, nil)
	compounder := compound.New(config.CompoundingConfig{Interval: "daily"}, nil)

	dispatcher := NewDispatcher(Deps{
		Ledger:         ledger,
		Monitor:        monitor,
		Calculator:     calc,
		Gate:           gate,
		Compounder:     compounder,
		PartialEnabled: partialEnabled,
		PartialPct:     50,
	}, nil)

	return &dispatcherFixture{
		ledger:     ledger,
		monitor:    monitor,
		gate:       gate,
		dispatcher: dispatcher,
		calc:       calc,
	}
}

func (f *dispatcherFixture) openLong(t *testing.T) position.Position {
	t.Helper()
	pos, err := f.ledger.Open(position.OpenRequest{
		Symbol:     "BTC/USDT",
		Strategy:   "momentum",
		Side:       position.SideLong,
		EntryPrice: 50000,
		Quantity:   0.01,
		StopLoss:   49500,
		TakeProfit: 51000,
	})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	f.monitor.Track(Entry{
		Symbol:        "BTC/USDT",
		Strategy:      "momentum",
		Side:          position.SideLong,
		EntryPrice:    50000,
		StopLoss:      49500,
		TakeProfit:    51000,
		PartialProfit: true,
		BreakevenPct:  f.calc.BreakevenPct("BTC/USDT"),
	})
	return pos
}

func TestDispatcher_TakeProfitFullClose(t *testing.T) {
	f := newFixture(t, true)
	f.openLong(t)

	f.dispatcher.Handle(context.Background(), Event{
		Symbol:   "BTC/USDT",
		Strategy: "momentum",
		Kind:     KindTakeProfit,
		Price:    51000,
		At:       time.Now(),
	})

	if f.ledger.Has("BTC/USDT", "momentum") {
		t.Fatalf("position should be fully closed")
	}
	if f.monitor.Tracked() != 0 {
		t.Fatalf("monitor entry should be removed")
	}

	// 成交价劣于信号价（滑点+价差），净收益为正但小于名义毛利 10。
	gained := f.gate.Capital() - 10000
	if gained <= 0 || gained >= 10 {
		t.Fatalf("net gain = %f, want within (0, 10)", gained)
	}
}

func TestDispatcher_StopLossUpdatesCapital(t *testing.T) {
	f := newFixture(t, true)
	f.openLong(t)

	f.dispatcher.Handle(context.Background(), Event{
		Symbol:   "BTC/USDT",
		Strategy: "momentum",
		Kind:     KindStopLoss,
		Price:    49500,
		At:       time.Now(),
	})

	if f.ledger.Has("BTC/USDT", "momentum") {
		t.Fatalf("position should be closed on stop")
	}
	if f.gate.Capital() >= 10000 {
		t.Fatalf("stop loss should reduce capital, got %f", f.gate.Capital())
	}
}

func TestDispatcher_PartialThenRetrack(t *testing.T) {
	f := newFixture(t, true)
	f.openLong(t)

	f.dispatcher.Handle(context.Background(), Event{
		Symbol:   "BTC/USDT",
		Strategy: "momentum",
		Kind:     KindPartialFeesProfit,
		Price:    50200,
		At:       time.Now(),
	})

	pos, ok := f.ledger.Get("BTC/USDT", "momentum")
	if !ok {
		t.Fatalf("position should survive a partial close")
	}
	if math.Abs(pos.Quantity-0.005) > 1e-12 {
		t.Fatalf("remaining qty = %f, want 0.005", pos.Quantity)
	}
	if !pos.PartialProfitTaken {
		t.Fatalf("partial profit flag should be set")
	}

	if f.monitor.Tracked() != 1 {
		t.Fatalf("remainder should be re-tracked")
	}
	entry := f.monitor.entries[position.Key("BTC/USDT", "momentum")]
	if entry.PartialProfit {
		t.Fatalf("re-tracked entry must have partial profit disarmed")
	}
	if entry.BreakevenFloor <= entry.EntryPrice {
		t.Fatalf("long breakeven floor %f should sit above entry %f", entry.BreakevenFloor, entry.EntryPrice)
	}
}

func TestDispatcher_DuplicatePartialKeepsRemainder(t *testing.T) {
	f := newFixture(t, true)
	f.openLong(t)

	event := Event{
		Symbol:   "BTC/USDT",
		Strategy: "momentum",
		Kind:     KindPartialFeesProfit,
		Price:    50200,
		At:       time.Now(),
	}
	f.dispatcher.Handle(context.Background(), event)
	afterPartial := f.gate.Capital()

	// 监控器每轮各发一个信号，减仓完成前队列里可能已积压了第二个。
	// 旧信号不得把剩余仓位也平掉。
	f.dispatcher.Handle(context.Background(), event)

	pos, ok := f.ledger.Get("BTC/USDT", "momentum")
	if !ok {
		t.Fatalf("stale partial signal must not close the remainder")
	}
	if math.Abs(pos.Quantity-0.005) > 1e-12 {
		t.Fatalf("remaining qty = %f, want 0.005", pos.Quantity)
	}
	if f.gate.Capital() != afterPartial {
		t.Fatalf("stale partial signal must not settle again")
	}
	if f.monitor.Tracked() != 1 {
		t.Fatalf("remainder should stay under monitoring")
	}
	entry := f.monitor.entries[position.Key("BTC/USDT", "momentum")]
	if entry.PartialProfit || entry.BreakevenFloor <= 0 {
		t.Fatalf("re-tracked remainder should be floor-protected: %+v", entry)
	}
}

func TestDispatcher_PartialDisabledFallsBackToFullClose(t *testing.T) {
	f := newFixture(t, false)
	f.openLong(t)

	f.dispatcher.Handle(context.Background(), Event{
		Symbol:   "BTC/USDT",
		Strategy: "momentum",
		Kind:     KindPartialFeesProfit,
		Price:    50200,
		At:       time.Now(),
	})

	if f.ledger.Has("BTC/USDT", "momentum") {
		t.Fatalf("with partial disabled the signal should close the whole position")
	}
}

func TestDispatcher_StaleEventIsNoop(t *testing.T) {
	f := newFixture(t, true)

	before := f.gate.Capital()
	f.dispatcher.Handle(context.Background(), Event{
		Symbol:   "BTC/USDT",
		Strategy: "momentum",
		Kind:     KindStopLoss,
		Price:    49500,
		At:       time.Now(),
	})
	if f.gate.Capital() != before {
		t.Fatalf("stale event must not touch capital")
	}
}

func TestDispatcher_DuplicateEventIdempotent(t *testing.T) {
	f := newFixture(t, true)
	f.openLong(t)

	event := Event{
		Symbol:   "BTC/USDT",
		Strategy: "momentum",
		Kind:     KindTakeProfit,
		Price:    51000,
		At:       time.Now(),
	}
	f.dispatcher.Handle(context.Background(), event)
	after := f.gate.Capital()

	// 队列中重复的同一信号在持仓消失后必须是空操作。
	f.dispatcher.Handle(context.Background(), event)
	if f.gate.Capital() != after {
		t.Fatalf("duplicate event must not settle twice")
	}
}

func TestDispatcher_CloseNowTimeLimit(t *testing.T) {
	f := newFixture(t, true)
	f.openLong(t)

	f.dispatcher.CloseNow(context.Background(), "BTC/USDT", "momentum", 50100, KindTimeLimit)

	if f.ledger.Has("BTC/USDT", "momentum") {
		t.Fatalf("CloseNow should close the position")
	}
	if f.monitor.Tracked() != 0 {
		t.Fatalf("CloseNow should clear the monitor entry")
	}
}
