package risk

import (
	"context"
	"math"
	"testing"
	"time"

	"scalp-bot/internal/config"
	"scalp-bot/internal/position"
)

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		MaxPositionSizePct:  2.0,
		MaxTotalPositions:   5,
		MaxDailyTrades:      20,
		MaxDailyLossPct:     2.0,
		MaxDrawdownPct:      5.0,
		BasePositionSizePct: 1.0,
		MinPositionSizeUSD:  10,
		MaxPositionSizeUSD:  200,
		StopLossBufferPct:   0.08,
		KillSwitch: config.KillSwitchConfig{
			Enabled:   true,
			MaxLosses: 3,
			PauseFor:  time.Hour,
		},
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestPositionSize_ConfidenceScaling(t *testing.T) {
	g := NewGate(testRiskConfig(), 10000, nil, nil)

	// 置信度 50：10000 * 1% * 0.5 = 50 USD
	size, qty := g.PositionSize(50000, 50)
	if math.Abs(size-50) > 1e-9 {
		t.Errorf("size = %f, want 50", size)
	}
	if math.Abs(qty-50.0/50000) > 1e-12 {
		t.Errorf("qty = %f, want %f", qty, 50.0/50000)
	}

	// 置信度 5：10000 * 1% * 0.05 = 5 USD，低于下限抬到 10。
	size, _ = g.PositionSize(50000, 5)
	if size != 10 {
		t.Errorf("size below floor should clamp to 10, got %f", size)
	}

	// 大资金时受单笔上限 200 约束。
	big := NewGate(testRiskConfig(), 1000000, nil, nil)
	size, _ = big.PositionSize(50000, 100)
	if size != 200 {
		t.Errorf("size should cap at 200 USD, got %f", size)
	}

	// 资金不足以满足最小仓位时返回 0。
	tiny := NewGate(testRiskConfig(), 5, nil, nil)
	size, qty = tiny.PositionSize(50000, 100)
	if size != 0 || qty != 0 {
		t.Errorf("insufficient capital should yield zero size, got %f/%f", size, qty)
	}
}

func TestCanOpenPosition_Boundary(t *testing.T) {
	g := NewGate(testRiskConfig(), 10000, nil, nil)

	if ok, _ := g.CanOpenPosition(4); !ok {
		t.Errorf("open_count=4 with max 5 should allow")
	}
	if ok, reason := g.CanOpenPosition(5); ok {
		t.Errorf("open_count=5 with max 5 should deny")
	} else if reason == "" {
		t.Errorf("denial should carry a reason")
	}
}

func TestCanTrade_DailyTradeLimit(t *testing.T) {
	g := NewGate(testRiskConfig(), 10000, nil, nil)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		g.RecordTrade(ctx, 1)
	}
	if ok, _ := g.CanTrade(); ok {
		t.Fatalf("20 trades should exhaust the daily limit")
	}
}

func TestCanTrade_DailyLossAndRollover(t *testing.T) {
	g := NewGate(testRiskConfig(), 10000, nil, nil)
	day1 := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	g.now = fixedClock(day1)
	g.day = day1.Format(dayLayout)
	ctx := context.Background()

	// 亏损 2%（按当前资金计）触发当日停止。
	g.RecordTrade(ctx, -200)
	if ok, _ := g.CanTrade(); ok {
		t.Fatalf("2%% daily loss should stop trading")
	}

	// 跨日后日内计数清零，恢复交易。
	g.now = fixedClock(day1.Add(24 * time.Hour))
	if ok, reason := g.CanTrade(); !ok {
		t.Fatalf("new day should reset daily counters, denied: %s", reason)
	}
}

func TestCanTrade_DrawdownLimit(t *testing.T) {
	g := NewGate(testRiskConfig(), 10000, nil, nil)
	ctx := context.Background()

	// 单日亏损限制先触发，用跨日清掉日内计数只留回撤。
	day := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	g.now = fixedClock(day)
	g.day = day.Format(dayLayout)
	g.RecordTrade(ctx, -600) // 回撤 6% > 5%

	g.now = fixedClock(day.Add(24 * time.Hour))
	if ok, _ := g.CanTrade(); ok {
		t.Fatalf("6%% drawdown should stop trading even after rollover")
	}
}

func TestKillSwitch_PausesAfterConsecutiveLosses(t *testing.T) {
	g := NewGate(testRiskConfig(), 10000, nil, nil)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	g.now = fixedClock(now)
	g.day = now.Format(dayLayout)
	ctx := context.Background()

	g.RecordTrade(ctx, -1)
	g.RecordTrade(ctx, -1)
	if ok, _ := g.CanTrade(); !ok {
		t.Fatalf("two losses should not trip the kill switch yet")
	}

	g.RecordTrade(ctx, -1)
	if ok, reason := g.CanTrade(); ok {
		t.Fatalf("three consecutive losses should pause trading")
	} else if reason != "连续亏损熔断中" {
		t.Errorf("unexpected pause reason: %s", reason)
	}

	// 暂停期结束后恢复。
	g.now = fixedClock(now.Add(time.Hour + time.Minute))
	if ok, _ := g.CanTrade(); !ok {
		t.Fatalf("trading should resume after the pause window")
	}
}

func TestKillSwitch_WinResetsStreak(t *testing.T) {
	g := NewGate(testRiskConfig(), 10000, nil, nil)
	ctx := context.Background()

	g.RecordTrade(ctx, -1)
	g.RecordTrade(ctx, -1)
	g.RecordTrade(ctx, 5) // 盈利清零连亏计数
	g.RecordTrade(ctx, -1)
	g.RecordTrade(ctx, -1)

	if ok, _ := g.CanTrade(); !ok {
		t.Fatalf("streak interrupted by a win should not trip the kill switch")
	}
}

func TestStopLoss_AppliesBuffer(t *testing.T) {
	g := NewGate(testRiskConfig(), 10000, nil, nil)

	// 多头：1% 止损 + 0.08% 缓冲。
	stop := g.StopLoss(50000, position.SideLong, 1.0)
	want := 50000 * (1 - 0.0108)
	if math.Abs(stop-want) > 1e-6 {
		t.Errorf("long stop = %f, want %f", stop, want)
	}

	stop = g.StopLoss(50000, position.SideShort, 1.0)
	want = 50000 * (1 + 0.0108)
	if math.Abs(stop-want) > 1e-6 {
		t.Errorf("short stop = %f, want %f", stop, want)
	}

	take := g.TakeProfit(50000, position.SideLong, 2.0)
	if math.Abs(take-51000) > 1e-6 {
		t.Errorf("long take = %f, want 51000", take)
	}
}

func TestAddCapital_RaisesPeak(t *testing.T) {
	g := NewGate(testRiskConfig(), 10000, nil, nil)

	g.AddCapital(500)
	if g.Capital() != 10500 {
		t.Errorf("capital = %f, want 10500", g.Capital())
	}
	if g.Drawdown() != 0 {
		t.Errorf("compounded capital should raise the peak, drawdown=%f", g.Drawdown())
	}

	g.AddCapital(-100) // 非正数忽略
	if g.Capital() != 10500 {
		t.Errorf("negative amounts must be ignored")
	}
}

func TestAddCapital_RaisesBaseCapital(t *testing.T) {
	g := NewGate(testRiskConfig(), 10000, nil, nil)

	g.AddCapital(500)

	state := g.State()
	if state.InitialCapital != 10500 {
		t.Errorf("base capital = %f, want 10500 after compounding", state.InitialCapital)
	}
	if state.Capital != 10500 {
		t.Errorf("capital = %f, want 10500", state.Capital)
	}
}

func TestCanOpenPosition_ChecksTradeGate(t *testing.T) {
	g := NewGate(testRiskConfig(), 10000, nil, nil)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	g.now = fixedClock(now)
	g.day = now.Format(dayLayout)
	ctx := context.Background()

	// 熔断触发后，即便持仓数未满也不得再开仓。
	g.RecordTrade(ctx, -1)
	g.RecordTrade(ctx, -1)
	g.RecordTrade(ctx, -1)

	if ok, reason := g.CanOpenPosition(0); ok {
		t.Fatalf("kill switch pause must also block opening positions")
	} else if reason != "连续亏损熔断中" {
		t.Errorf("unexpected denial reason: %s", reason)
	}
}
