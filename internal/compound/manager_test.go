package compound

import (
	"testing"
	"time"

	"scalp-bot/internal/config"
)

func testConfig(interval string) config.CompoundingConfig {
	return config.CompoundingConfig{
		Enabled:      true,
		ThresholdUSD: 50,
		Interval:     interval,
	}
}

func TestAddProfit_BelowThresholdAccumulates(t *testing.T) {
	m := New(testConfig("immediate"), nil)

	if got := m.AddProfit(20); got != 0 {
		t.Fatalf("below threshold should release nothing, got %f", got)
	}
	if got := m.AddProfit(25); got != 0 {
		t.Fatalf("45 pending is still below 50, got %f", got)
	}

	state := m.State()
	if state.Pending != 45 {
		t.Errorf("pending = %f, want 45", state.Pending)
	}

	// 累积过线后一次性释放全部待复投利润。
	if got := m.AddProfit(10); got != 55 {
		t.Fatalf("crossing the threshold should release 55, got %f", got)
	}
	if m.State().Pending != 0 {
		t.Errorf("pending should reset after release")
	}
}

func TestAddProfit_LossesIgnored(t *testing.T) {
	m := New(testConfig("immediate"), nil)

	if got := m.AddProfit(-30); got != 0 {
		t.Fatalf("losses must not release capital, got %f", got)
	}
	if m.State().Pending != 0 {
		t.Errorf("losses must not accumulate, pending=%f", m.State().Pending)
	}
}

func TestAddProfit_DailyIntervalGate(t *testing.T) {
	m := New(testConfig("daily"), nil)
	day1 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return day1 }
	m.lastCompound = day1 // 启动当日不复投

	if got := m.AddProfit(80); got != 0 {
		t.Fatalf("same-day profit above threshold must wait for the next day, got %f", got)
	}

	// 次日第一笔利润触发，释放全部累积。
	m.now = func() time.Time { return day1.Add(20 * time.Hour) } // 次日凌晨
	if got := m.AddProfit(10); got != 90 {
		t.Fatalf("next-day profit should release 90, got %f", got)
	}

	state := m.State()
	if state.TotalCompounded != 90 || state.Events != 1 {
		t.Errorf("unexpected state after compound: %+v", state)
	}
}

func TestAddProfit_WeeklyIntervalGate(t *testing.T) {
	m := New(testConfig("weekly"), nil)
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return start }
	m.lastCompound = start

	if got := m.AddProfit(100); got != 0 {
		t.Fatalf("weekly interval not due yet, got %f", got)
	}

	m.now = func() time.Time { return start.Add(8 * 24 * time.Hour) }
	if got := m.AddProfit(1); got != 101 {
		t.Fatalf("after a week the full pending amount should release, got %f", got)
	}
}

func TestAddProfit_DisabledNoop(t *testing.T) {
	cfg := testConfig("immediate")
	cfg.Enabled = false
	m := New(cfg, nil)

	if got := m.AddProfit(500); got != 0 {
		t.Fatalf("disabled compounding must release nothing, got %f", got)
	}
}
