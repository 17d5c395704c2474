package position

import (
	"errors"
	"math"
	"sync"
	"testing"
)

func longRequest() OpenRequest {
	return OpenRequest{
		Symbol:     "BTC/USDT",
		Strategy:   "momentum",
		Side:       SideLong,
		EntryPrice: 50000,
		Quantity:   0.01,
		StopLoss:   49500,
		TakeProfit: 51000,
	}
}

func TestOpen_Validation(t *testing.T) {
	m := NewManager(nil)

	req := longRequest()
	req.StopLoss = 51000 // 多头止损高于入场价
	if _, err := m.Open(req); !errors.Is(err, ErrInvalidStops) {
		t.Fatalf("expected ErrInvalidStops, got %v", err)
	}

	req = longRequest()
	req.Side = SideShort // 空头要求 take < entry < stop
	if _, err := m.Open(req); !errors.Is(err, ErrInvalidStops) {
		t.Fatalf("expected ErrInvalidStops for short with long stops, got %v", err)
	}

	req = longRequest()
	req.Quantity = 0
	if _, err := m.Open(req); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}

	if m.Count() != 0 {
		t.Fatalf("failed opens must not leave state, count=%d", m.Count())
	}
}

func TestOpen_DuplicateKey(t *testing.T) {
	m := NewManager(nil)

	if _, err := m.Open(longRequest()); err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	if _, err := m.Open(longRequest()); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// 同 symbol 不同策略允许并存。
	req := longRequest()
	req.Strategy = "scalping"
	if _, err := m.Open(req); err != nil {
		t.Fatalf("different strategy on same symbol should open: %v", err)
	}
	if m.Count() != 2 {
		t.Fatalf("count = %d, want 2", m.Count())
	}
}

func TestClose_Idempotent(t *testing.T) {
	m := NewManager(nil)
	if _, err := m.Open(longRequest()); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	closed, err := m.Close("BTC/USDT", "momentum", 50500, 4.2)
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if closed.Status != StatusClosed || closed.Quantity != 0 {
		t.Errorf("closed position has wrong terminal state: %+v", closed)
	}
	if closed.RealizedPnL != 4.2 {
		t.Errorf("realized pnl = %f, want 4.2", closed.RealizedPnL)
	}

	if _, err := m.Close("BTC/USDT", "momentum", 50500, 4.2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second close should return ErrNotFound, got %v", err)
	}
	if m.Count() != 0 {
		t.Fatalf("count after close = %d, want 0", m.Count())
	}
}

func TestPartialClose_ClampAndFinalize(t *testing.T) {
	m := NewManager(nil)
	if _, err := m.Open(longRequest()); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	res, err := m.PartialClose("BTC/USDT", "momentum", 0.005, 50500, 2.0)
	if err != nil {
		t.Fatalf("partial close failed: %v", err)
	}
	if math.Abs(res.ClosedQty-0.005) > 1e-12 || res.Finalized {
		t.Fatalf("unexpected partial result: %+v", res)
	}

	// 请求量超过剩余量时按剩余量截断并终结持仓。
	res, err = m.PartialClose("BTC/USDT", "momentum", 1.0, 50500, 2.0)
	if err != nil {
		t.Fatalf("second partial close failed: %v", err)
	}
	if math.Abs(res.ClosedQty-0.005) > 1e-12 {
		t.Errorf("clamped qty = %f, want 0.005", res.ClosedQty)
	}
	if !res.Finalized || res.Remaining != 0 {
		t.Errorf("exhausted position should finalize: %+v", res)
	}
	if m.Has("BTC/USDT", "momentum") {
		t.Errorf("finalized position should be removed from ledger")
	}
}

func TestPartialClose_ToleranceFinalizes(t *testing.T) {
	m := NewManager(nil)
	if _, err := m.Open(longRequest()); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	// 剩余 5e-9 低于容差，应直接终结。
	res, err := m.PartialClose("BTC/USDT", "momentum", 0.01-5e-9, 50500, 2.0)
	if err != nil {
		t.Fatalf("partial close failed: %v", err)
	}
	if !res.Finalized {
		t.Fatalf("dust remainder should finalize, remaining=%g", res.Remaining)
	}
}

func TestPartialClose_SumNeverExceedsInitial(t *testing.T) {
	m := NewManager(nil)
	if _, err := m.Open(longRequest()); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	total := 0.0
	for i := 0; i < 10; i++ {
		res, err := m.PartialClose("BTC/USDT", "momentum", 0.004, 50500, 1.0)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				break
			}
			t.Fatalf("partial close failed: %v", err)
		}
		total += res.ClosedQty
		if res.Finalized {
			break
		}
	}

	if math.Abs(total-0.01) > 1e-9 {
		t.Fatalf("sum of closed qty = %f, want 0.01", total)
	}
}

func TestClose_ConcurrentSingleWinner(t *testing.T) {
	m := NewManager(nil)
	if _, err := m.Open(longRequest()); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	const goroutines = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	closedQty := 0.0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pos, err := m.Close("BTC/USDT", "momentum", 50500, 1.0)
			if err != nil {
				return
			}
			mu.Lock()
			successes++
			closedQty += pos.Parts[len(pos.Parts)-1].Quantity
			mu.Unlock()
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("exactly one close should win, got %d", successes)
	}
	if math.Abs(closedQty-0.01) > 1e-12 {
		t.Fatalf("closed qty = %f, want 0.01", closedQty)
	}
}

func TestRestore_RebuildsPosition(t *testing.T) {
	m := NewManager(nil)

	pos := Position{
		ID:         "fixed-id",
		Symbol:     "ETH/USDT",
		Strategy:   "scalping",
		Side:       SideShort,
		EntryPrice: 3000,
		Quantity:   0.5,
		StopLoss:   3030,
		TakeProfit: 2970,
	}
	if err := m.Restore(pos); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	got, ok := m.Get("ETH/USDT", "scalping")
	if !ok {
		t.Fatalf("restored position not found")
	}
	if got.ID != "fixed-id" || got.InitialQuantity != 0.5 || got.Status != StatusOpen {
		t.Errorf("restored position mismatch: %+v", got)
	}

	if err := m.Restore(pos); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate restore should fail, got %v", err)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	m := NewManager(nil)
	if _, err := m.Open(longRequest()); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	got, _ := m.Get("BTC/USDT", "momentum")
	got.Quantity = 999

	again, _ := m.Get("BTC/USDT", "momentum")
	if again.Quantity != 0.01 {
		t.Fatalf("mutating the returned copy must not affect ledger state")
	}
}
