package risk

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"scalp-bot/internal/config"
	"scalp-bot/internal/position"
)

const dayLayout = "2006-01-02"

// Gate 集中执行全部开仓前风控判定，并跟踪资金曲线与日内计数。
// 内部状态由单一互斥锁保护，判定全部基于内存，落库仅为镜像。
type Gate struct {
	mu      sync.Mutex
	cfg     config.RiskConfig
	logger  *zap.Logger
	tracker *DailyTracker

	capital        float64
	initialCapital float64
	peakCapital    float64

	day         string
	dailyTrades int
	dailyPnL    float64

	consecutiveLosses int
	pausedUntil       time.Time

	now func() time.Time
}

// NewGate 创建风控闸门。tracker 可为 nil（测试或无库场景）。
func NewGate(cfg config.RiskConfig, initialCapital float64, tracker *DailyTracker, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gate{
		cfg:            cfg,
		logger:         logger,
		tracker:        tracker,
		capital:        initialCapital,
		initialCapital: initialCapital,
		peakCapital:    initialCapital,
		now:            time.Now,
	}
	g.day = g.now().Format(dayLayout)
	return g
}

// Capital 返回当前资金。
func (g *Gate) Capital() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.capital
}

// SetCapital 覆盖资金状态，进程重启恢复用。
func (g *Gate) SetCapital(capital float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.capital = capital
	if capital > g.peakCapital {
		g.peakCapital = capital
	}
}

// Drawdown 返回距资金峰值的回撤百分比。
func (g *Gate) Drawdown() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.drawdownLocked()
}

func (g *Gate) drawdownLocked() float64 {
	if g.peakCapital <= 0 {
		return 0
	}
	return (g.peakCapital - g.capital) / g.peakCapital * 100
}

// 每个交易日（本地时区）清零日内计数。
func (g *Gate) rolloverLocked() {
	today := g.now().Format(dayLayout)
	if today == g.day {
		return
	}
	g.logger.Info("日内计数滚动",
		zap.String("from", g.day),
		zap.String("to", today),
		zap.Int("trades", g.dailyTrades),
		zap.Float64("pnl", g.dailyPnL),
	)
	g.day = today
	g.dailyTrades = 0
	g.dailyPnL = 0
}

// CanTrade 判断当前是否允许发起任何新交易。不允许时返回原因。
func (g *Gate) CanTrade() (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.canTradeLocked()
}

func (g *Gate) canTradeLocked() (bool, string) {
	g.rolloverLocked()

	if g.cfg.KillSwitch.Enabled && g.now().Before(g.pausedUntil) {
		return false, "连续亏损熔断中"
	}
	if g.dailyTrades >= g.cfg.MaxDailyTrades {
		return false, "已达当日交易上限"
	}
	maxDailyLoss := g.capital * g.cfg.MaxDailyLossPct / 100
	if g.dailyPnL <= -maxDailyLoss {
		return false, "已达当日最大亏损"
	}
	if g.drawdownLocked() >= g.cfg.MaxDrawdownPct {
		return false, "资金回撤超限"
	}
	return true, ""
}

// CanOpenPosition 判断是否允许再开一个持仓。openCount 为当前在途数。
// 先复查全局交易闸门，扫描中途触发的熔断或日内限制同样拦截开仓。
func (g *Gate) CanOpenPosition(openCount int) (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ok, reason := g.canTradeLocked(); !ok {
		return false, reason
	}
	if openCount >= g.cfg.MaxTotalPositions {
		return false, "已达最大持仓数"
	}
	return true, ""
}

// PositionSize 按信号置信度（0-100）计算仓位规模。返回名义金额与数量，
// 资金不足以满足最小仓位时返回零。
func (g *Gate) PositionSize(price, confidence float64) (sizeUSD, qty float64) {
	if price <= 0 {
		return 0, 0
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	size := g.capital * g.cfg.BasePositionSizePct / 100 * (confidence / 100)
	maxSize := g.capital * g.cfg.MaxPositionSizePct / 100
	if size > maxSize {
		size = maxSize
	}
	if size > g.cfg.MaxPositionSizeUSD {
		size = g.cfg.MaxPositionSizeUSD
	}
	if size < g.cfg.MinPositionSizeUSD {
		size = g.cfg.MinPositionSizeUSD
	}
	if size > g.capital {
		return 0, 0
	}
	return size, size / price
}

// StopLoss 由入场价推出止损价。在策略止损比例上叠加出场成本缓冲，
// 这里是缓冲的唯一落点，下游消费到的止损价已含缓冲。
func (g *Gate) StopLoss(entry float64, side position.Side, stopLossPct float64) float64 {
	pct := (stopLossPct + g.cfg.StopLossBufferPct) / 100
	if side == position.SideLong {
		return entry * (1 - pct)
	}
	return entry * (1 + pct)
}

// TakeProfit 由入场价推出止盈价。
func (g *Gate) TakeProfit(entry float64, side position.Side, takeProfitPct float64) float64 {
	pct := takeProfitPct / 100
	if side == position.SideLong {
		return entry * (1 + pct)
	}
	return entry * (1 - pct)
}

// RecordTrade 在一笔平仓（含部分平仓）后更新资金与日内计数，并驱动
// 连续亏损熔断。
func (g *Gate) RecordTrade(ctx context.Context, pnl float64) {
	g.mu.Lock()

	g.rolloverLocked()

	g.capital += pnl
	if g.capital > g.peakCapital {
		g.peakCapital = g.capital
	}
	g.dailyTrades++
	g.dailyPnL += pnl

	if pnl < 0 {
		g.consecutiveLosses++
		if g.cfg.KillSwitch.Enabled && g.consecutiveLosses >= g.cfg.KillSwitch.MaxLosses {
			g.pausedUntil = g.now().Add(g.cfg.KillSwitch.PauseFor)
			g.consecutiveLosses = 0
			g.logger.Warn("触发连续亏损熔断",
				zap.Int("max_losses", g.cfg.KillSwitch.MaxLosses),
				zap.Time("paused_until", g.pausedUntil),
			)
		}
	} else {
		g.consecutiveLosses = 0
	}

	stat := DailyStat{
		Day:     g.day,
		Trades:  g.dailyTrades,
		PnL:     g.dailyPnL,
		Capital: g.capital,
	}
	g.mu.Unlock()

	if g.tracker != nil {
		if err := g.tracker.Record(ctx, stat); err != nil {
			g.logger.Warn("日统计落库失败", zap.Error(err))
		}
	}
}

// AddCapital 把复投金额同时并入当前资金与基准资金，二者在同一把锁内
// 更新，基准随复投抬升。
func (g *Gate) AddCapital(amount float64) {
	if amount <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.capital += amount
	g.initialCapital += amount
	if g.capital > g.peakCapital {
		g.peakCapital = g.capital
	}
	g.logger.Info("复投资金并入",
		zap.Float64("amount", amount),
		zap.Float64("capital", g.capital),
		zap.Float64("base_capital", g.initialCapital),
	)
}

// Snapshot 返回风控状态快照，供看板展示。
type Snapshot struct {
	Capital           float64
	InitialCapital    float64
	PeakCapital       float64
	DrawdownPct       float64
	DailyTrades       int
	DailyPnL          float64
	ConsecutiveLosses int
	PausedUntil       time.Time
}

// State 返回当前风控快照。
func (g *Gate) State() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	return Snapshot{
		Capital:           g.capital,
		InitialCapital:    g.initialCapital,
		PeakCapital:       g.peakCapital,
		DrawdownPct:       g.drawdownLocked(),
		DailyTrades:       g.dailyTrades,
		DailyPnL:          g.dailyPnL,
		ConsecutiveLosses: g.consecutiveLosses,
		PausedUntil:       g.pausedUntil,
	}
}
