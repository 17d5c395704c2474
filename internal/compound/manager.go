package compound

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"scalp-bot/internal/config"
)

// Stats 是复投状态快照。
type Stats struct {
	Enabled         bool
	Pending         float64
	TotalCompounded float64
	Events          int
	LastCompound    time.Time
}

// Manager 累积已实现净利润，在达到门槛且满足复投周期时把累积利润
// 一次性释放给资金池。亏损不参与累积。
type Manager struct {
	mu     sync.Mutex
	cfg    config.CompoundingConfig
	logger *zap.Logger

	pending         float64
	totalCompounded float64
	events          int
	lastCompound    time.Time

	now func() time.Time
}

// New 创建复投管理器。上次复投时间初始化为当前时刻，避免启动当天
// 立即触发按日复投。
func New(cfg config.CompoundingConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	m.lastCompound = m.now()
	return m
}

// AddProfit 记入一笔已实现净利润并返回本次应并入资金的复投金额。
// 未达门槛或周期未到时返回 0，利润留存在待复投池中。
func (m *Manager) AddProfit(profit float64) float64 {
	if !m.cfg.Enabled || profit <= 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending += profit

	if m.pending < m.cfg.ThresholdUSD {
		return 0
	}
	if !m.intervalDueLocked() {
		return 0
	}

	amount := m.pending
	m.pending = 0
	m.totalCompounded += amount
	m.events++
	m.lastCompound = m.now()

	m.logger.Info("触发利润复投",
		zap.Float64("amount", amount),
		zap.Float64("total", m.totalCompounded),
		zap.String("interval", m.cfg.Interval),
	)
	return amount
}

func (m *Manager) intervalDueLocked() bool {
	switch m.cfg.Interval {
	case "immediate":
		return true
	case "weekly":
		return m.now().Sub(m.lastCompound) >= 7*24*time.Hour
	default: // daily
		return m.now().Format("2006-01-02") != m.lastCompound.Format("2006-01-02")
	}
}

// State 返回复投状态快照。
func (m *Manager) State() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Stats{
		Enabled:         m.cfg.Enabled,
		Pending:         m.pending,
		TotalCompounded: m.totalCompounded,
		Events:          m.events,
		LastCompound:    m.lastCompound,
	}
}
