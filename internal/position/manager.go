package position

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrDuplicate 表示同键持仓已存在。
	ErrDuplicate = errors.New("同键持仓已存在")
	// ErrNotFound 表示持仓不存在或已被平掉。
	ErrNotFound = errors.New("持仓不存在")
	// ErrInvalidStops 表示止损止盈与方向不一致。
	ErrInvalidStops = errors.New("止损止盈参数非法")
	// ErrInvalidRequest 表示开仓请求参数非法。
	ErrInvalidRequest = errors.New("开仓请求参数非法")
	// ErrInvalidQuantity 表示平仓数量非法。
	ErrInvalidQuantity = errors.New("平仓数量非法")
)

// qtyTolerance 以下的剩余数量视为零，持仓直接终结。
const qtyTolerance = 1e-8

// Manager 维护全部在途持仓，单一互斥锁保证多协程安全。
type Manager struct {
	mu        sync.Mutex
	positions map[string]*Position
	logger    *zap.Logger
}

// NewManager 创建持仓管理器。
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		positions: make(map[string]*Position),
		logger:    logger,
	}
}

// Open 按请求开仓。同键已有持仓时返回 ErrDuplicate 且不产生任何状态变化。
func (m *Manager) Open(req OpenRequest) (Position, error) {
	if err := req.validate(); err != nil {
		return Position{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := Key(req.Symbol, req.Strategy)
	if _, ok := m.positions[key]; ok {
		return Position{}, fmt.Errorf("position: %s: %w", key, ErrDuplicate)
	}

	pos := newPosition(req)
	m.positions[key] = pos

	m.logger.Info("开仓",
		zap.String("symbol", pos.Symbol),
		zap.String("strategy", pos.Strategy),
		zap.String("side", string(pos.Side)),
		zap.Float64("entry", pos.EntryPrice),
		zap.Float64("qty", pos.Quantity),
		zap.Float64("stop", pos.StopLoss),
		zap.Float64("take", pos.TakeProfit),
	)

	return *pos, nil
}

// Restore 重建一条已存在的持仓，进程重启恢复用。保留原 ID 与开仓时间。
func (m *Manager) Restore(pos Position) error {
	if pos.ID == "" || !pos.Side.Valid() || pos.Quantity <= 0 {
		return fmt.Errorf("position: 恢复数据非法: %w", ErrInvalidRequest)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := pos.Key()
	if _, ok := m.positions[key]; ok {
		return fmt.Errorf("position: %s: %w", key, ErrDuplicate)
	}

	restored := pos
	restored.Status = StatusOpen
	if restored.InitialQuantity <= 0 {
		restored.InitialQuantity = restored.Quantity
	}
	m.positions[key] = &restored

	m.logger.Info("恢复持仓",
		zap.String("symbol", restored.Symbol),
		zap.String("strategy", restored.Strategy),
		zap.Float64("qty", restored.Quantity),
	)
	return nil
}

// Get 返回持仓副本。
func (m *Manager) Get(symbol, strategy string) (Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[Key(symbol, strategy)]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Has 判断同键持仓是否存在。
func (m *Manager) Has(symbol, strategy string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.positions[Key(symbol, strategy)]
	return ok
}

// HasSymbol 判断某交易对是否有任意策略的持仓。
func (m *Manager) HasSymbol(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, pos := range m.positions {
		if pos.Symbol == symbol {
			return true
		}
	}
	return false
}

// Count 返回在途持仓数量。
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.positions)
}

// List 返回全部在途持仓的副本。
func (m *Manager) List() []Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Position, 0, len(m.positions))
	for _, pos := range m.positions {
		out = append(out, *pos)
	}
	return out
}

// MarkPartialProfitTaken 标记分批止盈已触发，避免同一持仓重复减仓。
func (m *Manager) MarkPartialProfitTaken(symbol, strategy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[Key(symbol, strategy)]
	if !ok {
		return fmt.Errorf("position: %s: %w", Key(symbol, strategy), ErrNotFound)
	}
	pos.PartialProfitTaken = true
	return nil
}

// PartialResult 描述一次减仓的结果。
type PartialResult struct {
	Position  Position
	ClosedQty float64
	Remaining float64
	Finalized bool
}

// PartialClose 按数量减仓。请求量超过剩余量时按剩余量截断；剩余量低于
// 容差时持仓终结并从账本移除。
func (m *Manager) PartialClose(symbol, strategy string, qty, price, pnl float64) (PartialResult, error) {
	if qty <= 0 || price <= 0 {
		return PartialResult{}, fmt.Errorf("position: %w", ErrInvalidQuantity)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := Key(symbol, strategy)
	pos, ok := m.positions[key]
	if !ok {
		return PartialResult{}, fmt.Errorf("position: %s: %w", key, ErrNotFound)
	}

	closed := qty
	if closed > pos.Quantity {
		closed = pos.Quantity
	}

	pos.Quantity -= closed
	pos.RealizedPnL += pnl
	pos.Parts = append(pos.Parts, ClosedPart{
		Quantity: closed,
		Price:    price,
		PnL:      pnl,
		At:       time.Now(),
	})

	res := PartialResult{
		ClosedQty: closed,
		Remaining: pos.Quantity,
	}
	if pos.Quantity <= qtyTolerance {
		pos.Quantity = 0
		pos.Status = StatusClosed
		delete(m.positions, key)
		res.Remaining = 0
		res.Finalized = true
	}
	res.Position = *pos

	m.logger.Info("减仓",
		zap.String("symbol", symbol),
		zap.String("strategy", strategy),
		zap.Float64("closed_qty", res.ClosedQty),
		zap.Float64("remaining", res.Remaining),
		zap.Bool("finalized", res.Finalized),
	)

	return res, nil
}

// Close 全平并移除持仓，返回终态副本。重复平仓返回 ErrNotFound 且无副作用。
func (m *Manager) Close(symbol, strategy string, price, pnl float64) (Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := Key(symbol, strategy)
	pos, ok := m.positions[key]
	if !ok {
		return Position{}, fmt.Errorf("position: %s: %w", key, ErrNotFound)
	}

	pos.RealizedPnL += pnl
	pos.Parts = append(pos.Parts, ClosedPart{
		Quantity: pos.Quantity,
		Price:    price,
		PnL:      pnl,
		At:       time.Now(),
	})
	pos.Quantity = 0
	pos.Status = StatusClosed
	delete(m.positions, key)

	m.logger.Info("平仓",
		zap.String("symbol", symbol),
		zap.String("strategy", strategy),
		zap.Float64("price", price),
		zap.Float64("pnl", pnl),
	)

	return *pos, nil
}
