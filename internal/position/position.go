package position

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Side 表示持仓方向。
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Opposite 返回相反方向。
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// Valid 判断方向取值是否合法。
func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// Status 表示持仓生命周期状态。
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// ClosedPart 记录一次部分平仓。
type ClosedPart struct {
	Quantity float64
	Price    float64
	PnL      float64
	At       time.Time
}

// Position 表示同一 (symbol, strategy) 键下的唯一持仓。
type Position struct {
	ID                 string
	Symbol             string
	Strategy           string
	Side               Side
	EntryPrice         float64
	Quantity           float64
	InitialQuantity    float64
	StopLoss           float64
	TakeProfit         float64
	OpenedAt           time.Time
	Status             Status
	PartialProfitTaken bool
	RealizedPnL        float64
	Parts              []ClosedPart
}

// Key 返回持仓的唯一键。
func (p *Position) Key() string {
	return Key(p.Symbol, p.Strategy)
}

// Key 由交易对与策略名组合出持仓键。
func Key(symbol, strategy string) string {
	return symbol + "|" + strategy
}

// OpenRequest 描述一次开仓请求。
type OpenRequest struct {
	Symbol     string
	Strategy   string
	Side       Side
	EntryPrice float64
	Quantity   float64
	StopLoss   float64
	TakeProfit float64
	OpenedAt   time.Time
}

func (r OpenRequest) validate() error {
	if r.Symbol == "" || r.Strategy == "" {
		return fmt.Errorf("position: %w", ErrInvalidRequest)
	}
	if !r.Side.Valid() {
		return fmt.Errorf("position: 方向非法 %q: %w", r.Side, ErrInvalidRequest)
	}
	if r.EntryPrice <= 0 || r.Quantity <= 0 {
		return fmt.Errorf("position: 价格与数量必须为正: %w", ErrInvalidRequest)
	}
	if r.StopLoss <= 0 || r.TakeProfit <= 0 {
		return fmt.Errorf("position: 止损止盈必须为正: %w", ErrInvalidStops)
	}
	// 多头要求 stop < entry < take，空头相反。
	switch r.Side {
	case SideLong:
		if !(r.StopLoss < r.EntryPrice && r.EntryPrice < r.TakeProfit) {
			return fmt.Errorf("position: 多头止损止盈与入场价不一致: %w", ErrInvalidStops)
		}
	case SideShort:
		if !(r.TakeProfit < r.EntryPrice && r.EntryPrice < r.StopLoss) {
			return fmt.Errorf("position: 空头止损止盈与入场价不一致: %w", ErrInvalidStops)
		}
	}
	return nil
}

func newPosition(r OpenRequest) *Position {
	openedAt := r.OpenedAt
	if openedAt.IsZero() {
		openedAt = time.Now()
	}
	return &Position{
		ID:              uuid.NewString(),
		Symbol:          r.Symbol,
		Strategy:        r.Strategy,
		Side:            r.Side,
		EntryPrice:      r.EntryPrice,
		Quantity:        r.Quantity,
		InitialQuantity: r.Quantity,
		StopLoss:        r.StopLoss,
		TakeProfit:      r.TakeProfit,
		OpenedAt:        openedAt,
		Status:          StatusOpen,
	}
}
