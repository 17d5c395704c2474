package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TradeRecord 为一笔已平仓交易的完整记录，含成本拆解。
type TradeRecord struct {
	ID           string
	Symbol       string
	Strategy     string
	Side         string
	EntryPrice   float64
	ExitPrice    float64
	Quantity     float64
	EntryTime    time.Time
	ExitTime     time.Time
	Reason       string
	Partial      bool
	GrossPnL     float64
	EntryFee     float64
	ExitFee      float64
	SlippageCost float64
	SpreadCost   float64
	TotalCost    float64
	NetPnL       float64
	NetPct       float64
}

// OpenPositionRecord 为进程重启恢复用的持仓快照。
type OpenPositionRecord struct {
	ID                 string
	Symbol             string
	Strategy           string
	Side               string
	EntryPrice         float64
	Quantity           float64
	StopLoss           float64
	TakeProfit         float64
	OpenedAt           time.Time
	PartialProfitTaken bool
}

// TradeStore 持久化交易历史与在途持仓。
type TradeStore struct {
	db *sql.DB
}

// NewTradeStore 初始化交易存储并建表。
func NewTradeStore(s *Store) (*TradeStore, error) {
	ts := &TradeStore{db: s.DB()}
	if err := ts.initSchema(); err != nil {
		return nil, err
	}
	return ts, nil
}

func (t *TradeStore) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS trade_history (
	id            TEXT PRIMARY KEY,
	symbol        TEXT NOT NULL,
	strategy      TEXT NOT NULL,
	side          TEXT NOT NULL,
	entry_price   REAL NOT NULL,
	exit_price    REAL NOT NULL,
	quantity      REAL NOT NULL,
	entry_time    DATETIME NOT NULL,
	exit_time     DATETIME NOT NULL,
	reason        TEXT NOT NULL,
	partial       INTEGER NOT NULL DEFAULT 0,
	gross_pnl     REAL NOT NULL,
	entry_fee     REAL NOT NULL,
	exit_fee      REAL NOT NULL,
	slippage_cost REAL NOT NULL,
	spread_cost   REAL NOT NULL,
	total_cost    REAL NOT NULL,
	net_pnl       REAL NOT NULL,
	net_pct       REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trade_history_exit_time ON trade_history(exit_time);
CREATE INDEX IF NOT EXISTS idx_trade_history_strategy  ON trade_history(strategy);

CREATE TABLE IF NOT EXISTS open_positions (
	id                   TEXT PRIMARY KEY,
	symbol               TEXT NOT NULL,
	strategy             TEXT NOT NULL,
	side                 TEXT NOT NULL,
	entry_price          REAL NOT NULL,
	quantity             REAL NOT NULL,
	stop_loss            REAL NOT NULL,
	take_profit          REAL NOT NULL,
	opened_at            DATETIME NOT NULL,
	partial_profit_taken INTEGER NOT NULL DEFAULT 0
);
`
	if _, err := t.db.Exec(schema); err != nil {
		return fmt.Errorf("store: 初始化交易表结构失败: %w", err)
	}
	return nil
}

// Save 写入一条已平仓记录。部分平仓与全平各写一条。
func (t *TradeStore) Save(ctx context.Context, rec TradeRecord) error {
	const q = `
INSERT INTO trade_history (
	id, symbol, strategy, side, entry_price, exit_price, quantity,
	entry_time, exit_time, reason, partial,
	gross_pnl, entry_fee, exit_fee, slippage_cost, spread_cost,
	total_cost, net_pnl, net_pct
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := t.db.ExecContext(ctx, q,
		rec.ID, rec.Symbol, rec.Strategy, rec.Side, rec.EntryPrice, rec.ExitPrice, rec.Quantity,
		rec.EntryTime.UTC(), rec.ExitTime.UTC(), rec.Reason, boolToInt(rec.Partial),
		rec.GrossPnL, rec.EntryFee, rec.ExitFee, rec.SlippageCost, rec.SpreadCost,
		rec.TotalCost, rec.NetPnL, rec.NetPct,
	)
	if err != nil {
		return fmt.Errorf("store: 保存交易记录失败: %w", err)
	}
	return nil
}

// Recent 按平仓时间倒序返回最近 limit 条记录。
func (t *TradeStore) Recent(ctx context.Context, limit int) ([]TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, symbol, strategy, side, entry_price, exit_price, quantity,
       entry_time, exit_time, reason, partial,
       gross_pnl, entry_fee, exit_fee, slippage_cost, spread_cost,
       total_cost, net_pnl, net_pct
FROM trade_history ORDER BY exit_time DESC LIMIT ?`

	rows, err := t.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("store: 查询交易记录失败: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

// All 返回全部交易记录，按平仓时间升序，供统计汇总使用。
func (t *TradeStore) All(ctx context.Context) ([]TradeRecord, error) {
	const q = `
SELECT id, symbol, strategy, side, entry_price, exit_price, quantity,
       entry_time, exit_time, reason, partial,
       gross_pnl, entry_fee, exit_fee, slippage_cost, spread_cost,
       total_cost, net_pnl, net_pct
FROM trade_history ORDER BY exit_time ASC`

	rows, err := t.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: 查询交易记录失败: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

func scanTrades(rows *sql.Rows) ([]TradeRecord, error) {
	var out []TradeRecord
	for rows.Next() {
		var rec TradeRecord
		var partial int
		if err := rows.Scan(
			&rec.ID, &rec.Symbol, &rec.Strategy, &rec.Side, &rec.EntryPrice, &rec.ExitPrice, &rec.Quantity,
			&rec.EntryTime, &rec.ExitTime, &rec.Reason, &partial,
			&rec.GrossPnL, &rec.EntryFee, &rec.ExitFee, &rec.SlippageCost, &rec.SpreadCost,
			&rec.TotalCost, &rec.NetPnL, &rec.NetPct,
		); err != nil {
			return nil, fmt.Errorf("store: 扫描交易记录失败: %w", err)
		}
		rec.Partial = partial != 0
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: 遍历交易记录失败: %w", err)
	}
	return out, nil
}

// SaveOpen 写入或更新一条在途持仓快照。
func (t *TradeStore) SaveOpen(ctx context.Context, rec OpenPositionRecord) error {
	const q = `
INSERT INTO open_positions (
	id, symbol, strategy, side, entry_price, quantity,
	stop_loss, take_profit, opened_at, partial_profit_taken
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	quantity = excluded.quantity,
	stop_loss = excluded.stop_loss,
	take_profit = excluded.take_profit,
	partial_profit_taken = excluded.partial_profit_taken`

	_, err := t.db.ExecContext(ctx, q,
		rec.ID, rec.Symbol, rec.Strategy, rec.Side, rec.EntryPrice, rec.Quantity,
		rec.StopLoss, rec.TakeProfit, rec.OpenedAt.UTC(), boolToInt(rec.PartialProfitTaken),
	)
	if err != nil {
		return fmt.Errorf("store: 保存在途持仓失败: %w", err)
	}
	return nil
}

// DeleteOpen 在全平后移除在途持仓快照。
func (t *TradeStore) DeleteOpen(ctx context.Context, id string) error {
	if _, err := t.db.ExecContext(ctx, `DELETE FROM open_positions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: 删除在途持仓失败: %w", err)
	}
	return nil
}

// LoadOpen 返回全部在途持仓快照，供进程重启恢复。
func (t *TradeStore) LoadOpen(ctx context.Context) ([]OpenPositionRecord, error) {
	const q = `
SELECT id, symbol, strategy, side, entry_price, quantity,
       stop_loss, take_profit, opened_at, partial_profit_taken
FROM open_positions ORDER BY opened_at ASC`

	rows, err := t.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: 查询在途持仓失败: %w", err)
	}
	defer rows.Close()

	var out []OpenPositionRecord
	for rows.Next() {
		var rec OpenPositionRecord
		var partial int
		if err := rows.Scan(
			&rec.ID, &rec.Symbol, &rec.Strategy, &rec.Side, &rec.EntryPrice, &rec.Quantity,
			&rec.StopLoss, &rec.TakeProfit, &rec.OpenedAt, &partial,
		); err != nil {
			return nil, fmt.Errorf("store: 扫描在途持仓失败: %w", err)
		}
		rec.PartialProfitTaken = partial != 0
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: 遍历在途持仓失败: %w", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
