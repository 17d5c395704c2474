package risk

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"scalp-bot/internal/store"
)

// DailyStat 是某个交易日的风控快照。
type DailyStat struct {
	Day     string
	Trades  int
	PnL     float64
	Capital float64
}

// DailyTracker 把风控的日内计数镜像到 SQLite，供看板查询。内存中的
// Gate 始终是判定依据，落库失败只记日志不阻断交易。
type DailyTracker struct {
	db *sql.DB
}

// NewDailyTracker 初始化日统计表。
func NewDailyTracker(s *store.Store) (*DailyTracker, error) {
	t := &DailyTracker{db: s.DB()}
	const schema = `
CREATE TABLE IF NOT EXISTS daily_stats (
	day        TEXT PRIMARY KEY,
	trades     INTEGER NOT NULL,
	pnl        REAL NOT NULL,
	capital    REAL NOT NULL,
	updated_at DATETIME NOT NULL
);`
	if _, err := t.db.Exec(schema); err != nil {
		return nil, fmt.Errorf("risk: 初始化日统计表失败: %w", err)
	}
	return t, nil
}

// Record 覆盖写入某日的统计。
func (t *DailyTracker) Record(ctx context.Context, stat DailyStat) error {
	const q = `
INSERT INTO daily_stats (day, trades, pnl, capital, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(day) DO UPDATE SET
	trades = excluded.trades,
	pnl = excluded.pnl,
	capital = excluded.capital,
	updated_at = excluded.updated_at`

	if _, err := t.db.ExecContext(ctx, q, stat.Day, stat.Trades, stat.PnL, stat.Capital, time.Now().UTC()); err != nil {
		return fmt.Errorf("risk: 写入日统计失败: %w", err)
	}
	return nil
}

// Load 读取某日的统计，不存在时返回零值。
func (t *DailyTracker) Load(ctx context.Context, day string) (DailyStat, error) {
	const q = `SELECT day, trades, pnl, capital FROM daily_stats WHERE day = ?`

	var stat DailyStat
	err := t.db.QueryRowContext(ctx, q, day).Scan(&stat.Day, &stat.Trades, &stat.PnL, &stat.Capital)
	if errors.Is(err, sql.ErrNoRows) {
		return DailyStat{Day: day}, nil
	}
	if err != nil {
		return DailyStat{}, fmt.Errorf("risk: 读取日统计失败: %w", err)
	}
	return stat, nil
}

// History 按日期倒序返回最近 limit 天的统计。
func (t *DailyTracker) History(ctx context.Context, limit int) ([]DailyStat, error) {
	if limit <= 0 {
		limit = 30
	}
	const q = `SELECT day, trades, pnl, capital FROM daily_stats ORDER BY day DESC LIMIT ?`

	rows, err := t.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("risk: 查询日统计失败: %w", err)
	}
	defer rows.Close()

	var out []DailyStat
	for rows.Next() {
		var stat DailyStat
		if err := rows.Scan(&stat.Day, &stat.Trades, &stat.PnL, &stat.Capital); err != nil {
			return nil, fmt.Errorf("risk: 扫描日统计失败: %w", err)
		}
		out = append(out, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("risk: 遍历日统计失败: %w", err)
	}
	return out, nil
}
