package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Exchange    ExchangeConfig    `mapstructure:"exchange"`
	Trading     TradingConfig     `mapstructure:"trading"`
	Risk        RiskConfig        `mapstructure:"risk"`
	Costs       CostConfig        `mapstructure:"costs"`
	Strategies  StrategiesConfig  `mapstructure:"strategies"`
	Compounding CompoundingConfig `mapstructure:"compounding"`
	AI          AIConfig          `mapstructure:"ai"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Dashboard   DashboardConfig   `mapstructure:"dashboard"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// ExchangeConfig 描述行情数据来源。
type ExchangeConfig struct {
	Name         string        `mapstructure:"name"`
	APIKey       string        `mapstructure:"api_key"`
	APISecret    string        `mapstructure:"api_secret"`
	UseSandbox   bool          `mapstructure:"use_sandbox"`
	Timeframe    string        `mapstructure:"timeframe"`
	CandleLimit  int           `mapstructure:"candle_limit"`
	PriceTimeout time.Duration `mapstructure:"price_timeout"`
	Retry        RetryConfig   `mapstructure:"retry"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// TradingConfig 控制交易主循环与纸面撮合行为。
type TradingConfig struct {
	Symbols            []string      `mapstructure:"symbols"`
	ScanInterval       time.Duration `mapstructure:"scan_interval"`
	PriceCheckInterval time.Duration `mapstructure:"price_check_interval"`
	InitialCapital     float64       `mapstructure:"initial_capital"`
	Paper              bool          `mapstructure:"paper"`
	TradingType        string        `mapstructure:"trading_type"`
	FeeExchange        string        `mapstructure:"fee_exchange"`
	UseMakerOrders     bool          `mapstructure:"use_maker_orders"`
	PartialProfit      bool          `mapstructure:"partial_profit_taking"`
	PartialClosePct    float64       `mapstructure:"partial_close_pct"`
}

// RiskConfig 管理风控参数。
type RiskConfig struct {
	MaxPositionSizePct  float64          `mapstructure:"max_position_size_pct"`
	MaxTotalPositions   int              `mapstructure:"max_total_positions"`
	MaxDailyTrades      int              `mapstructure:"max_daily_trades"`
	MaxDailyLossPct     float64          `mapstructure:"max_daily_loss_pct"`
	MaxDrawdownPct      float64          `mapstructure:"max_drawdown_pct"`
	BasePositionSizePct float64          `mapstructure:"base_position_size_pct"`
	MinPositionSizeUSD  float64          `mapstructure:"min_position_size_usd"`
	MaxPositionSizeUSD  float64          `mapstructure:"max_position_size_usd"`
	StopLossBufferPct   float64          `mapstructure:"stop_loss_buffer_pct"`
	KillSwitch          KillSwitchConfig `mapstructure:"kill_switch"`
}

// KillSwitchConfig 控制连续亏损熔断。
type KillSwitchConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	MaxLosses int           `mapstructure:"max_losses"`
	PauseFor  time.Duration `mapstructure:"pause_for"`
}

// CostConfig 控制成本模型的兜底参数。
type CostConfig struct {
	MinProfitMarginPct float64 `mapstructure:"min_profit_margin_pct"`
}

// StrategiesConfig 为每个策略提供一套固定参数。
type StrategiesConfig struct {
	Momentum   StrategyConfig `mapstructure:"momentum"`
	Scalping   StrategyConfig `mapstructure:"scalping"`
	DayTrading StrategyConfig `mapstructure:"day_trading"`
}

// StrategyConfig 描述单个策略的阈值参数。
type StrategyConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	StopLossPct         float64       `mapstructure:"stop_loss_pct"`
	TakeProfitPct       float64       `mapstructure:"take_profit_pct"`
	MaxHoldTime         time.Duration `mapstructure:"max_hold_time"`
}

// CompoundingConfig 控制利润复投。
type CompoundingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ThresholdUSD float64 `mapstructure:"threshold_usd"`
	Interval     string  `mapstructure:"interval"`
}

// AIConfig 描述大模型信号复核参数。
type AIConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// DashboardConfig 控制只读监控接口。
type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Exchange.Name == "" {
		err = multierr.Append(err, errors.New("exchange.name 不能为空"))
	}
	if c.Exchange.Timeframe == "" {
		err = multierr.Append(err, errors.New("exchange.timeframe 不能为空"))
	}
	if c.Exchange.CandleLimit <= 0 {
		err = multierr.Append(err, errors.New("exchange.candle_limit 必须大于0"))
	}
	if c.Exchange.PriceTimeout <= 0 {
		err = multierr.Append(err, errors.New("exchange.price_timeout 必须大于0"))
	}
	if c.Exchange.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.max_attempts 必须大于0"))
	}
	if c.Exchange.Retry.MinDelay <= 0 || c.Exchange.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.delay 必须为正"))
	}
	if c.Exchange.Retry.MinDelay > c.Exchange.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("exchange.retry.min_delay 不能大于 max_delay"))
	}
	if len(c.Trading.Symbols) == 0 {
		err = multierr.Append(err, errors.New("trading.symbols 至少包含一个交易对"))
	}
	if c.Trading.ScanInterval <= 0 {
		err = multierr.Append(err, errors.New("trading.scan_interval 必须大于0"))
	}
	if c.Trading.PriceCheckInterval <= 0 {
		err = multierr.Append(err, errors.New("trading.price_check_interval 必须大于0"))
	}
	if c.Trading.InitialCapital <= 0 {
		err = multierr.Append(err, errors.New("trading.initial_capital 必须大于0"))
	}
	if c.Trading.PartialClosePct <= 0 || c.Trading.PartialClosePct > 100 {
		err = multierr.Append(err, errors.New("trading.partial_close_pct 必须位于(0,100]"))
	}
	if c.Trading.TradingType != "spot" && c.Trading.TradingType != "futures" {
		err = multierr.Append(err, fmt.Errorf("trading.trading_type 取值非法: %s", c.Trading.TradingType))
	}
	if c.Risk.MaxTotalPositions <= 0 {
		err = multierr.Append(err, errors.New("risk.max_total_positions 必须大于0"))
	}
	if c.Risk.MaxDailyTrades <= 0 {
		err = multierr.Append(err, errors.New("risk.max_daily_trades 必须大于0"))
	}
	if c.Risk.MaxDailyLossPct <= 0 || c.Risk.MaxDailyLossPct > 100 {
		err = multierr.Append(err, errors.New("risk.max_daily_loss_pct 必须位于(0,100]"))
	}
	if c.Risk.MaxDrawdownPct <= 0 || c.Risk.MaxDrawdownPct > 100 {
		err = multierr.Append(err, errors.New("risk.max_drawdown_pct 必须位于(0,100]"))
	}
	if c.Risk.BasePositionSizePct <= 0 || c.Risk.BasePositionSizePct > c.Risk.MaxPositionSizePct {
		err = multierr.Append(err, errors.New("risk.base_position_size_pct 必须为正且不大于 max_position_size_pct"))
	}
	if c.Risk.MinPositionSizeUSD <= 0 || c.Risk.MinPositionSizeUSD > c.Risk.MaxPositionSizeUSD {
		err = multierr.Append(err, errors.New("risk.min_position_size_usd 必须为正且不大于 max_position_size_usd"))
	}
	if c.Risk.StopLossBufferPct < 0 || c.Risk.StopLossBufferPct > 1 {
		err = multierr.Append(err, errors.New("risk.stop_loss_buffer_pct 应位于[0,1]"))
	}
	if c.Risk.KillSwitch.Enabled {
		if c.Risk.KillSwitch.MaxLosses <= 0 {
			err = multierr.Append(err, errors.New("risk.kill_switch.max_losses 必须大于0"))
		}
		if c.Risk.KillSwitch.PauseFor <= 0 {
			err = multierr.Append(err, errors.New("risk.kill_switch.pause_for 必须大于0"))
		}
	}
	switch c.Compounding.Interval {
	case "immediate", "daily", "weekly":
	default:
		err = multierr.Append(err, fmt.Errorf("compounding.interval 取值非法: %s", c.Compounding.Interval))
	}
	if c.Compounding.Enabled && c.Compounding.ThresholdUSD <= 0 {
		err = multierr.Append(err, errors.New("compounding.threshold_usd 必须大于0"))
	}
	if c.AI.Enabled {
		if c.AI.APIKey == "" {
			err = multierr.Append(err, errors.New("ai.api_key 不能为空"))
		}
		if c.AI.Model == "" {
			err = multierr.Append(err, errors.New("ai.model 不能为空"))
		}
		if c.AI.Timeout <= 0 {
			err = multierr.Append(err, errors.New("ai.timeout 必须大于0"))
		}
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}
	if c.Dashboard.Enabled && (c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535) {
		err = multierr.Append(err, errors.New("dashboard.port 必须位于(0,65535]"))
	}

	for name, sc := range map[string]StrategyConfig{
		"momentum":    c.Strategies.Momentum,
		"scalping":    c.Strategies.Scalping,
		"day_trading": c.Strategies.DayTrading,
	} {
		if !sc.Enabled {
			continue
		}
		if sc.ConfidenceThreshold < 0 || sc.ConfidenceThreshold > 100 {
			err = multierr.Append(err, fmt.Errorf("strategies.%s.confidence_threshold 必须位于[0,100]", name))
		}
		if sc.StopLossPct <= 0 || sc.TakeProfitPct <= 0 {
			err = multierr.Append(err, fmt.Errorf("strategies.%s 止损/止盈百分比必须为正", name))
		}
		if sc.MaxHoldTime <= 0 {
			err = multierr.Append(err, fmt.Errorf("strategies.%s.max_hold_time 必须大于0", name))
		}
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
