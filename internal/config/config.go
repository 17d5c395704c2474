package config

import (
	"errors"
	"fmt"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "scalp"
)

// Load 读取配置文件并结合环境变量返回 Config。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	v.SetDefault("exchange.name", "binance")
	v.SetDefault("exchange.use_sandbox", false)
	v.SetDefault("exchange.timeframe", "5m")
	v.SetDefault("exchange.candle_limit", 200)
	v.SetDefault("exchange.price_timeout", "5s")
	v.SetDefault("exchange.retry.max_attempts", 3)
	v.SetDefault("exchange.retry.min_delay", "500ms")
	v.SetDefault("exchange.retry.max_delay", "5s")

	v.SetDefault("trading.symbols", []string{"BTC/USDT", "ETH/USDT"})
	v.SetDefault("trading.scan_interval", "30s")
	v.SetDefault("trading.price_check_interval", "1s")
	v.SetDefault("trading.initial_capital", 10000.0)
	v.SetDefault("trading.paper", true)
	v.SetDefault("trading.trading_type", "spot")
	v.SetDefault("trading.fee_exchange", "bybit")
	v.SetDefault("trading.use_maker_orders", false)
	v.SetDefault("trading.partial_profit_taking", true)
	v.SetDefault("trading.partial_close_pct", 50.0)

	v.SetDefault("risk.max_position_size_pct", 2.0)
	v.SetDefault("risk.max_total_positions", 5)
	v.SetDefault("risk.max_daily_trades", 20)
	v.SetDefault("risk.max_daily_loss_pct", 2.0)
	v.SetDefault("risk.max_drawdown_pct", 5.0)
	v.SetDefault("risk.base_position_size_pct", 1.0)
	v.SetDefault("risk.min_position_size_usd", 10.0)
	v.SetDefault("risk.max_position_size_usd", 200.0)
	v.SetDefault("risk.stop_loss_buffer_pct", 0.08)
	v.SetDefault("risk.kill_switch.enabled", true)
	v.SetDefault("risk.kill_switch.max_losses", 3)
	v.SetDefault("risk.kill_switch.pause_for", "1h")

	v.SetDefault("costs.min_profit_margin_pct", 0.05)

	v.SetDefault("strategies.momentum.enabled", true)
	v.SetDefault("strategies.momentum.confidence_threshold", 20.0)
	v.SetDefault("strategies.momentum.stop_loss_pct", 1.0)
	v.SetDefault("strategies.momentum.take_profit_pct", 2.0)
	v.SetDefault("strategies.momentum.max_hold_time", "4h")
	v.SetDefault("strategies.scalping.enabled", true)
	v.SetDefault("strategies.scalping.confidence_threshold", 25.0)
	v.SetDefault("strategies.scalping.stop_loss_pct", 0.6)
	v.SetDefault("strategies.scalping.take_profit_pct", 0.9)
	v.SetDefault("strategies.scalping.max_hold_time", "45m")
	v.SetDefault("strategies.day_trading.enabled", true)
	v.SetDefault("strategies.day_trading.confidence_threshold", 28.0)
	v.SetDefault("strategies.day_trading.stop_loss_pct", 1.2)
	v.SetDefault("strategies.day_trading.take_profit_pct", 2.4)
	v.SetDefault("strategies.day_trading.max_hold_time", "24h")

	v.SetDefault("compounding.enabled", true)
	v.SetDefault("compounding.threshold_usd", 50.0)
	v.SetDefault("compounding.interval", "daily")

	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("ai.model", "deepseek/deepseek-chat")
	v.SetDefault("ai.timeout", "15s")

	v.SetDefault("database.path", "data/scalp_bot.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})

	v.SetDefault("dashboard.enabled", true)
	v.SetDefault("dashboard.port", 8080)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
