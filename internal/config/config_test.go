package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, "app:\n  environment: test\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Exchange.Name != "binance" || cfg.Exchange.Timeframe != "5m" {
		t.Errorf("exchange defaults missing: %+v", cfg.Exchange)
	}
	if cfg.Trading.InitialCapital != 10000 || !cfg.Trading.Paper {
		t.Errorf("trading defaults missing: %+v", cfg.Trading)
	}
	if cfg.Trading.FeeExchange != "bybit" {
		t.Errorf("fee exchange default = %s, want bybit", cfg.Trading.FeeExchange)
	}
	if cfg.Risk.MaxDailyTrades != 20 || cfg.Risk.StopLossBufferPct != 0.08 {
		t.Errorf("risk defaults missing: %+v", cfg.Risk)
	}
	if !cfg.Risk.KillSwitch.Enabled || cfg.Risk.KillSwitch.PauseFor != time.Hour {
		t.Errorf("kill switch defaults missing: %+v", cfg.Risk.KillSwitch)
	}
	if cfg.Strategies.Scalping.MaxHoldTime != 45*time.Minute {
		t.Errorf("scalping max hold = %v, want 45m", cfg.Strategies.Scalping.MaxHoldTime)
	}
	if cfg.Compounding.Interval != "daily" || cfg.Compounding.ThresholdUSD != 50 {
		t.Errorf("compounding defaults missing: %+v", cfg.Compounding)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  environment: production
trading:
  initial_capital: 2500
  scan_interval: 1m
  symbols:
    - SOL/USDT
strategies:
  momentum:
    confidence_threshold: 35
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Trading.InitialCapital != 2500 {
		t.Errorf("initial capital = %f, want 2500", cfg.Trading.InitialCapital)
	}
	if cfg.Trading.ScanInterval != time.Minute {
		t.Errorf("scan interval = %v, want 1m", cfg.Trading.ScanInterval)
	}
	if len(cfg.Trading.Symbols) != 1 || cfg.Trading.Symbols[0] != "SOL/USDT" {
		t.Errorf("symbols override missing: %v", cfg.Trading.Symbols)
	}
	if cfg.Strategies.Momentum.ConfidenceThreshold != 35 {
		t.Errorf("threshold override missing: %f", cfg.Strategies.Momentum.ConfidenceThreshold)
	}
	// 未覆盖的字段仍取默认。
	if cfg.Strategies.Momentum.TakeProfitPct != 2.0 {
		t.Errorf("unset strategy fields should keep defaults, got %f", cfg.Strategies.Momentum.TakeProfitPct)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
trading:
  initial_capital: -5
  trading_type: margin
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("invalid config should fail validation")
	}
	if !strings.Contains(err.Error(), "initial_capital") {
		t.Errorf("error should mention initial_capital: %v", err)
	}
	if !strings.Contains(err.Error(), "trading_type") {
		t.Errorf("multierr should accumulate all violations: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("missing config file should fail")
	}
}

func TestValidate_AIRequiresKey(t *testing.T) {
	path := writeConfig(t, `
ai:
  enabled: true
`)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "ai.api_key") {
		t.Fatalf("ai enabled without key should fail, got %v", err)
	}
}
