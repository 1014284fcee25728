package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_DefaultsAndValidation(t *testing.T) {
	path := writeConfig(t, `
app:
  name: cointrader
trading:
  mode: paper
  symbol: BTCUSDT
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.API.MaxRequestsPerMinute != 1200 {
		t.Errorf("default request budget = %d, want 1200", cfg.API.MaxRequestsPerMinute)
	}
	if cfg.API.Binance.RestURL != "https://api.binance.com" {
		t.Errorf("default rest url = %s", cfg.API.Binance.RestURL)
	}
	if cfg.Strategy.PositionSize == 0 {
		t.Error("strategy defaults not applied")
	}
	if params := cfg.StrategyParams(); !params.StopLossPct.Equal(decimal.NewFromFloat(1.0)) {
		t.Errorf("default stop loss = %s, want 1", params.StopLossPct)
	}
	if cfg.Risk.MaxTradeCount != 10 {
		t.Errorf("default trade cap = %d, want 10", cfg.Risk.MaxTradeCount)
	}
}

func TestLoadConfig_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("TRADER_BINANCE_KEY", "env-key")
	t.Setenv("TRADER_BINANCE_SECRET", "env-secret")
	t.Setenv("TRADER_AUTO_TRADING", "true")

	path := writeConfig(t, `
api:
  binance:
    access_key: file-key
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Binance.AccessKey != "env-key" {
		t.Errorf("access key = %s, want env override", cfg.API.Binance.AccessKey)
	}
	if cfg.API.Binance.SecretKey != "env-secret" {
		t.Errorf("secret key = %s, want env override", cfg.API.Binance.SecretKey)
	}
	if !cfg.Trading.AutoTrading {
		t.Error("auto trading env override not applied")
	}
}

func TestConfig_DatabasePath(t *testing.T) {
	var cfg Config
	if got, want := cfg.DatabasePath(), filepath.Join("data", "paper", "trades.db"); got != want {
		t.Errorf("DatabasePath() = %s, want %s", got, want)
	}

	cfg.Trading.Mode = "Real"
	if got, want := cfg.DatabasePath(), filepath.Join("data", "real", "trades.db"); got != want {
		t.Errorf("DatabasePath() = %s, want %s", got, want)
	}

	cfg.Storage.Path = filepath.Join("tmp", "custom.db")
	if got := cfg.DatabasePath(); got != cfg.Storage.Path {
		t.Errorf("explicit storage path must win, got %s", got)
	}
}

func TestLoadConfig_RejectsBadMode(t *testing.T) {
	path := writeConfig(t, `
trading:
  mode: yolo
`)
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected validation error for unknown trading mode")
	}
}
