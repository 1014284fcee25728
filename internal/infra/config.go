package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cointrader/internal/domain"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds the whole application configuration. Secrets may be
// overridden by environment variables after the file is loaded.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Trading struct {
		Mode        string `yaml:"mode"` // "paper" or "real"
		AutoTrading bool   `yaml:"auto_trading"`
		Symbol      string `yaml:"symbol"`
	} `yaml:"trading"`

	API struct {
		Binance struct {
			RestURL   string `yaml:"rest_url"`
			WSURL     string `yaml:"ws_url"`
			AccessKey string `yaml:"access_key"`
			SecretKey string `yaml:"secret_key"`
		} `yaml:"binance"`
		MaxRequestsPerMinute int     `yaml:"max_requests_per_minute"`
		PriceCacheSeconds    float64 `yaml:"price_cache_seconds"`
	} `yaml:"api"`

	// Strategy values stay plain floats in yaml; StrategyParams converts
	// them to exact decimals for the engine.
	Strategy struct {
		MinPriceChange float64 `yaml:"min_price_change"`
		PositionSize   float64 `yaml:"position_size"`
		StopLossPct    float64 `yaml:"stop_loss_pct"`
		TakeProfitPct  float64 `yaml:"take_profit_pct"`
	} `yaml:"strategy"`

	Risk struct {
		MaxDailyLossPct float64 `yaml:"max_daily_loss_pct"`
		MaxTradeCount   int     `yaml:"max_trade_count"`
	} `yaml:"risk"`

	Monitor struct {
		PollIntervalSec   int    `yaml:"poll_interval_sec"`
		MaxAlerts         int    `yaml:"max_alerts"`
		SignalFile        string `yaml:"signal_file"`
		SignalIntervalSec int    `yaml:"signal_interval_sec"`
	} `yaml:"monitor"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the config file, applies environment
// overrides for secrets, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Trading.Symbol == "" {
		cfg.Trading.Symbol = "BTCUSDT"
	}
	if cfg.API.Binance.RestURL == "" {
		cfg.API.Binance.RestURL = "https://api.binance.com"
	}
	if cfg.API.Binance.WSURL == "" {
		cfg.API.Binance.WSURL = "wss://stream.binance.com:9443"
	}
	if cfg.API.MaxRequestsPerMinute == 0 {
		cfg.API.MaxRequestsPerMinute = 1200
	}
	if cfg.API.PriceCacheSeconds == 0 {
		cfg.API.PriceCacheSeconds = 1.0
	}
	if cfg.Risk.MaxDailyLossPct == 0 {
		cfg.Risk.MaxDailyLossPct = 2.0
	}
	if cfg.Risk.MaxTradeCount == 0 {
		cfg.Risk.MaxTradeCount = 10
	}
	if cfg.Monitor.PollIntervalSec == 0 {
		cfg.Monitor.PollIntervalSec = 10
	}
	if cfg.Monitor.MaxAlerts == 0 {
		cfg.Monitor.MaxAlerts = 1000
	}
	if cfg.Monitor.SignalIntervalSec == 0 {
		cfg.Monitor.SignalIntervalSec = 10
	}
	defaults := domain.DefaultStrategyParams()
	if cfg.Strategy.MinPriceChange == 0 {
		cfg.Strategy.MinPriceChange, _ = defaults.MinPriceChange.Float64()
	}
	if cfg.Strategy.PositionSize == 0 {
		cfg.Strategy.PositionSize, _ = defaults.PositionSize.Float64()
	}
	if cfg.Strategy.StopLossPct == 0 {
		cfg.Strategy.StopLossPct, _ = defaults.StopLossPct.Float64()
	}
	if cfg.Strategy.TakeProfitPct == 0 {
		cfg.Strategy.TakeProfitPct, _ = defaults.TakeProfitPct.Float64()
	}
}

// StrategyParams converts the configured strategy block to engine
// parameters.
func (c *Config) StrategyParams() domain.StrategyParams {
	return domain.StrategyParams{
		MinPriceChange: decimal.NewFromFloat(c.Strategy.MinPriceChange),
		PositionSize:   decimal.NewFromFloat(c.Strategy.PositionSize),
		StopLossPct:    decimal.NewFromFloat(c.Strategy.StopLossPct),
		TakeProfitPct:  decimal.NewFromFloat(c.Strategy.TakeProfitPct),
	}
}

// DatabasePath resolves the trade database location: the configured
// storage path, or data/<mode>/trades.db so paper and real sessions
// never share a file.
func (c *Config) DatabasePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	mode := strings.ToLower(c.Trading.Mode)
	if mode == "" {
		mode = "paper"
	}
	return filepath.Join("data", mode, "trades.db")
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.API.Binance.RestURL, "http://") && !strings.HasPrefix(c.API.Binance.RestURL, "https://") {
		return fmt.Errorf("invalid Binance REST URL: %s", c.API.Binance.RestURL)
	}
	if !strings.HasPrefix(c.API.Binance.WSURL, "ws://") && !strings.HasPrefix(c.API.Binance.WSURL, "wss://") {
		return fmt.Errorf("invalid Binance WS URL: %s", c.API.Binance.WSURL)
	}
	if mode := strings.ToLower(c.Trading.Mode); mode != "" && mode != "paper" && mode != "real" {
		return fmt.Errorf("unknown trading mode: %s", c.Trading.Mode)
	}
	if c.Monitor.PollIntervalSec <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	return c.StrategyParams().Validate()
}

// overrideWithEnv lets environment variables take precedence over the
// config file so secrets stay out of version-controlled yaml.
func overrideWithEnv(cfg *Config) {
	if cfg.API.Binance.SecretKey != "" {
		fmt.Println("WARNING: API secret found in config file; prefer TRADER_BINANCE_KEY / TRADER_BINANCE_SECRET environment variables")
	}

	if key := os.Getenv("TRADER_BINANCE_KEY"); key != "" {
		cfg.API.Binance.AccessKey = key
	}
	if secret := os.Getenv("TRADER_BINANCE_SECRET"); secret != "" {
		cfg.API.Binance.SecretKey = secret
	}
	if auto := os.Getenv("TRADER_AUTO_TRADING"); auto != "" {
		cfg.Trading.AutoTrading = strings.EqualFold(auto, "true")
	}
}
