package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cointrader/internal/engine"
	"cointrader/internal/infra"
	"cointrader/internal/infra/binance"
	"cointrader/internal/monitor"
	"cointrader/internal/risk"
	"cointrader/internal/storage"

	"github.com/shopspring/decimal"
)

// Bootstrap orchestrates the application startup sequence.
type Bootstrap struct {
	Config *infra.Config
	Store  *storage.TradeStore
	Client *binance.Client
	Engine *engine.PositionEngine
	Risk   *risk.Manager
	Hub    *monitor.Hub
}

// NewBootstrap creates a new Bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration and wires the full pipeline:
// store, rate-limited client, engine, risk manager and monitoring hub.
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping cointrader...")

	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// Data isolation per trading mode: data/{mode}/trades.db
	dbPath := cfg.DatabasePath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	store, err := storage.NewTradeStore(dbPath)
	if err != nil {
		return err
	}
	b.Store = store
	slog.Info("✅ TradeStore initialized (WAL-mode)", "path", dbPath)

	if err := b.replayHistory(cfg.Trading.Symbol); err != nil {
		return err
	}

	b.Client = binance.NewClient(binance.ClientConfig{
		BaseURL:              cfg.API.Binance.RestURL,
		APIKey:               cfg.API.Binance.AccessKey,
		SecretKey:            cfg.API.Binance.SecretKey,
		MaxRequestsPerMinute: cfg.API.MaxRequestsPerMinute,
		PriceCacheTTL:        time.Duration(cfg.API.PriceCacheSeconds * float64(time.Second)),
	})

	params := cfg.StrategyParams()
	eng, err := engine.New(engine.Config{
		Symbol:      cfg.Trading.Symbol,
		Params:      params,
		AutoTrading: cfg.Trading.AutoTrading,
		Source:      b.Client,
		Gateway:     b.Client,
		Recorder:    store,
	})
	if err != nil {
		return err
	}
	b.Engine = eng
	slog.Info("✅ Position engine ready",
		"symbol", cfg.Trading.Symbol,
		"auto_trading", cfg.Trading.AutoTrading)

	b.Risk = risk.NewManager(eng, params.PositionSize, risk.Limits{
		MaxDailyLossPct: decimal.NewFromFloat(cfg.Risk.MaxDailyLossPct),
		MaxTradeCount:   cfg.Risk.MaxTradeCount,
	})
	b.Hub = monitor.NewHub(eng, b.Risk, cfg.Monitor.MaxAlerts)

	return nil
}

// replayHistory surfaces the persisted record of earlier sessions and
// marks the start of this one.
func (b *Bootstrap) replayHistory(symbol string) error {
	ctx := context.Background()

	if prev, err := b.Store.GetMetadata(ctx, storage.MetaSessionStart); err == nil && prev != "" {
		slog.Info("Previous session found", "started_at", prev)
	}
	if best, err := b.Store.GetMetadata(ctx, storage.MetaOptimizerBest); err == nil && best != "" {
		slog.Info("Optimizer recommendation on record", "params", best)
	}

	trades, err := b.Store.LoadTrades(ctx, symbol)
	if err != nil {
		return fmt.Errorf("failed to load trade history: %w", err)
	}
	cumulative, err := b.Store.CumulativePnLPct(ctx, symbol)
	if err != nil {
		return err
	}
	slog.Info("✅ Trade history loaded",
		"symbol", symbol,
		"closed_trades", len(trades),
		"cumulative_pnl_pct", cumulative.StringFixed(2))

	now := time.Now()
	return b.Store.UpsertMetadata(ctx, storage.MetaSessionStart,
		now.UTC().Format(time.RFC3339), now.UnixMilli())
}

// Close marks the session end and releases held resources.
func (b *Bootstrap) Close() {
	if b.Store != nil {
		now := time.Now()
		if err := b.Store.UpsertMetadata(context.Background(), storage.MetaSessionEnd,
			now.UTC().Format(time.RFC3339), now.UnixMilli()); err != nil {
			slog.Warn("Session end marker not recorded", slog.Any("error", err))
		}
		if err := b.Store.Close(); err != nil {
			slog.Warn("Store close failed", slog.Any("error", err))
		}
	}
}
