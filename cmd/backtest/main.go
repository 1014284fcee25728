package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cointrader/backtest"
	"cointrader/internal/infra"
	"cointrader/internal/infra/binance"
	"cointrader/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	interval := flag.String("interval", "1h", "candle interval")
	limit := flag.Int("limit", 500, "number of candles to replay")
	optimize := flag.Bool("optimize", false, "grid-search strategy parameters instead of a single run")
	flag.Parse()

	cfg, err := infra.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.SetDefault(infra.NewLogger(cfg))

	// Historical reads must bypass the live price cache.
	client := binance.NewClient(binance.ClientConfig{
		BaseURL:              cfg.API.Binance.RestURL,
		APIKey:               cfg.API.Binance.AccessKey,
		SecretKey:            cfg.API.Binance.SecretKey,
		MaxRequestsPerMinute: cfg.API.MaxRequestsPerMinute,
		DisablePriceCache:    true,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	candles, err := client.GetKlines(ctx, cfg.Trading.Symbol, *interval, *limit)
	if err != nil {
		slog.Error("Candle download failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("Candles loaded",
		slog.String("symbol", cfg.Trading.Symbol),
		slog.Int("count", len(candles)))

	runCfg := backtest.Config{
		Symbol: cfg.Trading.Symbol,
		Params: cfg.StrategyParams(),
	}

	if *optimize {
		result, err := backtest.Optimize(ctx, runCfg, candles, backtest.DefaultGrid())
		if err != nil {
			slog.Error("Optimization failed", slog.Any("error", err))
			os.Exit(1)
		}
		if err := saveOptimizerBest(ctx, cfg, result.Best); err != nil {
			slog.Warn("Optimizer result not persisted", slog.Any("error", err))
		}
		printJSON(result)
		return
	}

	result, err := backtest.Run(ctx, runCfg, candles)
	if err != nil {
		slog.Error("Backtest failed", slog.Any("error", err))
		os.Exit(1)
	}
	printJSON(struct {
		Trades       int    `json:"trades"`
		FinalBalance string `json:"final_balance"`
		FinalPnLPct  string `json:"final_pnl_pct"`
	}{
		Trades:       result.TradeCount,
		FinalBalance: result.FinalBalance.StringFixed(2),
		FinalPnLPct:  result.FinalPnLPct.StringFixed(2),
	})
}

// saveOptimizerBest records the winning combination in the trade
// database so the live bootstrap can report it later.
func saveOptimizerBest(ctx context.Context, cfg *infra.Config, best backtest.Candidate) error {
	dbPath := cfg.DatabasePath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return err
	}
	store, err := storage.NewTradeStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	payload, err := json.Marshal(best)
	if err != nil {
		return err
	}
	return store.UpsertMetadata(ctx, storage.MetaOptimizerBest, string(payload), time.Now().UnixMilli())
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		slog.Error("Report encoding failed", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Println(string(out))
}
