package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cointrader/internal/app"
	"cointrader/internal/infra/binance"
	"cointrader/internal/trader"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := bootstrap.Config

	// Live trade tape for the traded symbol.
	stream := binance.NewTradeStream(cfg.API.Binance.WSURL, cfg.Trading.Symbol)
	stream.Start(ctx)
	defer stream.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-stream.Events():
				slog.Debug("Trade tick",
					slog.String("symbol", ev.Symbol),
					slog.String("price", ev.Price.String()))
			case err := <-stream.Errs():
				slog.Error("Trade stream lost", slog.Any("error", err))
			}
		}
	}()

	// Monitoring session with periodic polling.
	hub := bootstrap.Hub
	hub.Start(nil)
	defer hub.Stop()
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Monitor.PollIntervalSec) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := hub.Poll(ctx); err != nil {
					slog.Warn("Monitoring poll failed", slog.Any("error", err))
				}
			}
		}
	}()

	slog.InfoContext(ctx, "✨ cointrader operational. Press Ctrl+C to exit.",
		slog.String("mode", cfg.Trading.Mode),
		slog.Bool("auto_trading", cfg.Trading.AutoTrading))

	// The trading loop owns the foreground; with auto-trading disabled it
	// still runs in observation-only mode and records market analysis.
	auto := trader.New(bootstrap.Engine, trader.Config{
		Interval:       time.Second,
		SignalFile:     cfg.Monitor.SignalFile,
		SignalInterval: time.Duration(cfg.Monitor.SignalIntervalSec) * time.Second,
	})
	if err := auto.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("Trading loop failed", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("👋 Shut down gracefully")
}
