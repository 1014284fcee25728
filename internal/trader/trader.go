package trader

import (
	"context"
	"log/slog"
	"time"

	"cointrader/internal/domain"
	"cointrader/internal/engine"
	"cointrader/internal/infra"
	"cointrader/internal/infra/binance"
)

// TradingEngine is what the live loop drives. *engine.PositionEngine
// satisfies it.
type TradingEngine interface {
	UpdatePosition(ctx context.Context) (engine.UpdateResult, error)
	OpenPosition(ctx context.Context, side domain.Side) error
	ClosePosition(ctx context.Context, reason domain.CloseReason) (*domain.TradeRecord, error)
	Position() domain.Position
	Symbol() string
}

// Config tunes the live loop.
type Config struct {
	Interval time.Duration // evaluation cadence
	Cooldown time.Duration // pause after a gateway failure

	// Optional file-based signal channel: a JSON document mapping
	// symbol to the latest external decision, polled on its own cadence.
	SignalFile     string
	SignalInterval time.Duration
}

const (
	defaultInterval       = time.Second
	defaultCooldown       = 5 * time.Second
	defaultSignalInterval = 10 * time.Second
)

// AutoTrader runs the live trading loop. Evaluation-cycle failures are
// logged and absorbed; the loop only exits on context cancellation.
type AutoTrader struct {
	eng     TradingEngine
	cfg     Config
	signals *signalWatcher

	// Consecutive gateway failures; stretches the cooldown while the
	// exchange stays unreachable.
	gatewayFails int
}

// New builds a trader around an engine. Zero durations take defaults.
func New(eng TradingEngine, cfg Config) *AutoTrader {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	if cfg.SignalInterval <= 0 {
		cfg.SignalInterval = defaultSignalInterval
	}

	t := &AutoTrader{eng: eng, cfg: cfg}
	if cfg.SignalFile != "" {
		t.signals = newSignalWatcher(cfg.SignalFile, eng.Symbol())
	}
	return t
}

// Run drives the loop until ctx is canceled, then attempts a clean
// manual close of any open position before returning.
func (t *AutoTrader) Run(ctx context.Context) error {
	slog.Info("Auto trader started",
		slog.String("symbol", t.eng.Symbol()),
		slog.Duration("interval", t.cfg.Interval))

	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	var signalTick <-chan time.Time
	if t.signals != nil {
		signalTicker := time.NewTicker(t.cfg.SignalInterval)
		defer signalTicker.Stop()
		signalTick = signalTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return t.shutdown(ctx)

		case <-ticker.C:
			if err := t.cycle(ctx); err != nil {
				if !t.pause(ctx, t.nextCooldown()) {
					return t.shutdown(ctx)
				}
			}

		case <-signalTick:
			t.applySignal(ctx)
		}
	}
}

// cycle runs one evaluation. The returned error only signals that a
// cooldown is due; it never propagates out of Run.
func (t *AutoTrader) cycle(ctx context.Context) error {
	res, err := t.eng.UpdatePosition(ctx)
	if err != nil {
		if binance.IsGatewayError(err) {
			t.gatewayFails++
			slog.Warn("Gateway failure, cooling down",
				slog.Int("consecutive", t.gatewayFails), slog.Any("error", err))
			return err
		}
		slog.Error("Evaluation cycle failed", slog.Any("error", err))
		return nil
	}
	t.gatewayFails = 0

	if res.Opened || res.Closed != nil {
		slog.Info("Cycle transition",
			slog.Bool("opened", res.Opened),
			slog.Bool("closed", res.Closed != nil),
			slog.String("position", res.Position.Side.String()))
	}
	return nil
}

func (t *AutoTrader) applySignal(ctx context.Context) {
	decision, err := t.signals.latest()
	if err != nil {
		slog.Warn("Signal file unreadable", slog.Any("error", err))
		return
	}
	if decision == "" {
		return
	}

	switch decision {
	case SignalBuy, SignalSell:
		if t.eng.Position().IsOpen() {
			return // no flips; the engine exits on its own rules
		}
		side := domain.SideLong
		if decision == SignalSell {
			side = domain.SideShort
		}
		if err := t.eng.OpenPosition(ctx, side); err != nil {
			slog.Warn("External signal entry failed",
				slog.String("signal", decision), slog.Any("error", err))
			return
		}
		slog.Info("External signal entry", slog.String("signal", decision))

	case SignalClose:
		if _, err := t.eng.ClosePosition(ctx, domain.CloseManual); err != nil {
			slog.Warn("External signal close failed", slog.Any("error", err))
		}

	default:
		slog.Warn("Unknown signal ignored", slog.String("signal", decision))
	}
}

// nextCooldown stretches the pause across consecutive gateway
// failures: the configured cooldown at first, then capped doubling
// while the exchange stays down.
func (t *AutoTrader) nextCooldown() time.Duration {
	d := infra.RetryBackoff(t.gatewayFails - 1)
	if d < t.cfg.Cooldown {
		d = t.cfg.Cooldown
	}
	return d
}

// pause sleeps for the cooldown, abandoning early on cancellation.
// Reports false when the context ended first.
func (t *AutoTrader) pause(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (t *AutoTrader) shutdown(ctx context.Context) error {
	if t.eng.Position().IsOpen() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if _, err := t.eng.ClosePosition(closeCtx, domain.CloseManual); err != nil {
			slog.Error("Shutdown close failed", slog.Any("error", err))
		}
	}
	slog.Info("Auto trader stopped")
	return ctx.Err()
}
