package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cointrader/internal/domain"

	"github.com/shopspring/decimal"
)

// MarketDataSource supplies the observations one evaluation cycle needs.
type MarketDataSource interface {
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	GetMarketSummary(ctx context.Context, symbol string) (domain.MarketSummary, error)
	GetDepth(ctx context.Context, symbol string, levels int) (domain.Depth, error)
}

// OrderGateway places and cancels orders at the exchange.
type OrderGateway interface {
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error
}

// TradeRecorder persists closed trades. Persistence failures never roll
// back engine state; they are logged and the record stays in memory.
type TradeRecorder interface {
	RecordTrade(ctx context.Context, rec domain.TradeRecord) error
}

const depthLevels = 10

// Config assembles a PositionEngine.
type Config struct {
	Symbol      string
	Params      domain.StrategyParams
	AutoTrading bool
	Source      MarketDataSource
	Gateway     OrderGateway  // optional; nil for offline runs
	Recorder    TradeRecorder // optional
}

// UpdateResult reports what one evaluation cycle did. At most one of
// Opened/Closed is set: the engine performs one transition per cycle.
type UpdateResult struct {
	Snapshot domain.Snapshot
	Position domain.Position
	Opened   bool
	Closed   *domain.TradeRecord
}

// PositionEngine is the position state machine: FLAT, LONG or SHORT,
// with entry driven by sentiment and exit by stop-loss/take-profit.
// It exclusively owns the current position and the trade ledger. A
// single mutex serializes all mutation; host one logical writer per
// instance.
type PositionEngine struct {
	mu sync.Mutex

	symbol      string
	params      domain.StrategyParams
	autoTrading bool

	source   MarketDataSource
	gateway  OrderGateway
	recorder TradeRecorder

	position   domain.Position
	trades     []domain.TradeRecord
	tradeCount int
	profitLoss decimal.Decimal
}

// New creates an engine. Parameter hazards (take-profit below stop-loss)
// are logged, not corrected.
func New(cfg Config) (*PositionEngine, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("strategy params: %w", err)
	}
	for _, hazard := range cfg.Params.Hazards() {
		slog.Warn("Strategy configuration hazard", slog.String("hazard", hazard))
	}

	return &PositionEngine{
		symbol:      cfg.Symbol,
		params:      cfg.Params,
		autoTrading: cfg.AutoTrading,
		source:      cfg.Source,
		gateway:     cfg.Gateway,
		recorder:    cfg.Recorder,
		profitLoss:  decimal.Zero,
	}, nil
}

// AnalyzeMarket collects one fresh snapshot: price, 24h summary and
// order-book imbalance over the top levels.
func (e *PositionEngine) AnalyzeMarket(ctx context.Context) (domain.Snapshot, error) {
	price, err := e.source.GetPrice(ctx, e.symbol)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("analyze market: %w", err)
	}
	summary, err := e.source.GetMarketSummary(ctx, e.symbol)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("analyze market: %w", err)
	}
	depth, err := e.source.GetDepth(ctx, e.symbol, depthLevels)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("analyze market: %w", err)
	}

	return domain.NewSnapshot(e.symbol, price, summary.PriceChangePct, summary.Volume,
		depth.BidVolume(), depth.AskVolume(), time.Now()), nil
}

// UpdatePosition runs one live evaluation cycle: fetch a snapshot, then
// apply at most one state transition. With auto-trading disabled the
// snapshot is returned without touching state (observation-only mode).
func (e *PositionEngine) UpdatePosition(ctx context.Context) (UpdateResult, error) {
	snap, err := e.AnalyzeMarket(ctx)
	if err != nil {
		return UpdateResult{}, err
	}
	return e.ProcessSnapshot(ctx, snap)
}

// ProcessSnapshot applies the state machine to one snapshot. It is the
// shared path for live trading and offline replay.
func (e *PositionEngine) ProcessSnapshot(ctx context.Context, snap domain.Snapshot) (UpdateResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := UpdateResult{Snapshot: snap, Position: e.position}
	if !e.autoTrading {
		return result, nil
	}

	if !e.position.IsOpen() {
		side, ok := e.entrySignal(snap)
		if !ok {
			return result, nil
		}
		if err := e.openLocked(ctx, side, snap); err != nil {
			return result, err
		}
		result.Opened = true
		result.Position = e.position
		return result, nil
	}

	reason, ok := e.exitSignal(snap.CurrentPrice)
	if !ok {
		return result, nil
	}
	rec, err := e.closeLocked(ctx, snap.CurrentPrice, reason, snap.ObservedAt)
	if err != nil {
		return result, err
	}
	result.Closed = rec
	result.Position = e.position
	return result, nil
}

// entrySignal maps sentiment to an entry side. Bullish opens LONG,
// bearish opens SHORT, neutral gives no signal.
func (e *PositionEngine) entrySignal(snap domain.Snapshot) (domain.Side, bool) {
	switch {
	case snap.Sentiment.Bullish():
		return domain.SideLong, true
	case snap.Sentiment.Bearish():
		return domain.SideShort, true
	default:
		return domain.SideFlat, false
	}
}

// exitSignal checks stop-loss before take-profit. With a pathological
// configuration (take_profit < stop_loss) both may be satisfiable in the
// same cycle; stop-loss wins by this ordering.
func (e *PositionEngine) exitSignal(price decimal.Decimal) (domain.CloseReason, bool) {
	pnl := e.position.UnrealizedPnLPct(price)
	if pnl.LessThanOrEqual(e.params.StopLossPct.Neg()) {
		return domain.CloseStopLoss, true
	}
	if pnl.GreaterThanOrEqual(e.params.TakeProfitPct) {
		return domain.CloseTakeProfit, true
	}
	return "", false
}

func (e *PositionEngine) openLocked(ctx context.Context, side domain.Side, snap domain.Snapshot) error {
	if e.gateway != nil {
		orderSide := domain.OrderSideBuy
		if side == domain.SideShort {
			orderSide = domain.OrderSideSell
		}
		_, err := e.gateway.PlaceOrder(ctx, domain.OrderRequest{
			Symbol:   e.symbol,
			Side:     orderSide,
			Type:     domain.OrderTypeLimit,
			Quantity: e.params.PositionSize,
			Price:    snap.CurrentPrice,
			Test:     true,
		})
		if err != nil {
			return fmt.Errorf("open %s: %w", side, err)
		}
	}

	openedAt := snap.ObservedAt
	if openedAt.IsZero() {
		openedAt = time.Now()
	}
	e.position = domain.Position{
		Side:       side,
		EntryPrice: snap.CurrentPrice,
		Size:       e.params.PositionSize,
		OpenedAt:   openedAt,
	}
	e.tradeCount++

	slog.Info("Position opened",
		slog.String("symbol", e.symbol),
		slog.String("side", side.String()),
		slog.String("entry", snap.CurrentPrice.String()),
		slog.String("size", e.params.PositionSize.String()))
	return nil
}

// OpenPosition enters at the current market price on an external signal
// instead of sentiment. Fails when a position is already open.
func (e *PositionEngine) OpenPosition(ctx context.Context, side domain.Side) error {
	if side != domain.SideLong && side != domain.SideShort {
		return fmt.Errorf("open position: invalid side %s", side)
	}
	price, err := e.source.GetPrice(ctx, e.symbol)
	if err != nil {
		return fmt.Errorf("open position: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.position.IsOpen() {
		return fmt.Errorf("open position: %s already open", e.position.Side)
	}
	return e.openLocked(ctx, side, domain.Snapshot{
		Symbol:       e.symbol,
		CurrentPrice: price,
		ObservedAt:   time.Now(),
	})
}

// ClosePosition exits at the current market price for the given reason
// (MANUAL, SIMULATION_END, ...). No-op when flat.
func (e *PositionEngine) ClosePosition(ctx context.Context, reason domain.CloseReason) (*domain.TradeRecord, error) {
	e.mu.Lock()
	open := e.position.IsOpen()
	e.mu.Unlock()
	if !open {
		return nil, nil
	}

	price, err := e.source.GetPrice(ctx, e.symbol)
	if err != nil {
		return nil, fmt.Errorf("close position: %w", err)
	}
	return e.ClosePositionAt(ctx, price, reason)
}

// ClosePositionAt exits at an explicit price. The backtest runner uses
// it to force BACKTEST_END closes at the final candle.
func (e *PositionEngine) ClosePositionAt(ctx context.Context, price decimal.Decimal, reason domain.CloseReason) (*domain.TradeRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.position.IsOpen() {
		return nil, nil
	}
	return e.closeLocked(ctx, price, reason, time.Time{})
}

func (e *PositionEngine) closeLocked(ctx context.Context, price decimal.Decimal, reason domain.CloseReason, at time.Time) (*domain.TradeRecord, error) {
	if e.gateway != nil {
		closeSide := domain.OrderSideSell
		if e.position.Side == domain.SideShort {
			closeSide = domain.OrderSideBuy
		}
		_, err := e.gateway.PlaceOrder(ctx, domain.OrderRequest{
			Symbol:   e.symbol,
			Side:     closeSide,
			Type:     domain.OrderTypeLimit,
			Quantity: e.position.Size,
			Price:    price,
			Test:     true,
		})
		if err != nil {
			return nil, fmt.Errorf("close %s: %w", e.position.Side, err)
		}
	}

	if at.IsZero() {
		at = time.Now()
	}
	pnl := e.position.UnrealizedPnLPct(price)
	rec := domain.TradeRecord{
		Symbol:     e.symbol,
		Side:       e.position.Side,
		Size:       e.position.Size,
		EntryPrice: e.position.EntryPrice,
		ExitPrice:  price,
		PnLPct:     pnl,
		Reason:     reason,
		ClosedAt:   at,
	}

	e.profitLoss = e.profitLoss.Add(pnl)
	e.trades = append(e.trades, rec)
	e.tradeCount++ // closing counts as a trade
	e.position = domain.Position{}

	slog.Info("Position closed",
		slog.String("symbol", e.symbol),
		slog.String("reason", string(reason)),
		slog.String("pnl_pct", pnl.StringFixed(2)))

	if e.recorder != nil {
		if err := e.recorder.RecordTrade(ctx, rec); err != nil {
			slog.Warn("Trade persistence failed", slog.Any("error", err))
		}
	}
	return &rec, nil
}

// Reset clears position, ledger and counters. Each backtest and
// optimizer combination starts from a reset engine.
func (e *PositionEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.position = domain.Position{}
	e.trades = nil
	e.tradeCount = 0
	e.profitLoss = decimal.Zero
}

// SetAutoTrading toggles between trading and observation-only mode.
func (e *PositionEngine) SetAutoTrading(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoTrading = enabled
}

// AutoTrading reports whether the engine may transition state.
func (e *PositionEngine) AutoTrading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.autoTrading
}

// Symbol returns the traded symbol.
func (e *PositionEngine) Symbol() string { return e.symbol }

// Params returns the active strategy parameters.
func (e *PositionEngine) Params() domain.StrategyParams { return e.params }

// Position returns a copy of the current position.
func (e *PositionEngine) Position() domain.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

// TradeCount returns the number of executed trades this session.
func (e *PositionEngine) TradeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tradeCount
}

// ProfitLossPct returns the cumulative percentage P&L across closed trades.
func (e *PositionEngine) ProfitLossPct() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profitLoss
}

// Trades returns a copy of the append-only ledger.
func (e *PositionEngine) Trades() []domain.TradeRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.TradeRecord, len(e.trades))
	copy(out, e.trades)
	return out
}
