package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"cointrader/internal/domain"
	"cointrader/internal/engine"
)

var (
	defaultInitialBalance = decimal.NewFromInt(10000)
	hundred               = decimal.NewFromInt(100)

	// Offline replay has no order-book history; the buy/sell ratio is
	// pinned to parity and sentiment is driven by price movement alone.
	backtestRatio = decimal.NewFromInt(1)
)

// Config parameterizes one backtest run.
type Config struct {
	Symbol         string
	Params         domain.StrategyParams
	InitialBalance decimal.Decimal
	// TradingFee is an opt-in round-trip fee fraction (e.g. 0.001)
	// deducted from the balance on each close. The default path charges
	// nothing; cumulative P&L percentages are always fee-free.
	TradingFee decimal.Decimal
}

// ResultRow is the per-candle trace of a run.
type ResultRow struct {
	Timestamp        time.Time       `json:"timestamp"`
	Price            decimal.Decimal `json:"price"`
	Side             domain.Side     `json:"position"`
	Balance          decimal.Decimal `json:"balance"`
	CumulativePnLPct decimal.Decimal `json:"profit_loss"`
}

// Result is the outcome of a full run, including the forced final close.
type Result struct {
	Rows         []ResultRow
	Trades       []domain.TradeRecord
	TradeCount   int
	FinalBalance decimal.Decimal
	FinalPnLPct  decimal.Decimal
}

// Run replays candles in chronological order through a fresh engine.
// Each candle becomes a synthetic snapshot priced at its close with the
// intrabar open-to-close move as the price change. A position still open
// after the last candle is force-closed with reason BACKTEST_END.
func Run(ctx context.Context, cfg Config, candles []domain.Candle) (Result, error) {
	if len(candles) == 0 {
		return Result{}, fmt.Errorf("backtest: no candles")
	}
	if cfg.InitialBalance.IsZero() {
		cfg.InitialBalance = defaultInitialBalance
	}

	eng, err := engine.New(engine.Config{
		Symbol:      cfg.Symbol,
		Params:      cfg.Params,
		AutoTrading: true,
	})
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Rows:         make([]ResultRow, 0, len(candles)),
		FinalBalance: cfg.InitialBalance,
	}
	balance := cfg.InitialBalance

	for _, candle := range candles {
		snap := domain.NewSnapshot(cfg.Symbol, candle.Close, candle.IntrabarChangePct(),
			candle.Volume, backtestRatio, backtestRatio, candle.OpenTime)

		res, err := eng.ProcessSnapshot(ctx, snap)
		if err != nil {
			return Result{}, fmt.Errorf("backtest at %s: %w", candle.OpenTime, err)
		}
		if res.Closed != nil {
			balance = settle(balance, res.Closed.PnLPct, cfg.TradingFee)
		}

		result.Rows = append(result.Rows, ResultRow{
			Timestamp:        candle.OpenTime,
			Price:            candle.Close,
			Side:             res.Position.Side,
			Balance:          balance,
			CumulativePnLPct: eng.ProfitLossPct(),
		})
	}

	last := candles[len(candles)-1]
	rec, err := eng.ClosePositionAt(ctx, last.Close, domain.CloseBacktestEnd)
	if err != nil {
		return Result{}, fmt.Errorf("backtest final close: %w", err)
	}
	if rec != nil {
		balance = settle(balance, rec.PnLPct, cfg.TradingFee)
	}

	result.Trades = eng.Trades()
	result.TradeCount = eng.TradeCount()
	result.FinalBalance = balance
	result.FinalPnLPct = eng.ProfitLossPct()

	slog.Info("Backtest complete",
		slog.String("symbol", cfg.Symbol),
		slog.Int("candles", len(candles)),
		slog.Int("trades", result.TradeCount),
		slog.String("pnl_pct", result.FinalPnLPct.StringFixed(2)))
	return result, nil
}

// settle applies one closed trade to the running balance.
func settle(balance, pnlPct, fee decimal.Decimal) decimal.Decimal {
	balance = balance.Mul(decimal.NewFromInt(1).Add(pnlPct.Div(hundred)))
	if fee.IsPositive() {
		balance = balance.Mul(decimal.NewFromInt(1).Sub(fee))
	}
	return balance
}
