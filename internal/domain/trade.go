package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CloseReason explains why a position was exited.
type CloseReason string

const (
	CloseStopLoss      CloseReason = "STOP_LOSS"
	CloseTakeProfit    CloseReason = "TAKE_PROFIT"
	CloseManual        CloseReason = "MANUAL"
	CloseBacktestEnd   CloseReason = "BACKTEST_END"
	CloseSimulationEnd CloseReason = "SIMULATION_END"
)

// TradeRecord is one completed round trip. Records are append-only;
// never mutated after creation.
type TradeRecord struct {
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Size       decimal.Decimal `json:"size"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	PnLPct     decimal.Decimal `json:"pnl_pct"`
	Reason     CloseReason     `json:"reason"`
	ClosedAt   time.Time       `json:"closed_at"`
}
