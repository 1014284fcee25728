package engine

import (
	"github.com/shopspring/decimal"

	"cointrader/internal/domain"
)

// PerformanceMetrics summarizes the session ledger.
type PerformanceMetrics struct {
	TotalTrades     int             `json:"total_trades"`
	ClosedTrades    int             `json:"closed_trades"`
	WinningTrades   int             `json:"winning_trades"`
	LosingTrades    int             `json:"losing_trades"`
	WinRatePct      decimal.Decimal `json:"win_rate_pct"`
	TotalPnLPct     decimal.Decimal `json:"total_pnl_pct"`
	AvgPnLPct       decimal.Decimal `json:"avg_pnl_pct"`
	CurrentPosition domain.Side     `json:"current_position"`
}

// Metrics computes performance figures over the closed-trade ledger.
func (e *PositionEngine) Metrics() PerformanceMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := PerformanceMetrics{
		TotalTrades:     e.tradeCount,
		ClosedTrades:    len(e.trades),
		WinRatePct:      decimal.Zero,
		TotalPnLPct:     e.profitLoss,
		AvgPnLPct:       decimal.Zero,
		CurrentPosition: e.position.Side,
	}
	for _, rec := range e.trades {
		if rec.PnLPct.IsPositive() {
			m.WinningTrades++
		} else if rec.PnLPct.IsNegative() {
			m.LosingTrades++
		}
	}
	if len(e.trades) > 0 {
		closed := decimal.NewFromInt(int64(len(e.trades)))
		m.WinRatePct = decimal.NewFromInt(int64(m.WinningTrades)).
			Div(closed).Mul(decimal.NewFromInt(100))
		m.AvgPnLPct = e.profitLoss.Div(closed)
	}
	return m
}
