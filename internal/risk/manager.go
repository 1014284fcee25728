package risk

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"cointrader/internal/domain"
)

// EngineState is the read-only view of the trading session the manager
// evaluates. *engine.PositionEngine satisfies it.
type EngineState interface {
	Params() domain.StrategyParams
	TradeCount() int
	ProfitLossPct() decimal.Decimal
}

// Limits are the session caps. Zero values fall back to the defaults.
type Limits struct {
	MaxDailyLossPct decimal.Decimal
	MaxTradeCount   int
}

var (
	defaultMaxDailyLossPct = decimal.NewFromFloat(2.0)

	// Risk level boundaries on cumulative session P&L.
	highRiskPnL   = decimal.NewFromFloat(-1.5)
	mediumRiskPnL = decimal.NewFromFloat(-0.5)

	// Position size ceiling is a multiple of the configured base size.
	maxPositionMultiple = decimal.NewFromInt(3)
)

const defaultMaxTradeCount = 10

// Manager evaluates session risk against fixed limits. It never mutates
// engine state; callers act on the returned check.
type Manager struct {
	state            EngineState
	limits           Limits
	basePositionSize decimal.Decimal
}

// NewManager builds a manager around an engine view. basePositionSize is
// the configured (not the current) strategy position size; the ceiling
// stays anchored to it even when the optimizer swaps parameters.
func NewManager(state EngineState, basePositionSize decimal.Decimal, limits Limits) *Manager {
	if limits.MaxDailyLossPct.IsZero() {
		limits.MaxDailyLossPct = defaultMaxDailyLossPct
	}
	if limits.MaxTradeCount == 0 {
		limits.MaxTradeCount = defaultMaxTradeCount
	}
	return &Manager{state: state, limits: limits, basePositionSize: basePositionSize}
}

// Metrics reports current exposure against the limits.
func (m *Manager) Metrics() domain.RiskSnapshot {
	pnl := m.state.ProfitLossPct()

	dailyLoss := decimal.Zero
	if pnl.IsNegative() {
		dailyLoss = pnl.Abs()
	}

	level := domain.RiskLow
	switch {
	case pnl.LessThan(highRiskPnL):
		level = domain.RiskHigh
	case pnl.LessThan(mediumRiskPnL):
		level = domain.RiskMedium
	}

	return domain.RiskSnapshot{
		MaxPositionSize:     m.basePositionSize.Mul(maxPositionMultiple),
		MaxDailyLossPct:     m.limits.MaxDailyLossPct,
		MaxTradeCount:       m.limits.MaxTradeCount,
		CurrentDailyLossPct: dailyLoss,
		CurrentTradeCount:   m.state.TradeCount(),
		Level:               level,
	}
}

// CheckLimits evaluates all limits. It is idempotent: repeated calls on
// unchanged state return identical results.
func (m *Manager) CheckLimits() domain.RiskCheck {
	metrics := m.Metrics()
	params := m.state.Params()

	check := domain.RiskCheck{
		PositionSizeOK: params.PositionSize.LessThanOrEqual(metrics.MaxPositionSize),
		DailyLossOK:    metrics.CurrentDailyLossPct.LessThanOrEqual(metrics.MaxDailyLossPct),
		TradeCountOK:   metrics.CurrentTradeCount <= metrics.MaxTradeCount,
		Metrics:        metrics,
	}
	check.Status = check.PositionSizeOK && check.DailyLossOK && check.TradeCountOK
	if failed := check.FailedChecks(); len(failed) > 0 {
		slog.Warn("Risk limits breached",
			slog.Any("checks", failed),
			slog.String("level", string(metrics.Level)))
	}
	return check
}
