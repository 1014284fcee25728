package domain

import "github.com/shopspring/decimal"

// RiskLevel grades the current session by cumulative P&L.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// RiskSnapshot is a point-in-time view of risk metrics. It is recomputed
// on demand from engine state, never stored.
type RiskSnapshot struct {
	MaxPositionSize     decimal.Decimal `json:"max_position_size"`
	MaxDailyLossPct     decimal.Decimal `json:"max_daily_loss_pct"`
	MaxTradeCount       int             `json:"max_trade_count"`
	CurrentDailyLossPct decimal.Decimal `json:"current_daily_loss_pct"`
	CurrentTradeCount   int             `json:"current_trade_count"`
	Level               RiskLevel       `json:"risk_level"`
}

// RiskCheck is the full breakdown of the three limit checks. Overall
// status is the AND of the individual checks; callers enforce it.
type RiskCheck struct {
	PositionSizeOK bool         `json:"position_size_ok"`
	DailyLossOK    bool         `json:"daily_loss_ok"`
	TradeCountOK   bool         `json:"trade_count_ok"`
	Status         bool         `json:"status"`
	Metrics        RiskSnapshot `json:"metrics"`
}

// FailedChecks names every breached limit, for alerting.
func (c RiskCheck) FailedChecks() []string {
	var failed []string
	if !c.PositionSizeOK {
		failed = append(failed, "position_size")
	}
	if !c.DailyLossOK {
		failed = append(failed, "daily_loss")
	}
	if !c.TradeCountOK {
		failed = append(failed, "trade_count")
	}
	return failed
}
