package monitor

import (
	"context"
	"fmt"
	"time"

	"cointrader/internal/domain"
	"cointrader/internal/engine"
)

// Report bundles performance, risk and market state for one strategy.
type Report struct {
	Timestamp   time.Time                 `json:"timestamp"`
	Type        string                    `json:"report_type"`
	Performance engine.PerformanceMetrics `json:"performance"`
	RiskStatus  domain.RiskCheck          `json:"risk_status"`
	Alerts      []domain.Alert            `json:"alerts"`
	Market      domain.Snapshot           `json:"current_market"`
	Summary     ReportSummary             `json:"summary"`
}

// ReportSummary is the one-glance section of a report.
type ReportSummary struct {
	TotalPnLPct    string          `json:"total_profit_loss"`
	TradeCount     int             `json:"trade_count"`
	RiskLevel      domain.RiskLevel `json:"risk_level"`
	ActivePosition domain.Side     `json:"active_position"`
}

// Report assembles a point-in-time report. Alerts below WARNING are
// left out; the market section needs one live snapshot fetch.
func (h *Hub) Report(ctx context.Context, reportType string) (Report, error) {
	snap, err := h.eng.AnalyzeMarket(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("report: %w", err)
	}

	riskCheck := h.risk.CheckLimits()
	pnl := h.eng.ProfitLossPct()

	return Report{
		Timestamp:   time.Now(),
		Type:        reportType,
		Performance: h.eng.Metrics(),
		RiskStatus:  riskCheck,
		Alerts:      h.Alerts(domain.AlertWarning),
		Market:      snap,
		Summary: ReportSummary{
			TotalPnLPct:    pnl.StringFixed(2) + "%",
			TradeCount:     h.eng.TradeCount(),
			RiskLevel:      riskCheck.Metrics.Level,
			ActivePosition: h.eng.Position().Side,
		},
	}, nil
}
