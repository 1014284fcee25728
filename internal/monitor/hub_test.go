package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cointrader/internal/domain"
	"cointrader/internal/engine"
)

type fakeEngine struct {
	snap       domain.Snapshot
	snapErr    error
	position   domain.Position
	pnl        decimal.Decimal
	tradeCount int
}

func (f *fakeEngine) AnalyzeMarket(ctx context.Context) (domain.Snapshot, error) {
	return f.snap, f.snapErr
}
func (f *fakeEngine) Position() domain.Position      { return f.position }
func (f *fakeEngine) ProfitLossPct() decimal.Decimal { return f.pnl }
func (f *fakeEngine) TradeCount() int                { return f.tradeCount }
func (f *fakeEngine) Metrics() engine.PerformanceMetrics {
	return engine.PerformanceMetrics{TotalTrades: f.tradeCount, TotalPnLPct: f.pnl}
}

type fakeRisk struct {
	check domain.RiskCheck
}

func (f *fakeRisk) CheckLimits() domain.RiskCheck { return f.check }

func okRisk() *fakeRisk {
	return &fakeRisk{check: domain.RiskCheck{
		PositionSizeOK: true, DailyLossOK: true, TradeCountOK: true, Status: true,
	}}
}

func quietSnapshot(changePct float64) domain.Snapshot {
	return domain.NewSnapshot("BTCUSDT",
		decimal.NewFromInt(50000), decimal.NewFromFloat(changePct),
		decimal.NewFromInt(1000), decimal.NewFromInt(100), decimal.NewFromInt(100),
		time.Unix(1700000000, 0))
}

func TestHub_SessionLifecycle(t *testing.T) {
	hub := NewHub(&fakeEngine{snap: quietSnapshot(0)}, okRisk(), 10)

	assert.False(t, hub.Active())
	hub.Start(nil)
	assert.True(t, hub.Active())
	assert.Equal(t, SessionRunning, hub.Session().Status)

	session := hub.Stop()
	assert.False(t, hub.Active())
	assert.Equal(t, SessionStopped, session.Status)
	assert.False(t, session.EndedAt.IsZero())
	assert.False(t, session.EndedAt.Before(session.StartedAt))
}

func TestHub_PollInactiveIsNoOp(t *testing.T) {
	hub := NewHub(&fakeEngine{snap: quietSnapshot(0)}, okRisk(), 10)
	update, err := hub.Poll(context.Background())
	require.NoError(t, err)
	assert.Nil(t, update)
}

func TestHub_PollRecordsUpdateAndNotifiesObserver(t *testing.T) {
	eng := &fakeEngine{
		snap:       quietSnapshot(0.2),
		pnl:        decimal.NewFromFloat(0.8),
		tradeCount: 4,
	}
	hub := NewHub(eng, okRisk(), 10)

	var observed []Update
	hub.Start(func(u Update) { observed = append(observed, u) })

	update, err := hub.Poll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, update)
	assert.True(t, update.RiskStatus)
	assert.Equal(t, 4, update.TradeCount)
	assert.True(t, update.ProfitLossPct.Equal(decimal.NewFromFloat(0.8)))

	require.Len(t, observed, 1, "observer is called synchronously once per poll")
	assert.Equal(t, *update, observed[0])
	require.NotNil(t, hub.LastUpdate())
	assert.Equal(t, *update, *hub.LastUpdate())
}

func TestHub_PollErrorIsContained(t *testing.T) {
	eng := &fakeEngine{snapErr: errors.New("gateway down")}
	hub := NewHub(eng, okRisk(), 10)
	hub.Start(nil)

	_, err := hub.Poll(context.Background())
	require.Error(t, err)
	assert.Nil(t, hub.LastUpdate(), "failed cycle must not record an update")

	// The loop keeps going: a later successful poll records normally.
	eng.snapErr = nil
	eng.snap = quietSnapshot(0)
	update, err := hub.Poll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, update)
}

func TestHub_CheckAlerts_PriceSwings(t *testing.T) {
	tests := []struct {
		name      string
		changePct float64
		count     int
		level     domain.AlertLevel
	}{
		{"SmallMoveNoAlert", 4.9, 0, domain.AlertInfo},
		{"FivePercentIsInfo", 5.0, 1, domain.AlertInfo},
		{"NegativeSwingCounts", -7.5, 1, domain.AlertInfo},
		{"TenPercentIsWarning", 10.0, 1, domain.AlertWarning},
		{"CrashIsWarning", -12.0, 1, domain.AlertWarning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewHub(&fakeEngine{}, okRisk(), 10)
			raised := hub.CheckAlerts(quietSnapshot(tt.changePct))
			require.Len(t, raised, tt.count)
			if tt.count > 0 {
				assert.Equal(t, domain.AlertTypePriceChange, raised[0].Type)
				assert.Equal(t, tt.level, raised[0].Level)
			}
		})
	}
}

func TestHub_CheckAlerts_RiskBreachesRaiseWarnings(t *testing.T) {
	risk := &fakeRisk{check: domain.RiskCheck{
		PositionSizeOK: true, DailyLossOK: false, TradeCountOK: false, Status: false,
	}}
	hub := NewHub(&fakeEngine{}, risk, 10)

	raised := hub.CheckAlerts(quietSnapshot(0))
	require.Len(t, raised, 2, "one warning per failed check")
	for _, alert := range raised {
		assert.Equal(t, domain.AlertTypeRiskLimit, alert.Type)
		assert.Equal(t, domain.AlertWarning, alert.Level)
	}
}

func TestHub_CheckAlerts_CriticalLoss(t *testing.T) {
	eng := &fakeEngine{pnl: decimal.NewFromFloat(-1.5)}
	hub := NewHub(eng, okRisk(), 10)

	raised := hub.CheckAlerts(quietSnapshot(0))
	require.Len(t, raised, 1)
	assert.Equal(t, domain.AlertTypeProfitLoss, raised[0].Type)
	assert.Equal(t, domain.AlertCritical, raised[0].Level)
}

func TestHub_AlertsFilterBySeverity(t *testing.T) {
	eng := &fakeEngine{pnl: decimal.NewFromFloat(-2.0)}
	hub := NewHub(eng, okRisk(), 10)

	hub.CheckAlerts(quietSnapshot(6.0))  // INFO
	hub.CheckAlerts(quietSnapshot(11.0)) // WARNING (+ CRITICAL pnl both times)

	all := hub.Alerts(domain.AlertInfo)
	warnings := hub.Alerts(domain.AlertWarning)
	criticals := hub.Alerts(domain.AlertCritical)

	assert.Len(t, all, 4)
	assert.Len(t, warnings, 3)
	assert.Len(t, criticals, 2)
}

func TestHub_AlertLogIsBounded(t *testing.T) {
	eng := &fakeEngine{pnl: decimal.NewFromFloat(-2.0)}
	hub := NewHub(eng, okRisk(), 3)

	for i := 0; i < 10; i++ {
		hub.CheckAlerts(quietSnapshot(0))
	}
	assert.Len(t, hub.Alerts(domain.AlertInfo), 3, "oldest alerts are dropped past the cap")
}

func TestHub_StartClearsPreviousAlerts(t *testing.T) {
	eng := &fakeEngine{pnl: decimal.NewFromFloat(-2.0)}
	hub := NewHub(eng, okRisk(), 10)
	hub.CheckAlerts(quietSnapshot(0))
	require.NotEmpty(t, hub.Alerts(domain.AlertInfo))

	hub.Start(nil)
	assert.Empty(t, hub.Alerts(domain.AlertInfo))
}

func TestHub_Report(t *testing.T) {
	eng := &fakeEngine{
		snap:       quietSnapshot(1.2),
		pnl:        decimal.NewFromFloat(-0.75),
		tradeCount: 6,
		position:   domain.Position{Side: domain.SideLong, EntryPrice: decimal.NewFromInt(50000)},
	}
	risk := okRisk()
	risk.check.Metrics.Level = domain.RiskMedium
	hub := NewHub(eng, risk, 10)

	report, err := hub.Report(context.Background(), "DAILY")
	require.NoError(t, err)
	assert.Equal(t, "DAILY", report.Type)
	assert.Equal(t, "-0.75%", report.Summary.TotalPnLPct)
	assert.Equal(t, 6, report.Summary.TradeCount)
	assert.Equal(t, domain.RiskMedium, report.Summary.RiskLevel)
	assert.Equal(t, domain.SideLong, report.Summary.ActivePosition)
	assert.Equal(t, 6, report.Performance.TotalTrades)
}
