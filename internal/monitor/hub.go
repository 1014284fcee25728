package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"cointrader/internal/domain"
	"cointrader/internal/engine"
	"cointrader/internal/infra"
)

// SessionStatus tracks the monitoring session lifecycle.
type SessionStatus string

const (
	SessionRunning SessionStatus = "RUNNING"
	SessionStopped SessionStatus = "STOPPED"
)

// Session is one monitoring run, from Start to Stop.
type Session struct {
	StartedAt time.Time     `json:"start_time"`
	EndedAt   time.Time     `json:"end_time,omitzero"`
	Status    SessionStatus `json:"status"`
}

// Update is one polling cycle's record.
type Update struct {
	Timestamp     time.Time       `json:"timestamp"`
	Snapshot      domain.Snapshot `json:"market_data"`
	Position      domain.Position `json:"position"`
	ProfitLossPct decimal.Decimal `json:"profit_loss"`
	RiskStatus    bool            `json:"risk_status"`
	TradeCount    int             `json:"trade_count"`
}

// Observer receives each update synchronously from Poll. A single
// observer, no queueing; a slow observer delays the cycle.
type Observer func(Update)

// EngineView is the read side of the engine the hub observes.
type EngineView interface {
	AnalyzeMarket(ctx context.Context) (domain.Snapshot, error)
	Position() domain.Position
	ProfitLossPct() decimal.Decimal
	TradeCount() int
	Metrics() engine.PerformanceMetrics
}

// RiskChecker evaluates session limits.
type RiskChecker interface {
	CheckLimits() domain.RiskCheck
}

var (
	priceSwingNotice  = decimal.NewFromFloat(5.0)
	priceSwingWarning = decimal.NewFromFloat(10.0)
	criticalPnL       = decimal.NewFromFloat(-1.5)
)

const defaultMaxAlerts = 1000

// Hub polls engine state on an external cadence, records the latest
// update and accumulates alerts. It does not self-schedule; the caller
// drives Poll from its own ticker.
type Hub struct {
	eng     EngineView
	risk    RiskChecker
	breaker *infra.CircuitBreaker

	maxAlerts int

	mu         sync.Mutex
	active     bool
	session    Session
	lastUpdate *Update
	observer   Observer
	alerts     []domain.Alert
}

// NewHub wires a hub to an engine view and a risk checker. maxAlerts
// bounds the alert log; oldest entries are dropped past the cap.
func NewHub(eng EngineView, risk RiskChecker, maxAlerts int) *Hub {
	if maxAlerts <= 0 {
		maxAlerts = defaultMaxAlerts
	}
	return &Hub{
		eng:       eng,
		risk:      risk,
		breaker:   infra.NewCircuitBreaker("market-data"),
		maxAlerts: maxAlerts,
	}
}

// Start opens a monitoring session. The previous alert log is cleared.
func (h *Hub) Start(observer Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active = true
	h.observer = observer
	h.session = Session{StartedAt: time.Now(), Status: SessionRunning}
	h.lastUpdate = nil
	h.alerts = nil
	slog.Info("Monitoring started")
}

// Stop finalizes the session and returns it.
func (h *Hub) Stop() Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active = false
	h.session.Status = SessionStopped
	h.session.EndedAt = time.Now()
	slog.Info("Monitoring stopped")
	return h.session
}

// Active reports whether a session is running.
func (h *Hub) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// Session returns the current session record.
func (h *Hub) Session() Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

// LastUpdate returns the most recent cycle record, or nil before the
// first successful poll.
func (h *Hub) LastUpdate() *Update {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastUpdate
}

// Poll runs one monitoring cycle: snapshot, risk check, update record,
// observer callback, alert evaluation. Inactive hubs return (nil, nil).
// Failures are contained to the cycle; one bad snapshot never halts the
// polling loop.
func (h *Hub) Poll(ctx context.Context) (*Update, error) {
	if !h.Active() {
		return nil, nil
	}

	if !h.breaker.Allow() {
		return nil, fmt.Errorf("poll: market data circuit open")
	}
	snap, err := h.eng.AnalyzeMarket(ctx)
	if err != nil {
		h.breaker.RecordFailure()
		if h.breaker.State() == infra.BreakerOpen {
			h.addAlert(domain.AlertTypeGateway,
				"market data unavailable, circuit opened", domain.AlertWarning)
		}
		return nil, fmt.Errorf("poll: %w", err)
	}
	h.breaker.RecordSuccess()

	riskCheck := h.risk.CheckLimits()
	update := Update{
		Timestamp:     time.Now(),
		Snapshot:      snap,
		Position:      h.eng.Position(),
		ProfitLossPct: h.eng.ProfitLossPct(),
		RiskStatus:    riskCheck.Status,
		TradeCount:    h.eng.TradeCount(),
	}

	h.mu.Lock()
	h.lastUpdate = &update
	observer := h.observer
	h.mu.Unlock()

	if observer != nil {
		observer(update)
	}

	h.CheckAlerts(snap)
	return &update, nil
}

// CheckAlerts evaluates the alert conditions against one snapshot and
// appends every alert raised.
func (h *Hub) CheckAlerts(snap domain.Snapshot) []domain.Alert {
	var raised []domain.Alert

	swing := snap.PriceChangePct24h.Abs()
	if swing.GreaterThanOrEqual(priceSwingNotice) {
		level := domain.AlertInfo
		if swing.GreaterThanOrEqual(priceSwingWarning) {
			level = domain.AlertWarning
		}
		raised = append(raised, h.addAlert(domain.AlertTypePriceChange,
			fmt.Sprintf("large price move: %s%%", snap.PriceChangePct24h.StringFixed(2)), level))
	}

	riskCheck := h.risk.CheckLimits()
	for _, failed := range riskCheck.FailedChecks() {
		raised = append(raised, h.addAlert(domain.AlertTypeRiskLimit,
			fmt.Sprintf("risk limit exceeded: %s", failed), domain.AlertWarning))
	}

	pnl := h.eng.ProfitLossPct()
	if pnl.LessThanOrEqual(criticalPnL) {
		raised = append(raised, h.addAlert(domain.AlertTypeProfitLoss,
			fmt.Sprintf("heavy session loss: %s%%", pnl.StringFixed(2)), domain.AlertCritical))
	}
	return raised
}

func (h *Hub) addAlert(alertType, message string, level domain.AlertLevel) domain.Alert {
	alert := domain.Alert{
		Timestamp: time.Now(),
		Type:      alertType,
		Message:   message,
		Level:     level,
	}

	h.mu.Lock()
	h.alerts = append(h.alerts, alert)
	if len(h.alerts) > h.maxAlerts {
		h.alerts = h.alerts[len(h.alerts)-h.maxAlerts:]
	}
	h.mu.Unlock()

	slog.Info("Alert raised",
		slog.String("type", alertType),
		slog.String("level", level.String()),
		slog.String("message", message))
	return alert
}

// Alerts returns the alerts at or above the given severity.
func (h *Hub) Alerts(minLevel domain.AlertLevel) []domain.Alert {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []domain.Alert
	for _, alert := range h.alerts {
		if alert.Level >= minLevel {
			out = append(out, alert)
		}
	}
	return out
}
