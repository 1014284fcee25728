package domain

import "time"

// AlertLevel orders alert severities: INFO < WARNING < CRITICAL.
type AlertLevel int

const (
	AlertInfo AlertLevel = iota
	AlertWarning
	AlertCritical
)

func (l AlertLevel) String() string {
	switch l {
	case AlertWarning:
		return "WARNING"
	case AlertCritical:
		return "CRITICAL"
	default:
		return "INFO"
	}
}

// Alert is one monitoring notification. Alerts accumulate in the hub's
// bounded in-memory log.
type Alert struct {
	Timestamp time.Time  `json:"timestamp"`
	Type      string     `json:"type"`
	Message   string     `json:"message"`
	Level     AlertLevel `json:"level"`
}

// Alert type tags.
const (
	AlertTypePriceChange = "PRICE_CHANGE"
	AlertTypeRiskLimit   = "RISK_LIMIT"
	AlertTypeProfitLoss  = "PROFIT_LOSS"
	AlertTypeGateway     = "GATEWAY"
)
