package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one historical OHLCV bar.
type Candle struct {
	OpenTime time.Time       `json:"open_time"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"volume"`
}

// IntrabarChangePct is the open-to-close move in percent, used to build
// synthetic snapshots for offline replay. Zero when open is zero.
func (c Candle) IntrabarChangePct() decimal.Decimal {
	if c.Open.IsZero() {
		return decimal.Zero
	}
	return c.Close.Sub(c.Open).Div(c.Open).Mul(decimal.NewFromInt(100))
}
