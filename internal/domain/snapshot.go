package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is one evaluation cycle's market observation. It is produced
// fresh per cycle and never mutated afterwards.
type Snapshot struct {
	Symbol            string          `json:"symbol"`
	CurrentPrice      decimal.Decimal `json:"current_price"`
	PriceChangePct24h decimal.Decimal `json:"price_change_24h"`
	Volume24h         decimal.Decimal `json:"volume_24h"`
	BidVolume         decimal.Decimal `json:"bid_volume"`
	AskVolume         decimal.Decimal `json:"ask_volume"`
	BuySellRatio      decimal.Decimal `json:"buy_sell_ratio"`
	Sentiment         Sentiment       `json:"sentiment"`
	ObservedAt        time.Time       `json:"observed_at"`
}

// NewSnapshot assembles a snapshot from raw observations. The buy/sell
// ratio is zero when ask volume is zero (guarded division), and sentiment
// is derived from the resulting ratio and 24h change.
func NewSnapshot(symbol string, price, changePct, volume, bidVol, askVol decimal.Decimal, at time.Time) Snapshot {
	ratio := decimal.Zero
	if askVol.IsPositive() {
		ratio = bidVol.Div(askVol)
	}
	return Snapshot{
		Symbol:            symbol,
		CurrentPrice:      price,
		PriceChangePct24h: changePct,
		Volume24h:         volume,
		BidVolume:         bidVol,
		AskVolume:         askVol,
		BuySellRatio:      ratio,
		Sentiment:         DeriveSentiment(changePct, ratio),
		ObservedAt:        at,
	}
}
