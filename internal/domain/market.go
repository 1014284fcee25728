package domain

import "github.com/shopspring/decimal"

// MarketSummary is the 24h rolling statistics for a symbol.
type MarketSummary struct {
	Symbol           string          `json:"symbol"`
	PriceChange      decimal.Decimal `json:"price_change"`
	PriceChangePct   decimal.Decimal `json:"price_change_percent"`
	WeightedAvgPrice decimal.Decimal `json:"weighted_avg_price"`
	HighPrice        decimal.Decimal `json:"high_price"`
	LowPrice         decimal.Decimal `json:"low_price"`
	Volume           decimal.Decimal `json:"volume"`
	QuoteVolume      decimal.Decimal `json:"quote_volume"`
}

// PriceLevel is one order-book level.
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Depth is an order-book snapshot limited to the requested levels.
type Depth struct {
	Bids []PriceLevel `json:"bids"`
	Asks []PriceLevel `json:"asks"`
}

// BidVolume sums the quantity across all bid levels.
func (d Depth) BidVolume() decimal.Decimal {
	total := decimal.Zero
	for _, lvl := range d.Bids {
		total = total.Add(lvl.Quantity)
	}
	return total
}

// AskVolume sums the quantity across all ask levels.
func (d Depth) AskVolume() decimal.Decimal {
	total := decimal.Zero
	for _, lvl := range d.Asks {
		total = total.Add(lvl.Quantity)
	}
	return total
}
