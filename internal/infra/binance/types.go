package binance

import "github.com/shopspring/decimal"

// Wire-level payloads. Binance sends numeric fields as strings; they are
// parsed into decimals at this boundary only.

type serverTimeResponse struct {
	ServerTime int64 `json:"serverTime"`
}

type tickerPriceResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type ticker24hResponse struct {
	Symbol             string `json:"symbol"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	WeightedAvgPrice   string `json:"weightedAvgPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`
	QuoteVolume        string `json:"quoteVolume"`
}

type depthResponse struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

type accountResponse struct {
	Balances []accountBalance `json:"balances"`
}

type accountBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// Account holds the parsed spot account balances.
type Account struct {
	Balances []AssetBalance `json:"balances"`
}

// AssetBalance is the parsed balance for one asset.
type AssetBalance struct {
	Asset  string          `json:"asset"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
	Total  decimal.Decimal `json:"total"`
}

// Trade is one fill from the account trade history.
type Trade struct {
	ID       int64  `json:"id"`
	Symbol   string `json:"symbol"`
	Price    string `json:"price"`
	Qty      string `json:"qty"`
	Time     int64  `json:"time"`
	IsBuyer  bool   `json:"isBuyer"`
	IsMaker  bool   `json:"isMaker"`
	OrderID  int64  `json:"orderId"`
	QuoteQty string `json:"quoteQty"`
}

// tradeEvent is one message from the <symbol>@trade stream. Only the
// price field is required; quantity and event time ride along.
type tradeEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
}
