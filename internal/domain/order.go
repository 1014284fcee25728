package domain

import "github.com/shopspring/decimal"

// Order sides and types as the exchange spells them.
const (
	OrderSideBuy  = "BUY"
	OrderSideSell = "SELL"

	OrderTypeMarket = "MARKET"
	OrderTypeLimit  = "LIMIT"
)

// OrderRequest is a new-order submission. Test routes the order to the
// exchange's validation-only endpoint.
type OrderRequest struct {
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"`
	Type     string          `json:"type"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Test     bool            `json:"test"`
}

// OrderResult is the exchange's acknowledgement of a placed order.
type OrderResult struct {
	OrderID       int64           `json:"orderId"`
	ClientOrderID string          `json:"clientOrderId"`
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	Price         decimal.Decimal `json:"price"`
	ExecutedQty   decimal.Decimal `json:"executedQty"`
	TransactTime  int64           `json:"transactTime"`
}
