package domain

import "github.com/shopspring/decimal"

// Sentiment is the discretized market-mood signal derived from 24h price
// momentum and the order-book buy/sell volume ratio.
type Sentiment int

const (
	SentimentNeutral Sentiment = iota
	SentimentBuy
	SentimentStrongBuy
	SentimentSell
	SentimentStrongSell
)

func (s Sentiment) String() string {
	switch s {
	case SentimentStrongBuy:
		return "STRONG_BUY"
	case SentimentBuy:
		return "BUY"
	case SentimentSell:
		return "SELL"
	case SentimentStrongSell:
		return "STRONG_SELL"
	default:
		return "NEUTRAL"
	}
}

// Bullish reports whether the sentiment calls for a long entry.
func (s Sentiment) Bullish() bool {
	return s == SentimentBuy || s == SentimentStrongBuy
}

// Bearish reports whether the sentiment calls for a short entry.
func (s Sentiment) Bearish() bool {
	return s == SentimentSell || s == SentimentStrongSell
}

// Classification thresholds. All comparisons are strict.
var (
	strongChange = decimal.NewFromFloat(1.0)
	mildChange   = decimal.NewFromFloat(0.5)
	strongRatio  = decimal.NewFromFloat(1.1)
	parityRatio  = decimal.NewFromFloat(1.0)
	weakRatio    = decimal.NewFromFloat(0.9)
)

// DeriveSentiment classifies market mood from the 24h price change (percent)
// and the bid/ask volume ratio. The mapping is deterministic:
//
//	change > 1.0  and ratio > 1.1 -> STRONG_BUY
//	change > 0.5  and ratio > 1.0 -> BUY
//	change < -1.0 and ratio < 0.9 -> STRONG_SELL
//	change < -0.5 and ratio < 1.0 -> SELL
//	otherwise                     -> NEUTRAL
func DeriveSentiment(priceChangePct, buySellRatio decimal.Decimal) Sentiment {
	switch {
	case priceChangePct.GreaterThan(strongChange) && buySellRatio.GreaterThan(strongRatio):
		return SentimentStrongBuy
	case priceChangePct.GreaterThan(mildChange) && buySellRatio.GreaterThan(parityRatio):
		return SentimentBuy
	case priceChangePct.LessThan(strongChange.Neg()) && buySellRatio.LessThan(weakRatio):
		return SentimentStrongSell
	case priceChangePct.LessThan(mildChange.Neg()) && buySellRatio.LessThan(parityRatio):
		return SentimentSell
	default:
		return SentimentNeutral
	}
}
