package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDeriveSentiment(t *testing.T) {
	tests := []struct {
		name   string
		change float64
		ratio  float64
		want   Sentiment
	}{
		{"StrongBuy", 1.5, 1.2, SentimentStrongBuy},
		{"Buy", 0.7, 1.05, SentimentBuy},
		{"StrongSell", -1.5, 0.8, SentimentStrongSell},
		{"Sell", -0.7, 0.95, SentimentSell},
		{"Neutral", 0.1, 1.0, SentimentNeutral},
		// Boundaries are strict: exactly hitting a threshold does not qualify.
		{"ChangeExactlyOne", 1.0, 1.2, SentimentNeutral},
		{"RatioExactlyOnePointOne", 1.5, 1.1, SentimentBuy},
		{"ChangeExactlyHalf", 0.5, 1.2, SentimentNeutral},
		{"ChangeExactlyMinusOne", -1.0, 0.8, SentimentSell},
		{"RatioExactlyPointNine", -1.5, 0.9, SentimentSell},
		{"ChangeExactlyMinusHalf", -0.5, 0.8, SentimentNeutral},
		// Big move without order-book confirmation stays neutral.
		{"PumpWeakBook", 2.0, 0.5, SentimentNeutral},
		{"DumpStrongBook", -2.0, 1.5, SentimentNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveSentiment(decimal.NewFromFloat(tt.change), decimal.NewFromFloat(tt.ratio))
			if got != tt.want {
				t.Errorf("DeriveSentiment(%v, %v) = %v, want %v", tt.change, tt.ratio, got, tt.want)
			}
		})
	}
}

func TestNewSnapshot_GuardedRatio(t *testing.T) {
	snap := NewSnapshot("BTCUSDT",
		decimal.NewFromInt(50000),
		decimal.NewFromFloat(2.0),
		decimal.NewFromInt(1000),
		decimal.NewFromInt(10),
		decimal.Zero, // no asks at all
		testTime(t))

	if !snap.BuySellRatio.IsZero() {
		t.Errorf("expected zero ratio when ask volume is zero, got %s", snap.BuySellRatio)
	}
	if snap.Sentiment != SentimentNeutral {
		t.Errorf("zero ratio must not signal, got %v", snap.Sentiment)
	}
}

func TestSentiment_Direction(t *testing.T) {
	if !SentimentStrongBuy.Bullish() || !SentimentBuy.Bullish() {
		t.Error("buy sentiments should be bullish")
	}
	if !SentimentStrongSell.Bearish() || !SentimentSell.Bearish() {
		t.Error("sell sentiments should be bearish")
	}
	if SentimentNeutral.Bullish() || SentimentNeutral.Bearish() {
		t.Error("neutral should signal neither direction")
	}
}
