package backtest

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGrid_Size(t *testing.T) {
	// 4 * 3 * 3 * 4 candidate combinations.
	assert.Equal(t, 144, DefaultGrid().size())
}

func TestGrid_CombinationsAreDeterministic(t *testing.T) {
	grid := Grid{
		MinPriceChange: decimals(0.3, 0.5),
		PositionSize:   decimals(0.001),
		StopLoss:       decimals(1.0),
		TakeProfit:     decimals(1.0, 2.0),
	}
	first := grid.combinations()
	second := grid.combinations()
	require.Equal(t, first, second)

	// min_price_change is the outermost loop, take_profit the innermost.
	assert.True(t, first[0].TakeProfitPct.Equal(decimal.NewFromFloat(1.0)))
	assert.True(t, first[1].TakeProfitPct.Equal(decimal.NewFromFloat(2.0)))
	assert.True(t, first[0].MinPriceChange.Equal(first[1].MinPriceChange))
}

func TestOptimize_BestIsNoWorseThanAnyCandidate(t *testing.T) {
	grid := Grid{
		MinPriceChange: decimals(0.3, 0.5),
		PositionSize:   decimals(0.001, 0.002),
		StopLoss:       decimals(0.5, 1.0),
		TakeProfit:     decimals(1.0, 2.0),
	}
	candles := hourly(t,
		[2]float64{50000, 51000},
		[2]float64{51000, 49500},
		[2]float64{49500, 50200},
	)

	res, err := Optimize(context.Background(), Config{Symbol: "BTCUSDT"}, candles, grid)
	require.NoError(t, err)
	require.Len(t, res.All, grid.size())

	for _, cand := range res.All {
		assert.True(t, res.Best.FinalPnLPct.GreaterThanOrEqual(cand.FinalPnLPct),
			"best %s must be >= candidate %s", res.Best.FinalPnLPct, cand.FinalPnLPct)
	}
}

func TestOptimize_TiesKeepFirstSeenCombination(t *testing.T) {
	grid := Grid{
		MinPriceChange: decimals(0.3, 0.5),
		PositionSize:   decimals(0.001),
		StopLoss:       decimals(1.0),
		TakeProfit:     decimals(2.0),
	}
	// Parity-ratio candles give every combination identical (zero) P&L,
	// so the winner must be the first enumerated combination.
	candles := hourly(t, [2]float64{50000, 50500})

	res, err := Optimize(context.Background(), Config{Symbol: "BTCUSDT"}, candles, grid)
	require.NoError(t, err)
	assert.True(t, res.Best.Params.MinPriceChange.Equal(decimal.NewFromFloat(0.3)),
		"first-seen combination wins ties, got %s", res.Best.Params.MinPriceChange)
}

func TestOptimize_EmptyGridRejected(t *testing.T) {
	_, err := Optimize(context.Background(), Config{Symbol: "BTCUSDT"},
		hourly(t, [2]float64{50000, 50100}), Grid{})
	require.Error(t, err)
}

func TestOptimize_IsolatedRunsDoNotLeakState(t *testing.T) {
	grid := Grid{
		MinPriceChange: decimals(0.5),
		PositionSize:   decimals(0.001, 0.002, 0.003),
		StopLoss:       decimals(1.0),
		TakeProfit:     decimals(2.0),
	}
	candles := hourly(t,
		[2]float64{50000, 50100},
		[2]float64{50100, 50000},
	)

	res, err := Optimize(context.Background(), Config{Symbol: "BTCUSDT"}, candles, grid)
	require.NoError(t, err)
	for _, cand := range res.All {
		assert.Zero(t, cand.TradeCount, "each run starts from a reset engine")
	}
	assert.False(t, res.Best.Params.PositionSize.IsZero())
}
