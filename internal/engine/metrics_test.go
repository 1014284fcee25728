package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cointrader/internal/domain"
)

func TestMetrics_EmptySession(t *testing.T) {
	eng := newTestEngine(t, Config{})
	m := eng.Metrics()
	assert.Zero(t, m.TotalTrades)
	assert.Zero(t, m.ClosedTrades)
	assert.True(t, m.WinRatePct.IsZero())
	assert.True(t, m.AvgPnLPct.IsZero())
	assert.Equal(t, domain.SideFlat, m.CurrentPosition)
}

func TestMetrics_WinRateAndAverages(t *testing.T) {
	eng := newTestEngine(t, Config{AutoTrading: true})
	ctx := context.Background()

	// Win: +2%. Loss: -1.2%.
	eng.ProcessSnapshot(ctx, snapAt(t, 50000, 2.0, 1.5))
	eng.ProcessSnapshot(ctx, snapAt(t, 51000, 2.0, 1.5))
	eng.ProcessSnapshot(ctx, snapAt(t, 50000, 2.0, 1.5))
	eng.ProcessSnapshot(ctx, snapAt(t, 49400, 2.0, 1.5))

	m := eng.Metrics()
	assert.Equal(t, 4, m.TotalTrades)
	assert.Equal(t, 2, m.ClosedTrades)
	assert.Equal(t, 1, m.WinningTrades)
	assert.Equal(t, 1, m.LosingTrades)
	assert.True(t, m.WinRatePct.Equal(decimal.NewFromInt(50)), "win rate = %s", m.WinRatePct)
	assert.True(t, m.TotalPnLPct.Equal(decimal.RequireFromString("0.8")))
	assert.True(t, m.AvgPnLPct.Equal(decimal.RequireFromString("0.4")))
}

func TestSimulateTrades_ForcesFinalClose(t *testing.T) {
	src := &stubSource{
		price: decimal.NewFromInt(50000),
		summary: domain.MarketSummary{
			Symbol:         "BTCUSDT",
			PriceChangePct: decimal.NewFromFloat(2.0),
			Volume:         decimal.NewFromInt(1000),
		},
		depth: domain.Depth{
			Bids: []domain.PriceLevel{{Price: decimal.NewFromInt(49999), Quantity: decimal.NewFromInt(150)}},
			Asks: []domain.PriceLevel{{Price: decimal.NewFromInt(50001), Quantity: decimal.NewFromInt(100)}},
		},
	}
	eng := newTestEngine(t, Config{AutoTrading: true, Source: src})

	// Bullish every cycle at a flat price: cycle 1 opens, later cycles
	// hold, the final close fires SIMULATION_END.
	m, err := eng.SimulateTrades(context.Background(), 3, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 2, m.TotalTrades, "one open plus the forced close")
	assert.False(t, eng.Position().IsOpen())

	trades := eng.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, domain.CloseSimulationEnd, trades[0].Reason)
}

func TestSimulateTrades_SourceErrorAborts(t *testing.T) {
	src := &stubSource{err: assert.AnError}
	eng := newTestEngine(t, Config{AutoTrading: true, Source: src})

	_, err := eng.SimulateTrades(context.Background(), 2, time.Millisecond)
	require.Error(t, err)
}
