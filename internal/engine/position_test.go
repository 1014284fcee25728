package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"cointrader/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	price   decimal.Decimal
	summary domain.MarketSummary
	depth   domain.Depth
	err     error
}

func (s *stubSource) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return s.price, s.err
}

func (s *stubSource) GetMarketSummary(ctx context.Context, symbol string) (domain.MarketSummary, error) {
	return s.summary, s.err
}

func (s *stubSource) GetDepth(ctx context.Context, symbol string, levels int) (domain.Depth, error) {
	return s.depth, s.err
}

type stubGateway struct {
	orders []domain.OrderRequest
	err    error
}

func (g *stubGateway) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.orders = append(g.orders, req)
	return &domain.OrderResult{OrderID: int64(len(g.orders)), Symbol: req.Symbol, Status: "FILLED"}, nil
}

func (g *stubGateway) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	return g.err
}

type stubRecorder struct {
	records []domain.TradeRecord
	err     error
}

func (r *stubRecorder) RecordTrade(ctx context.Context, rec domain.TradeRecord) error {
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, rec)
	return nil
}

func newTestEngine(t *testing.T, cfg Config) *PositionEngine {
	t.Helper()
	if cfg.Symbol == "" {
		cfg.Symbol = "BTCUSDT"
	}
	if cfg.Params == (domain.StrategyParams{}) {
		cfg.Params = domain.DefaultStrategyParams()
	}
	eng, err := New(cfg)
	require.NoError(t, err)
	return eng
}

func snapAt(t *testing.T, price, changePct, ratio float64) domain.Snapshot {
	t.Helper()
	// Back out bid/ask volumes producing the desired ratio.
	ask := decimal.NewFromInt(100)
	bid := decimal.NewFromFloat(ratio).Mul(ask)
	return domain.NewSnapshot("BTCUSDT",
		decimal.NewFromFloat(price), decimal.NewFromFloat(changePct),
		decimal.NewFromInt(1000), bid, ask, time.Unix(1700000000, 0))
}

func TestEngine_OpensLongOnBullishSentiment(t *testing.T) {
	gw := &stubGateway{}
	eng := newTestEngine(t, Config{AutoTrading: true, Gateway: gw})

	snap := snapAt(t, 50000, 2.0, 1.5) // STRONG_BUY
	require.Equal(t, domain.SentimentStrongBuy, snap.Sentiment)

	res, err := eng.ProcessSnapshot(context.Background(), snap)
	require.NoError(t, err)
	assert.True(t, res.Opened)
	assert.Equal(t, domain.SideLong, eng.Position().Side)
	assert.True(t, eng.Position().EntryPrice.Equal(decimal.NewFromInt(50000)),
		"entry price must be the snapshot price")
	require.Len(t, gw.orders, 1)
	assert.Equal(t, domain.OrderSideBuy, gw.orders[0].Side)
	assert.True(t, gw.orders[0].Test)
}

func TestEngine_OpensShortOnBearishSentiment(t *testing.T) {
	eng := newTestEngine(t, Config{AutoTrading: true})

	res, err := eng.ProcessSnapshot(context.Background(), snapAt(t, 50000, -0.8, 0.95)) // SELL
	require.NoError(t, err)
	assert.True(t, res.Opened)
	assert.Equal(t, domain.SideShort, eng.Position().Side)
}

func TestEngine_NeutralSnapshotIsNoOp(t *testing.T) {
	eng := newTestEngine(t, Config{AutoTrading: true})

	res, err := eng.ProcessSnapshot(context.Background(), snapAt(t, 50000, 0.2, 1.0))
	require.NoError(t, err)
	assert.False(t, res.Opened)
	assert.Nil(t, res.Closed)
	assert.False(t, eng.Position().IsOpen())
}

func TestEngine_StopLossClosesLong(t *testing.T) {
	rec := &stubRecorder{}
	eng := newTestEngine(t, Config{AutoTrading: true, Recorder: rec})
	ctx := context.Background()

	_, err := eng.ProcessSnapshot(ctx, snapAt(t, 50000, 2.0, 1.5))
	require.NoError(t, err)
	require.Equal(t, domain.SideLong, eng.Position().Side)

	// 50000 -> 49400 is -1.2%, beyond the 1.0% stop.
	res, err := eng.ProcessSnapshot(ctx, snapAt(t, 49400, 2.0, 1.5))
	require.NoError(t, err)
	require.NotNil(t, res.Closed)
	assert.Equal(t, domain.CloseStopLoss, res.Closed.Reason)
	assert.True(t, res.Closed.PnLPct.Equal(decimal.RequireFromString("-1.2")),
		"pnl = %s", res.Closed.PnLPct)
	assert.False(t, eng.Position().IsOpen())
	require.Len(t, rec.records, 1)
}

func TestEngine_TakeProfitClosesLong(t *testing.T) {
	eng := newTestEngine(t, Config{AutoTrading: true})
	ctx := context.Background()

	_, err := eng.ProcessSnapshot(ctx, snapAt(t, 50000, 2.0, 1.5))
	require.NoError(t, err)

	// 50000 -> 51000 is +2.0%, at the take-profit threshold.
	res, err := eng.ProcessSnapshot(ctx, snapAt(t, 51000, 2.0, 1.5))
	require.NoError(t, err)
	require.NotNil(t, res.Closed)
	assert.Equal(t, domain.CloseTakeProfit, res.Closed.Reason)
	assert.True(t, res.Closed.PnLPct.Equal(decimal.NewFromInt(2)))
}

func TestEngine_ShortPnLSignsInverted(t *testing.T) {
	eng := newTestEngine(t, Config{AutoTrading: true})
	ctx := context.Background()

	_, err := eng.ProcessSnapshot(ctx, snapAt(t, 50000, -2.0, 0.8)) // STRONG_SELL
	require.NoError(t, err)
	require.Equal(t, domain.SideShort, eng.Position().Side)

	// Price falls 2%: a short gains 2%.
	res, err := eng.ProcessSnapshot(ctx, snapAt(t, 49000, -2.0, 0.8))
	require.NoError(t, err)
	require.NotNil(t, res.Closed)
	assert.Equal(t, domain.CloseTakeProfit, res.Closed.Reason)
	assert.True(t, res.Closed.PnLPct.Equal(decimal.NewFromInt(2)))
}

func TestEngine_StopLossWinsWhenBothSatisfied(t *testing.T) {
	// Both thresholds satisfiable at once needs pnl <= -SL and pnl >= TP,
	// i.e. a negative take-profit. Validate rejects that, so drive
	// exitSignal directly to pin down the stop-loss-first ordering.
	params := domain.StrategyParams{
		MinPriceChange: decimal.NewFromFloat(0.5),
		PositionSize:   decimal.NewFromFloat(0.001),
		StopLossPct:    decimal.NewFromFloat(1.0),
		TakeProfitPct:  decimal.NewFromFloat(-2.0),
	}
	eng := newTestEngine(t, Config{AutoTrading: true})
	eng.params = params
	eng.position = domain.Position{
		Side:       domain.SideLong,
		EntryPrice: decimal.NewFromInt(50000),
		Size:       params.PositionSize,
		OpenedAt:   time.Unix(1700000000, 0),
	}

	// -1.2% satisfies both pnl <= -1.0 and pnl >= -2.0.
	reason, ok := eng.exitSignal(decimal.NewFromInt(49400))
	require.True(t, ok)
	assert.Equal(t, domain.CloseStopLoss, reason)
}

func TestEngine_NoDirectLongToShortFlip(t *testing.T) {
	eng := newTestEngine(t, Config{AutoTrading: true})
	ctx := context.Background()

	_, err := eng.ProcessSnapshot(ctx, snapAt(t, 50000, 2.0, 1.5))
	require.NoError(t, err)
	require.Equal(t, domain.SideLong, eng.Position().Side)

	// Strongly bearish snapshot at an unchanged price: the long has no
	// exit trigger, so the cycle must not open a short.
	res, err := eng.ProcessSnapshot(ctx, snapAt(t, 50000, -2.0, 0.8))
	require.NoError(t, err)
	assert.False(t, res.Opened)
	assert.Nil(t, res.Closed)
	assert.Equal(t, domain.SideLong, eng.Position().Side)
}

func TestEngine_ObservationOnlyModeNeverTransitions(t *testing.T) {
	gw := &stubGateway{}
	eng := newTestEngine(t, Config{AutoTrading: false, Gateway: gw})

	res, err := eng.ProcessSnapshot(context.Background(), snapAt(t, 50000, 2.0, 1.5))
	require.NoError(t, err)
	assert.False(t, res.Opened)
	assert.False(t, eng.Position().IsOpen())
	assert.Empty(t, gw.orders)
	assert.Equal(t, domain.SentimentStrongBuy, res.Snapshot.Sentiment,
		"observation mode still returns the analysis")
}

func TestEngine_GatewayFailureLeavesStateUntouched(t *testing.T) {
	gw := &stubGateway{err: errors.New("upstream 502")}
	eng := newTestEngine(t, Config{AutoTrading: true, Gateway: gw})

	_, err := eng.ProcessSnapshot(context.Background(), snapAt(t, 50000, 2.0, 1.5))
	require.Error(t, err)
	assert.False(t, eng.Position().IsOpen(), "failed entry must not create a position")
	assert.Zero(t, eng.TradeCount())
}

func TestEngine_RecorderFailureDoesNotRollBackClose(t *testing.T) {
	rec := &stubRecorder{err: errors.New("disk full")}
	eng := newTestEngine(t, Config{AutoTrading: true, Recorder: rec})
	ctx := context.Background()

	_, err := eng.ProcessSnapshot(ctx, snapAt(t, 50000, 2.0, 1.5))
	require.NoError(t, err)
	res, err := eng.ProcessSnapshot(ctx, snapAt(t, 51000, 2.0, 1.5))
	require.NoError(t, err)
	require.NotNil(t, res.Closed)
	assert.False(t, eng.Position().IsOpen())
	assert.Len(t, eng.Trades(), 1, "ledger keeps the record even when persistence fails")
}

func TestEngine_ClosePositionAt_ForcedClose(t *testing.T) {
	eng := newTestEngine(t, Config{AutoTrading: true})
	ctx := context.Background()

	_, err := eng.ProcessSnapshot(ctx, snapAt(t, 50000, 2.0, 1.5))
	require.NoError(t, err)

	rec, err := eng.ClosePositionAt(ctx, decimal.NewFromInt(50100), domain.CloseBacktestEnd)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, domain.CloseBacktestEnd, rec.Reason)
	assert.False(t, eng.Position().IsOpen())

	// Closing again is a no-op.
	rec, err = eng.ClosePositionAt(ctx, decimal.NewFromInt(50100), domain.CloseBacktestEnd)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestEngine_CumulativePnLAndCounters(t *testing.T) {
	eng := newTestEngine(t, Config{AutoTrading: true})
	ctx := context.Background()

	// Round trip 1: long, +2%.
	eng.ProcessSnapshot(ctx, snapAt(t, 50000, 2.0, 1.5))
	eng.ProcessSnapshot(ctx, snapAt(t, 51000, 2.0, 1.5))
	// Round trip 2: long, -1.2%.
	eng.ProcessSnapshot(ctx, snapAt(t, 50000, 2.0, 1.5))
	eng.ProcessSnapshot(ctx, snapAt(t, 49400, 2.0, 1.5))

	assert.Equal(t, 4, eng.TradeCount(), "each open and close counts")
	assert.True(t, eng.ProfitLossPct().Equal(decimal.RequireFromString("0.8")),
		"cumulative pnl = %s", eng.ProfitLossPct())
	assert.Len(t, eng.Trades(), 2)
}

func TestEngine_UpdatePosition_UsesLiveSource(t *testing.T) {
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

	res, err := eng.UpdatePosition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentStrongBuy, res.Snapshot.Sentiment)
	assert.True(t, res.Opened)
}

func TestEngine_Reset(t *testing.T) {
	eng := newTestEngine(t, Config{AutoTrading: true})
	ctx := context.Background()
	eng.ProcessSnapshot(ctx, snapAt(t, 50000, 2.0, 1.5))
	eng.ProcessSnapshot(ctx, snapAt(t, 51000, 2.0, 1.5))

	eng.Reset()
	assert.False(t, eng.Position().IsOpen())
	assert.Zero(t, eng.TradeCount())
	assert.True(t, eng.ProfitLossPct().IsZero())
	assert.Empty(t, eng.Trades())
}

func TestNew_RejectsInvalidParams(t *testing.T) {
	_, err := New(Config{Symbol: "BTCUSDT", Params: domain.StrategyParams{
		PositionSize:  decimal.Zero,
		StopLossPct:   decimal.NewFromFloat(1.0),
		TakeProfitPct: decimal.NewFromFloat(2.0),
	}})
	require.Error(t, err)
}
