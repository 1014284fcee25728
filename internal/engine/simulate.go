package engine

import (
	"context"
	"log/slog"
	"time"

	"cointrader/internal/domain"
)

// SimulateTrades runs a bounded number of live evaluation cycles against
// the configured market data source, then force-closes any remaining
// position at the last observed price. Single data-source errors abort
// the run; ctx cancellation ends it early with a clean close attempt.
func (e *PositionEngine) SimulateTrades(ctx context.Context, cycles int, interval time.Duration) (PerformanceMetrics, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; i < cycles; i++ {
		res, err := e.UpdatePosition(ctx)
		if err != nil {
			return e.Metrics(), err
		}
		slog.Debug("Simulation cycle",
			slog.Int("cycle", i+1),
			slog.String("sentiment", res.Snapshot.Sentiment.String()),
			slog.String("position", res.Position.Side.String()))

		if i == cycles-1 {
			break
		}
		select {
		case <-ctx.Done():
			e.ClosePosition(context.WithoutCancel(ctx), domain.CloseSimulationEnd)
			return e.Metrics(), ctx.Err()
		case <-ticker.C:
		}
	}

	if _, err := e.ClosePosition(ctx, domain.CloseSimulationEnd); err != nil {
		return e.Metrics(), err
	}
	return e.Metrics(), nil
}
