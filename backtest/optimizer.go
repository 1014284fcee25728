package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/shopspring/decimal"

	"cointrader/internal/domain"
)

// Grid holds the candidate values for each strategy parameter. The
// search space is the Cartesian product of the four sets.
type Grid struct {
	MinPriceChange []decimal.Decimal
	PositionSize   []decimal.Decimal
	StopLoss       []decimal.Decimal
	TakeProfit     []decimal.Decimal
}

// DefaultGrid is the stock candidate set.
func DefaultGrid() Grid {
	return Grid{
		MinPriceChange: decimals(0.3, 0.5, 0.7, 1.0),
		PositionSize:   decimals(0.001, 0.002, 0.003),
		StopLoss:       decimals(0.5, 1.0, 1.5),
		TakeProfit:     decimals(1.0, 1.5, 2.0, 2.5),
	}
}

func decimals(vals ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func (g Grid) size() int {
	return len(g.MinPriceChange) * len(g.PositionSize) * len(g.StopLoss) * len(g.TakeProfit)
}

// combinations enumerates the product in a fixed order so that the
// first-seen tie-break is deterministic across runs.
func (g Grid) combinations() []domain.StrategyParams {
	combos := make([]domain.StrategyParams, 0, g.size())
	for _, mpc := range g.MinPriceChange {
		for _, size := range g.PositionSize {
			for _, sl := range g.StopLoss {
				for _, tp := range g.TakeProfit {
					combos = append(combos, domain.StrategyParams{
						MinPriceChange: mpc,
						PositionSize:   size,
						StopLossPct:    sl,
						TakeProfitPct:  tp,
					})
				}
			}
		}
	}
	return combos
}

// Candidate is one evaluated parameter combination.
type Candidate struct {
	Params      domain.StrategyParams `json:"parameters"`
	FinalPnLPct decimal.Decimal       `json:"profit"`
	TradeCount  int                   `json:"trades"`
}

// OptimizeResult is the grid-search outcome: the winner plus every
// combination's result for inspection.
type OptimizeResult struct {
	Best Candidate   `json:"best_parameters"`
	All  []Candidate `json:"all_results"`
}

// Optimize backtests every combination in the grid against the same
// candles. Combinations are independent; each runs on its own engine,
// fanned out over a bounded worker pool. The best combination is the
// one with the strictly highest final P&L; ties keep the first seen in
// enumeration order.
func Optimize(ctx context.Context, cfg Config, candles []domain.Candle, grid Grid) (OptimizeResult, error) {
	combos := grid.combinations()
	if len(combos) == 0 {
		return OptimizeResult{}, fmt.Errorf("optimize: empty grid")
	}

	results := make([]Candidate, len(combos))
	errs := make([]error, len(combos))

	workers := runtime.GOMAXPROCS(0)
	if workers > len(combos) {
		workers = len(combos)
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, params := range combos {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, params domain.StrategyParams) {
			defer wg.Done()
			defer func() { <-sem }()

			runCfg := cfg
			runCfg.Params = params
			res, err := Run(ctx, runCfg, candles)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = Candidate{
				Params:      params,
				FinalPnLPct: res.FinalPnLPct,
				TradeCount:  res.TradeCount,
			}
		}(i, params)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return OptimizeResult{}, err
		}
	}

	// Sequential scan preserves the first-seen tie-break regardless of
	// worker completion order.
	best := results[0]
	for _, cand := range results[1:] {
		if cand.FinalPnLPct.GreaterThan(best.FinalPnLPct) {
			best = cand
		}
	}

	slog.Info("Parameter optimization complete",
		slog.Int("combinations", len(combos)),
		slog.String("best_pnl_pct", best.FinalPnLPct.StringFixed(2)))
	return OptimizeResult{Best: best, All: results}, nil
}
