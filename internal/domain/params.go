package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// StrategyParams are the tunables of the entry/exit strategy. Immutable
// per backtest run; the optimizer varies them across candidate sets.
type StrategyParams struct {
	MinPriceChange decimal.Decimal `json:"min_price_change" yaml:"min_price_change"`
	PositionSize   decimal.Decimal `json:"position_size" yaml:"position_size"`
	StopLossPct    decimal.Decimal `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TakeProfitPct  decimal.Decimal `json:"take_profit_pct" yaml:"take_profit_pct"`
}

// DefaultStrategyParams mirrors the stock configuration: 0.5% minimum
// move, 0.001 BTC size, 1% stop loss, 2% take profit.
func DefaultStrategyParams() StrategyParams {
	return StrategyParams{
		MinPriceChange: decimal.NewFromFloat(0.5),
		PositionSize:   decimal.NewFromFloat(0.001),
		StopLossPct:    decimal.NewFromFloat(1.0),
		TakeProfitPct:  decimal.NewFromFloat(2.0),
	}
}

// Validate rejects parameter sets the engine cannot run with at all.
func (p StrategyParams) Validate() error {
	if !p.PositionSize.IsPositive() {
		return fmt.Errorf("position size must be positive, got %s", p.PositionSize)
	}
	if !p.StopLossPct.IsPositive() {
		return fmt.Errorf("stop loss must be positive, got %s", p.StopLossPct)
	}
	if !p.TakeProfitPct.IsPositive() {
		return fmt.Errorf("take profit must be positive, got %s", p.TakeProfitPct)
	}
	return nil
}

// Hazards reports configurations that are runnable but suspect. With
// take_profit < stop_loss both exit thresholds can be satisfiable in one
// evaluation; the engine checks stop loss first, so stop loss wins. That
// order is load-bearing and callers are warned rather than corrected.
func (p StrategyParams) Hazards() []string {
	var hazards []string
	if p.TakeProfitPct.LessThan(p.StopLossPct) {
		hazards = append(hazards, fmt.Sprintf(
			"take_profit (%s%%) below stop_loss (%s%%): stop loss is evaluated first and will win simultaneous triggers",
			p.TakeProfitPct, p.StopLossPct))
	}
	return hazards
}
