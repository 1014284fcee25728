package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of the engine's single position.
type Side int

const (
	SideFlat Side = iota
	SideLong
	SideShort
)

func (s Side) String() string {
	switch s {
	case SideLong:
		return "LONG"
	case SideShort:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// SideFromString parses the persisted side name. Unknown values map to
// FLAT.
func SideFromString(s string) Side {
	switch s {
	case "LONG":
		return SideLong
	case "SHORT":
		return SideShort
	default:
		return SideFlat
	}
}

// Position is the engine's current exposure. Exactly one per engine
// instance; EntryPrice is set iff Side != FLAT.
type Position struct {
	Side       Side            `json:"side"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Size       decimal.Decimal `json:"size"`
	OpenedAt   time.Time       `json:"opened_at"`
}

// IsOpen reports whether a position is currently held.
func (p Position) IsOpen() bool {
	return p.Side != SideFlat
}

// UnrealizedPnLPct returns the percentage move from entry at the given
// price, sign-flipped for shorts. Zero when flat or entry is zero.
func (p Position) UnrealizedPnLPct(price decimal.Decimal) decimal.Decimal {
	if !p.IsOpen() || p.EntryPrice.IsZero() {
		return decimal.Zero
	}
	pct := price.Sub(p.EntryPrice).Div(p.EntryPrice).Mul(decimal.NewFromInt(100))
	if p.Side == SideShort {
		pct = pct.Neg()
	}
	return pct
}
