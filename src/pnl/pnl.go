package pnl

import (
	"github.com/shopspring/decimal"

	"tradeclient/src/model"
)

var hundred = decimal.NewFromInt(100)

// Result is the live indicative mark-to-market of an open position. It is
// display-only: the realized settlement amount follows the engine's fixed
// payout rules, not this figure.
type Result struct {
	Diff       decimal.Decimal // absolute PnL in quote currency
	Percentage decimal.Decimal // Diff relative to committed margin, in percent
	ROI        decimal.Decimal // price change scaled by leverage, in percent
}

func zeroed() Result {
	return Result{Diff: decimal.Zero, Percentage: decimal.Zero, ROI: decimal.Zero}
}

// Calculate maps a position and the current reference price to its unrealized
// PnL. A zero/unset entry or current price yields a zeroed result instead of
// a division by zero.
//
// Long:  diff = (current - entry) * notional / entry
// Short: sign-flipped.
// Automated: magnitude only; this mode never displays a negative PnL.
func Calculate(p *model.SimPosition, currentPrice decimal.Decimal) Result {
	if p == nil || p.EntryPrice.IsZero() || currentPrice.IsZero() {
		return zeroed()
	}
	if p.Margin.IsZero() {
		return zeroed()
	}

	priceDiff := currentPrice.Sub(p.EntryPrice)
	if p.Direction == model.DirectionShort {
		priceDiff = priceDiff.Neg()
	}

	diff := priceDiff.Mul(p.Notional).Div(p.EntryPrice)
	roi := priceDiff.Div(p.EntryPrice).Mul(decimal.NewFromInt(int64(p.Leverage))).Mul(hundred)

	if p.Direction == model.DirectionAutomated {
		diff = diff.Abs()
		roi = roi.Abs()
	}

	return Result{
		Diff:       diff,
		Percentage: diff.Div(p.Margin).Mul(hundred),
		ROI:        roi,
	}
}
