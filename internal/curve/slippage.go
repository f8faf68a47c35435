package curve

import "github.com/shopspring/decimal"

// bpsScale converts a fraction to basis points and back.
var bpsScale = decimal.NewFromInt(10000)

// SlippageModel derives the slippage of a fill from its SOL size relative
// to curve depth. Fully deterministic: the same inputs always produce the
// same output.
type SlippageModel struct {
	BaseBps           decimal.Decimal // flat component, basis points
	PriceImpactFactor decimal.Decimal // scales the size/depth impact component
	MaxBps            decimal.Decimal // cap on applied slippage and rejection threshold
}

// TotalBps returns the slippage for a fill moving solAmount against vSol
// depth: capped is the value applied to fills, uncapped is the raw
// base+impact sum checked against the rejection threshold. When depth is
// unusable only the flat component applies.
func (m SlippageModel) TotalBps(solAmount, vSol decimal.Decimal) (capped, uncapped decimal.Decimal) {
	if !vSol.IsPositive() {
		return m.BaseBps, m.BaseBps
	}
	impact := solAmount.DivRound(vSol, divPrecision).Mul(m.PriceImpactFactor).Mul(bpsScale)
	uncapped = m.BaseBps.Add(impact)
	capped = decimal.Min(uncapped, m.MaxBps)
	return capped, uncapped
}

// Exceeds reports whether an uncapped slippage value breaches the model's
// threshold. Rejection is decided on the uncapped value, before clamping.
func (m SlippageModel) Exceeds(uncapped decimal.Decimal) bool {
	return uncapped.GreaterThan(m.MaxBps)
}

// ApplySlippage scales a raw fill amount down by totalBps. Used for the
// token leg of buys and the SOL leg of sells.
func ApplySlippage(raw, totalBps decimal.Decimal) decimal.Decimal {
	return raw.Mul(bpsScale.Sub(totalBps)).DivRound(bpsScale, divPrecision)
}
