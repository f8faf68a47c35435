// Package curve implements constant-product pricing and deterministic
// slippage for bonding-curve tokens. All arithmetic is fixed-point decimal;
// nothing on the price path touches binary floating point.
package curve

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Curve math errors. Events are validated before intents are built, so
// seeing one of these downstream indicates a programming defect.
var (
	ErrInvalidCurve = errors.New("invalid curve: non-positive token reserves")
	ErrInvalidInput = errors.New("invalid input: amounts and reserves must be positive")
)

// divPrecision is the number of fractional digits kept by divisions on the
// price path. It matches the widest numeric precision used in storage.
const divPrecision = 28

// SpotPrice returns the instantaneous price in SOL per token for virtual
// reserves (vTokens, vSol).
func SpotPrice(vTokens, vSol decimal.Decimal) (decimal.Decimal, error) {
	if !vTokens.IsPositive() {
		return decimal.Zero, ErrInvalidCurve
	}
	return vSol.DivRound(vTokens, divPrecision), nil
}

// TokensOut returns the tokens received for spending solIn against reserves
// (vTokens, vSol), holding the product vTokens*vSol constant. The result is
// clamped at zero.
func TokensOut(solIn, vTokens, vSol decimal.Decimal) (decimal.Decimal, error) {
	if !solIn.IsPositive() || !vTokens.IsPositive() || !vSol.IsPositive() {
		return decimal.Zero, ErrInvalidInput
	}
	k := vTokens.Mul(vSol)
	out := vTokens.Sub(k.DivRound(vSol.Add(solIn), divPrecision))
	if out.IsNegative() {
		return decimal.Zero, nil
	}
	return out, nil
}

// SolOut returns the SOL received for selling tokensIn against reserves
// (vTokens, vSol), holding the product vTokens*vSol constant. The result is
// clamped at zero.
func SolOut(tokensIn, vTokens, vSol decimal.Decimal) (decimal.Decimal, error) {
	if !tokensIn.IsPositive() || !vTokens.IsPositive() || !vSol.IsPositive() {
		return decimal.Zero, ErrInvalidInput
	}
	k := vTokens.Mul(vSol)
	out := vSol.Sub(k.DivRound(vTokens.Add(tokensIn), divPrecision))
	if out.IsNegative() {
		return decimal.Zero, nil
	}
	return out, nil
}
