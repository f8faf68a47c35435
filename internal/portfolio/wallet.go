// Package portfolio maintains the simulator's virtual wallet: spendable
// SOL, VWAP-averaged positions and realized performance counters. A wallet
// has exactly one mutating goroutine; there is no internal locking.
package portfolio

import (
	"log"
	"time"

	"github.com/shopspring/decimal"

	"solana-copysim/internal/domain"
)

// divPrecision is the number of fractional digits kept by divisions on the
// PnL path.
const divPrecision = 28

var hundred = decimal.NewFromInt(100)

// PriceFn resolves the current spot price for a mint, returning zero when
// no price is known.
type PriceFn func(mint string) decimal.Decimal

// Wallet wraps the virtual wallet state with the mutation rules of the
// simulation: buys merge into VWAP positions, sells realize proportional
// cost basis, drawdown tracks peak total value.
type Wallet struct {
	state  *domain.VirtualWallet
	logger *log.Logger
}

// NewWallet creates a wallet funded with initialSol. A nil logger falls
// back to the standard logger.
func NewWallet(initialSol decimal.Decimal, logger *log.Logger) *Wallet {
	if logger == nil {
		logger = log.Default()
	}
	return &Wallet{
		state:  domain.NewVirtualWallet(initialSol),
		logger: logger,
	}
}

// State returns the underlying wallet state. Callers must treat it as
// read-only; all mutation goes through the Wallet methods.
func (w *Wallet) State() *domain.VirtualWallet {
	return w.state
}

// RecordBuy applies a filled buy to the wallet: the SOL leg is deducted and
// the token leg merges into the position for mint. A buy the balance cannot
// cover is a logged no-op returning false; counters stay untouched.
func (w *Wallet) RecordBuy(mint string, solAmount, tokenAmount, vSolAtOpen decimal.Decimal, at time.Time) bool {
	if w.state.SolBalance.LessThan(solAmount) {
		w.logger.Printf("buy skipped: balance %s below %s for mint %s", w.state.SolBalance, solAmount, mint)
		return false
	}

	w.state.SolBalance = w.state.SolBalance.Sub(solAmount)
	w.state.TotalTradeCount++

	pos, ok := w.state.Positions[mint]
	if !ok {
		pos = &domain.Position{
			Mint:       mint,
			OpenedAt:   at,
			VSolAtOpen: vSolAtOpen,
		}
		w.state.Positions[mint] = pos
	}
	pos.TokenBalance = pos.TokenBalance.Add(tokenAmount)
	pos.TotalCostBasis = pos.TotalCostBasis.Add(solAmount)
	if pos.TokenBalance.IsPositive() {
		pos.AvgEntryPrice = pos.TotalCostBasis.DivRound(pos.TokenBalance, divPrecision)
	}
	pos.BuyCount++
	return true
}

// RecordSell applies a filled sell and returns the realized PnL. The sold
// quantity is clamped to the held balance; cost basis is released
// proportionally and the SOL credit scales by the same fraction, preserving
// the slippage-adjusted fill rate on partial sells. Selling without an open
// position returns zero and mutates nothing.
func (w *Wallet) RecordSell(mint string, requestedTokens, requestedSol decimal.Decimal, at time.Time) decimal.Decimal {
	pos, ok := w.state.Positions[mint]
	if !ok {
		w.logger.Printf("sell skipped: no open position for mint %s", mint)
		return decimal.Zero
	}

	soldTokens := decimal.Min(requestedTokens, pos.TokenBalance)
	proportionSold := decimal.Zero
	if pos.TokenBalance.IsPositive() {
		proportionSold = soldTokens.DivRound(pos.TokenBalance, divPrecision)
	}
	costBasisSold := pos.TotalCostBasis.Mul(proportionSold)

	actualSol := decimal.Zero
	if requestedTokens.IsPositive() {
		actualSol = requestedSol.Mul(soldTokens.DivRound(requestedTokens, divPrecision))
	}
	realizedPnL := actualSol.Sub(costBasisSold)

	w.state.SolBalance = w.state.SolBalance.Add(actualSol)
	pos.TokenBalance = pos.TokenBalance.Sub(soldTokens)
	pos.TotalCostBasis = pos.TotalCostBasis.Sub(costBasisSold)
	pos.SellCount++
	w.state.TotalTradeCount++

	w.state.TotalRealizedPnL = w.state.TotalRealizedPnL.Add(realizedPnL)
	if realizedPnL.IsPositive() {
		w.state.WinCount++
	} else {
		w.state.LossCount++
	}
	// Losses contribute negatively to cumulative ROI.
	if costBasisSold.IsPositive() {
		roi := realizedPnL.DivRound(costBasisSold, divPrecision).Mul(hundred)
		w.state.CumulativeROIPercent = w.state.CumulativeROIPercent.Add(roi)
	}

	if !pos.TokenBalance.IsPositive() {
		delete(w.state.Positions, mint)
	}
	return realizedPnL
}

// UnrealizedPnL marks open positions to market with priceFn and returns the
// aggregate difference against their cost basis.
func (w *Wallet) UnrealizedPnL(priceFn PriceFn) decimal.Decimal {
	total := decimal.Zero
	for mint, pos := range w.state.Positions {
		if !pos.TokenBalance.IsPositive() {
			continue
		}
		value := pos.TokenBalance.Mul(priceFn(mint))
		total = total.Add(value.Sub(pos.TotalCostBasis))
	}
	return total
}

// TotalValue returns spendable SOL plus the marked value of all open
// positions.
func (w *Wallet) TotalValue(priceFn PriceFn) decimal.Decimal {
	total := w.state.SolBalance
	for mint, pos := range w.state.Positions {
		if !pos.TokenBalance.IsPositive() {
			continue
		}
		total = total.Add(pos.TokenBalance.Mul(priceFn(mint)))
	}
	return total
}

// UpdateDrawdown advances the high-water mark and records the worst
// peak-to-trough decline seen so far.
func (w *Wallet) UpdateDrawdown(currentValue decimal.Decimal) {
	if currentValue.GreaterThan(w.state.HighWaterMark) {
		w.state.HighWaterMark = currentValue
	}
	if w.state.HighWaterMark.IsPositive() {
		ddPct := w.state.HighWaterMark.Sub(currentValue).
			DivRound(w.state.HighWaterMark, divPrecision).
			Mul(hundred)
		if ddPct.GreaterThan(w.state.MaxDrawdownPercent) {
			w.state.MaxDrawdownPercent = ddPct
		}
	}
}

// Reset discards all state and refunds the wallet with initialSol.
func (w *Wallet) Reset(initialSol decimal.Decimal) {
	w.state = domain.NewVirtualWallet(initialSol)
}
