package domain

import "github.com/shopspring/decimal"

// VirtualWallet is the simulator's paper account: SOL balance, open
// positions and running performance counters. It is created at session
// start, mutated by exactly one goroutine and discarded at session end.
type VirtualWallet struct {
	SolBalance decimal.Decimal      // spendable SOL
	Positions  map[string]*Position // open positions keyed by mint

	// Running performance counters
	TotalRealizedPnL     decimal.Decimal // sum of realized PnL over all sells
	CumulativeROIPercent decimal.Decimal // sum of per-sell ROI percentages
	TotalTradeCount      int             // executed buys + sells
	WinCount             int             // sells with realized PnL > 0
	LossCount            int             // sells with realized PnL <= 0

	// Drawdown tracking
	HighWaterMark      decimal.Decimal // peak total value seen so far
	MaxDrawdownPercent decimal.Decimal // worst peak-to-trough decline
}

// NewVirtualWallet creates a wallet funded with the given SOL balance.
// The high-water mark starts at the initial balance.
func NewVirtualWallet(initialSol decimal.Decimal) *VirtualWallet {
	return &VirtualWallet{
		SolBalance:    initialSol,
		Positions:     make(map[string]*Position),
		HighWaterMark: initialSol,
	}
}

// Position returns the open position for mint, or nil.
func (w *VirtualWallet) Position(mint string) *Position {
	return w.Positions[mint]
}

// OpenPositionCount returns the number of open positions.
func (w *VirtualWallet) OpenPositionCount() int {
	return len(w.Positions)
}
