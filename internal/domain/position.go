package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the simulator's open holding in one token.
// Positions live inside a VirtualWallet and are removed once fully sold.
type Position struct {
	Mint           string          // token mint address
	TokenBalance   decimal.Decimal // tokens currently held
	TotalCostBasis decimal.Decimal // cumulative SOL spent on the open balance
	AvgEntryPrice  decimal.Decimal // TotalCostBasis / TokenBalance while balance > 0
	OpenedAt       time.Time       // first buy time (UTC)
	VSolAtOpen     decimal.Decimal // virtual SOL reserves at first buy, reporting only
	BuyCount       int             // buys merged into this position
	SellCount      int             // sells taken from this position
}

// IsClosed reports whether the position holds no tokens.
func (p *Position) IsClosed() bool {
	return !p.TokenBalance.IsPositive()
}
