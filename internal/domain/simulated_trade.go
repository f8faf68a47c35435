package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SimulatedTrade is one mirrored execution produced by the pipeline.
// Immutable once written. Corresponds to simulated_trades table in PostgreSQL.
type SimulatedTrade struct {
	ID              int64           // BIGSERIAL primary key
	SourceEventID   int64           // trade_events.id when known, 0 for live-mode events
	SourceSignature string          // signature of the triggering event, always set
	SessionID       string          // owning simulation session
	Mint            string          // token mint address
	Side            Side            // "buy" | "sell"
	SolAmount       decimal.Decimal // SOL actually spent (buy) or received (sell)
	TokenAmount     decimal.Decimal // tokens actually received (buy) or sold (sell)
	SimulatedPrice  decimal.Decimal // effective SOL per token for this fill
	SlippageBps     decimal.Decimal // total slippage applied, basis points
	DelayMs         int64           // execution delay applied before the fill
	ExecutedAt      time.Time       // fill time (UTC)

	// Curve state the fill was computed from
	VTokensAtExecution decimal.Decimal
	VSolAtExecution    decimal.Decimal

	// RealizedPnL is set on sells only.
	RealizedPnL *decimal.Decimal
}
