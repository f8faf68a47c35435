package domain

import "github.com/shopspring/decimal"

// TradeIntent is a fully-specified execution request handed to an
// Executor. Buys carry SolIn, sells carry TokensIn; the untagged field is
// zero.
type TradeIntent struct {
	Mint string // token mint address
	Side Side   // "buy" | "sell"

	SolIn    decimal.Decimal // SOL to spend, buys only
	TokensIn decimal.Decimal // tokens to sell, sells only

	MaxSlippageBps decimal.Decimal // reject the fill above this total slippage
	VTokens        decimal.Decimal // virtual token reserves to price against
	VSol           decimal.Decimal // virtual SOL reserves to price against

	SourceEventID   int64  // trade_events.id when known, 0 otherwise
	SourceSignature string // signature of the triggering event
	DelayMs         int64  // delay already applied before execution
}

// TradeExecutionResult is the outcome of executing a TradeIntent.
// A rejected fill is a successful execution with Success=false; transport
// or programming failures surface as errors instead.
type TradeExecutionResult struct {
	Success           bool            // false when the fill was rejected
	ActualTokenAmount decimal.Decimal // tokens filled after slippage
	ActualSolAmount   decimal.Decimal // SOL filled after slippage
	EffectivePrice    decimal.Decimal // ActualSolAmount / ActualTokenAmount, 0 when no tokens
	SlippageBps       decimal.Decimal // total slippage applied or computed at rejection
	ErrorReason       string          // populated only when Success is false
}
