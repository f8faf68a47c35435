package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// String returns the string representation of Side.
func (s Side) String() string {
	return string(s)
}

// IsValid checks if the side is a valid value.
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// EventSource identifies which driver produced an event.
type EventSource string

const (
	SourceLive   EventSource = "live"
	SourceReplay EventSource = "replay"
)

// String returns the string representation of EventSource.
func (s EventSource) String() string {
	return string(s)
}

// PoolPump is the pool value of a token still trading on the bonding curve.
// Any other non-empty pool means the token has migrated to an external venue.
const PoolPump = "pump"

// TradeEvent is one observed third-party trade on a bonding curve.
// Corresponds to trade_events table in PostgreSQL.
type TradeEvent struct {
	ID              int64           // BIGSERIAL primary key, 0 until stored
	Signature       string          // transaction signature, globally unique
	Mint            string          // token mint address
	Trader          string          // wallet that made the trade
	Side            Side            // "buy" | "sell"
	TokenAmount     decimal.Decimal // tokens bought or sold
	SolAmount       decimal.Decimal // SOL paid or received
	NewTokenBalance decimal.Decimal // trader's token balance after the trade
	CurveKey        string          // bonding curve account address
	VTokensPost     decimal.Decimal // virtual token reserves after the trade
	VSolPost        decimal.Decimal // virtual SOL reserves after the trade
	MarketCapSol    decimal.Decimal // market cap in SOL as reported by the feed
	Pool            *string         // nil or "pump" while on curve; other values mean migrated
	ReceivedAt      time.Time       // stamped by the feed client at read time (UTC)
	IngestedAt      time.Time       // stamped by the store at insert time (UTC)

	// Source is runtime-only and never persisted.
	Source EventSource
}

// OnCurve reports whether the token was still on the bonding curve
// when the event was observed.
func (e *TradeEvent) OnCurve() bool {
	return e.Pool == nil || *e.Pool == PoolPump
}

// HasValidReserves reports whether the event carries usable curve state.
func (e *TradeEvent) HasValidReserves() bool {
	return e.VTokensPost.IsPositive() && e.VSolPost.IsPositive()
}
