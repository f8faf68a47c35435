// Package metrics derives performance numbers from the event stream and
// the wallet: a last-seen curve cache for mark-to-market pricing and
// periodic performance snapshots.
package metrics

import (
	"time"

	"github.com/shopspring/decimal"

	"solana-copysim/internal/curve"
	"solana-copysim/internal/domain"
	"solana-copysim/internal/portfolio"
)

const divPrecision = 28

var hundred = decimal.NewFromInt(100)

type curveState struct {
	vTokens decimal.Decimal
	vSol    decimal.Decimal
}

// Tracker caches the most recent virtual reserves per mint and projects
// wallet performance into snapshots. Owned by the processor goroutine; not
// safe for concurrent use.
type Tracker struct {
	curves map[string]curveState
}

// NewTracker creates a Tracker with an empty curve cache.
func NewTracker() *Tracker {
	return &Tracker{curves: make(map[string]curveState)}
}

// ObserveEvent records the reserves carried by an event. Every event feeds
// the cache, including events later filtered out of execution, because
// filtered trades still inform the pricing of open positions.
func (t *Tracker) ObserveEvent(event *domain.TradeEvent) {
	t.curves[event.Mint] = curveState{
		vTokens: event.VTokensPost,
		vSol:    event.VSolPost,
	}
}

// ResolveCurrentPrice returns the spot price from the last seen curve state
// for mint, or zero when the mint is unknown or its reserves are unusable.
func (t *Tracker) ResolveCurrentPrice(mint string) decimal.Decimal {
	state, ok := t.curves[mint]
	if !ok {
		return decimal.Zero
	}
	price, err := curve.SpotPrice(state.vTokens, state.vSol)
	if err != nil {
		return decimal.Zero
	}
	return price
}

// TrackedMintCount returns the number of mints with cached curve state.
func (t *Tracker) TrackedMintCount() int {
	return len(t.curves)
}

// TakeSnapshot freezes the wallet's performance into a snapshot for
// sessionID at the given time.
func (t *Tracker) TakeSnapshot(w *portfolio.Wallet, sessionID string, at time.Time) *domain.PerformanceSnapshot {
	state := w.State()
	closed := state.WinCount + state.LossCount

	winRate := decimal.Zero
	avgROI := decimal.Zero
	if closed > 0 {
		closedDec := decimal.NewFromInt(int64(closed))
		winRate = decimal.NewFromInt(int64(state.WinCount)).DivRound(closedDec, divPrecision).Mul(hundred)
		avgROI = state.CumulativeROIPercent.DivRound(closedDec, divPrecision)
	}

	return &domain.PerformanceSnapshot{
		SessionID:          sessionID,
		TakenAt:            at,
		TotalTrades:        state.TotalTradeCount,
		WinCount:           state.WinCount,
		LossCount:          state.LossCount,
		WinRatePercent:     winRate,
		AvgROIPercent:      avgROI,
		RealizedPnL:        state.TotalRealizedPnL,
		UnrealizedPnL:      w.UnrealizedPnL(t.ResolveCurrentPrice),
		MaxDrawdownPercent: state.MaxDrawdownPercent,
		SolBalance:         state.SolBalance,
		TotalValueSol:      w.TotalValue(t.ResolveCurrentPrice),
	}
}

// Reset clears the curve cache.
func (t *Tracker) Reset() {
	t.curves = make(map[string]curveState)
}
