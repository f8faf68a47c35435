package replay

import (
	"context"
	"fmt"
	"log"

	"solana-copysim/internal/domain"
)

// Pass runs one complete simulation over the replay range against fresh
// state and returns the executed trades in order plus the final wallet.
type Pass func(ctx context.Context) ([]*domain.SimulatedTrade, *domain.VirtualWallet, error)

// Verifier checks that replaying a range is deterministic: two passes
// over the same recorded events must produce identical trade sequences
// and identical final wallets.
type Verifier struct {
	pass   Pass
	logger *log.Logger
}

// NewVerifier creates a verifier around a pass function.
func NewVerifier(pass Pass, logger *log.Logger) *Verifier {
	if logger == nil {
		logger = log.Default()
	}
	return &Verifier{pass: pass, logger: logger}
}

// Verify runs two passes and compares them field by field. The returned
// bool reports whether the passes matched; the error covers pass
// failures only, never mismatches.
func (v *Verifier) Verify(ctx context.Context) (bool, error) {
	v.logger.Println("[replay] verifying determinism with two passes...")

	trades1, wallet1, err := v.pass(ctx)
	if err != nil {
		return false, fmt.Errorf("first pass: %w", err)
	}

	trades2, wallet2, err := v.pass(ctx)
	if err != nil {
		return false, fmt.Errorf("second pass: %w", err)
	}

	if diff := diffTrades(trades1, trades2); diff != "" {
		v.logger.Printf("[replay] determinism violated: %s", diff)
		return false, nil
	}
	if diff := diffWallets(wallet1, wallet2); diff != "" {
		v.logger.Printf("[replay] determinism violated: %s", diff)
		return false, nil
	}

	v.logger.Printf("[replay] determinism verified: both passes produced %d identical trades", len(trades1))
	return true, nil
}

func diffTrades(a, b []*domain.SimulatedTrade) string {
	if len(a) != len(b) {
		return fmt.Sprintf("trade count %d vs %d", len(a), len(b))
	}
	for i := range a {
		if diff := diffTrade(i, a[i], b[i]); diff != "" {
			return diff
		}
	}
	return ""
}

// diffTrade compares every field except the ids scoped to one pass
// (store-assigned ID and the per-pass SessionID).
func diffTrade(i int, a, b *domain.SimulatedTrade) string {
	if a.SourceEventID != b.SourceEventID {
		return fmt.Sprintf("trade %d: source event id %d vs %d", i, a.SourceEventID, b.SourceEventID)
	}
	if a.SourceSignature != b.SourceSignature {
		return fmt.Sprintf("trade %d: source signature %s vs %s", i, a.SourceSignature, b.SourceSignature)
	}
	if a.Mint != b.Mint {
		return fmt.Sprintf("trade %d: mint %s vs %s", i, a.Mint, b.Mint)
	}
	if a.Side != b.Side {
		return fmt.Sprintf("trade %d: side %s vs %s", i, a.Side, b.Side)
	}
	if !a.SolAmount.Equal(b.SolAmount) {
		return fmt.Sprintf("trade %d: sol amount %s vs %s", i, a.SolAmount, b.SolAmount)
	}
	if !a.TokenAmount.Equal(b.TokenAmount) {
		return fmt.Sprintf("trade %d: token amount %s vs %s", i, a.TokenAmount, b.TokenAmount)
	}
	if !a.SimulatedPrice.Equal(b.SimulatedPrice) {
		return fmt.Sprintf("trade %d: simulated price %s vs %s", i, a.SimulatedPrice, b.SimulatedPrice)
	}
	if !a.SlippageBps.Equal(b.SlippageBps) {
		return fmt.Sprintf("trade %d: slippage %s vs %s", i, a.SlippageBps, b.SlippageBps)
	}
	if a.DelayMs != b.DelayMs {
		return fmt.Sprintf("trade %d: delay %d vs %d", i, a.DelayMs, b.DelayMs)
	}
	if !a.ExecutedAt.Equal(b.ExecutedAt) {
		return fmt.Sprintf("trade %d: executed at %s vs %s", i, a.ExecutedAt, b.ExecutedAt)
	}
	if !a.VTokensAtExecution.Equal(b.VTokensAtExecution) {
		return fmt.Sprintf("trade %d: v_tokens %s vs %s", i, a.VTokensAtExecution, b.VTokensAtExecution)
	}
	if !a.VSolAtExecution.Equal(b.VSolAtExecution) {
		return fmt.Sprintf("trade %d: v_sol %s vs %s", i, a.VSolAtExecution, b.VSolAtExecution)
	}
	if (a.RealizedPnL == nil) != (b.RealizedPnL == nil) {
		return fmt.Sprintf("trade %d: realized pnl presence differs", i)
	}
	if a.RealizedPnL != nil && !a.RealizedPnL.Equal(*b.RealizedPnL) {
		return fmt.Sprintf("trade %d: realized pnl %s vs %s", i, a.RealizedPnL, b.RealizedPnL)
	}
	return ""
}

func diffWallets(a, b *domain.VirtualWallet) string {
	if !a.SolBalance.Equal(b.SolBalance) {
		return fmt.Sprintf("wallet: sol balance %s vs %s", a.SolBalance, b.SolBalance)
	}
	if !a.TotalRealizedPnL.Equal(b.TotalRealizedPnL) {
		return fmt.Sprintf("wallet: realized pnl %s vs %s", a.TotalRealizedPnL, b.TotalRealizedPnL)
	}
	if !a.CumulativeROIPercent.Equal(b.CumulativeROIPercent) {
		return fmt.Sprintf("wallet: cumulative roi %s vs %s", a.CumulativeROIPercent, b.CumulativeROIPercent)
	}
	if a.TotalTradeCount != b.TotalTradeCount {
		return fmt.Sprintf("wallet: trade count %d vs %d", a.TotalTradeCount, b.TotalTradeCount)
	}
	if a.WinCount != b.WinCount {
		return fmt.Sprintf("wallet: win count %d vs %d", a.WinCount, b.WinCount)
	}
	if a.LossCount != b.LossCount {
		return fmt.Sprintf("wallet: loss count %d vs %d", a.LossCount, b.LossCount)
	}
	if !a.HighWaterMark.Equal(b.HighWaterMark) {
		return fmt.Sprintf("wallet: high water mark %s vs %s", a.HighWaterMark, b.HighWaterMark)
	}
	if !a.MaxDrawdownPercent.Equal(b.MaxDrawdownPercent) {
		return fmt.Sprintf("wallet: max drawdown %s vs %s", a.MaxDrawdownPercent, b.MaxDrawdownPercent)
	}
	if len(a.Positions) != len(b.Positions) {
		return fmt.Sprintf("wallet: open positions %d vs %d", len(a.Positions), len(b.Positions))
	}
	for mint, posA := range a.Positions {
		posB, ok := b.Positions[mint]
		if !ok {
			return fmt.Sprintf("wallet: position %s missing in second pass", mint)
		}
		if !posA.TokenBalance.Equal(posB.TokenBalance) {
			return fmt.Sprintf("position %s: token balance %s vs %s", mint, posA.TokenBalance, posB.TokenBalance)
		}
		if !posA.TotalCostBasis.Equal(posB.TotalCostBasis) {
			return fmt.Sprintf("position %s: cost basis %s vs %s", mint, posA.TotalCostBasis, posB.TotalCostBasis)
		}
		if !posA.AvgEntryPrice.Equal(posB.AvgEntryPrice) {
			return fmt.Sprintf("position %s: avg entry %s vs %s", mint, posA.AvgEntryPrice, posB.AvgEntryPrice)
		}
		if posA.BuyCount != posB.BuyCount || posA.SellCount != posB.SellCount {
			return fmt.Sprintf("position %s: trade counts (%d/%d) vs (%d/%d)",
				mint, posA.BuyCount, posA.SellCount, posB.BuyCount, posB.SellCount)
		}
	}
	return ""
}
