package clickhouse

import (
	"context"
	"fmt"

	"solana-copysim/internal/domain"
)

// AnalyticsStore mirrors executed trades and snapshots into ClickHouse for
// dashboards. Writes are best-effort duplicates of the Postgres rows; the
// pipeline never depends on them.
type AnalyticsStore struct {
	conn *Conn
}

// NewAnalyticsStore creates a new AnalyticsStore.
func NewAnalyticsStore(conn *Conn) *AnalyticsStore {
	return &AnalyticsStore{conn: conn}
}

// InsertTrade mirrors one simulated trade.
func (s *AnalyticsStore) InsertTrade(ctx context.Context, trade *domain.SimulatedTrade) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO simulated_trades (
			session_id, source_signature, mint, side,
			sol_amount, token_amount, simulated_price, slippage_bps,
			delay_ms, executed_at, realized_pnl
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare trade batch: %w", err)
	}

	err = batch.Append(
		trade.SessionID,
		trade.SourceSignature,
		trade.Mint,
		string(trade.Side),
		trade.SolAmount,
		trade.TokenAmount,
		trade.SimulatedPrice,
		trade.SlippageBps,
		trade.DelayMs,
		trade.ExecutedAt,
		trade.RealizedPnL,
	)
	if err != nil {
		return fmt.Errorf("append trade: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send trade batch: %w", err)
	}
	return nil
}

// InsertSnapshot mirrors one performance snapshot.
func (s *AnalyticsStore) InsertSnapshot(ctx context.Context, snap *domain.PerformanceSnapshot) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO performance_snapshots (
			session_id, taken_at, total_trades, win_count, loss_count,
			win_rate_percent, avg_roi_percent, realized_pnl, unrealized_pnl,
			max_drawdown_percent, sol_balance, total_value_sol
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare snapshot batch: %w", err)
	}

	err = batch.Append(
		snap.SessionID,
		snap.TakenAt,
		int32(snap.TotalTrades),
		int32(snap.WinCount),
		int32(snap.LossCount),
		snap.WinRatePercent,
		snap.AvgROIPercent,
		snap.RealizedPnL,
		snap.UnrealizedPnL,
		snap.MaxDrawdownPercent,
		snap.SolBalance,
		snap.TotalValueSol,
	)
	if err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send snapshot batch: %w", err)
	}
	return nil
}
