package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-copysim/internal/domain"
	"solana-copysim/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert stores one snapshot and assigns its ID.
func (s *SnapshotStore) Insert(ctx context.Context, snapshot *domain.PerformanceSnapshot) error {
	query := `
		INSERT INTO performance_snapshots (
			session_id, taken_at, total_trades, win_count, loss_count,
			win_rate_percent, avg_roi_percent, realized_pnl, unrealized_pnl,
			max_drawdown_percent, sol_balance, total_value_sol
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		snapshot.SessionID,
		snapshot.TakenAt,
		snapshot.TotalTrades,
		snapshot.WinCount,
		snapshot.LossCount,
		snapshot.WinRatePercent,
		snapshot.AvgROIPercent,
		snapshot.RealizedPnL,
		snapshot.UnrealizedPnL,
		snapshot.MaxDrawdownPercent,
		snapshot.SolBalance,
		snapshot.TotalValueSol,
	).Scan(&snapshot.ID)
	if err != nil {
		return fmt.Errorf("insert performance snapshot: %w", err)
	}
	return nil
}

// GetBySession retrieves all snapshots of a session ordered by (taken_at, id).
func (s *SnapshotStore) GetBySession(ctx context.Context, sessionID string) ([]*domain.PerformanceSnapshot, error) {
	query := `
		SELECT id, session_id, taken_at, total_trades, win_count, loss_count,
		       win_rate_percent, avg_roi_percent, realized_pnl, unrealized_pnl,
		       max_drawdown_percent, sol_balance, total_value_sol
		FROM performance_snapshots
		WHERE session_id = $1
		ORDER BY taken_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get snapshots by session: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// scanSnapshots reads all rows into PerformanceSnapshot values.
func scanSnapshots(rows pgx.Rows) ([]*domain.PerformanceSnapshot, error) {
	var snapshots []*domain.PerformanceSnapshot
	for rows.Next() {
		var snap domain.PerformanceSnapshot
		err := rows.Scan(
			&snap.ID, &snap.SessionID, &snap.TakenAt, &snap.TotalTrades,
			&snap.WinCount, &snap.LossCount, &snap.WinRatePercent,
			&snap.AvgROIPercent, &snap.RealizedPnL, &snap.UnrealizedPnL,
			&snap.MaxDrawdownPercent, &snap.SolBalance, &snap.TotalValueSol,
		)
		if err != nil {
			return nil, fmt.Errorf("scan performance snapshot: %w", err)
		}
		snapshots = append(snapshots, &snap)
	}
	return snapshots, rows.Err()
}
