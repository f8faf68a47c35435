package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-copysim/internal/domain"
	"solana-copysim/internal/storage"
)

// SimulatedTradeStore implements storage.SimulatedTradeStore using PostgreSQL.
type SimulatedTradeStore struct {
	pool *Pool
}

// NewSimulatedTradeStore creates a new SimulatedTradeStore.
func NewSimulatedTradeStore(pool *Pool) *SimulatedTradeStore {
	return &SimulatedTradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SimulatedTradeStore = (*SimulatedTradeStore)(nil)

// Insert stores one simulated trade and assigns its ID.
func (s *SimulatedTradeStore) Insert(ctx context.Context, trade *domain.SimulatedTrade) error {
	query := `
		INSERT INTO simulated_trades (
			source_event_id, source_signature, session_id, mint, side,
			sol_amount, token_amount, simulated_price, slippage_bps, delay_ms,
			executed_at, v_tokens_at_execution, v_sol_at_execution, realized_pnl
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		trade.SourceEventID,
		trade.SourceSignature,
		trade.SessionID,
		trade.Mint,
		string(trade.Side),
		trade.SolAmount,
		trade.TokenAmount,
		trade.SimulatedPrice,
		trade.SlippageBps,
		trade.DelayMs,
		trade.ExecutedAt,
		trade.VTokensAtExecution,
		trade.VSolAtExecution,
		trade.RealizedPnL,
	).Scan(&trade.ID)
	if err != nil {
		return fmt.Errorf("insert simulated trade: %w", err)
	}
	return nil
}

// GetBySession retrieves all trades of a session ordered by (executed_at, id).
func (s *SimulatedTradeStore) GetBySession(ctx context.Context, sessionID string) ([]*domain.SimulatedTrade, error) {
	query := `
		SELECT id, source_event_id, source_signature, session_id, mint, side,
		       sol_amount, token_amount, simulated_price, slippage_bps, delay_ms,
		       executed_at, v_tokens_at_execution, v_sol_at_execution, realized_pnl
		FROM simulated_trades
		WHERE session_id = $1
		ORDER BY executed_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get simulated trades by session: %w", err)
	}
	defer rows.Close()

	return scanSimulatedTrades(rows)
}

// scanSimulatedTrades reads all rows into SimulatedTrade values.
func scanSimulatedTrades(rows pgx.Rows) ([]*domain.SimulatedTrade, error) {
	var trades []*domain.SimulatedTrade
	for rows.Next() {
		var t domain.SimulatedTrade
		err := rows.Scan(
			&t.ID, &t.SourceEventID, &t.SourceSignature, &t.SessionID, &t.Mint,
			&t.Side, &t.SolAmount, &t.TokenAmount, &t.SimulatedPrice,
			&t.SlippageBps, &t.DelayMs, &t.ExecutedAt,
			&t.VTokensAtExecution, &t.VSolAtExecution, &t.RealizedPnL,
		)
		if err != nil {
			return nil, fmt.Errorf("scan simulated trade: %w", err)
		}
		trades = append(trades, &t)
	}
	return trades, rows.Err()
}
