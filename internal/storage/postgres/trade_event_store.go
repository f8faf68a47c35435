package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-copysim/internal/domain"
	"solana-copysim/internal/storage"
)

// TradeEventStore implements storage.TradeEventStore using PostgreSQL.
type TradeEventStore struct {
	pool *Pool
}

// NewTradeEventStore creates a new TradeEventStore.
func NewTradeEventStore(pool *Pool) *TradeEventStore {
	return &TradeEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeEventStore = (*TradeEventStore)(nil)

var tradeEventLoadColumns = []string{
	"signature", "mint", "trader", "side",
	"token_amount", "sol_amount", "new_token_balance", "curve_key",
	"v_tokens_post", "v_sol_post", "market_cap_sol", "pool", "received_at",
}

// InsertBatch appends events via binary copy into a scratch table followed
// by an insert-from-select that ignores signature conflicts. Returns the
// count actually inserted; duplicates are silently skipped.
func (s *TradeEventStore) InsertBatch(ctx context.Context, events []*domain.TradeEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		CREATE TEMP TABLE trade_events_load
		(LIKE trade_events INCLUDING DEFAULTS)
		ON COMMIT DROP
	`)
	if err != nil {
		return 0, fmt.Errorf("create scratch table: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"trade_events_load"},
		tradeEventLoadColumns,
		pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
			e := events[i]
			return []any{
				e.Signature, e.Mint, e.Trader, string(e.Side),
				e.TokenAmount, e.SolAmount, e.NewTokenBalance, e.CurveKey,
				e.VTokensPost, e.VSolPost, e.MarketCapSol, e.Pool, e.ReceivedAt,
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copy into scratch table: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO trade_events (
			signature, mint, trader, side,
			token_amount, sol_amount, new_token_balance, curve_key,
			v_tokens_post, v_sol_post, market_cap_sol, pool, received_at
		)
		SELECT
			signature, mint, trader, side,
			token_amount, sol_amount, new_token_balance, curve_key,
			v_tokens_post, v_sol_post, market_cap_sol, pool, received_at
		FROM trade_events_load
		ON CONFLICT (signature) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("insert from scratch table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// StreamByTimeRange yields events with received_at in [from, to] ordered by
// (received_at, id), fetched in keyset-paginated pages of batchSize.
func (s *TradeEventStore) StreamByTimeRange(ctx context.Context, from, to time.Time, batchSize int) storage.EventCursor {
	return newEventCursor(s.pool, "", from, to, batchSize)
}

// StreamByTrader is StreamByTimeRange additionally filtered by trader.
func (s *TradeEventStore) StreamByTrader(ctx context.Context, trader string, from, to time.Time, batchSize int) storage.EventCursor {
	return newEventCursor(s.pool, trader, from, to, batchSize)
}

// CountByTimeRange returns the number of events with received_at in [from, to].
func (s *TradeEventStore) CountByTimeRange(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM trade_events
		WHERE received_at >= $1 AND received_at <= $2
	`, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count trade events: %w", err)
	}
	return count, nil
}

// scanTradeEvents reads all rows into TradeEvent values.
func scanTradeEvents(rows pgx.Rows) ([]*domain.TradeEvent, error) {
	var events []*domain.TradeEvent
	for rows.Next() {
		var e domain.TradeEvent
		err := rows.Scan(
			&e.ID, &e.Signature, &e.Mint, &e.Trader, &e.Side,
			&e.TokenAmount, &e.SolAmount, &e.NewTokenBalance, &e.CurveKey,
			&e.VTokensPost, &e.VSolPost, &e.MarketCapSol, &e.Pool,
			&e.ReceivedAt, &e.IngestedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
