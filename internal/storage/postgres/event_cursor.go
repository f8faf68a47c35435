package postgres

import (
	"context"
	"fmt"
	"time"

	"solana-copysim/internal/domain"
	"solana-copysim/internal/storage"
)

// eventCursor pages through trade_events with keyset pagination on
// (received_at, id). Each page is one bounded query; the full range is
// never materialized.
type eventCursor struct {
	pool      *Pool
	trader    string // empty means no trader filter
	from, to  time.Time
	batchSize int

	afterReceived time.Time
	afterID       int64

	buf     []*domain.TradeEvent
	pos     int
	current *domain.TradeEvent
	done    bool
	err     error
}

var _ storage.EventCursor = (*eventCursor)(nil)

func newEventCursor(pool *Pool, trader string, from, to time.Time, batchSize int) *eventCursor {
	if batchSize <= 0 {
		batchSize = storage.DefaultStreamBatchSize
	}
	return &eventCursor{
		pool:      pool,
		trader:    trader,
		from:      from,
		to:        to,
		batchSize: batchSize,
	}
}

// Next advances to the next event, fetching the next page when the buffer
// is exhausted. Returns false at end of range, on error, or when ctx is
// canceled; Err distinguishes the cases.
func (c *eventCursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	if c.pos >= len(c.buf) {
		if c.done {
			return false
		}
		if err := c.fetch(ctx); err != nil {
			c.err = err
			return false
		}
		if len(c.buf) == 0 {
			return false
		}
	}
	c.current = c.buf[c.pos]
	c.pos++
	return true
}

func (c *eventCursor) fetch(ctx context.Context) error {
	query := `
		SELECT id, signature, mint, trader, side,
		       token_amount, sol_amount, new_token_balance, curve_key,
		       v_tokens_post, v_sol_post, market_cap_sol, pool,
		       received_at, ingested_at
		FROM trade_events
		WHERE received_at >= $1 AND received_at <= $2
		  AND (received_at, id) > ($3, $4)
	`
	args := []any{c.from, c.to, c.afterReceived, c.afterID}
	if c.trader != "" {
		query += ` AND trader = $5`
		args = append(args, c.trader)
	}
	query += fmt.Sprintf(` ORDER BY received_at ASC, id ASC LIMIT %d`, c.batchSize)

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("fetch event page: %w", err)
	}
	defer rows.Close()

	events, err := scanTradeEvents(rows)
	if err != nil {
		return fmt.Errorf("fetch event page: %w", err)
	}

	c.buf = events
	c.pos = 0
	if len(events) < c.batchSize {
		c.done = true
	}
	if len(events) > 0 {
		last := events[len(events)-1]
		c.afterReceived = last.ReceivedAt
		c.afterID = last.ID
	}
	return nil
}

// Event returns the event positioned by the last successful Next.
func (c *eventCursor) Event() *domain.TradeEvent {
	return c.current
}

// Err returns the first error encountered while paging, or nil.
func (c *eventCursor) Err() error {
	return c.err
}

// Close stops the cursor; subsequent Next calls return false.
func (c *eventCursor) Close() {
	c.done = true
	c.buf = nil
	c.pos = 0
}
