package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"solana-copysim/internal/domain"
)

// DefaultStreamBatchSize is the page size used by event cursors when the
// caller passes a non-positive batch size.
const DefaultStreamBatchSize = 500

// EventCursor iterates a stream of trade events lazily, fetching forward in
// bounded pages instead of materializing the full range. Next honors ctx
// cancellation; after Next returns false, Err explains whether the stream
// ended or failed. Close releases the cursor early.
type EventCursor interface {
	Next(ctx context.Context) bool
	Event() *domain.TradeEvent
	Err() error
	Close()
}

// TradeEventStore provides access to the append-only trade_events log.
type TradeEventStore interface {
	// InsertBatch appends events in bulk and returns the count actually
	// inserted. Events whose signature already exists are silently skipped.
	InsertBatch(ctx context.Context, events []*domain.TradeEvent) (int, error)

	// StreamByTimeRange yields events with received_at in [from, to],
	// ordered by (received_at, id), fetched in pages of batchSize.
	StreamByTimeRange(ctx context.Context, from, to time.Time, batchSize int) EventCursor

	// StreamByTrader is StreamByTimeRange additionally filtered by trader
	// equality.
	StreamByTrader(ctx context.Context, trader string, from, to time.Time, batchSize int) EventCursor

	// CountByTimeRange returns the number of events with received_at in
	// [from, to].
	CountByTimeRange(ctx context.Context, from, to time.Time) (int64, error)
}

// SimulatedTradeStore persists the pipeline's executed trades.
type SimulatedTradeStore interface {
	// Insert stores one simulated trade and assigns its ID.
	Insert(ctx context.Context, trade *domain.SimulatedTrade) error

	// GetBySession retrieves all trades of a session ordered by
	// (executed_at, id).
	GetBySession(ctx context.Context, sessionID string) ([]*domain.SimulatedTrade, error)
}

// SessionStore persists simulation session lifecycles.
type SessionStore interface {
	// Insert stores a new session. Returns ErrDuplicateKey if the ID exists.
	Insert(ctx context.Context, session *domain.SimulationSession) error

	// CloseSession finalizes a session with its end time and final balance.
	// Returns ErrNotFound if the session does not exist.
	CloseSession(ctx context.Context, id string, endedAt time.Time, finalSolBalance decimal.Decimal) error

	// GetByID retrieves a session. Returns ErrNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*domain.SimulationSession, error)
}

// SnapshotStore persists periodic performance snapshots.
type SnapshotStore interface {
	// Insert stores one snapshot and assigns its ID.
	Insert(ctx context.Context, snapshot *domain.PerformanceSnapshot) error

	// GetBySession retrieves all snapshots of a session ordered by
	// (taken_at, id).
	GetBySession(ctx context.Context, sessionID string) ([]*domain.PerformanceSnapshot, error)
}
