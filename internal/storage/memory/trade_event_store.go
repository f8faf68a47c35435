// Package memory provides in-memory storage implementations used by tests
// and the --use-memory development mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-copysim/internal/domain"
	"solana-copysim/internal/storage"
)

// TradeEventStore is an in-memory implementation of storage.TradeEventStore.
type TradeEventStore struct {
	mu     sync.RWMutex
	events []*domain.TradeEvent
	bySig  map[string]struct{}
	nextID int64
}

// NewTradeEventStore creates a new in-memory trade event store.
func NewTradeEventStore() *TradeEventStore {
	return &TradeEventStore{
		bySig:  make(map[string]struct{}),
		nextID: 1,
	}
}

// Compile-time interface check.
var _ storage.TradeEventStore = (*TradeEventStore)(nil)

// InsertBatch appends events, silently skipping signatures already stored,
// and returns the count actually inserted.
func (s *TradeEventStore) InsertBatch(_ context.Context, events []*domain.TradeEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, event := range events {
		if event == nil || event.Signature == "" {
			return inserted, storage.ErrInvalidInput
		}
		if _, exists := s.bySig[event.Signature]; exists {
			continue
		}

		stored := *event
		stored.ID = s.nextID
		if stored.IngestedAt.IsZero() {
			stored.IngestedAt = time.Now().UTC()
		}
		s.nextID++
		s.events = append(s.events, &stored)
		s.bySig[stored.Signature] = struct{}{}
		inserted++
	}
	return inserted, nil
}

// StreamByTimeRange yields events with received_at in [from, to] ordered by
// (received_at, id).
func (s *TradeEventStore) StreamByTimeRange(_ context.Context, from, to time.Time, batchSize int) storage.EventCursor {
	return s.snapshotCursor("", from, to)
}

// StreamByTrader is StreamByTimeRange additionally filtered by trader.
func (s *TradeEventStore) StreamByTrader(_ context.Context, trader string, from, to time.Time, batchSize int) storage.EventCursor {
	return s.snapshotCursor(trader, from, to)
}

// CountByTimeRange returns the number of events with received_at in [from, to].
func (s *TradeEventStore) CountByTimeRange(_ context.Context, from, to time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, event := range s.events {
		if inRange(event.ReceivedAt, from, to) {
			count++
		}
	}
	return count, nil
}

// snapshotCursor copies the matching events under the read lock so the
// cursor stays stable against later inserts.
func (s *TradeEventStore) snapshotCursor(trader string, from, to time.Time) *eventCursor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.TradeEvent
	for _, event := range s.events {
		if !inRange(event.ReceivedAt, from, to) {
			continue
		}
		if trader != "" && event.Trader != trader {
			continue
		}
		clone := *event
		matched = append(matched, &clone)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].ReceivedAt.Equal(matched[j].ReceivedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].ReceivedAt.Before(matched[j].ReceivedAt)
	})
	return &eventCursor{events: matched}
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}

// eventCursor iterates a snapshot of matched events.
type eventCursor struct {
	events  []*domain.TradeEvent
	pos     int
	current *domain.TradeEvent
	err     error
	closed  bool
}

var _ storage.EventCursor = (*eventCursor)(nil)

// Next advances to the next event, honoring ctx cancellation.
func (c *eventCursor) Next(ctx context.Context) bool {
	if c.closed || c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if c.pos >= len(c.events) {
		return false
	}
	c.current = c.events[c.pos]
	c.pos++
	return true
}

// Event returns the event positioned by the last successful Next.
func (c *eventCursor) Event() *domain.TradeEvent {
	return c.current
}

// Err returns the first error encountered, or nil.
func (c *eventCursor) Err() error {
	return c.err
}

// Close stops the cursor.
func (c *eventCursor) Close() {
	c.closed = true
	c.events = nil
}
