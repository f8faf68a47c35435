// Package replay feeds recorded trade events back through the simulation
// queue in deterministic storage order.
package replay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"solana-copysim/internal/domain"
	"solana-copysim/internal/observability"
	"solana-copysim/internal/storage"
)

// Driver streams the [From, To] range from the event store into the
// simulation queue, tagging every event as a replay event. The optional
// wallet allowlist is applied in memory so the stream shape stays
// identical to the live path. The driver owns the write end of the queue
// and closes it when Run returns.
type Driver struct {
	store     storage.TradeEventStore
	queue     chan *domain.TradeEvent
	from      time.Time
	to        time.Time
	allowlist map[string]struct{}
	batchSize int
	logger    *log.Logger
}

// DriverOptions contains configuration for creating a replay Driver.
type DriverOptions struct {
	Store     storage.TradeEventStore
	Queue     chan *domain.TradeEvent
	From      time.Time
	To        time.Time
	Wallets   []string // optional allowlist; empty replays every trader
	BatchSize int      // cursor page size; default storage.DefaultStreamBatchSize
	Logger    *log.Logger
}

// NewDriver creates a new replay driver.
func NewDriver(opts DriverOptions) *Driver {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = storage.DefaultStreamBatchSize
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	var allowlist map[string]struct{}
	if len(opts.Wallets) > 0 {
		allowlist = make(map[string]struct{}, len(opts.Wallets))
		for _, wallet := range opts.Wallets {
			allowlist[wallet] = struct{}{}
		}
	}

	return &Driver{
		store:     opts.Store,
		queue:     opts.Queue,
		from:      opts.From,
		to:        opts.To,
		allowlist: allowlist,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Result contains statistics from one replay run.
type Result struct {
	EventsRead     int
	EventsEnqueued int
	EventsFiltered int
	Duration       time.Duration
}

// Run streams the configured range into the queue. Cancellation aborts
// the stream cleanly: the queue is closed and a nil error returned so the
// downstream reader can drain and finalize.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}
	defer close(d.queue)

	// The count is advisory sizing for the log line; the cursor is the
	// source of truth.
	total, err := d.store.CountByTimeRange(ctx, d.from, d.to)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return result, nil
		}
		return result, fmt.Errorf("count events: %w", err)
	}

	d.logger.Printf("[replay] starting: %s .. %s, %d events (batch size %d)",
		d.from.Format(time.RFC3339), d.to.Format(time.RFC3339), total, d.batchSize)

	cursor := d.store.StreamByTimeRange(ctx, d.from, d.to, d.batchSize)
	defer cursor.Close()

	for cursor.Next(ctx) {
		event := cursor.Event()
		result.EventsRead++

		if d.allowlist != nil {
			if _, ok := d.allowlist[event.Trader]; !ok {
				result.EventsFiltered++
				continue
			}
		}

		event.Source = domain.SourceReplay
		select {
		case d.queue <- event:
			result.EventsEnqueued++
			observability.SetQueueDepth(len(d.queue))
		case <-ctx.Done():
			result.Duration = time.Since(start)
			d.logger.Printf("[replay] canceled after %d events", result.EventsEnqueued)
			return result, nil
		}
	}

	if err := cursor.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			result.Duration = time.Since(start)
			d.logger.Printf("[replay] canceled after %d events", result.EventsEnqueued)
			return result, nil
		}
		return result, fmt.Errorf("stream events: %w", err)
	}

	result.Duration = time.Since(start)
	d.logger.Printf("[replay] done: read %d, enqueued %d, filtered %d in %v",
		result.EventsRead, result.EventsEnqueued, result.EventsFiltered, result.Duration)
	return result, nil
}
