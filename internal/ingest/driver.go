// Package ingest drives the live half of the pipeline: trade events from
// the websocket feed are appended in batches to the event store and
// simultaneously handed to the simulation queue.
package ingest

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"solana-copysim/internal/domain"
	"solana-copysim/internal/feed"
	"solana-copysim/internal/observability"
	"solana-copysim/internal/storage"
)

const (
	// DefaultBatchSize is the number of events collected before a flush.
	DefaultBatchSize = 50

	// DefaultFlushInterval bounds how long a partial batch may sit pending.
	DefaultFlushInterval = 100 * time.Millisecond

	// shutdownFlushTimeout bounds the final flush, which runs after the
	// driver's own context has already been canceled.
	shutdownFlushTimeout = 5 * time.Second
)

// State identifies where the driver is in its connect/receive cycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateReceiving
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateReceiving:
		return "receiving"
	default:
		return "unknown"
	}
}

// Feed is the slice of the feed client the driver needs.
type Feed interface {
	ConnectAndSubscribe(ctx context.Context, wallets []string) error
	Receive(ctx context.Context) (*domain.TradeEvent, error)
	Close() error
}

// Driver connects the feed to storage and the simulation queue. Every
// received event is appended to a local batch and enqueued; the batch is
// flushed when it reaches the batch size or when the flush interval
// elapses, whichever comes first. The driver owns the write end of the
// queue and closes it when Run returns.
type Driver struct {
	feed          Feed
	store         storage.TradeEventStore
	queue         chan *domain.TradeEvent
	wallets       []string
	backoff       *feed.Backoff
	batchSize     int
	flushInterval time.Duration
	logger        *log.Logger

	state atomic.Int32
	batch []*domain.TradeEvent
}

// DriverOptions contains configuration for creating a Driver.
type DriverOptions struct {
	Feed          Feed
	Store         storage.TradeEventStore
	Queue         chan *domain.TradeEvent
	Wallets       []string
	Backoff       *feed.Backoff // Default: 1s base, 30s max, 0.2 jitter
	BatchSize     int           // Default: DefaultBatchSize
	FlushInterval time.Duration // Default: DefaultFlushInterval
	Logger        *log.Logger
}

// NewDriver creates a new ingest driver.
func NewDriver(opts DriverOptions) *Driver {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	flushInterval := opts.FlushInterval
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}

	backoff := opts.Backoff
	if backoff == nil {
		backoff = feed.NewBackoff(1*time.Second, 30*time.Second, 0.2)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Driver{
		feed:          opts.Feed,
		store:         opts.Store,
		queue:         opts.Queue,
		wallets:       opts.Wallets,
		backoff:       backoff,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
		batch:         make([]*domain.TradeEvent, 0, batchSize),
	}
}

// State reports the current connection state.
func (d *Driver) State() State {
	return State(d.state.Load())
}

func (d *Driver) setState(s State) {
	d.state.Store(int32(s))
}

// Run drives the connect/subscribe/receive cycle until ctx is canceled.
// On return the pending batch is flushed, the feed connection is closed
// and the queue is closed so the downstream reader can drain and finalize.
func (d *Driver) Run(ctx context.Context) error {
	defer d.shutdown()

	d.logger.Printf("[ingest] starting: %d wallets, batch size %d, flush interval %v",
		len(d.wallets), d.batchSize, d.flushInterval)

	for {
		if ctx.Err() != nil {
			return nil
		}

		d.setState(StateConnecting)
		if err := d.feed.ConnectAndSubscribe(ctx, d.wallets); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.setState(StateDisconnected)
			if !d.waitRetry(ctx, err) {
				return nil
			}
			continue
		}
		d.setState(StateSubscribed)
		d.backoff.Reset()

		err := d.receive(ctx)
		d.setState(StateDisconnected)
		if ctx.Err() != nil {
			return nil
		}

		// Disconnected mid-stream: persist what we have before backing off.
		d.flush(ctx)
		if !d.waitRetry(ctx, err) {
			return nil
		}
	}
}

// waitRetry sleeps for the next backoff delay. It returns false when ctx
// was canceled during the wait.
func (d *Driver) waitRetry(ctx context.Context, cause error) bool {
	observability.RecordReconnect()
	delay := d.backoff.Next()
	d.logger.Printf("[ingest] reconnecting in %v (attempt %d): %v", delay, d.backoff.Attempt(), cause)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// receive pumps events from the feed until the transport fails or ctx is
// canceled. A reader goroutine feeds decoded events into a channel so the
// interval flush keeps firing even while the connection is quiet.
func (d *Driver) receive(ctx context.Context) error {
	events := make(chan *domain.TradeEvent)
	errc := make(chan error, 1)
	go func() {
		defer close(events)
		for {
			event, err := d.feed.Receive(ctx)
			if err != nil {
				errc <- err
				return
			}
			if event == nil {
				continue // service frame, duplicate or invalid
			}
			select {
			case events <- event:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()

	ticker := time.NewTicker(d.flushInterval)
	defer ticker.Stop()

	d.setState(StateReceiving)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.flush(ctx)
		case event, ok := <-events:
			if !ok {
				return <-errc
			}
			if err := d.handle(ctx, event); err != nil {
				return err
			}
		}
	}
}

// handle appends the event to the pending batch, flushing when full, then
// blocks handing it to the simulation queue. Back-pressure from a full
// queue stalls the feed instead of dropping events.
func (d *Driver) handle(ctx context.Context, event *domain.TradeEvent) error {
	d.batch = append(d.batch, event)
	if len(d.batch) >= d.batchSize {
		d.flush(ctx)
	}

	select {
	case d.queue <- event:
		observability.SetQueueDepth(len(d.queue))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// flush writes the pending batch to the event store. A failed flush drops
// the batch and keeps the pipeline moving: the events already live in the
// queue, so only durability is lost.
func (d *Driver) flush(ctx context.Context) {
	if len(d.batch) == 0 {
		return
	}

	inserted, err := d.store.InsertBatch(ctx, d.batch)
	observability.RecordBatchFlush(err)
	if err != nil {
		d.logger.Printf("[ingest] dropping batch of %d events: %v", len(d.batch), err)
	} else {
		observability.RecordEventsStored(inserted)
	}
	d.batch = d.batch[:0]
}

// shutdown runs after the main loop exits: flush the tail of the batch
// under a fresh context (the run context is already canceled), close the
// feed connection and close the queue.
func (d *Driver) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
	defer cancel()

	d.flush(ctx)
	if err := d.feed.Close(); err != nil {
		d.logger.Printf("[ingest] feed close: %v", err)
	}
	close(d.queue)
	d.setState(StateDisconnected)
	d.logger.Println("[ingest] stopped")
}
