package ingest

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copysim/internal/domain"
	"solana-copysim/internal/feed"
	"solana-copysim/internal/storage/memory"
)

// fakeFeed implements a controllable feed for testing.
type fakeFeed struct {
	mu              sync.Mutex
	events          chan *domain.TradeEvent
	errs            chan error
	connects        int
	connectFailures int
	subscribed      []string
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		events: make(chan *domain.TradeEvent, 100),
		errs:   make(chan error, 10),
	}
}

func (f *fakeFeed) ConnectAndSubscribe(ctx context.Context, wallets []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectFailures > 0 {
		f.connectFailures--
		return errors.New("dial: connection refused")
	}
	f.subscribed = wallets
	return nil
}

func (f *fakeFeed) Receive(ctx context.Context) (*domain.TradeEvent, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-f.errs:
		return nil, err
	case event := <-f.events:
		return event, nil
	}
}

func (f *fakeFeed) Close() error { return nil }

func (f *fakeFeed) Send(event *domain.TradeEvent) {
	f.events <- event
}

func (f *fakeFeed) Fail(err error) {
	f.errs <- err
}

func (f *fakeFeed) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeFeed) Subscribed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribed
}

// flakyEventStore wraps the memory store and fails the first N InsertBatch
// calls.
type flakyEventStore struct {
	*memory.TradeEventStore
	mu       sync.Mutex
	failures int
}

func (s *flakyEventStore) InsertBatch(ctx context.Context, events []*domain.TradeEvent) (int, error) {
	s.mu.Lock()
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()
	if fail {
		return 0, errors.New("insert batch: connection reset")
	}
	return s.TradeEventStore.InsertBatch(ctx, events)
}

func driverEvent(sig string) *domain.TradeEvent {
	return &domain.TradeEvent{
		Signature:       sig,
		Mint:            "MintPump1111111111111111111111111111111111",
		Trader:          "TrackedWallet11111111111111111111111111111",
		Side:            domain.SideBuy,
		TokenAmount:     decimal.RequireFromString("32258064.516129"),
		SolAmount:       decimal.NewFromInt(1),
		NewTokenBalance: decimal.RequireFromString("32258064.516129"),
		CurveKey:        "CurveKey1111111111111111111111111111111111",
		VTokensPost:     decimal.RequireFromString("967741935.483871"),
		VSolPost:        decimal.NewFromInt(31),
		MarketCapSol:    decimal.RequireFromString("310.5"),
		ReceivedAt:      time.Now().UTC(),
		Source:          domain.SourceLive,
	}
}

func countStored(t *testing.T, store interface {
	CountByTimeRange(ctx context.Context, from, to time.Time) (int64, error)
}) int64 {
	t.Helper()
	count, err := store.CountByTimeRange(context.Background(), time.Time{}, time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return count
}

func recvEvent(t *testing.T, queue chan *domain.TradeEvent) *domain.TradeEvent {
	t.Helper()
	select {
	case event := <-queue:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for queued event")
		return nil
	}
}

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[test] ", log.LstdFlags)
}

func TestDriver_BatchSizeFlush(t *testing.T) {
	store := memory.NewTradeEventStore()
	queue := make(chan *domain.TradeEvent, 10)

	driver := NewDriver(DriverOptions{
		Feed:          newFakeFeed(),
		Store:         store,
		Queue:         queue,
		BatchSize:     2,
		FlushInterval: time.Hour, // never fires in this test
		Logger:        testLogger(),
	})

	ctx := context.Background()

	// First event stays batched but is enqueued immediately.
	require.NoError(t, driver.handle(ctx, driverEvent("BatchSig1")))
	assert.Equal(t, int64(0), countStored(t, store), "Batch should not flush below batch size")
	assert.Len(t, queue, 1)

	// Second event completes the batch and triggers the flush.
	require.NoError(t, driver.handle(ctx, driverEvent("BatchSig2")))
	assert.Equal(t, int64(2), countStored(t, store), "Full batch should flush")
	assert.Empty(t, driver.batch)
	assert.Len(t, queue, 2)

	first := recvEvent(t, queue)
	second := recvEvent(t, queue)
	assert.Equal(t, "BatchSig1", first.Signature)
	assert.Equal(t, "BatchSig2", second.Signature)
}

func TestDriver_FlushErrorDropsBatch(t *testing.T) {
	store := &flakyEventStore{TradeEventStore: memory.NewTradeEventStore(), failures: 1}
	queue := make(chan *domain.TradeEvent, 10)

	driver := NewDriver(DriverOptions{
		Feed:          newFakeFeed(),
		Store:         store,
		Queue:         queue,
		BatchSize:     1,
		FlushInterval: time.Hour,
		Logger:        testLogger(),
	})

	ctx := context.Background()

	// First flush fails: the batch is dropped, the event stays queued.
	require.NoError(t, driver.handle(ctx, driverEvent("FlakySig1")))
	assert.Equal(t, int64(0), countStored(t, store))
	assert.Empty(t, driver.batch, "Failed batch should be dropped, not retried")

	// The pipeline keeps going: the next flush succeeds.
	require.NoError(t, driver.handle(ctx, driverEvent("FlakySig2")))
	assert.Equal(t, int64(1), countStored(t, store))
	assert.Len(t, queue, 2, "Both events should be enqueued regardless of flush outcome")
}

func TestDriver_ShutdownFlushesAndClosesQueue(t *testing.T) {
	store := memory.NewTradeEventStore()
	queue := make(chan *domain.TradeEvent, 10)

	driver := NewDriver(DriverOptions{
		Feed:          newFakeFeed(),
		Store:         store,
		Queue:         queue,
		BatchSize:     100, // never reached
		FlushInterval: time.Hour,
		Logger:        testLogger(),
	})

	ctx := context.Background()
	require.NoError(t, driver.handle(ctx, driverEvent("ShutdownSig1")))
	assert.Equal(t, int64(0), countStored(t, store))

	driver.shutdown()

	assert.Equal(t, int64(1), countStored(t, store), "Pending batch should flush on shutdown")
	assert.Equal(t, StateDisconnected, driver.State())

	event, ok := <-queue
	require.True(t, ok)
	assert.Equal(t, "ShutdownSig1", event.Signature)

	_, ok = <-queue
	assert.False(t, ok, "Queue should be closed after shutdown")
}

func TestDriver_RunIntervalFlush(t *testing.T) {
	fake := newFakeFeed()
	store := memory.NewTradeEventStore()
	queue := make(chan *domain.TradeEvent, 10)

	driver := NewDriver(DriverOptions{
		Feed:          fake,
		Store:         store,
		Queue:         queue,
		Wallets:       []string{"WalletA"},
		BatchSize:     100, // force the interval path
		FlushInterval: 20 * time.Millisecond,
		Logger:        testLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- driver.Run(ctx) }()

	fake.Send(driverEvent("IntervalSig1"))

	require.Eventually(t, func() bool {
		return countStored(t, store) == 1
	}, 2*time.Second, 10*time.Millisecond, "Partial batch should flush on the interval")
	assert.Equal(t, StateReceiving, driver.State())
	assert.Equal(t, []string{"WalletA"}, fake.Subscribed())

	cancel()
	require.NoError(t, <-done)
}

func TestDriver_RunReconnectsAfterConnectFailure(t *testing.T) {
	fake := newFakeFeed()
	fake.connectFailures = 2
	store := memory.NewTradeEventStore()
	queue := make(chan *domain.TradeEvent, 10)
	backoff := feed.NewBackoff(time.Millisecond, 5*time.Millisecond, 0)

	driver := NewDriver(DriverOptions{
		Feed:          fake,
		Store:         store,
		Queue:         queue,
		Backoff:       backoff,
		BatchSize:     1,
		FlushInterval: time.Hour,
		Logger:        testLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- driver.Run(ctx) }()

	fake.Send(driverEvent("ReconnectSig1"))
	event := recvEvent(t, queue)
	assert.Equal(t, "ReconnectSig1", event.Signature)

	assert.Equal(t, 3, fake.Connects(), "Two failed attempts, then success")
	assert.Equal(t, 0, backoff.Attempt(), "Backoff should reset after a successful subscribe")

	cancel()
	require.NoError(t, <-done)
}

func TestDriver_RunDisconnectFlushesBeforeRetry(t *testing.T) {
	fake := newFakeFeed()
	store := memory.NewTradeEventStore()
	queue := make(chan *domain.TradeEvent, 10)

	driver := NewDriver(DriverOptions{
		Feed:  fake,
		Store: store,
		Queue: queue,
		// A huge backoff: if the flush waited for the retry sleep, the
		// event would never become visible within the test window.
		Backoff:       feed.NewBackoff(time.Hour, time.Hour, 0),
		BatchSize:     100,
		FlushInterval: time.Hour,
		Logger:        testLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- driver.Run(ctx) }()

	fake.Send(driverEvent("DisconnectSig1"))
	recvEvent(t, queue)
	assert.Equal(t, int64(0), countStored(t, store))

	fake.Fail(errors.New("read frame: connection reset"))

	require.Eventually(t, func() bool {
		return countStored(t, store) == 1
	}, 2*time.Second, 10*time.Millisecond, "Disconnect should flush before the backoff sleep")

	cancel()
	require.NoError(t, <-done)
}

func TestDriver_RunQueueBackpressure(t *testing.T) {
	fake := newFakeFeed()
	store := memory.NewTradeEventStore()
	queue := make(chan *domain.TradeEvent, 1)

	driver := NewDriver(DriverOptions{
		Feed:          fake,
		Store:         store,
		Queue:         queue,
		BatchSize:     1,
		FlushInterval: time.Hour,
		Logger:        testLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- driver.Run(ctx) }()

	fake.Send(driverEvent("PressureSig1"))
	fake.Send(driverEvent("PressureSig2"))
	fake.Send(driverEvent("PressureSig3"))

	// The second event flushes, then its enqueue blocks on the full queue.
	require.Eventually(t, func() bool {
		return countStored(t, store) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// Draining the queue unblocks the driver; nothing was dropped.
	assert.Equal(t, "PressureSig1", recvEvent(t, queue).Signature)
	assert.Equal(t, "PressureSig2", recvEvent(t, queue).Signature)
	assert.Equal(t, "PressureSig3", recvEvent(t, queue).Signature)

	require.Eventually(t, func() bool {
		return countStored(t, store) == 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestDriver_RunShutdownClosesQueue(t *testing.T) {
	fake := newFakeFeed()
	queue := make(chan *domain.TradeEvent, 10)

	driver := NewDriver(DriverOptions{
		Feed:          fake,
		Store:         memory.NewTradeEventStore(),
		Queue:         queue,
		FlushInterval: time.Hour,
		Logger:        testLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- driver.Run(ctx) }()

	cancel()
	require.NoError(t, <-done)

	_, ok := <-queue
	assert.False(t, ok, "Queue should be closed once Run returns")
}

func TestDriver_DefaultValues(t *testing.T) {
	driver := NewDriver(DriverOptions{})

	assert.Equal(t, DefaultBatchSize, driver.batchSize)
	assert.Equal(t, DefaultFlushInterval, driver.flushInterval)
	assert.NotNil(t, driver.logger, "Logger should not be nil")
	assert.NotNil(t, driver.backoff, "Backoff should not be nil")
	assert.Equal(t, StateDisconnected, driver.State())
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateSubscribed, "subscribed"},
		{StateReceiving, "receiving"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}
