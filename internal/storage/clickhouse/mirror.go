package clickhouse

import (
	"context"
	"log"

	"solana-copysim/internal/domain"
	"solana-copysim/internal/storage"
)

// TradeSink receives mirrored trades.
type TradeSink interface {
	InsertTrade(ctx context.Context, trade *domain.SimulatedTrade) error
}

// SnapshotSink receives mirrored snapshots.
type SnapshotSink interface {
	InsertSnapshot(ctx context.Context, snapshot *domain.PerformanceSnapshot) error
}

// MirroredTradeStore writes every trade to the primary store and then
// mirrors it into the analytics sink. Mirror failures are logged and
// swallowed; the primary write decides the outcome.
type MirroredTradeStore struct {
	primary storage.SimulatedTradeStore
	sink    TradeSink
	logger  *log.Logger
}

var _ storage.SimulatedTradeStore = (*MirroredTradeStore)(nil)

// NewMirroredTradeStore wraps primary with best-effort mirroring into sink.
func NewMirroredTradeStore(primary storage.SimulatedTradeStore, sink TradeSink, logger *log.Logger) *MirroredTradeStore {
	if logger == nil {
		logger = log.Default()
	}
	return &MirroredTradeStore{primary: primary, sink: sink, logger: logger}
}

func (s *MirroredTradeStore) Insert(ctx context.Context, trade *domain.SimulatedTrade) error {
	if err := s.primary.Insert(ctx, trade); err != nil {
		return err
	}
	if err := s.sink.InsertTrade(ctx, trade); err != nil {
		s.logger.Printf("[clickhouse] mirror trade %s: %v", trade.SourceSignature, err)
	}
	return nil
}

func (s *MirroredTradeStore) GetBySession(ctx context.Context, sessionID string) ([]*domain.SimulatedTrade, error) {
	return s.primary.GetBySession(ctx, sessionID)
}

// MirroredSnapshotStore is the snapshot counterpart of MirroredTradeStore.
type MirroredSnapshotStore struct {
	primary storage.SnapshotStore
	sink    SnapshotSink
	logger  *log.Logger
}

var _ storage.SnapshotStore = (*MirroredSnapshotStore)(nil)

// NewMirroredSnapshotStore wraps primary with best-effort mirroring into sink.
func NewMirroredSnapshotStore(primary storage.SnapshotStore, sink SnapshotSink, logger *log.Logger) *MirroredSnapshotStore {
	if logger == nil {
		logger = log.Default()
	}
	return &MirroredSnapshotStore{primary: primary, sink: sink, logger: logger}
}

func (s *MirroredSnapshotStore) Insert(ctx context.Context, snapshot *domain.PerformanceSnapshot) error {
	if err := s.primary.Insert(ctx, snapshot); err != nil {
		return err
	}
	if err := s.sink.InsertSnapshot(ctx, snapshot); err != nil {
		s.logger.Printf("[clickhouse] mirror snapshot for session %s: %v", snapshot.SessionID, err)
	}
	return nil
}

func (s *MirroredSnapshotStore) GetBySession(ctx context.Context, sessionID string) ([]*domain.PerformanceSnapshot, error) {
	return s.primary.GetBySession(ctx, sessionID)
}
