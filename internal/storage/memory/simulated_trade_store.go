package memory

import (
	"context"
	"sort"
	"sync"

	"solana-copysim/internal/domain"
	"solana-copysim/internal/storage"
)

// SimulatedTradeStore is an in-memory implementation of
// storage.SimulatedTradeStore.
type SimulatedTradeStore struct {
	mu     sync.RWMutex
	trades []*domain.SimulatedTrade
	nextID int64
}

// NewSimulatedTradeStore creates a new in-memory simulated trade store.
func NewSimulatedTradeStore() *SimulatedTradeStore {
	return &SimulatedTradeStore{nextID: 1}
}

// Compile-time interface check.
var _ storage.SimulatedTradeStore = (*SimulatedTradeStore)(nil)

// Insert stores one simulated trade and assigns its ID.
func (s *SimulatedTradeStore) Insert(_ context.Context, trade *domain.SimulatedTrade) error {
	if trade == nil || trade.SessionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneTrade(trade)
	stored.ID = s.nextID
	s.nextID++
	s.trades = append(s.trades, stored)
	trade.ID = stored.ID
	return nil
}

// GetBySession retrieves all trades of a session ordered by (executed_at, id).
func (s *SimulatedTradeStore) GetBySession(_ context.Context, sessionID string) ([]*domain.SimulatedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.SimulatedTrade
	for _, trade := range s.trades {
		if trade.SessionID == sessionID {
			matched = append(matched, cloneTrade(trade))
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].ExecutedAt.Equal(matched[j].ExecutedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].ExecutedAt.Before(matched[j].ExecutedAt)
	})
	return matched, nil
}

// cloneTrade deep-copies a trade, including the nullable PnL.
func cloneTrade(trade *domain.SimulatedTrade) *domain.SimulatedTrade {
	clone := *trade
	if trade.RealizedPnL != nil {
		pnl := *trade.RealizedPnL
		clone.RealizedPnL = &pnl
	}
	return &clone
}
