package memory

import (
	"context"
	"sort"
	"sync"

	"solana-copysim/internal/domain"
	"solana-copysim/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots []*domain.PerformanceSnapshot
	nextID    int64
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{nextID: 1}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert stores one snapshot and assigns its ID.
func (s *SnapshotStore) Insert(_ context.Context, snapshot *domain.PerformanceSnapshot) error {
	if snapshot == nil || snapshot.SessionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *snapshot
	stored.ID = s.nextID
	s.nextID++
	s.snapshots = append(s.snapshots, &stored)
	snapshot.ID = stored.ID
	return nil
}

// GetBySession retrieves all snapshots of a session ordered by (taken_at, id).
func (s *SnapshotStore) GetBySession(_ context.Context, sessionID string) ([]*domain.PerformanceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.PerformanceSnapshot
	for _, snapshot := range s.snapshots {
		if snapshot.SessionID == sessionID {
			clone := *snapshot
			matched = append(matched, &clone)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].TakenAt.Equal(matched[j].TakenAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].TakenAt.Before(matched[j].TakenAt)
	})
	return matched, nil
}
