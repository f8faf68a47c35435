package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"solana-copysim/internal/domain"
	"solana-copysim/internal/storage"
)

// SessionStore is an in-memory implementation of storage.SessionStore.
type SessionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SimulationSession
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{data: make(map[string]*domain.SimulationSession)}
}

// Compile-time interface check.
var _ storage.SessionStore = (*SessionStore)(nil)

// Insert stores a new session. Returns ErrDuplicateKey if the ID exists.
func (s *SessionStore) Insert(_ context.Context, session *domain.SimulationSession) error {
	if session == nil || session.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[session.ID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[session.ID] = cloneSession(session)
	return nil
}

// CloseSession finalizes a session with its end time and final balance.
// Returns ErrNotFound if the session does not exist.
func (s *SessionStore) CloseSession(_ context.Context, id string, endedAt time.Time, finalSolBalance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	ended := endedAt
	final := finalSolBalance
	session.EndedAt = &ended
	session.FinalSolBalance = &final
	return nil
}

// GetByID retrieves a session. Returns ErrNotFound if it does not exist.
func (s *SessionStore) GetByID(_ context.Context, id string) (*domain.SimulationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneSession(session), nil
}

// cloneSession deep-copies a session, including the nullable close fields.
func cloneSession(session *domain.SimulationSession) *domain.SimulationSession {
	clone := *session
	if session.EndedAt != nil {
		ended := *session.EndedAt
		clone.EndedAt = &ended
	}
	if session.FinalSolBalance != nil {
		final := *session.FinalSolBalance
		clone.FinalSolBalance = &final
	}
	return &clone
}
