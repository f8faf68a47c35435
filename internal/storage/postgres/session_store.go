package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"solana-copysim/internal/domain"
	"solana-copysim/internal/storage"
)

// SessionStore implements storage.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *Pool
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(pool *Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SessionStore = (*SessionStore)(nil)

// Insert stores a new session. Returns ErrDuplicateKey if the ID exists.
func (s *SessionStore) Insert(ctx context.Context, session *domain.SimulationSession) error {
	query := `
		INSERT INTO simulation_sessions (
			id, started_at, ended_at, mode, config_json,
			initial_sol_balance, final_sol_balance
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		session.ID,
		session.StartedAt,
		session.EndedAt,
		string(session.Mode),
		session.ConfigJSON,
		session.InitialSolBalance,
		session.FinalSolBalance,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// CloseSession finalizes a session with its end time and final balance.
// Returns ErrNotFound if the session does not exist.
func (s *SessionStore) CloseSession(ctx context.Context, id string, endedAt time.Time, finalSolBalance decimal.Decimal) error {
	query := `
		UPDATE simulation_sessions
		SET ended_at = $2, final_sol_balance = $3
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, id, endedAt, finalSolBalance)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a session. Returns ErrNotFound if it does not exist.
func (s *SessionStore) GetByID(ctx context.Context, id string) (*domain.SimulationSession, error) {
	query := `
		SELECT id, started_at, ended_at, mode, config_json,
		       initial_sol_balance, final_sol_balance
		FROM simulation_sessions
		WHERE id = $1
	`

	var session domain.SimulationSession
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.StartedAt,
		&session.EndedAt,
		&session.Mode,
		&session.ConfigJSON,
		&session.InitialSolBalance,
		&session.FinalSolBalance,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get session by id: %w", err)
	}
	return &session, nil
}
