package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SimulationSession groups every simulated trade and snapshot produced by
// one run of the pipeline. Corresponds to simulation_sessions table in
// PostgreSQL.
type SimulationSession struct {
	ID                string           // UUID assigned at startup
	StartedAt         time.Time        // session start (UTC)
	EndedAt           *time.Time       // nil while running
	Mode              EventSource      // "live" | "replay"
	ConfigJSON        string           // effective simulation config, serialized
	InitialSolBalance decimal.Decimal  // wallet funding at start
	FinalSolBalance   *decimal.Decimal // wallet SOL at close, nil while running
}

// IsOpen reports whether the session is still running.
func (s *SimulationSession) IsOpen() bool {
	return s.EndedAt == nil
}
