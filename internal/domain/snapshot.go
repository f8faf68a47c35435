package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PerformanceSnapshot is a periodic point-in-time record of wallet
// performance. Corresponds to performance_snapshots table in PostgreSQL.
type PerformanceSnapshot struct {
	ID                 int64           // BIGSERIAL primary key
	SessionID          string          // owning simulation session
	TakenAt            time.Time       // snapshot time (UTC)
	TotalTrades        int             // executed buys + sells so far
	WinCount           int             // winning sells so far
	LossCount          int             // losing sells so far
	WinRatePercent     decimal.Decimal // wins / (wins + losses) * 100
	AvgROIPercent      decimal.Decimal // cumulative ROI / (wins + losses)
	RealizedPnL        decimal.Decimal // total realized PnL
	UnrealizedPnL      decimal.Decimal // mark-to-market PnL over open positions
	MaxDrawdownPercent decimal.Decimal // worst drawdown so far
	SolBalance         decimal.Decimal // spendable SOL
	TotalValueSol      decimal.Decimal // SOL balance + open position value
}
