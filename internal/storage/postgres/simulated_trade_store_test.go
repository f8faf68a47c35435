package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copysim/internal/domain"
)

// makeSimTrade builds a minimal simulated trade for insertion tests.
func makeSimTrade(sessionID, sig string, at time.Time) *domain.SimulatedTrade {
	return &domain.SimulatedTrade{
		SourceEventID:      0,
		SourceSignature:    sig,
		SessionID:          sessionID,
		Mint:               "MintSim1111111111111111111111111111111111",
		Side:               domain.SideBuy,
		SolAmount:          decimal.NewFromInt(1),
		TokenAmount:        decimal.RequireFromString("30860215.0537634409"),
		SimulatedPrice:     decimal.RequireFromString("0.000000032404"),
		SlippageBps:        decimal.RequireFromString("433.33"),
		DelayMs:            1500,
		ExecutedAt:         at,
		VTokensAtExecution: decimal.NewFromInt(1000000000),
		VSolAtExecution:    decimal.NewFromInt(30),
	}
}

func TestSimulatedTradeStore_InsertAndGetBySession(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	sessionID := createTestSession(t, ctx, pool, "simtrade-session-1")

	store := NewSimulatedTradeStore(pool)
	trade := makeSimTrade(sessionID, "SimSig1", baseTime)

	err := store.Insert(ctx, trade)
	require.NoError(t, err)
	assert.NotZero(t, trade.ID)

	trades, err := store.GetBySession(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	got := trades[0]
	assert.Equal(t, trade.ID, got.ID)
	assert.Equal(t, int64(0), got.SourceEventID)
	assert.Equal(t, "SimSig1", got.SourceSignature)
	assert.Equal(t, sessionID, got.SessionID)
	assert.Equal(t, domain.SideBuy, got.Side)
	assert.True(t, got.SolAmount.Equal(trade.SolAmount), "SolAmount = %s", got.SolAmount)
	assert.True(t, got.TokenAmount.Equal(trade.TokenAmount), "TokenAmount = %s", got.TokenAmount)
	assert.True(t, got.SimulatedPrice.Equal(trade.SimulatedPrice), "SimulatedPrice = %s", got.SimulatedPrice)
	assert.True(t, got.SlippageBps.Equal(trade.SlippageBps), "SlippageBps = %s", got.SlippageBps)
	assert.Equal(t, int64(1500), got.DelayMs)
	assert.WithinDuration(t, baseTime, got.ExecutedAt, time.Microsecond)
	assert.True(t, got.VTokensAtExecution.Equal(trade.VTokensAtExecution))
	assert.True(t, got.VSolAtExecution.Equal(trade.VSolAtExecution))
	assert.Nil(t, got.RealizedPnL)
}

func TestSimulatedTradeStore_RealizedPnLRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	sessionID := createTestSession(t, ctx, pool, "simtrade-pnl-session")

	store := NewSimulatedTradeStore(pool)

	pnl := decimal.RequireFromString("-0.123456789")
	trade := makeSimTrade(sessionID, "SimSigPnL", baseTime)
	trade.Side = domain.SideSell
	trade.RealizedPnL = &pnl

	err := store.Insert(ctx, trade)
	require.NoError(t, err)

	trades, err := store.GetBySession(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.NotNil(t, trades[0].RealizedPnL)
	assert.True(t, trades[0].RealizedPnL.Equal(pnl), "RealizedPnL = %s", trades[0].RealizedPnL)
	assert.Equal(t, domain.SideSell, trades[0].Side)
}

func TestSimulatedTradeStore_Ordering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	sessionID := createTestSession(t, ctx, pool, "simtrade-order-session")

	store := NewSimulatedTradeStore(pool)

	// Insert newest first.
	times := []time.Time{
		baseTime.Add(2 * time.Second),
		baseTime,
		baseTime.Add(time.Second),
	}
	for i, at := range times {
		trade := makeSimTrade(sessionID, "OrderSig"+string(rune('A'+i)), at)
		require.NoError(t, store.Insert(ctx, trade))
	}

	trades, err := store.GetBySession(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	for i := 1; i < len(trades); i++ {
		assert.False(t, trades[i].ExecutedAt.Before(trades[i-1].ExecutedAt),
			"trades not ordered by executed_at at position %d", i)
	}
}

func TestSimulatedTradeStore_SessionIsolation(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	sessionA := createTestSession(t, ctx, pool, "simtrade-iso-a")
	sessionB := createTestSession(t, ctx, pool, "simtrade-iso-b")

	store := NewSimulatedTradeStore(pool)
	require.NoError(t, store.Insert(ctx, makeSimTrade(sessionA, "IsoSigA", baseTime)))
	require.NoError(t, store.Insert(ctx, makeSimTrade(sessionB, "IsoSigB", baseTime)))

	trades, err := store.GetBySession(ctx, sessionA)
	require.NoError(t, err)
	assert.Len(t, trades, 1)
	assert.Equal(t, "IsoSigA", trades[0].SourceSignature)
}

func TestSimulatedTradeStore_EmptyResult(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSimulatedTradeStore(pool)

	trades, err := store.GetBySession(ctx, "nonexistent-session")
	require.NoError(t, err)
	assert.Empty(t, trades)
}
