package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/liquidator/internal/adapters/storage"
	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/alejandrodnm/liquidator/internal/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.Journal = (*storage.SQLiteStorage)(nil)

func makeAttempt(id string, created time.Time) domain.Attempt {
	return domain.Attempt{
		ID:          id,
		Kind:        domain.AttemptLiquidate,
		Account:     "NZNovF1ZZJaL2gYkMdvc3gDdKAJfVCvchX",
		FromSymbol:  "bNEO",
		ToSymbol:    "fUSD",
		Quantity:    decimal.RequireFromString("1500.12345678"),
		LoanToValue: decimal.RequireFromString("83.5"),
		Price:       decimal.RequireFromString("0.2"),
		State:       domain.AttemptSubmitted,
		CreatedAt:   created,
	}
}

func newStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteStorage_SaveAndGetAttempts(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, db.SaveAttempt(ctx, makeAttempt("a", now.Add(-time.Minute))))
	require.NoError(t, db.SaveAttempt(ctx, makeAttempt("b", now)))

	got, err := db.GetAttempts(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Más recientes primero
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
	assert.True(t, got[0].Quantity.Equal(decimal.RequireFromString("1500.12345678")), "precisión decimal exacta")
	assert.True(t, got[0].CreatedAt.Equal(now))
	assert.Nil(t, got[0].ResolvedAt)
}

func TestSQLiteStorage_SaveAttemptUpdatesState(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	a := makeAttempt("x", now)
	require.NoError(t, db.SaveAttempt(ctx, a))

	resolved := now.Add(5 * time.Second)
	a.State = domain.AttemptConfirmed
	a.TxID = "0xfeed"
	a.ResolvedAt = &resolved
	require.NoError(t, db.SaveAttempt(ctx, a))

	got, err := db.GetAttempts(ctx, now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1, "upsert, no duplicado")
	assert.Equal(t, domain.AttemptConfirmed, got[0].State)
	assert.Equal(t, "0xfeed", got[0].TxID)
	require.NotNil(t, got[0].ResolvedAt)
	assert.WithinDuration(t, resolved, *got[0].ResolvedAt, time.Millisecond)
}

func TestSQLiteStorage_SaveAttemptEmptyID(t *testing.T) {
	db := newStore(t)
	assert.Error(t, db.SaveAttempt(context.Background(), domain.Attempt{}))
}

func TestSQLiteStorage_GetAttemptsRange(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, db.SaveAttempt(ctx, makeAttempt("old", now.Add(-48*time.Hour))))
	require.NoError(t, db.SaveAttempt(ctx, makeAttempt("new", now)))

	got, err := db.GetAttempts(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].ID)
}

func TestSQLiteStorage_Cycles(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, db.SaveCycle(ctx, domain.CycleSummary{
		StartedAt:       now,
		Duration:        1500 * time.Millisecond,
		Pages:           3,
		VaultsEvaluated: 120,
		Eligible:        1,
		Liquidated:      true,
		FTokenBalance:   decimal.RequireFromString("99.5"),
	}))
	require.NoError(t, db.SaveCycle(ctx, domain.CycleSummary{StartedAt: now.Add(-time.Minute), Error: "price feed error"}))

	cycles, err := db.GetCycles(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, cycles, 2)
	assert.True(t, cycles[0].Liquidated)
	assert.Equal(t, 1500*time.Millisecond, cycles[0].Duration)
	assert.Equal(t, 120, cycles[0].VaultsEvaluated)
	assert.Equal(t, "99.5", cycles[0].FTokenBalance.String())
	assert.Equal(t, "price feed error", cycles[1].Error)
}
