package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/wellness-rewards/internal/models"
)

func TestGormUnitOfWork_AtomicRollsBack(t *testing.T) {
	db := setupTestDB(t)
	uow := NewUnitOfWork(db)
	ctx := context.Background()
	now := time.Now().UTC()

	boom := errors.New("log append failed")
	err := uow.Atomic(ctx, func(repos Repositories) error {
		account := &models.LoyaltyAccount{UserID: 5, TotalPoints: 300, CurrentTierLevel: 1, JoinedAt: now, LastActivity: now}
		if err := repos.Ledgers.Create(ctx, account); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = uow.Repositories().Ledgers.GetByUserID(ctx, 5)
	assert.ErrorIs(t, err, ErrNotFound, "ledger write must be rolled back")
}

func TestGormUnitOfWork_AtomicCommits(t *testing.T) {
	db := setupTestDB(t)
	uow := NewUnitOfWork(db)
	ctx := context.Background()
	now := time.Now().UTC()

	err := uow.Atomic(ctx, func(repos Repositories) error {
		account := &models.LoyaltyAccount{UserID: 6, TotalPoints: 10, CurrentTierLevel: 1, JoinedAt: now, LastActivity: now}
		if err := repos.Ledgers.Create(ctx, account); err != nil {
			return err
		}
		return repos.Transactions.Append(ctx, &models.LoyaltyTransaction{UserID: 6, PointsEarned: 10, TransactionType: "gym_visit"})
	})
	require.NoError(t, err)

	txns, err := uow.Repositories().Transactions.ListByUser(ctx, 6, 0)
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrationFiles.ReadDir("migrations")
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_init_schema.up.sql")
	assert.Contains(t, names, "000001_init_schema.down.sql")
}
