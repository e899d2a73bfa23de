package loyalty

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/wellness-rewards/internal/apperr"
	"github.com/aimd54/wellness-rewards/internal/config"
	"github.com/aimd54/wellness-rewards/internal/lock"
	"github.com/aimd54/wellness-rewards/internal/metrics"
	"github.com/aimd54/wellness-rewards/internal/models"
	"github.com/aimd54/wellness-rewards/internal/repository"
	"github.com/aimd54/wellness-rewards/internal/repository/memory"
	"github.com/aimd54/wellness-rewards/pkg/logger"
)

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func setupTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()

	store := memory.New()
	service := NewServiceWithInterfaces(store, lock.NewLocal(), logger.Nop())
	service.now = func() time.Time { return testNow }
	return service, store
}

func createReward(t *testing.T, store repository.UnitOfWork, name string, cost int64, tier int) *models.Reward {
	t.Helper()

	reward := &models.Reward{
		Name:            name,
		Category:        models.CategoryRestaurant,
		PointsCost:      cost,
		TierRequirement: tier,
		IsActive:        true,
		ExpiryDays:      30,
		UsageLimit:      1,
	}
	require.NoError(t, store.Repositories().Rewards.Create(context.Background(), reward))
	return reward
}

func TestGetOrCreateLedger(t *testing.T) {
	service, _ := setupTestService(t)
	ctx := context.Background()

	account, err := service.GetOrCreateLedger(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.TotalPoints)
	assert.Equal(t, int64(0), account.LifetimeSpent)
	assert.Equal(t, models.TierBronze, account.CurrentTierLevel)
	assert.Equal(t, testNow, account.JoinedAt)

	again, err := service.GetOrCreateLedger(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, account.ID, again.ID)
}

func TestApplyPointsChange_CreatesSeededLedger(t *testing.T) {
	service, _ := setupTestService(t)
	ctx := context.Background()

	account, err := service.ApplyPointsChange(ctx, 1, 120, 26000)
	require.NoError(t, err)
	assert.Equal(t, int64(120), account.TotalPoints)
	assert.Equal(t, int64(26000), account.LifetimeSpent)
	assert.Equal(t, models.TierGold, account.CurrentTierLevel)

	negative, err := service.ApplyPointsChange(ctx, 2, -50, -10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), negative.TotalPoints)
	assert.Equal(t, int64(0), negative.LifetimeSpent)
	assert.Equal(t, models.TierBronze, negative.CurrentTierLevel)
}

func TestApplyPointsChange_BalanceNeverNegative(t *testing.T) {
	service, _ := setupTestService(t)
	ctx := context.Background()

	deltas := []int64{100, -30, -500, 40, -41, -1, 1_000, -999_999, 7}
	for _, delta := range deltas {
		account, err := service.ApplyPointsChange(ctx, 1, delta, 0)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, account.TotalPoints, int64(0), "after delta %d", delta)
	}

	account, err := service.GetOrCreateLedger(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(7), account.TotalPoints)
}

func TestApplyPointsChange_TierNeverDecreases(t *testing.T) {
	service, _ := setupTestService(t)
	ctx := context.Background()

	previous := 0
	for _, spend := range []int64{0, 5000, 5000, 0, 14999, 1, 24999, 0, 1} {
		account, err := service.ApplyPointsChange(ctx, 1, 10, spend)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, account.CurrentTierLevel, previous)
		assert.Equal(t, TierFor(account.LifetimeSpent), account.CurrentTierLevel)
		previous = account.CurrentTierLevel
	}
	assert.Equal(t, models.TierPlatinum, previous)
}

func TestApplyPointsChange_OverflowRejected(t *testing.T) {
	service, store := setupTestService(t)
	ctx := context.Background()

	_, err := service.ApplyPointsChange(ctx, 1, math.MaxInt64-10, math.MaxInt64-10)
	require.NoError(t, err)

	tests := []struct {
		name   string
		points int64
		spent  int64
	}{
		{"balance", 11, 0},
		{"lifetime spend", 0, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.ApplyPointsChange(ctx, 1, tt.points, tt.spent)
			assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
		})
	}

	account, err := store.Repositories().Ledgers.GetByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64-10), account.TotalPoints)
	assert.Equal(t, int64(math.MaxInt64-10), account.LifetimeSpent)
	assert.Equal(t, models.TierPlatinum, account.CurrentTierLevel)
}

func TestEarn_MaximumEventsKeepTier(t *testing.T) {
	service, _ := setupTestService(t)
	ctx := context.Background()

	req := EarnRequest{UserID: 1, Points: MaxEarnPoints, ServiceType: "store", ServiceDetails: "Order", AmountSpent: MaxAmountSpent}
	first, err := service.Earn(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.TierPlatinum, first.Account.CurrentTierLevel)

	second, err := service.Earn(ctx, EarnRequest{UserID: 1, Points: 1, ServiceType: "store", ServiceDetails: "Order", AmountSpent: 1})
	require.NoError(t, err)
	assert.Equal(t, MaxEarnPoints+1, second.Account.TotalPoints)
	assert.Equal(t, MaxAmountSpent+1, second.Account.LifetimeSpent)
	assert.Equal(t, models.TierPlatinum, second.Account.CurrentTierLevel)
}

func TestEarn_Validation(t *testing.T) {
	service, store := setupTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  EarnRequest
	}{
		{"zero points", EarnRequest{UserID: 1, Points: 0, ServiceType: "gym_visit", ServiceDetails: "Visit"}},
		{"negative points", EarnRequest{UserID: 1, Points: -5, ServiceType: "gym_visit", ServiceDetails: "Visit"}},
		{"missing type", EarnRequest{UserID: 1, Points: 5, ServiceType: " ", ServiceDetails: "Visit"}},
		{"missing details", EarnRequest{UserID: 1, Points: 5, ServiceType: "gym_visit"}},
		{"negative spend", EarnRequest{UserID: 1, Points: 5, ServiceType: "store", ServiceDetails: "Order", AmountSpent: -1}},
		{"points above ceiling", EarnRequest{UserID: 1, Points: MaxEarnPoints + 1, ServiceType: "store", ServiceDetails: "Order"}},
		{"spend above ceiling", EarnRequest{UserID: 1, Points: 5, ServiceType: "store", ServiceDetails: "Order", AmountSpent: math.MaxInt64}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Earn(ctx, tt.req)
			assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
		})
	}

	_, err := store.Repositories().Ledgers.GetByUserID(ctx, 1)
	assert.ErrorIs(t, err, repository.ErrNotFound, "rejected requests must not create a ledger")
}

func TestRedeem_NoLedger(t *testing.T) {
	service, store := setupTestService(t)
	reward := createReward(t, store, "Smoothie", 10, 1)

	_, err := service.Redeem(context.Background(), 1, reward.ID)
	assert.ErrorIs(t, err, apperr.ErrNoLedger)
}

func TestRedeem_InsufficientPoints(t *testing.T) {
	service, store := setupTestService(t)
	ctx := context.Background()
	reward := createReward(t, store, "Massage", 100, 1)

	_, err := service.ApplyPointsChange(ctx, 1, 50, 0)
	require.NoError(t, err)

	_, err = service.Redeem(ctx, 1, reward.ID)
	assert.ErrorIs(t, err, apperr.ErrInsufficientPoints)

	account, err := service.GetOrCreateLedger(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), account.TotalPoints)

	txns, err := service.ListTransactions(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestRedeem_TierGating(t *testing.T) {
	service, store := setupTestService(t)
	ctx := context.Background()
	gold := createReward(t, store, "Private training", 100, models.TierGold)
	bronze := createReward(t, store, "Water bottle", 50, models.TierBronze)

	_, err := service.ApplyPointsChange(ctx, 1, 1000, 0)
	require.NoError(t, err)

	catalog, err := service.ListRewards(ctx, 1)
	require.NoError(t, err)
	require.Len(t, catalog.Rewards, 1)
	assert.Equal(t, bronze.ID, catalog.Rewards[0].ID)

	_, err = service.Redeem(ctx, 1, gold.ID)
	assert.ErrorIs(t, err, apperr.ErrRewardNotEligible)

	_, err = service.Redeem(ctx, 1, 9999)
	assert.ErrorIs(t, err, apperr.ErrRewardNotEligible)

	account, err := service.GetOrCreateLedger(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), account.TotalPoints)
}

func TestRedeem_InactiveRewardNotEligible(t *testing.T) {
	service, store := setupTestService(t)
	ctx := context.Background()

	inactive := &models.Reward{
		Name:            "Retired perk",
		Category:        models.CategoryStore,
		PointsCost:      10,
		TierRequirement: models.TierBronze,
		ExpiryDays:      30,
		UsageLimit:      1,
	}
	require.NoError(t, store.Repositories().Rewards.Create(ctx, inactive))

	_, err := service.ApplyPointsChange(ctx, 1, 100, 0)
	require.NoError(t, err)

	_, err = service.Redeem(ctx, 1, inactive.ID)
	assert.ErrorIs(t, err, apperr.ErrRewardNotEligible)
}

func TestListRewards_ExcludesExpiredAndUsedVouchers(t *testing.T) {
	service, store := setupTestService(t)
	ctx := context.Background()
	reward := createReward(t, store, "Juice", 10, 1)
	vouchers := store.Repositories().Vouchers

	expired := &models.UserReward{Code: "expired", UserID: 1, RewardID: reward.ID,
		RedeemedAt: testNow.AddDate(0, 0, -40), ExpiresAt: testNow.Add(-time.Hour)}
	used := &models.UserReward{Code: "used", UserID: 1, RewardID: reward.ID,
		RedeemedAt: testNow, ExpiresAt: testNow.AddDate(0, 0, 30), IsUsed: true}
	live := &models.UserReward{Code: "live", UserID: 1, RewardID: reward.ID,
		RedeemedAt: testNow, ExpiresAt: testNow.AddDate(0, 0, 30)}
	for _, v := range []*models.UserReward{expired, used, live} {
		require.NoError(t, vouchers.Create(ctx, v))
	}

	catalog, err := service.ListRewards(ctx, 1)
	require.NoError(t, err)
	require.Len(t, catalog.Vouchers, 1)
	assert.Equal(t, live.ID, catalog.Vouchers[0].ID)
	require.NotNil(t, catalog.Vouchers[0].Reward)
	assert.Equal(t, "Juice", catalog.Vouchers[0].Reward.Name)
}

func TestEarnThenRedeem(t *testing.T) {
	service, store := setupTestService(t)
	ctx := context.Background()
	reward := createReward(t, store, "Lunch voucher", 100, 1)

	earned, err := service.Earn(ctx, EarnRequest{
		UserID:         1,
		Points:         300,
		ServiceType:    "restaurant",
		ServiceDetails: "Lunch",
		AmountSpent:    15000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(300), earned.Account.TotalPoints)
	assert.Equal(t, int64(15000), earned.Account.LifetimeSpent)
	assert.Equal(t, models.TierSilver, earned.Account.CurrentTierLevel)
	assert.Equal(t, "You earned 300 points!", earned.Message)

	redeemed, err := service.Redeem(ctx, 1, reward.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), redeemed.Account.TotalPoints)
	assert.False(t, redeemed.Voucher.IsUsed)
	assert.Equal(t, 0, redeemed.Voucher.UsageCount)
	assert.Equal(t, testNow.AddDate(0, 0, 30), redeemed.Voucher.ExpiresAt)
	assert.NotEmpty(t, redeemed.Voucher.Code)
	assert.Contains(t, redeemed.Message, "Lunch voucher")

	account, err := service.GetOrCreateLedger(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(200), account.TotalPoints)
	assert.Equal(t, int64(15000), account.LifetimeSpent)

	catalog, err := service.ListRewards(ctx, 1)
	require.NoError(t, err)
	require.Len(t, catalog.Vouchers, 1)
	assert.False(t, catalog.Vouchers[0].IsUsed)

	txns, err := service.ListTransactions(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, txns, 2)

	var earn, redemption *models.LoyaltyTransaction
	for i := range txns {
		if txns[i].TransactionType == models.TransactionTypeRedemption {
			redemption = &txns[i]
		} else {
			earn = &txns[i]
		}
	}
	require.NotNil(t, earn)
	require.NotNil(t, redemption)
	assert.Equal(t, int64(300), earn.PointsEarned)
	assert.Equal(t, "restaurant", earn.TransactionType)
	assert.Equal(t, int64(100), redemption.PointsRedeemed)
	assert.Equal(t, "Redeemed: Lunch voucher", redemption.ServiceDetails)
	require.NotNil(t, redemption.RelatedOrderID)
	assert.Equal(t, redeemed.Voucher.ID, *redemption.RelatedOrderID)
}

func TestUseReward(t *testing.T) {
	service, store := setupTestService(t)
	ctx := context.Background()
	reward := createReward(t, store, "Yoga class", 10, 1)

	_, err := service.ApplyPointsChange(ctx, 1, 100, 0)
	require.NoError(t, err)
	redeemed, err := service.Redeem(ctx, 1, reward.ID)
	require.NoError(t, err)

	_, err = service.UseReward(ctx, 2, redeemed.Voucher.ID)
	assert.ErrorIs(t, err, apperr.ErrVoucherNotFound, "another user's voucher")

	used, err := service.UseReward(ctx, 1, redeemed.Voucher.ID)
	require.NoError(t, err)
	assert.True(t, used.IsUsed)
	assert.Equal(t, 1, used.UsageCount)
	require.NotNil(t, used.UsedAt)
	assert.Equal(t, testNow, *used.UsedAt)

	_, err = service.UseReward(ctx, 1, redeemed.Voucher.ID)
	assert.ErrorIs(t, err, apperr.ErrVoucherNotFound, "already used")

	_, err = service.UseReward(ctx, 1, 4242)
	assert.ErrorIs(t, err, apperr.ErrVoucherNotFound, "unknown voucher")

	stored, err := store.Repositories().Vouchers.GetByID(ctx, redeemed.Voucher.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsageCount)
}

func TestUseReward_Expired(t *testing.T) {
	service, store := setupTestService(t)
	ctx := context.Background()
	reward := createReward(t, store, "Sauna", 10, 1)

	voucher := &models.UserReward{Code: "old", UserID: 1, RewardID: reward.ID,
		RedeemedAt: testNow.AddDate(0, -2, 0), ExpiresAt: testNow.AddDate(0, -1, 0)}
	require.NoError(t, store.Repositories().Vouchers.Create(ctx, voucher))

	_, err := service.UseReward(ctx, 1, voucher.ID)
	assert.ErrorIs(t, err, apperr.ErrVoucherNotFound)
}

func TestRedeem_ConcurrentOnlyAffordableOnce(t *testing.T) {
	service, store := setupTestService(t)
	ctx := context.Background()
	reward := createReward(t, store, "Spa day", 100, 1)

	_, err := service.ApplyPointsChange(ctx, 1, 100, 0)
	require.NoError(t, err)

	const attempts = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Redeem(ctx, 1, reward.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if errors.Is(err, apperr.ErrInsufficientPoints) {
				failures++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, failures)

	account, err := service.GetOrCreateLedger(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.TotalPoints)
}

// failingTransactions fails every append, simulating a crash between the
// ledger write and the log write.
type failingTransactions struct {
	repository.TransactionStore
}

var errLogUnavailable = errors.New("transaction log unavailable")

func (failingTransactions) Append(context.Context, *models.LoyaltyTransaction) error {
	return errLogUnavailable
}

type faultyUnitOfWork struct {
	repository.UnitOfWork
}

func (u faultyUnitOfWork) Atomic(ctx context.Context, fn func(repos repository.Repositories) error) error {
	return u.UnitOfWork.Atomic(ctx, func(repos repository.Repositories) error {
		repos.Transactions = failingTransactions{repos.Transactions}
		return fn(repos)
	})
}

func TestEarn_LogFailureWithoutTransactionsLeavesLedgerChanged(t *testing.T) {
	store := memory.New()
	service := NewServiceWithInterfaces(faultyUnitOfWork{store}, lock.NewLocal(), logger.Nop())
	ctx := context.Background()

	_, err := service.Earn(ctx, EarnRequest{UserID: 1, Points: 40, ServiceType: "gym_visit", ServiceDetails: "Morning session"})
	assert.ErrorIs(t, err, errLogUnavailable)

	// The memory store cannot roll back: the ledger write survives without a
	// matching log entry.
	account, err := store.Repositories().Ledgers.GetByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(40), account.TotalPoints)

	txns, err := store.Repositories().Transactions.ListByUser(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func setupSQLiteUnitOfWork(t *testing.T) repository.UnitOfWork {
	t.Helper()

	db, err := repository.NewDB(&config.DatabaseConfig{
		Driver: config.DriverSQLite,
		SQLite: config.SQLiteConfig{Path: ":memory:"},
	}, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	return repository.NewUnitOfWork(db)
}

func TestRedeem_LogFailureRollsBackOnSQL(t *testing.T) {
	uow := setupSQLiteUnitOfWork(t)
	service := NewServiceWithInterfaces(faultyUnitOfWork{uow}, lock.NewLocal(), logger.Nop())
	service.now = func() time.Time { return testNow }
	ctx := context.Background()
	reward := createReward(t, uow, "Protein bar", 30, 1)

	_, err := service.ApplyPointsChange(ctx, 1, 100, 0)
	require.NoError(t, err)

	_, err = service.Redeem(ctx, 1, reward.ID)
	assert.ErrorIs(t, err, errLogUnavailable)

	account, err := uow.Repositories().Ledgers.GetByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), account.TotalPoints, "deduction must be rolled back")

	vouchers, err := uow.Repositories().Vouchers.ListAvailable(ctx, 1, testNow)
	require.NoError(t, err)
	assert.Empty(t, vouchers)
}

func TestEarnThenRedeem_SQL(t *testing.T) {
	uow := setupSQLiteUnitOfWork(t)
	service := NewServiceWithInterfaces(uow, lock.NewLocal(), logger.Nop())
	ctx := context.Background()
	reward := createReward(t, uow, "Lunch voucher", 100, 1)

	_, err := service.Earn(ctx, EarnRequest{UserID: 7, Points: 300, ServiceType: "restaurant", ServiceDetails: "Lunch", AmountSpent: 15000})
	require.NoError(t, err)

	redeemed, err := service.Redeem(ctx, 7, reward.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), redeemed.Account.TotalPoints)
	assert.Equal(t, models.TierSilver, redeemed.Account.CurrentTierLevel)

	txns, err := service.ListTransactions(ctx, 7, 0)
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestSweepExpiredVouchers(t *testing.T) {
	service, store := setupTestService(t)
	ctx := context.Background()
	reward := createReward(t, store, "Tea", 5, 1)
	vouchers := store.Repositories().Vouchers

	for i, expires := range []time.Time{testNow.Add(-time.Hour), testNow.Add(-48 * time.Hour), testNow.Add(time.Hour)} {
		v := &models.UserReward{Code: string(rune('a' + i)), UserID: 1, RewardID: reward.ID, RedeemedAt: testNow, ExpiresAt: expires}
		require.NoError(t, vouchers.Create(ctx, v))
	}

	count, err := service.SweepExpiredVouchers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.ExpiredUnusedVouchers))
}
