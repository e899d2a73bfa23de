package loyalty

import (
	"context"
	"fmt"

	"github.com/aimd54/wellness-rewards/internal/metrics"
	"github.com/aimd54/wellness-rewards/internal/models"
)

// Catalog is what a user sees when browsing rewards.
type Catalog struct {
	Rewards  []models.Reward     `json:"rewards"`
	Vouchers []models.UserReward `json:"user_rewards"`
}

// ListRewards returns the rewards eligible for the user's tier and the
// user's available vouchers. The ledger is created if absent.
func (s *Service) ListRewards(ctx context.Context, userID uint) (*Catalog, error) {
	account, err := s.GetOrCreateLedger(ctx, userID)
	if err != nil {
		return nil, err
	}

	repos := s.uow.Repositories()

	rewards, err := repos.Rewards.ListEligible(ctx, account.CurrentTierLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}

	vouchers, err := repos.Vouchers.ListAvailable(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list vouchers: %w", err)
	}

	return &Catalog{Rewards: rewards, Vouchers: vouchers}, nil
}

// ListTransactions returns the user's transaction log, newest first.
// limit <= 0 returns everything.
func (s *Service) ListTransactions(ctx context.Context, userID uint, limit int) ([]models.LoyaltyTransaction, error) {
	txns, err := s.uow.Repositories().Transactions.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

// SweepExpiredVouchers counts vouchers that lapsed unused and publishes the
// count as a gauge. Expired vouchers are kept, only hidden from listings.
func (s *Service) SweepExpiredVouchers(ctx context.Context) (int64, error) {
	count, err := s.uow.Repositories().Vouchers.CountExpiredUnused(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to count expired vouchers: %w", err)
	}

	metrics.SetExpiredUnusedVouchers(count)
	s.log.Info().Int64("expired_unused", count).Msg("Voucher expiry sweep completed")
	return count, nil
}
