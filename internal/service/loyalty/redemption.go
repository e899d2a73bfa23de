package loyalty

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/aimd54/wellness-rewards/internal/apperr"
	"github.com/aimd54/wellness-rewards/internal/metrics"
	"github.com/aimd54/wellness-rewards/internal/models"
	"github.com/aimd54/wellness-rewards/internal/repository"
)

// RedeemResult is returned by a successful redemption.
type RedeemResult struct {
	Voucher *models.UserReward     `json:"user_reward"`
	Account *models.LoyaltyAccount `json:"account"`
	Message string                 `json:"message"`
}

// Redeem exchanges points for a reward and issues a voucher.
func (s *Service) Redeem(ctx context.Context, userID, rewardID uint) (*RedeemResult, error) {
	release, err := s.lockUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	repos := s.uow.Repositories()

	account, err := repos.Ledgers.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.RecordRedemption("no_ledger")
		return nil, apperr.ErrNoLedger
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}

	// Rewards above the user's tier are filtered out before lookup, so they
	// are indistinguishable from unknown ones.
	eligible, err := repos.Rewards.ListEligible(ctx, account.CurrentTierLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}
	var reward *models.Reward
	for i := range eligible {
		if eligible[i].ID == rewardID {
			reward = &eligible[i]
			break
		}
	}
	if reward == nil {
		metrics.RecordRedemption("not_eligible")
		return nil, apperr.ErrRewardNotEligible
	}

	if account.TotalPoints < reward.PointsCost {
		metrics.RecordRedemption("insufficient_points")
		return nil, apperr.ErrInsufficientPoints
	}

	now := s.now()
	voucher := &models.UserReward{
		Code:       uuid.NewString(),
		UserID:     userID,
		RewardID:   reward.ID,
		RedeemedAt: now,
		ExpiresAt:  now.AddDate(0, 0, reward.ExpiryDays),
	}

	err = s.uow.Atomic(ctx, func(tx repository.Repositories) error {
		updated, err := s.applyPointsChange(ctx, tx, userID, -reward.PointsCost, 0)
		if err != nil {
			return err
		}
		account = updated

		if err := tx.Vouchers.Create(ctx, voucher); err != nil {
			return fmt.Errorf("failed to create voucher: %w", err)
		}

		voucherID := voucher.ID
		return appendTransaction(ctx, tx, &models.LoyaltyTransaction{
			UserID:          userID,
			PointsRedeemed:  reward.PointsCost,
			TransactionType: models.TransactionTypeRedemption,
			ServiceDetails:  "Redeemed: " + reward.Name,
			RelatedOrderID:  &voucherID,
			CreatedAt:       now,
		})
	})
	if err != nil {
		metrics.RecordRedemption("error")
		s.log.Error().Err(err).Uint("user_id", userID).Uint("reward_id", rewardID).Msg("Redemption failed")
		return nil, err
	}

	voucher.Reward = reward
	metrics.RecordRedemption("success")
	metrics.RecordPointsRedeemed(reward.Category, reward.PointsCost)

	s.log.Info().
		Uint("user_id", userID).
		Uint("reward_id", reward.ID).
		Uint("voucher_id", voucher.ID).
		Int64("points", reward.PointsCost).
		Int64("balance", account.TotalPoints).
		Msg("Reward redeemed")

	return &RedeemResult{
		Voucher: voucher,
		Account: account,
		Message: fmt.Sprintf("Successfully redeemed %s! Your voucher expires on %s.",
			reward.Name, voucher.ExpiresAt.Format("January 2, 2006")),
	}, nil
}

// UseReward marks one of the user's available vouchers as used. Used,
// expired, unknown and foreign vouchers all report ErrVoucherNotFound.
func (s *Service) UseReward(ctx context.Context, userID, userRewardID uint) (*models.UserReward, error) {
	release, err := s.lockUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	repos := s.uow.Repositories()

	voucher, err := repos.Vouchers.GetByID(ctx, userRewardID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.ErrVoucherNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}

	now := s.now()
	if voucher.UserID != userID || !voucher.IsAvailable(now) {
		return nil, apperr.ErrVoucherNotFound
	}

	// Vouchers are single use whatever the reward's usage limit says.
	voucher.IsUsed = true
	voucher.UsedAt = &now
	voucher.UsageCount++

	if err := repos.Vouchers.Update(ctx, voucher); err != nil {
		return nil, fmt.Errorf("failed to update voucher: %w", err)
	}

	metrics.RecordVoucherUsed()
	s.log.Info().Uint("user_id", userID).Uint("voucher_id", voucher.ID).Msg("Voucher used")

	return voucher, nil
}

func appendTransaction(ctx context.Context, repos repository.Repositories, txn *models.LoyaltyTransaction) error {
	if err := repos.Transactions.Append(ctx, txn); err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}
