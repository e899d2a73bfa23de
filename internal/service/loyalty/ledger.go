package loyalty

import (
	"context"
	"errors"
	"fmt"

	"github.com/aimd54/wellness-rewards/internal/apperr"
	"github.com/aimd54/wellness-rewards/internal/metrics"
	"github.com/aimd54/wellness-rewards/internal/models"
	"github.com/aimd54/wellness-rewards/internal/repository"
)

// GetOrCreateLedger returns the user's ledger, creating an empty Bronze one
// on first access.
func (s *Service) GetOrCreateLedger(ctx context.Context, userID uint) (*models.LoyaltyAccount, error) {
	release, err := s.lockUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.getOrCreate(ctx, s.uow.Repositories(), userID)
}

// ApplyPointsChange adds pointsDelta to the balance, clamping at zero, and
// adds lifetimeSpentDelta to lifetime spend. The tier is recomputed.
func (s *Service) ApplyPointsChange(ctx context.Context, userID uint, pointsDelta, lifetimeSpentDelta int64) (*models.LoyaltyAccount, error) {
	release, err := s.lockUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.applyPointsChange(ctx, s.uow.Repositories(), userID, pointsDelta, lifetimeSpentDelta)
}

func (s *Service) getOrCreate(ctx context.Context, repos repository.Repositories, userID uint) (*models.LoyaltyAccount, error) {
	account, err := repos.Ledgers.GetByUserID(ctx, userID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}

	now := s.now()
	account = &models.LoyaltyAccount{
		UserID:           userID,
		CurrentTierLevel: models.TierBronze,
		JoinedAt:         now,
		LastActivity:     now,
	}
	if err := repos.Ledgers.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create ledger: %w", err)
	}

	s.log.Info().Uint("user_id", userID).Msg("Created loyalty account")
	return account, nil
}

func (s *Service) applyPointsChange(ctx context.Context, repos repository.Repositories, userID uint, pointsDelta, lifetimeSpentDelta int64) (*models.LoyaltyAccount, error) {
	now := s.now()

	account, err := repos.Ledgers.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		account = &models.LoyaltyAccount{
			UserID:        userID,
			TotalPoints:   max(0, pointsDelta),
			LifetimeSpent: max(0, lifetimeSpentDelta),
			JoinedAt:      now,
			LastActivity:  now,
		}
		account.CurrentTierLevel = TierFor(account.LifetimeSpent)
		if err := repos.Ledgers.Create(ctx, account); err != nil {
			return nil, fmt.Errorf("failed to create ledger: %w", err)
		}
		s.logTierChange(userID, models.TierBronze, account.CurrentTierLevel)
		return account, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}

	points, ok := addInt64(account.TotalPoints, pointsDelta)
	if !ok {
		return nil, apperr.Validation("points balance would overflow")
	}
	spent, ok := addInt64(account.LifetimeSpent, lifetimeSpentDelta)
	if !ok {
		return nil, apperr.Validation("lifetime spend would overflow")
	}

	previousTier := account.CurrentTierLevel
	account.TotalPoints = max(0, points)
	account.LifetimeSpent = spent
	account.CurrentTierLevel = TierFor(account.LifetimeSpent)
	account.LastActivity = now

	if err := repos.Ledgers.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update ledger: %w", err)
	}

	s.logTierChange(userID, previousTier, account.CurrentTierLevel)
	return account, nil
}

// addInt64 returns a+b and false when the sum overflows.
func addInt64(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

func (s *Service) logTierChange(userID uint, from, to int) {
	if to <= from {
		return
	}
	metrics.RecordTierUpgrade(to)
	s.log.Info().
		Uint("user_id", userID).
		Str("from", TierName(from)).
		Str("to", TierName(to)).
		Msg("Tier upgraded")
}
