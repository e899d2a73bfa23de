package repository

import (
	"context"
	"fmt"

	"github.com/aimd54/wellness-rewards/internal/models"
)

// RewardRepository handles reward catalog database operations.
type RewardRepository struct {
	db *DB
}

// NewRewardRepository creates a new reward repository.
func NewRewardRepository(db *DB) *RewardRepository {
	return &RewardRepository{db: db}
}

// Create validates and inserts a catalog entry.
func (r *RewardRepository) Create(ctx context.Context, reward *models.Reward) error {
	if err := reward.Validate(); err != nil {
		return fmt.Errorf("invalid reward %q: %w", reward.Name, err)
	}
	active := reward.IsActive
	if err := r.db.WithContext(ctx).Create(reward).Error; err != nil {
		return fmt.Errorf("failed to create reward: %w", err)
	}
	// A false flag is a zero value, so the insert fell back to the column default.
	if !active {
		if err := r.db.WithContext(ctx).Model(reward).Update("is_active", false).Error; err != nil {
			return fmt.Errorf("failed to deactivate reward: %w", err)
		}
		reward.IsActive = false
	}
	return nil
}

// GetByID retrieves a reward by its ID.
func (r *RewardRepository) GetByID(ctx context.Context, id uint) (*models.Reward, error) {
	var reward models.Reward
	if err := r.db.WithContext(ctx).First(&reward, id).Error; err != nil {
		return nil, notFound(err, "failed to get reward %d", id)
	}
	return &reward, nil
}

// ListAll retrieves every reward, including inactive ones.
func (r *RewardRepository) ListAll(ctx context.Context) ([]models.Reward, error) {
	var rewards []models.Reward
	err := r.db.WithContext(ctx).Order("id ASC").Find(&rewards).Error
	return rewards, err
}

// ListEligible retrieves active rewards available at the given tier.
func (r *RewardRepository) ListEligible(ctx context.Context, tier int) ([]models.Reward, error) {
	var rewards []models.Reward
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND tier_requirement <= ?", true, tier).
		Order("points_cost ASC, id ASC").
		Find(&rewards).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible rewards: %w", err)
	}
	return rewards, nil
}
