package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aimd54/wellness-rewards/internal/models"
)

// VoucherRepository handles user reward database operations.
type VoucherRepository struct {
	db *DB
}

// NewVoucherRepository creates a new voucher repository.
func NewVoucherRepository(db *DB) *VoucherRepository {
	return &VoucherRepository{db: db}
}

// Create inserts a voucher.
func (r *VoucherRepository) Create(ctx context.Context, voucher *models.UserReward) error {
	if err := r.db.WithContext(ctx).Omit("Reward").Create(voucher).Error; err != nil {
		return fmt.Errorf("failed to create voucher: %w", err)
	}
	return nil
}

// GetByID retrieves a voucher with its reward preloaded.
func (r *VoucherRepository) GetByID(ctx context.Context, id uint) (*models.UserReward, error) {
	var voucher models.UserReward
	if err := r.db.WithContext(ctx).Preload("Reward").First(&voucher, id).Error; err != nil {
		return nil, notFound(err, "failed to get voucher %d", id)
	}
	return &voucher, nil
}

// Update saves usage fields of a voucher.
func (r *VoucherRepository) Update(ctx context.Context, voucher *models.UserReward) error {
	if err := r.db.WithContext(ctx).Omit("Reward").Save(voucher).Error; err != nil {
		return fmt.Errorf("failed to update voucher: %w", err)
	}
	return nil
}

// ListAvailable retrieves unused, unexpired vouchers for a user, soonest expiry first.
func (r *VoucherRepository) ListAvailable(ctx context.Context, userID uint, now time.Time) ([]models.UserReward, error) {
	var vouchers []models.UserReward
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_used = ? AND expires_at > ?", userID, false, now).
		Preload("Reward").
		Order("expires_at ASC").
		Find(&vouchers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list vouchers for user %d: %w", userID, err)
	}
	return vouchers, nil
}

// CountExpiredUnused counts vouchers that lapsed without being used.
func (r *VoucherRepository) CountExpiredUnused(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserReward{}).
		Where("is_used = ? AND expires_at <= ?", false, now).
		Count(&count).Error
	return count, err
}
