package repository

import (
	"context"
	"fmt"

	"github.com/aimd54/wellness-rewards/internal/models"
)

// LedgerRepository handles loyalty account database operations.
type LedgerRepository struct {
	db *DB
}

// NewLedgerRepository creates a new ledger repository.
func NewLedgerRepository(db *DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// GetByUserID retrieves the ledger owned by userID.
func (r *LedgerRepository) GetByUserID(ctx context.Context, userID uint) (*models.LoyaltyAccount, error) {
	var account models.LoyaltyAccount
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error; err != nil {
		return nil, notFound(err, "failed to get ledger for user %d", userID)
	}
	return &account, nil
}

// Create inserts a new ledger.
func (r *LedgerRepository) Create(ctx context.Context, account *models.LoyaltyAccount) error {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return fmt.Errorf("failed to create ledger: %w", err)
	}
	return nil
}

// Update saves balance, spend, tier and activity time.
func (r *LedgerRepository) Update(ctx context.Context, account *models.LoyaltyAccount) error {
	if err := r.db.WithContext(ctx).Save(account).Error; err != nil {
		return fmt.Errorf("failed to update ledger: %w", err)
	}
	return nil
}
