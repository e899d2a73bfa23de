package repository

import (
	"context"
	"fmt"

	"github.com/aimd54/wellness-rewards/internal/models"
)

// TransactionRepository handles the loyalty transaction log.
type TransactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new transaction repository.
func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Append inserts a transaction. Entries are never updated.
func (r *TransactionRepository) Append(ctx context.Context, txn *models.LoyaltyTransaction) error {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// ListByUser retrieves a user's transactions newest first.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.LoyaltyTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var txns []models.LoyaltyTransaction
	if err := query.Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions for user %d: %w", userID, err)
	}
	return txns, nil
}
