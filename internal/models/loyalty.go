// Package models defines domain models for the wellness rewards system.
package models

import (
	"errors"
	"time"
)

// Tier levels.
const (
	TierBronze   = 1
	TierSilver   = 2
	TierGold     = 3
	TierPlatinum = 4
)

// TransactionTypeRedemption labels point-spending transactions.
const TransactionTypeRedemption = "redemption"

// Reward categories seen in the catalog.
const (
	CategoryRestaurant = "restaurant"
	CategoryFitness    = "fitness"
	CategoryClinic     = "clinic"
	CategoryStore      = "store"
	CategoryTelehealth = "telehealth"
	CategoryPremium    = "premium"
)

// LoyaltyAccount is a user's point ledger. CurrentTierLevel is always derived
// from LifetimeSpent and never set directly after creation.
type LoyaltyAccount struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	TotalPoints      int64     `gorm:"not null;default:0" json:"total_points"`
	CurrentTierLevel int       `gorm:"not null;default:1" json:"current_tier_level"`
	LifetimeSpent    int64     `gorm:"not null;default:0" json:"lifetime_spent"` // currency minor units
	JoinedAt         time.Time `gorm:"not null" json:"joined_at"`
	LastActivity     time.Time `gorm:"not null" json:"last_activity"`
}

// TableName specifies the table name for LoyaltyAccount model.
func (LoyaltyAccount) TableName() string {
	return "loyalty_accounts"
}

// Reward is a catalog entry redeemable for points.
type Reward struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"size:255;not null" json:"name"`
	Description     string    `gorm:"type:text" json:"description"`
	Category        string    `gorm:"size:50;index" json:"category"`
	PointsCost      int64     `gorm:"not null" json:"points_cost"`
	DiscountPercent *int      `json:"discount_percent,omitempty"`
	DiscountAmount  *int64    `json:"discount_amount,omitempty"`
	TierRequirement int       `gorm:"not null;default:1" json:"tier_requirement"`
	IsActive        bool      `gorm:"not null;default:true;index" json:"is_active"`
	ExpiryDays      int       `gorm:"not null;default:30" json:"expiry_days"`
	UsageLimit      int       `gorm:"not null;default:1" json:"usage_limit"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName specifies the table name for Reward model.
func (Reward) TableName() string {
	return "rewards"
}

// Validate checks catalog invariants before a reward is stored.
func (r *Reward) Validate() error {
	if r.Name == "" {
		return errors.New("reward name is required")
	}
	if r.PointsCost <= 0 {
		return errors.New("reward points cost must be positive")
	}
	if r.DiscountPercent != nil && r.DiscountAmount != nil {
		return errors.New("reward may set discount percent or discount amount, not both")
	}
	if r.DiscountPercent != nil && (*r.DiscountPercent <= 0 || *r.DiscountPercent > 100) {
		return errors.New("reward discount percent must be within 1..100")
	}
	if r.TierRequirement < TierBronze || r.TierRequirement > TierPlatinum {
		return errors.New("reward tier requirement must be within 1..4")
	}
	if r.ExpiryDays <= 0 {
		return errors.New("reward expiry days must be positive")
	}
	if r.UsageLimit <= 0 {
		return errors.New("reward usage limit must be positive")
	}
	return nil
}

// UserReward is a voucher issued by redeeming a reward.
type UserReward struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Code       string     `gorm:"uniqueIndex;size:36;not null" json:"code"`
	UserID     uint       `gorm:"not null;index" json:"user_id"`
	RewardID   uint       `gorm:"not null;index" json:"reward_id"`
	Reward     *Reward    `gorm:"foreignKey:RewardID" json:"reward,omitempty"`
	RedeemedAt time.Time  `gorm:"not null" json:"redeemed_at"`
	ExpiresAt  time.Time  `gorm:"not null;index" json:"expires_at"`
	UsedAt     *time.Time `json:"used_at"`
	IsUsed     bool       `gorm:"not null;default:false" json:"is_used"`
	UsageCount int        `gorm:"not null;default:0" json:"usage_count"`
}

// TableName specifies the table name for UserReward model.
func (UserReward) TableName() string {
	return "user_rewards"
}

// IsAvailable reports whether the voucher can still be used at now.
func (v *UserReward) IsAvailable(now time.Time) bool {
	return !v.IsUsed && v.ExpiresAt.After(now)
}

// LoyaltyTransaction is an append-only record of points earned or spent.
type LoyaltyTransaction struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;index" json:"user_id"`
	PointsEarned    int64     `gorm:"not null;default:0" json:"points_earned"`
	PointsRedeemed  int64     `gorm:"not null;default:0" json:"points_redeemed"`
	TransactionType string    `gorm:"size:100;not null" json:"transaction_type"`
	ServiceDetails  string    `gorm:"type:text" json:"service_details"`
	RelatedOrderID  *uint     `json:"related_order_id"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for LoyaltyTransaction model.
func (LoyaltyTransaction) TableName() string {
	return "loyalty_transactions"
}
