package repository

import (
	"context"
	"errors"
	"time"

	"github.com/aimd54/wellness-rewards/internal/models"
)

// ErrNotFound is returned by every store when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// LedgerStore persists loyalty accounts, keyed by user ID.
type LedgerStore interface {
	GetByUserID(ctx context.Context, userID uint) (*models.LoyaltyAccount, error)
	Create(ctx context.Context, account *models.LoyaltyAccount) error
	Update(ctx context.Context, account *models.LoyaltyAccount) error
}

// RewardStore persists the reward catalog.
type RewardStore interface {
	Create(ctx context.Context, reward *models.Reward) error
	GetByID(ctx context.Context, id uint) (*models.Reward, error)
	ListAll(ctx context.Context) ([]models.Reward, error)
	// ListEligible returns active rewards whose tier requirement is at most tier,
	// cheapest first.
	ListEligible(ctx context.Context, tier int) ([]models.Reward, error)
}

// VoucherStore persists redeemed rewards.
type VoucherStore interface {
	Create(ctx context.Context, voucher *models.UserReward) error
	GetByID(ctx context.Context, id uint) (*models.UserReward, error)
	Update(ctx context.Context, voucher *models.UserReward) error
	// ListAvailable returns the user's unused vouchers expiring after now.
	ListAvailable(ctx context.Context, userID uint, now time.Time) ([]models.UserReward, error)
	CountExpiredUnused(ctx context.Context, now time.Time) (int64, error)
}

// TransactionStore is the append-only loyalty transaction log.
type TransactionStore interface {
	Append(ctx context.Context, txn *models.LoyaltyTransaction) error
	// ListByUser returns the user's transactions newest first. limit <= 0 means all.
	ListByUser(ctx context.Context, userID uint, limit int) ([]models.LoyaltyTransaction, error)
}

// ChallengeStore persists wellness challenges.
type ChallengeStore interface {
	Create(ctx context.Context, challenge *models.WellnessChallenge) error
	GetByID(ctx context.Context, id uint) (*models.WellnessChallenge, error)
	Update(ctx context.Context, challenge *models.WellnessChallenge) error
	List(ctx context.Context) ([]models.WellnessChallenge, error)
	// ListFlaggedActive returns challenges with IsActive set, regardless of dates.
	ListFlaggedActive(ctx context.Context) ([]models.WellnessChallenge, error)
}

// ParticipationStore persists challenge enrollments.
type ParticipationStore interface {
	Create(ctx context.Context, participation *models.ChallengeParticipation) error
	Get(ctx context.Context, userID, challengeID uint) (*models.ChallengeParticipation, error)
	Update(ctx context.Context, participation *models.ChallengeParticipation) error
	ListByChallenge(ctx context.Context, challengeID uint) ([]models.ChallengeParticipation, error)
}

// ActivityStore is the append-only challenge activity log.
type ActivityStore interface {
	Append(ctx context.Context, activity *models.ChallengeActivity) error
	ListByParticipation(ctx context.Context, participationID uint) ([]models.ChallengeActivity, error)
}

// UserStore persists public user profiles.
type UserStore interface {
	Save(ctx context.Context, user *models.User) error
	GetByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error)
}

// Repositories groups one store per entity type.
type Repositories struct {
	Ledgers        LedgerStore
	Rewards        RewardStore
	Vouchers       VoucherStore
	Transactions   TransactionStore
	Challenges     ChallengeStore
	Participations ParticipationStore
	Activities     ActivityStore
	Users          UserStore
}

// UnitOfWork hands out repositories and runs multi-step mutations.
// Atomic rolls back every write made through its argument when fn fails, if
// the backing store supports transactions; stores that do not simply run fn.
type UnitOfWork interface {
	Repositories() Repositories
	Atomic(ctx context.Context, fn func(repos Repositories) error) error
}
