// Package memory provides an in-process implementation of the repository
// stores. State lives in maps guarded by one mutex; Atomic does not roll back.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aimd54/wellness-rewards/internal/models"
	"github.com/aimd54/wellness-rewards/internal/repository"
)

type state struct {
	mu sync.RWMutex

	ledgers        map[uint]models.LoyaltyAccount // by user ID
	rewards        map[uint]models.Reward
	vouchers       map[uint]models.UserReward
	transactions   []models.LoyaltyTransaction
	challenges     map[uint]models.WellnessChallenge
	participations map[uint]models.ChallengeParticipation
	activities     []models.ChallengeActivity
	users          map[uint]models.User

	nextID map[string]uint
}

func (s *state) id(kind string) uint {
	s.nextID[kind]++
	return s.nextID[kind]
}

// Store is an in-memory unit of work.
type Store struct {
	st *state
}

// New creates an empty store.
func New() *Store {
	return &Store{st: &state{
		ledgers:        make(map[uint]models.LoyaltyAccount),
		rewards:        make(map[uint]models.Reward),
		vouchers:       make(map[uint]models.UserReward),
		challenges:     make(map[uint]models.WellnessChallenge),
		participations: make(map[uint]models.ChallengeParticipation),
		users:          make(map[uint]models.User),
		nextID:         make(map[string]uint),
	}}
}

// Repositories returns stores sharing this Store's state.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Ledgers:        &Ledgers{st: s.st},
		Rewards:        &Rewards{st: s.st},
		Vouchers:       &Vouchers{st: s.st},
		Transactions:   &Transactions{st: s.st},
		Challenges:     &Challenges{st: s.st},
		Participations: &Participations{st: s.st},
		Activities:     &Activities{st: s.st},
		Users:          &Users{st: s.st},
	}
}

// Atomic runs fn against the live state. Writes made before a failure stay applied.
func (s *Store) Atomic(_ context.Context, fn func(repos repository.Repositories) error) error {
	return fn(s.Repositories())
}

// Ledgers is the in-memory LedgerStore.
type Ledgers struct{ st *state }

// GetByUserID returns a copy of the user's ledger.
func (r *Ledgers) GetByUserID(_ context.Context, userID uint) (*models.LoyaltyAccount, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	account, ok := r.st.ledgers[userID]
	if !ok {
		return nil, fmt.Errorf("ledger for user %d: %w", userID, repository.ErrNotFound)
	}
	return &account, nil
}

// Create stores a new ledger.
func (r *Ledgers) Create(_ context.Context, account *models.LoyaltyAccount) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, exists := r.st.ledgers[account.UserID]; exists {
		return fmt.Errorf("ledger for user %d already exists", account.UserID)
	}
	account.ID = r.st.id("ledger")
	r.st.ledgers[account.UserID] = *account
	return nil
}

// Update replaces the stored ledger.
func (r *Ledgers) Update(_ context.Context, account *models.LoyaltyAccount) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, exists := r.st.ledgers[account.UserID]; !exists {
		return fmt.Errorf("ledger for user %d: %w", account.UserID, repository.ErrNotFound)
	}
	r.st.ledgers[account.UserID] = *account
	return nil
}

// Rewards is the in-memory RewardStore.
type Rewards struct{ st *state }

// Create validates and stores a reward.
func (r *Rewards) Create(_ context.Context, reward *models.Reward) error {
	if err := reward.Validate(); err != nil {
		return fmt.Errorf("invalid reward %q: %w", reward.Name, err)
	}

	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	reward.ID = r.st.id("reward")
	if reward.CreatedAt.IsZero() {
		reward.CreatedAt = time.Now()
	}
	r.st.rewards[reward.ID] = *reward
	return nil
}

// GetByID returns a copy of the reward.
func (r *Rewards) GetByID(_ context.Context, id uint) (*models.Reward, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	reward, ok := r.st.rewards[id]
	if !ok {
		return nil, fmt.Errorf("reward %d: %w", id, repository.ErrNotFound)
	}
	return &reward, nil
}

// ListAll returns every reward by ID.
func (r *Rewards) ListAll(_ context.Context) ([]models.Reward, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	rewards := make([]models.Reward, 0, len(r.st.rewards))
	for _, reward := range r.st.rewards {
		rewards = append(rewards, reward)
	}
	sort.Slice(rewards, func(i, j int) bool { return rewards[i].ID < rewards[j].ID })
	return rewards, nil
}

// ListEligible returns active rewards at or below tier, cheapest first.
func (r *Rewards) ListEligible(ctx context.Context, tier int) ([]models.Reward, error) {
	all, _ := r.ListAll(ctx)

	eligible := make([]models.Reward, 0, len(all))
	for _, reward := range all {
		if reward.IsActive && reward.TierRequirement <= tier {
			eligible = append(eligible, reward)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool { return eligible[i].PointsCost < eligible[j].PointsCost })
	return eligible, nil
}

// Vouchers is the in-memory VoucherStore.
type Vouchers struct{ st *state }

func (r *Vouchers) withReward(v models.UserReward) models.UserReward {
	if reward, ok := r.st.rewards[v.RewardID]; ok {
		v.Reward = &reward
	}
	return v
}

// Create stores a voucher.
func (r *Vouchers) Create(_ context.Context, voucher *models.UserReward) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	voucher.ID = r.st.id("voucher")
	stored := *voucher
	stored.Reward = nil
	r.st.vouchers[voucher.ID] = stored
	return nil
}

// GetByID returns a copy of the voucher with its reward attached.
func (r *Vouchers) GetByID(_ context.Context, id uint) (*models.UserReward, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	voucher, ok := r.st.vouchers[id]
	if !ok {
		return nil, fmt.Errorf("voucher %d: %w", id, repository.ErrNotFound)
	}
	voucher = r.withReward(voucher)
	return &voucher, nil
}

// Update replaces the stored voucher.
func (r *Vouchers) Update(_ context.Context, voucher *models.UserReward) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.vouchers[voucher.ID]; !ok {
		return fmt.Errorf("voucher %d: %w", voucher.ID, repository.ErrNotFound)
	}
	stored := *voucher
	stored.Reward = nil
	r.st.vouchers[voucher.ID] = stored
	return nil
}

// ListAvailable returns the user's unused vouchers expiring after now.
func (r *Vouchers) ListAvailable(_ context.Context, userID uint, now time.Time) ([]models.UserReward, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	var vouchers []models.UserReward
	for _, v := range r.st.vouchers {
		if v.UserID == userID && v.IsAvailable(now) {
			vouchers = append(vouchers, r.withReward(v))
		}
	}
	sort.Slice(vouchers, func(i, j int) bool {
		if vouchers[i].ExpiresAt.Equal(vouchers[j].ExpiresAt) {
			return vouchers[i].ID < vouchers[j].ID
		}
		return vouchers[i].ExpiresAt.Before(vouchers[j].ExpiresAt)
	})
	return vouchers, nil
}

// CountExpiredUnused counts unused vouchers that expired at or before now.
func (r *Vouchers) CountExpiredUnused(_ context.Context, now time.Time) (int64, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	var count int64
	for _, v := range r.st.vouchers {
		if !v.IsUsed && !v.ExpiresAt.After(now) {
			count++
		}
	}
	return count, nil
}

// Transactions is the in-memory TransactionStore.
type Transactions struct{ st *state }

// Append adds a transaction to the log.
func (r *Transactions) Append(_ context.Context, txn *models.LoyaltyTransaction) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	txn.ID = r.st.id("transaction")
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	r.st.transactions = append(r.st.transactions, *txn)
	return nil
}

// ListByUser returns the user's transactions newest first.
func (r *Transactions) ListByUser(_ context.Context, userID uint, limit int) ([]models.LoyaltyTransaction, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	var txns []models.LoyaltyTransaction
	for i := len(r.st.transactions) - 1; i >= 0; i-- {
		if r.st.transactions[i].UserID == userID {
			txns = append(txns, r.st.transactions[i])
		}
	}
	sort.SliceStable(txns, func(i, j int) bool { return txns[i].CreatedAt.After(txns[j].CreatedAt) })
	if limit > 0 && len(txns) > limit {
		txns = txns[:limit]
	}
	return txns, nil
}

// Challenges is the in-memory ChallengeStore.
type Challenges struct{ st *state }

// Create stores a challenge.
func (r *Challenges) Create(_ context.Context, challenge *models.WellnessChallenge) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	challenge.ID = r.st.id("challenge")
	if challenge.CreatedAt.IsZero() {
		challenge.CreatedAt = time.Now()
	}
	r.st.challenges[challenge.ID] = *challenge
	return nil
}

// GetByID returns a copy of the challenge.
func (r *Challenges) GetByID(_ context.Context, id uint) (*models.WellnessChallenge, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	challenge, ok := r.st.challenges[id]
	if !ok {
		return nil, fmt.Errorf("challenge %d: %w", id, repository.ErrNotFound)
	}
	return &challenge, nil
}

// Update replaces the stored challenge.
func (r *Challenges) Update(_ context.Context, challenge *models.WellnessChallenge) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.challenges[challenge.ID]; !ok {
		return fmt.Errorf("challenge %d: %w", challenge.ID, repository.ErrNotFound)
	}
	r.st.challenges[challenge.ID] = *challenge
	return nil
}

// List returns all challenges ordered by start date.
func (r *Challenges) List(_ context.Context) ([]models.WellnessChallenge, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	challenges := make([]models.WellnessChallenge, 0, len(r.st.challenges))
	for _, c := range r.st.challenges {
		challenges = append(challenges, c)
	}
	sort.Slice(challenges, func(i, j int) bool {
		if challenges[i].StartDate.Equal(challenges[j].StartDate) {
			return challenges[i].ID < challenges[j].ID
		}
		return challenges[i].StartDate.Before(challenges[j].StartDate)
	})
	return challenges, nil
}

// ListFlaggedActive returns challenges with the active flag, soonest end first.
func (r *Challenges) ListFlaggedActive(ctx context.Context) ([]models.WellnessChallenge, error) {
	all, _ := r.List(ctx)

	var active []models.WellnessChallenge
	for _, c := range all {
		if c.IsActive {
			active = append(active, c)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].EndDate.Equal(active[j].EndDate) {
			return active[i].ID < active[j].ID
		}
		return active[i].EndDate.Before(active[j].EndDate)
	})
	return active, nil
}

// Participations is the in-memory ParticipationStore.
type Participations struct{ st *state }

// Create stores a participation, rejecting a duplicate (user, challenge) pair.
func (r *Participations) Create(_ context.Context, participation *models.ChallengeParticipation) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	for _, p := range r.st.participations {
		if p.UserID == participation.UserID && p.ChallengeID == participation.ChallengeID {
			return fmt.Errorf("participation of user %d in challenge %d already exists",
				participation.UserID, participation.ChallengeID)
		}
	}
	participation.ID = r.st.id("participation")
	r.st.participations[participation.ID] = *participation
	return nil
}

// Get returns a copy of the user's participation in a challenge.
func (r *Participations) Get(_ context.Context, userID, challengeID uint) (*models.ChallengeParticipation, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	for _, p := range r.st.participations {
		if p.UserID == userID && p.ChallengeID == challengeID {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("participation of user %d in challenge %d: %w", userID, challengeID, repository.ErrNotFound)
}

// Update replaces the stored participation.
func (r *Participations) Update(_ context.Context, participation *models.ChallengeParticipation) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.participations[participation.ID]; !ok {
		return fmt.Errorf("participation %d: %w", participation.ID, repository.ErrNotFound)
	}
	r.st.participations[participation.ID] = *participation
	return nil
}

// ListByChallenge returns a challenge's participations in join order.
func (r *Participations) ListByChallenge(_ context.Context, challengeID uint) ([]models.ChallengeParticipation, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	var participations []models.ChallengeParticipation
	for _, p := range r.st.participations {
		if p.ChallengeID == challengeID {
			participations = append(participations, p)
		}
	}
	sort.Slice(participations, func(i, j int) bool {
		if participations[i].JoinedAt.Equal(participations[j].JoinedAt) {
			return participations[i].ID < participations[j].ID
		}
		return participations[i].JoinedAt.Before(participations[j].JoinedAt)
	})
	return participations, nil
}

// Activities is the in-memory ActivityStore.
type Activities struct{ st *state }

// Append adds an activity to the log.
func (r *Activities) Append(_ context.Context, activity *models.ChallengeActivity) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	activity.ID = r.st.id("activity")
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now()
	}
	r.st.activities = append(r.st.activities, *activity)
	return nil
}

// ListByParticipation returns a participation's activities oldest first.
func (r *Activities) ListByParticipation(_ context.Context, participationID uint) ([]models.ChallengeActivity, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	var activities []models.ChallengeActivity
	for _, a := range r.st.activities {
		if a.ParticipationID == participationID {
			activities = append(activities, a)
		}
	}
	return activities, nil
}

// Users is the in-memory UserStore.
type Users struct{ st *state }

// Save creates or replaces a user profile. A zero ID gets a fresh one.
func (r *Users) Save(_ context.Context, user *models.User) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if user.ID == 0 {
		user.ID = r.st.id("user")
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.st.users[user.ID] = *user
	return nil
}

// GetByIDs returns the known profiles among ids.
func (r *Users) GetByIDs(_ context.Context, ids []uint) (map[uint]models.User, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	result := make(map[uint]models.User, len(ids))
	for _, id := range ids {
		if u, ok := r.st.users[id]; ok {
			result[id] = u
		}
	}
	return result, nil
}

var (
	_ repository.UnitOfWork         = (*Store)(nil)
	_ repository.LedgerStore        = (*Ledgers)(nil)
	_ repository.RewardStore        = (*Rewards)(nil)
	_ repository.VoucherStore       = (*Vouchers)(nil)
	_ repository.TransactionStore   = (*Transactions)(nil)
	_ repository.ChallengeStore     = (*Challenges)(nil)
	_ repository.ParticipationStore = (*Participations)(nil)
	_ repository.ActivityStore      = (*Activities)(nil)
	_ repository.UserStore          = (*Users)(nil)
)
