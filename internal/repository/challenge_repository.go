package repository

import (
	"context"
	"fmt"

	"github.com/aimd54/wellness-rewards/internal/models"
)

// ChallengeRepository handles wellness challenge database operations.
type ChallengeRepository struct {
	db *DB
}

// NewChallengeRepository creates a new challenge repository.
func NewChallengeRepository(db *DB) *ChallengeRepository {
	return &ChallengeRepository{db: db}
}

// Create inserts a challenge.
func (r *ChallengeRepository) Create(ctx context.Context, challenge *models.WellnessChallenge) error {
	active := challenge.IsActive
	if err := r.db.WithContext(ctx).Create(challenge).Error; err != nil {
		return fmt.Errorf("failed to create challenge: %w", err)
	}
	// A false flag is a zero value, so the insert fell back to the column default.
	if !active {
		if err := r.db.WithContext(ctx).Model(challenge).Update("is_active", false).Error; err != nil {
			return fmt.Errorf("failed to deactivate challenge: %w", err)
		}
		challenge.IsActive = false
	}
	return nil
}

// GetByID retrieves a challenge by its ID.
func (r *ChallengeRepository) GetByID(ctx context.Context, id uint) (*models.WellnessChallenge, error) {
	var challenge models.WellnessChallenge
	if err := r.db.WithContext(ctx).First(&challenge, id).Error; err != nil {
		return nil, notFound(err, "failed to get challenge %d", id)
	}
	return &challenge, nil
}

// Update saves a challenge.
func (r *ChallengeRepository) Update(ctx context.Context, challenge *models.WellnessChallenge) error {
	if err := r.db.WithContext(ctx).Save(challenge).Error; err != nil {
		return fmt.Errorf("failed to update challenge: %w", err)
	}
	return nil
}

// List retrieves all challenges ordered by start date.
func (r *ChallengeRepository) List(ctx context.Context) ([]models.WellnessChallenge, error) {
	var challenges []models.WellnessChallenge
	err := r.db.WithContext(ctx).Order("start_date ASC, id ASC").Find(&challenges).Error
	return challenges, err
}

// ListFlaggedActive retrieves challenges whose active flag is set.
func (r *ChallengeRepository) ListFlaggedActive(ctx context.Context) ([]models.WellnessChallenge, error) {
	var challenges []models.WellnessChallenge
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("end_date ASC, id ASC").
		Find(&challenges).Error
	return challenges, err
}

// ParticipationRepository handles challenge enrollment database operations.
type ParticipationRepository struct {
	db *DB
}

// NewParticipationRepository creates a new participation repository.
func NewParticipationRepository(db *DB) *ParticipationRepository {
	return &ParticipationRepository{db: db}
}

// Create inserts a participation. The (user_id, challenge_id) unique index
// rejects duplicates that slip past the service check.
func (r *ParticipationRepository) Create(ctx context.Context, participation *models.ChallengeParticipation) error {
	if err := r.db.WithContext(ctx).Create(participation).Error; err != nil {
		return fmt.Errorf("failed to create participation: %w", err)
	}
	return nil
}

// Get retrieves the participation of a user in a challenge.
func (r *ParticipationRepository) Get(ctx context.Context, userID, challengeID uint) (*models.ChallengeParticipation, error) {
	var participation models.ChallengeParticipation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND challenge_id = ?", userID, challengeID).
		First(&participation).Error
	if err != nil {
		return nil, notFound(err, "failed to get participation of user %d in challenge %d", userID, challengeID)
	}
	return &participation, nil
}

// Update saves score and counters.
func (r *ParticipationRepository) Update(ctx context.Context, participation *models.ChallengeParticipation) error {
	if err := r.db.WithContext(ctx).Save(participation).Error; err != nil {
		return fmt.Errorf("failed to update participation: %w", err)
	}
	return nil
}

// ListByChallenge retrieves all participations of a challenge in join order.
func (r *ParticipationRepository) ListByChallenge(ctx context.Context, challengeID uint) ([]models.ChallengeParticipation, error) {
	var participations []models.ChallengeParticipation
	err := r.db.WithContext(ctx).
		Where("challenge_id = ?", challengeID).
		Order("joined_at ASC, id ASC").
		Find(&participations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list participations for challenge %d: %w", challengeID, err)
	}
	return participations, nil
}

// ActivityRepository handles the challenge activity log.
type ActivityRepository struct {
	db *DB
}

// NewActivityRepository creates a new activity repository.
func NewActivityRepository(db *DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Append inserts an activity entry.
func (r *ActivityRepository) Append(ctx context.Context, activity *models.ChallengeActivity) error {
	if err := r.db.WithContext(ctx).Create(activity).Error; err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

// ListByParticipation retrieves a participation's activities oldest first.
func (r *ActivityRepository) ListByParticipation(ctx context.Context, participationID uint) ([]models.ChallengeActivity, error) {
	var activities []models.ChallengeActivity
	err := r.db.WithContext(ctx).
		Where("participation_id = ?", participationID).
		Order("created_at ASC, id ASC").
		Find(&activities).Error
	return activities, err
}
