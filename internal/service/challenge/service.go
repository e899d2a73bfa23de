// Package challenge implements seasonal wellness challenges: enrollment,
// activity scoring and leaderboards.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aimd54/wellness-rewards/internal/apperr"
	"github.com/aimd54/wellness-rewards/internal/config"
	"github.com/aimd54/wellness-rewards/internal/lock"
	"github.com/aimd54/wellness-rewards/internal/metrics"
	"github.com/aimd54/wellness-rewards/internal/models"
	"github.com/aimd54/wellness-rewards/internal/repository"
	"github.com/aimd54/wellness-rewards/pkg/logger"
)

// LeaderboardCache stores computed leaderboards. Incr bumps an integer
// counter that GetJSON can read back.
type LeaderboardCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, keys ...string) error
}

// Service handles challenge enrollment and scoring.
type Service struct {
	uow      repository.UnitOfWork
	locks    lock.Locker
	cache    LeaderboardCache
	cacheTTL time.Duration
	points   map[string]int64
	log      *logger.Logger
	now      func() time.Time
}

// NewServiceWithInterfaces creates a challenge service over any unit of work.
// A nil cache disables leaderboard caching.
func NewServiceWithInterfaces(
	uow repository.UnitOfWork,
	locks lock.Locker,
	lc LeaderboardCache,
	cfg *config.ChallengeConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		uow:      uow,
		locks:    locks,
		cache:    lc,
		cacheTTL: time.Duration(cfg.LeaderboardCacheTTL) * time.Second,
		points:   ActivityPoints(cfg.ActivityPoints),
		log:      log.Component("challenge"),
		now:      time.Now,
	}
}

// PointsFor returns the score of an activity type; unknown types score 0.
func (s *Service) PointsFor(activityType string) int64 {
	return s.points[activityType]
}

// ListChallenges returns every challenge ordered by start date.
func (s *Service) ListChallenges(ctx context.Context) ([]models.WellnessChallenge, error) {
	challenges, err := s.uow.Repositories().Challenges.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	return challenges, nil
}

// GetActiveChallenge returns the challenge running now, or nil. When several
// qualify the one ending soonest wins, then the lowest ID.
func (s *Service) GetActiveChallenge(ctx context.Context) (*models.WellnessChallenge, error) {
	flagged, err := s.uow.Repositories().Challenges.ListFlaggedActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active challenges: %w", err)
	}

	now := s.now()
	var active *models.WellnessChallenge
	for i := range flagged {
		c := &flagged[i]
		if !c.IsActiveAt(now) {
			continue
		}
		if active == nil || c.EndDate.Before(active.EndDate) ||
			(c.EndDate.Equal(active.EndDate) && c.ID < active.ID) {
			active = c
		}
	}
	return active, nil
}

// CreateChallenge stores a new challenge. An active challenge may not
// overlap another active one.
func (s *Service) CreateChallenge(ctx context.Context, challenge *models.WellnessChallenge) error {
	if strings.TrimSpace(challenge.Title) == "" {
		return apperr.Validation("title is required")
	}
	if !challenge.EndDate.After(challenge.StartDate) {
		return apperr.Validation("end date must be after start date")
	}
	if challenge.PointsReward < 0 {
		return apperr.Validation("points reward must not be negative")
	}

	repos := s.uow.Repositories()

	if challenge.IsActive {
		flagged, err := repos.Challenges.ListFlaggedActive(ctx)
		if err != nil {
			return fmt.Errorf("failed to list active challenges: %w", err)
		}
		for i := range flagged {
			if flagged[i].Overlaps(challenge) {
				return fmt.Errorf("%w: %q", apperr.ErrChallengeOverlap, flagged[i].Title)
			}
		}
	}

	if err := repos.Challenges.Create(ctx, challenge); err != nil {
		return fmt.Errorf("failed to create challenge: %w", err)
	}

	s.log.Info().
		Uint("challenge_id", challenge.ID).
		Str("title", challenge.Title).
		Time("start", challenge.StartDate).
		Time("end", challenge.EndDate).
		Msg("Challenge created")
	return nil
}

// Join enrolls a user in a challenge with a zero score.
func (s *Service) Join(ctx context.Context, userID, challengeID uint) (*models.ChallengeParticipation, error) {
	release, err := s.lockUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	repos := s.uow.Repositories()

	if _, err := repos.Challenges.GetByID(ctx, challengeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	_, err = repos.Participations.Get(ctx, userID, challengeID)
	if err == nil {
		return nil, apperr.ErrAlreadyJoined
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get participation: %w", err)
	}

	participation := &models.ChallengeParticipation{
		UserID:      userID,
		ChallengeID: challengeID,
		JoinedAt:    s.now(),
	}
	if err := repos.Participations.Create(ctx, participation); err != nil {
		return nil, fmt.Errorf("failed to create participation: %w", err)
	}

	s.invalidateLeaderboard(ctx, challengeID)
	metrics.RecordChallengeJoin(challengeID)

	s.log.Info().Uint("user_id", userID).Uint("challenge_id", challengeID).Msg("User joined challenge")
	return participation, nil
}

// GetMyParticipation returns the user's participation in the active
// challenge, or nil when there is no active challenge or the user has not joined.
func (s *Service) GetMyParticipation(ctx context.Context, userID uint) (*models.ChallengeParticipation, error) {
	active, err := s.GetActiveChallenge(ctx)
	if err != nil || active == nil {
		return nil, err
	}

	participation, err := s.uow.Repositories().Participations.Get(ctx, userID, active.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participation: %w", err)
	}
	return participation, nil
}

// ActivityResult is returned by RecordActivity.
type ActivityResult struct {
	Points        int64                          `json:"points"`
	Participation *models.ChallengeParticipation `json:"participation"`
}

// RecordActivity scores an activity against the user's participation in
// the active challenge.
func (s *Service) RecordActivity(ctx context.Context, userID uint, activityType, description string) (*ActivityResult, error) {
	if strings.TrimSpace(activityType) == "" {
		return nil, apperr.Validation("activity_type is required")
	}

	release, err := s.lockUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	active, err := s.GetActiveChallenge(ctx)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, apperr.ErrNoActiveChallenge
	}

	participation, err := s.uow.Repositories().Participations.Get(ctx, userID, active.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.ErrNotParticipating
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participation: %w", err)
	}

	points := s.PointsFor(activityType)

	err = s.uow.Atomic(ctx, func(tx repository.Repositories) error {
		if err := tx.Activities.Append(ctx, &models.ChallengeActivity{
			ParticipationID: participation.ID,
			ActivityType:    activityType,
			Points:          points,
			Description:     description,
			CreatedAt:       s.now(),
		}); err != nil {
			return fmt.Errorf("failed to append activity: %w", err)
		}

		participation.TotalScore += points
		participation.CountActivity(activityType)
		if err := tx.Participations.Update(ctx, participation); err != nil {
			return fmt.Errorf("failed to update participation: %w", err)
		}
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).Uint("user_id", userID).Str("activity_type", activityType).Msg("Failed to record activity")
		return nil, err
	}

	s.invalidateLeaderboard(ctx, active.ID)
	metrics.RecordChallengeActivity(activityType)

	s.log.Info().
		Uint("user_id", userID).
		Uint("challenge_id", active.ID).
		Str("activity_type", activityType).
		Int64("points", points).
		Int64("total_score", participation.TotalScore).
		Msg("Activity recorded")

	return &ActivityResult{Points: points, Participation: participation}, nil
}

// Leaderboard returns a challenge's participations by score, highest first.
// Ties go to the earlier joiner, then the lower ID. limit <= 0 returns all.
func (s *Service) Leaderboard(ctx context.Context, challengeID uint, limit int) ([]models.ChallengeParticipation, error) {
	if _, err := s.uow.Repositories().Challenges.GetByID(ctx, challengeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	ranked, err := s.rankedParticipations(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// rankedParticipations serves a leaderboard from the cache when it can.
// Cached boards are keyed by the challenge's generation, read before the
// store is listed, so a board computed across a concurrent write lands
// under a generation nobody reads any more.
func (s *Service) rankedParticipations(ctx context.Context, challengeID uint) ([]models.ChallengeParticipation, error) {
	useCache := s.cachingEnabled()

	var key string
	if useCache {
		generation, err := s.generation(ctx, challengeID)
		if err != nil {
			s.log.Warn().Err(err).Uint("challenge_id", challengeID).Msg("Failed to read leaderboard generation")
			useCache = false
		}
		key = leaderboardKey(challengeID, generation)
	}

	if useCache {
		var cached []models.ChallengeParticipation
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Failed to read leaderboard cache")
		}
		metrics.RecordLeaderboardCache(hit)
		if hit {
			return cached, nil
		}
	}

	participations, err := s.uow.Repositories().Participations.ListByChallenge(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participations: %w", err)
	}

	sort.SliceStable(participations, func(i, j int) bool {
		a, b := participations[i], participations[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.ID < b.ID
	})

	if useCache {
		if err := s.cache.SetJSON(ctx, key, participations, s.cacheTTL); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Failed to write leaderboard cache")
		}
	}
	return participations, nil
}

func (s *Service) generation(ctx context.Context, challengeID uint) (int64, error) {
	var generation int64
	if _, err := s.cache.GetJSON(ctx, generationKey(challengeID), &generation); err != nil {
		return 0, err
	}
	return generation, nil
}

// RolloverExpired clears the active flag of challenges whose window has
// closed and returns how many were deactivated.
func (s *Service) RolloverExpired(ctx context.Context) (int, error) {
	repos := s.uow.Repositories()

	flagged, err := repos.Challenges.ListFlaggedActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active challenges: %w", err)
	}

	now := s.now()
	closed := 0
	for i := range flagged {
		c := &flagged[i]
		if !c.EndDate.Before(now) {
			continue
		}
		c.IsActive = false
		if err := repos.Challenges.Update(ctx, c); err != nil {
			return closed, fmt.Errorf("failed to deactivate challenge %d: %w", c.ID, err)
		}
		closed++
		s.log.Info().Uint("challenge_id", c.ID).Str("title", c.Title).Msg("Challenge closed")
	}
	return closed, nil
}

func (s *Service) cachingEnabled() bool {
	return s.cache != nil && s.cacheTTL > 0
}

func (s *Service) invalidateLeaderboard(ctx context.Context, challengeID uint) {
	if s.cache == nil {
		return
	}
	generation, err := s.cache.Incr(ctx, generationKey(challengeID))
	if err != nil {
		s.log.Warn().Err(err).Uint("challenge_id", challengeID).Msg("Failed to invalidate leaderboard cache")
		return
	}
	if err := s.cache.Del(ctx, leaderboardKey(challengeID, generation-1)); err != nil {
		s.log.Warn().Err(err).Uint("challenge_id", challengeID).Msg("Failed to drop stale leaderboard")
	}
}

func (s *Service) lockUser(ctx context.Context, userID uint) (func(), error) {
	release, err := s.locks.Acquire(ctx, fmt.Sprintf("challenge:user:%d", userID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock participation of user %d: %w", userID, err)
	}
	return release, nil
}

func generationKey(challengeID uint) string {
	return fmt.Sprintf("leaderboard:challenge:%d:generation", challengeID)
}

func leaderboardKey(challengeID uint, generation int64) string {
	return fmt.Sprintf("leaderboard:challenge:%d:v%d", challengeID, generation)
}
