// Package scheduler runs the periodic maintenance jobs of the rewards program.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aimd54/wellness-rewards/internal/config"
	"github.com/aimd54/wellness-rewards/internal/mattermost"
	prommetrics "github.com/aimd54/wellness-rewards/internal/metrics"
	"github.com/aimd54/wellness-rewards/internal/models"
	"github.com/aimd54/wellness-rewards/pkg/logger"
)

// Job names, used as metric labels.
const (
	JobVoucherSweep      = "voucher_sweep"
	JobChallengeRollover = "challenge_rollover"
	JobLeaderboardDigest = "leaderboard_digest"
)

// VoucherSweeper counts lapsed vouchers.
type VoucherSweeper interface {
	SweepExpiredVouchers(ctx context.Context) (int64, error)
}

// ChallengeEngine is the part of the challenge service the jobs need.
type ChallengeEngine interface {
	RolloverExpired(ctx context.Context) (int, error)
	GetActiveChallenge(ctx context.Context) (*models.WellnessChallenge, error)
	Leaderboard(ctx context.Context, challengeID uint, limit int) ([]models.ChallengeParticipation, error)
}

// UserDirectory resolves public profiles.
type UserDirectory interface {
	GetByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error)
}

// Notifier delivers leaderboard digests.
type Notifier interface {
	SendLeaderboardDigest(ctx context.Context, digest *mattermost.Digest) error
}

// Service handles background job scheduling.
type Service struct {
	config     *config.SchedulerConfig
	vouchers   VoucherSweeper
	challenges ChallengeEngine
	users      UserDirectory
	notifier   Notifier
	log        *logger.Logger
	cron       *cron.Cron
}

// NewService creates a new scheduler service. A nil notifier disables the
// leaderboard digest.
func NewService(
	cfg *config.SchedulerConfig,
	vouchers VoucherSweeper,
	challenges ChallengeEngine,
	users UserDirectory,
	notifier Notifier,
	log *logger.Logger,
) *Service {
	return &Service{
		config:     cfg,
		vouchers:   vouchers,
		challenges: challenges,
		users:      users,
		notifier:   notifier,
		log:        log.Component("scheduler"),
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := s.config.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	jobs := []struct {
		name     string
		schedule string
		run      func(ctx context.Context) error
	}{
		{JobVoucherSweep, s.config.VoucherSweep, s.sweepVouchers},
		{JobChallengeRollover, s.config.ChallengeRollover, s.rolloverChallenges},
		{JobLeaderboardDigest, s.config.LeaderboardDigest, s.sendLeaderboardDigest},
	}

	for _, job := range jobs {
		if job.schedule == "" {
			continue
		}
		if job.name == JobLeaderboardDigest && s.notifier == nil {
			continue
		}

		name, run := job.name, job.run
		if _, err := s.cron.AddFunc(job.schedule, func() {
			s.runJob(context.Background(), name, run)
		}); err != nil {
			return fmt.Errorf("failed to register %s job: %w", name, err)
		}

		s.log.Info().
			Str("job", name).
			Str("schedule", job.schedule).
			Msg("Job registered")
	}

	s.cron.Start()

	s.log.Info().
		Str("timezone", s.config.Timezone).
		Int("jobs", len(s.cron.Entries())).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// runJob executes one job and records its outcome and duration.
func (s *Service) runJob(ctx context.Context, name string, run func(ctx context.Context) error) {
	start := time.Now()
	defer func() {
		prommetrics.ObserveSchedulerJobDuration(name, time.Since(start).Seconds())
	}()

	s.log.Info().Str("job", name).Msg("Running job")

	if err := run(ctx); err != nil {
		s.log.Error().
			Err(err).
			Str("job", name).
			Dur("duration", time.Since(start)).
			Msg("Job failed")
		prommetrics.RecordSchedulerJobRun(name, "error")
		return
	}

	prommetrics.RecordSchedulerJobRun(name, "success")
	s.log.Info().
		Str("job", name).
		Dur("duration", time.Since(start)).
		Msg("Job completed successfully")
}

func (s *Service) sweepVouchers(ctx context.Context) error {
	_, err := s.vouchers.SweepExpiredVouchers(ctx)
	return err
}

func (s *Service) rolloverChallenges(ctx context.Context) error {
	closed, err := s.challenges.RolloverExpired(ctx)
	if err != nil {
		return err
	}
	s.log.Info().Int("closed", closed).Msg("Challenge rollover completed")
	return nil
}

func (s *Service) sendLeaderboardDigest(ctx context.Context) error {
	active, err := s.challenges.GetActiveChallenge(ctx)
	if err != nil {
		return fmt.Errorf("failed to get active challenge: %w", err)
	}
	if active == nil {
		s.log.Debug().Msg("No active challenge, skipping leaderboard digest")
		return nil
	}

	participations, err := s.challenges.Leaderboard(ctx, active.ID, 0)
	if err != nil {
		return fmt.Errorf("failed to get leaderboard: %w", err)
	}

	top := participations
	if s.config.DigestSize > 0 && len(top) > s.config.DigestSize {
		top = top[:s.config.DigestSize]
	}

	ids := make([]uint, 0, len(top))
	for _, p := range top {
		ids = append(ids, p.UserID)
	}
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to get users: %w", err)
	}

	digest := buildDigest(active, top, len(participations), users)
	if err := s.notifier.SendLeaderboardDigest(ctx, digest); err != nil {
		return fmt.Errorf("failed to send leaderboard digest: %w", err)
	}
	return nil
}
