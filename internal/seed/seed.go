// Package seed loads a reward catalog, challenges and public profiles from a
// YAML file into the store.
package seed

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aimd54/wellness-rewards/internal/models"
	"github.com/aimd54/wellness-rewards/internal/repository"
	"github.com/aimd54/wellness-rewards/pkg/logger"
)

// File is the seed document.
type File struct {
	Rewards    []Reward    `yaml:"rewards"`
	Challenges []Challenge `yaml:"challenges"`
	Users      []User      `yaml:"users"`
}

// Reward is a catalog entry in the seed file.
type Reward struct {
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	Category        string `yaml:"category"`
	PointsCost      int64  `yaml:"points_cost"`
	DiscountPercent *int   `yaml:"discount_percent"`
	DiscountAmount  *int64 `yaml:"discount_amount"`
	TierRequirement int    `yaml:"tier_requirement"`
	Active          *bool  `yaml:"active"`
	ExpiryDays      int    `yaml:"expiry_days"`
	UsageLimit      int    `yaml:"usage_limit"`
}

// Challenge is a challenge in the seed file. Dates are YYYY-MM-DD (UTC) or
// RFC 3339 timestamps; a date-only end_date covers the whole of that day.
type Challenge struct {
	Title        string `yaml:"title"`
	Description  string `yaml:"description"`
	Season       string `yaml:"season"`
	Year         int    `yaml:"year"`
	StartDate    Date   `yaml:"start_date"`
	EndDate      Date   `yaml:"end_date"`
	Active       *bool  `yaml:"active"`
	PointsReward int64  `yaml:"points_reward"`
}

// Date is a seed timestamp that remembers whether it was written without a
// time of day.
type Date struct {
	time.Time
	DateOnly bool
}

// UnmarshalYAML accepts YYYY-MM-DD or RFC 3339.
func (d *Date) UnmarshalYAML(node *yaml.Node) error {
	if t, err := time.Parse(time.DateOnly, node.Value); err == nil {
		*d = Date{Time: t, DateOnly: true}
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid date %q, want YYYY-MM-DD or RFC 3339", node.Line, node.Value)
	}
	*d = Date{Time: t}
	return nil
}

// EndOfDay returns the last instant of a date-only value, or the timestamp
// itself.
func (d Date) EndOfDay() time.Time {
	if !d.DateOnly {
		return d.Time
	}
	return d.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// User is a public profile in the seed file.
type User struct {
	ID          uint   `yaml:"id"`
	DisplayName string `yaml:"display_name"`
	AvatarURL   string `yaml:"avatar_url"`
}

// ChallengeCreator stores challenges with the engine's validation rules.
type ChallengeCreator interface {
	CreateChallenge(ctx context.Context, challenge *models.WellnessChallenge) error
}

// Result counts what a run inserted and skipped.
type Result struct {
	Rewards    int
	Challenges int
	Users      int
	Skipped    int
}

// Load reads and parses a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a seed document.
func Parse(data []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &file, nil
}

// Seeder writes seed documents into a store.
type Seeder struct {
	repos      repository.Repositories
	challenges ChallengeCreator
	log        *logger.Logger
}

// NewSeeder creates a seeder.
func NewSeeder(repos repository.Repositories, challenges ChallengeCreator, log *logger.Logger) *Seeder {
	return &Seeder{
		repos:      repos,
		challenges: challenges,
		log:        log.Component("seed"),
	}
}

// Apply inserts everything in file. Rewards and challenges whose name (or
// title and year) already exist are skipped, so running it twice is harmless.
func (s *Seeder) Apply(ctx context.Context, file *File) (*Result, error) {
	result := &Result{}

	if err := s.applyRewards(ctx, file.Rewards, result); err != nil {
		return result, err
	}
	if err := s.applyChallenges(ctx, file.Challenges, result); err != nil {
		return result, err
	}
	for i := range file.Users {
		u := file.Users[i]
		if err := s.repos.Users.Save(ctx, &models.User{ID: u.ID, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL}); err != nil {
			return result, fmt.Errorf("failed to save user %q: %w", u.DisplayName, err)
		}
		result.Users++
	}

	s.log.Info().
		Int("rewards", result.Rewards).
		Int("challenges", result.Challenges).
		Int("users", result.Users).
		Int("skipped", result.Skipped).
		Msg("Seed applied")

	return result, nil
}

func (s *Seeder) applyRewards(ctx context.Context, rewards []Reward, result *Result) error {
	existing, err := s.repos.Rewards.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list rewards: %w", err)
	}
	names := make(map[string]bool, len(existing))
	for _, r := range existing {
		names[r.Name] = true
	}

	for _, r := range rewards {
		if names[r.Name] {
			result.Skipped++
			continue
		}

		reward := r.model()
		if err := reward.Validate(); err != nil {
			return fmt.Errorf("invalid reward %q: %w", r.Name, err)
		}
		if err := s.repos.Rewards.Create(ctx, reward); err != nil {
			return fmt.Errorf("failed to create reward %q: %w", r.Name, err)
		}
		names[r.Name] = true
		result.Rewards++
	}
	return nil
}

func (s *Seeder) applyChallenges(ctx context.Context, challenges []Challenge, result *Result) error {
	existing, err := s.repos.Challenges.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list challenges: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[challengeKey(c.Title, c.Year)] = true
	}

	for _, c := range challenges {
		key := challengeKey(c.Title, c.Year)
		if seen[key] {
			result.Skipped++
			continue
		}

		if err := s.challenges.CreateChallenge(ctx, c.model()); err != nil {
			return fmt.Errorf("failed to create challenge %q: %w", c.Title, err)
		}
		seen[key] = true
		result.Challenges++
	}
	return nil
}

func (r Reward) model() *models.Reward {
	reward := &models.Reward{
		Name:            r.Name,
		Description:     r.Description,
		Category:        r.Category,
		PointsCost:      r.PointsCost,
		DiscountPercent: r.DiscountPercent,
		DiscountAmount:  r.DiscountAmount,
		TierRequirement: r.TierRequirement,
		IsActive:        r.Active == nil || *r.Active,
		ExpiryDays:      r.ExpiryDays,
		UsageLimit:      r.UsageLimit,
	}
	if reward.TierRequirement == 0 {
		reward.TierRequirement = models.TierBronze
	}
	if reward.ExpiryDays == 0 {
		reward.ExpiryDays = 30
	}
	if reward.UsageLimit == 0 {
		reward.UsageLimit = 1
	}
	return reward
}

func (c Challenge) model() *models.WellnessChallenge {
	return &models.WellnessChallenge{
		Title:        c.Title,
		Description:  c.Description,
		Season:       c.Season,
		Year:         c.Year,
		StartDate:    c.StartDate.Time,
		EndDate:      c.EndDate.EndOfDay(),
		IsActive:     c.Active == nil || *c.Active,
		PointsReward: c.PointsReward,
	}
}

func challengeKey(title string, year int) string {
	return fmt.Sprintf("%d/%s", year, title)
}
