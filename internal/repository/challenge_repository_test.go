package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/wellness-rewards/internal/models"
)

func createTestChallenge(t *testing.T, repo *ChallengeRepository, title string, start, end time.Time) *models.WellnessChallenge {
	t.Helper()

	c := &models.WellnessChallenge{
		Title: title, Season: "spring", Year: start.Year(),
		StartDate: start, EndDate: end, IsActive: true, PointsReward: 500,
	}
	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatalf("Failed to create test challenge: %v", err)
	}
	return c
}

func TestChallengeRepository_ListAndFlaggedActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChallengeRepository(db)
	ctx := context.Background()
	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }

	late := createTestChallenge(t, repo, "Late", day(10), day(30))
	early := createTestChallenge(t, repo, "Early", day(1), day(20))
	retired := createTestChallenge(t, repo, "Retired", day(1), day(5))
	retired.IsActive = false
	require.NoError(t, repo.Update(ctx, retired))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	active, err := repo.ListFlaggedActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, early.ID, active[0].ID, "soonest end date first")
	assert.Equal(t, late.ID, active[1].ID)

	_, err = repo.GetByID(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParticipationRepository_UniquePerUserAndChallenge(t *testing.T) {
	db := setupTestDB(t)
	challenges := NewChallengeRepository(db)
	repo := NewParticipationRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	c := createTestChallenge(t, challenges, "Spring", now.Add(-time.Hour), now.Add(time.Hour))

	p := &models.ChallengeParticipation{UserID: 1, ChallengeID: c.ID, JoinedAt: now}
	require.NoError(t, repo.Create(ctx, p))
	assert.Error(t, repo.Create(ctx, &models.ChallengeParticipation{UserID: 1, ChallengeID: c.ID, JoinedAt: now}))

	p.TotalScore = 75
	p.GymVisits = 3
	require.NoError(t, repo.Update(ctx, p))

	got, err := repo.Get(ctx, 1, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(75), got.TotalScore)
	assert.Equal(t, 3, got.GymVisits)

	_, err = repo.Get(ctx, 2, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActivityRepository_AppendAndList(t *testing.T) {
	db := setupTestDB(t)
	challenges := NewChallengeRepository(db)
	participations := NewParticipationRepository(db)
	repo := NewActivityRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	c := createTestChallenge(t, challenges, "Spring", now.Add(-time.Hour), now.Add(time.Hour))
	p := &models.ChallengeParticipation{UserID: 1, ChallengeID: c.ID, JoinedAt: now}
	require.NoError(t, participations.Create(ctx, p))

	require.NoError(t, repo.Append(ctx, &models.ChallengeActivity{ParticipationID: p.ID, ActivityType: "gym_visit", Points: 25}))
	require.NoError(t, repo.Append(ctx, &models.ChallengeActivity{ParticipationID: p.ID, ActivityType: "yoga", Points: 0}))

	activities, err := repo.ListByParticipation(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	assert.Equal(t, "gym_visit", activities[0].ActivityType)
}

func TestUserRepository_SaveAndGetByIDs(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &models.User{ID: 1, DisplayName: "Alice"}))
	require.NoError(t, repo.Save(ctx, &models.User{ID: 2, DisplayName: "Bob", AvatarURL: "https://img/bob.png"}))
	require.NoError(t, repo.Save(ctx, &models.User{ID: 1, DisplayName: "Alice W."}))

	users, err := repo.GetByIDs(ctx, []uint{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, "Alice W.", users[1].DisplayName)
	assert.Equal(t, "https://img/bob.png", users[2].AvatarURL)

	empty, err := repo.GetByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
