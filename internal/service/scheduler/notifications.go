package scheduler

import (
	"fmt"

	"github.com/aimd54/wellness-rewards/internal/mattermost"
	"github.com/aimd54/wellness-rewards/internal/models"
)

// buildDigest transforms ranked participations into the Mattermost digest format.
func buildDigest(
	challenge *models.WellnessChallenge,
	ranked []models.ChallengeParticipation,
	participants int,
	users map[uint]models.User,
) *mattermost.Digest {
	entries := make([]mattermost.DigestEntry, 0, len(ranked))

	for i, p := range ranked {
		// Profiles are optional; fall back to a stable placeholder.
		name := fmt.Sprintf("Member #%d", p.UserID)
		if u, ok := users[p.UserID]; ok && u.DisplayName != "" {
			name = u.DisplayName
		}

		entries = append(entries, mattermost.DigestEntry{
			Rank:        i + 1,
			DisplayName: name,
			Score:       p.TotalScore,
		})
	}

	return &mattermost.Digest{
		ChallengeTitle: challenge.Title,
		EndsAt:         challenge.EndDate,
		Participants:   participants,
		Entries:        entries,
	}
}
