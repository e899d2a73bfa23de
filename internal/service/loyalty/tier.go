package loyalty

import "github.com/aimd54/wellness-rewards/internal/models"

// Lifetime spend thresholds, in currency minor units.
const (
	SilverThreshold   int64 = 10000
	GoldThreshold     int64 = 25000
	PlatinumThreshold int64 = 50000
)

// TierFor maps lifetime spend to a tier level. There is no hysteresis: the
// tier is recomputed from scratch on every ledger update.
func TierFor(lifetimeSpent int64) int {
	switch {
	case lifetimeSpent >= PlatinumThreshold:
		return models.TierPlatinum
	case lifetimeSpent >= GoldThreshold:
		return models.TierGold
	case lifetimeSpent >= SilverThreshold:
		return models.TierSilver
	default:
		return models.TierBronze
	}
}

// TierName returns the display name of a tier level.
func TierName(level int) string {
	switch level {
	case models.TierPlatinum:
		return "Platinum"
	case models.TierGold:
		return "Gold"
	case models.TierSilver:
		return "Silver"
	default:
		return "Bronze"
	}
}

// NextTierThreshold returns the spend still needed to reach the next tier,
// or 0 once Platinum is reached.
func NextTierThreshold(lifetimeSpent int64) int64 {
	for _, threshold := range []int64{SilverThreshold, GoldThreshold, PlatinumThreshold} {
		if lifetimeSpent < threshold {
			return threshold - lifetimeSpent
		}
	}
	return 0
}
