package challenge

import "github.com/aimd54/wellness-rewards/internal/models"

// DefaultActivityPoints is the score awarded per activity type.
var DefaultActivityPoints = map[string]int64{
	models.ActivityGymVisit:      25,
	models.ActivityHealthyMeal:   15,
	models.ActivityClinicCheckin: 30,
	models.ActivityStorePurchase: 10,
}

// ActivityPoints returns the default table with overrides applied.
// Overrides may also introduce new scored types.
func ActivityPoints(overrides map[string]int) map[string]int64 {
	table := make(map[string]int64, len(DefaultActivityPoints)+len(overrides))
	for activity, points := range DefaultActivityPoints {
		table[activity] = points
	}
	for activity, points := range overrides {
		table[activity] = int64(points)
	}
	return table
}
