package models

import (
	"time"
)

// Scored challenge activity types.
const (
	ActivityGymVisit      = "gym_visit"
	ActivityHealthyMeal   = "healthy_meal"
	ActivityClinicCheckin = "clinic_checkin"
	ActivityStorePurchase = "store_purchase"
)

// WellnessChallenge is a seasonal, time-boxed competition.
type WellnessChallenge struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	Description  string    `gorm:"type:text" json:"description"`
	Season       string    `gorm:"size:50" json:"season"`
	Year         int       `json:"year"`
	StartDate    time.Time `gorm:"not null" json:"start_date"`
	EndDate      time.Time `gorm:"not null" json:"end_date"`
	IsActive     bool      `gorm:"not null;default:true;index" json:"is_active"`
	PointsReward int64     `gorm:"not null;default:0" json:"points_reward"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for WellnessChallenge model.
func (WellnessChallenge) TableName() string {
	return "wellness_challenges"
}

// IsActiveAt reports whether the challenge is flagged active and now falls
// inside its window (both ends inclusive).
func (c *WellnessChallenge) IsActiveAt(now time.Time) bool {
	return c.IsActive && !now.Before(c.StartDate) && !now.After(c.EndDate)
}

// Overlaps reports whether two challenge windows intersect.
func (c *WellnessChallenge) Overlaps(other *WellnessChallenge) bool {
	return !c.EndDate.Before(other.StartDate) && !other.EndDate.Before(c.StartDate)
}

// ChallengeParticipation is a user's enrollment and running score in one challenge.
type ChallengeParticipation struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	UserID               uint      `gorm:"not null;uniqueIndex:idx_participation_user_challenge" json:"user_id"`
	ChallengeID          uint      `gorm:"not null;uniqueIndex:idx_participation_user_challenge;index" json:"challenge_id"`
	JoinedAt             time.Time `gorm:"not null" json:"joined_at"`
	TotalScore           int64     `gorm:"not null;default:0" json:"total_score"`
	GymVisits            int       `gorm:"not null;default:0" json:"gym_visits"`
	HealthyMeals         int       `gorm:"not null;default:0" json:"healthy_meals"`
	ClinicCheckins       int       `gorm:"not null;default:0" json:"clinic_checkins"`
	StoreHealthPurchases int       `gorm:"not null;default:0" json:"store_health_purchases"`
	IsCompleted          bool      `gorm:"not null;default:false" json:"is_completed"`
}

// TableName specifies the table name for ChallengeParticipation model.
func (ChallengeParticipation) TableName() string {
	return "challenge_participations"
}

// CountActivity increments the per-category counter for activityType.
// Unrecognized types change nothing.
func (p *ChallengeParticipation) CountActivity(activityType string) {
	switch activityType {
	case ActivityGymVisit:
		p.GymVisits++
	case ActivityHealthyMeal:
		p.HealthyMeals++
	case ActivityClinicCheckin:
		p.ClinicCheckins++
	case ActivityStorePurchase:
		p.StoreHealthPurchases++
	}
}

// ChallengeActivity is an append-only log entry of a scored action.
type ChallengeActivity struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ParticipationID uint      `gorm:"not null;index" json:"participation_id"`
	ActivityType    string    `gorm:"size:50;not null" json:"activity_type"`
	Points          int64     `gorm:"not null" json:"points"`
	Description     string    `gorm:"type:text" json:"description"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName specifies the table name for ChallengeActivity model.
func (ChallengeActivity) TableName() string {
	return "challenge_activities"
}
