// Package challenges provides REST API handlers for seasonal wellness challenges.
// It exposes endpoints for listing challenges, joining, scoring activities and leaderboards.
package challenges

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aimd54/wellness-rewards/internal/api/middleware"
	"github.com/aimd54/wellness-rewards/internal/api/response"
	"github.com/aimd54/wellness-rewards/internal/models"
	"github.com/aimd54/wellness-rewards/internal/service/challenge"
	"github.com/aimd54/wellness-rewards/pkg/logger"
)

// Service interface for challenge operations.
type Service interface {
	ListChallenges(ctx context.Context) ([]models.WellnessChallenge, error)
	GetActiveChallenge(ctx context.Context) (*models.WellnessChallenge, error)
	Join(ctx context.Context, userID, challengeID uint) (*models.ChallengeParticipation, error)
	GetMyParticipation(ctx context.Context, userID uint) (*models.ChallengeParticipation, error)
	RecordActivity(ctx context.Context, userID uint, activityType, description string) (*challenge.ActivityResult, error)
	Leaderboard(ctx context.Context, challengeID uint, limit int) ([]models.ChallengeParticipation, error)
}

// UserDirectory resolves public profiles for leaderboard entries.
type UserDirectory interface {
	GetByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error)
}

// Entry is one ranked leaderboard row.
type Entry struct {
	Rank        int    `json:"rank"`
	UserID      uint   `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	TotalScore  int64  `json:"total_score"`
	GymVisits   int    `json:"gym_visits"`
	Meals       int    `json:"healthy_meals"`
	Checkins    int    `json:"clinic_checkins"`
	Purchases   int    `json:"store_health_purchases"`
}

// ActivityRequest is the body of POST /active/activities.
type ActivityRequest struct {
	ActivityType string `json:"activity_type" binding:"required"`
	Description  string `json:"description"`
}

// Handler handles challenge API requests.
type Handler struct {
	service Service
	users   UserDirectory
	log     *logger.Logger
}

// NewHandlerWithInterfaces creates a new challenge handler.
func NewHandlerWithInterfaces(service Service, users UserDirectory, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		users:   users,
		log:     log,
	}
}

// RegisterPublicRoutes mounts the read-only routes.
func (h *Handler) RegisterPublicRoutes(group *gin.RouterGroup) {
	group.GET("", h.ListChallenges)
	group.GET("/active", h.GetActiveChallenge)
	group.GET("/:id/leaderboard", h.GetLeaderboard)
}

// RegisterAuthRoutes mounts the routes that act on the caller.
func (h *Handler) RegisterAuthRoutes(group *gin.RouterGroup) {
	group.POST("/:id/join", h.Join)
	group.GET("/active/participation", h.GetMyParticipation)
	group.POST("/active/activities", h.RecordActivity)
}

// ListChallenges returns every challenge, earliest start first.
// GET /api/v1/challenges.
func (h *Handler) ListChallenges(c *gin.Context) {
	list, err := h.service.ListChallenges(c.Request.Context())
	if err != nil {
		response.FromError(c, h.log, err)
		return
	}
	if list == nil {
		list = []models.WellnessChallenge{}
	}

	c.JSON(http.StatusOK, gin.H{
		"challenges":    list,
		"total_entries": len(list),
	})
}

// GetActiveChallenge returns the running challenge, or null.
// GET /api/v1/challenges/active.
func (h *Handler) GetActiveChallenge(c *gin.Context) {
	active, err := h.service.GetActiveChallenge(c.Request.Context())
	if err != nil {
		response.FromError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"challenge": active})
}

// Join enrolls the caller in a challenge.
// POST /api/v1/challenges/:id/join.
func (h *Handler) Join(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	challengeID, err := parseID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	participation, err := h.service.Join(c.Request.Context(), userID, challengeID)
	if err != nil {
		response.FromError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"participation": participation})
}

// GetMyParticipation returns the caller's standing in the active challenge, or null.
// GET /api/v1/challenges/active/participation.
func (h *Handler) GetMyParticipation(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	participation, err := h.service.GetMyParticipation(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"participation": participation})
}

// RecordActivity scores an activity against the active challenge.
// POST /api/v1/challenges/active/activities.
func (h *Handler) RecordActivity(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "activity_type is required")
		return
	}

	result, err := h.service.RecordActivity(c.Request.Context(), userID, req.ActivityType, req.Description)
	if err != nil {
		response.FromError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetLeaderboard returns a challenge's ranked participants.
// GET /api/v1/challenges/:id/leaderboard?limit=10.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	challengeID, err := parseID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	limit, err := parseLimit(c, 10)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	ranked, err := h.service.Leaderboard(ctx, challengeID, limit)
	if err != nil {
		response.FromError(c, h.log, err)
		return
	}

	entries := h.buildEntries(ctx, ranked)

	h.log.Debug().
		Uint("challenge_id", challengeID).
		Int("limit", limit).
		Int("entries", len(entries)).
		Msg("Retrieved challenge leaderboard")

	c.JSON(http.StatusOK, gin.H{
		"challenge_id":  challengeID,
		"leaderboard":   entries,
		"total_entries": len(entries),
		"generated_at":  time.Now().UTC(),
	})
}

// buildEntries ranks participations and attaches public profiles. A missing
// directory or lookup failure leaves the generic display name in place.
func (h *Handler) buildEntries(ctx context.Context, ranked []models.ChallengeParticipation) []Entry {
	var users map[uint]models.User
	if h.users != nil && len(ranked) > 0 {
		ids := make([]uint, len(ranked))
		for i := range ranked {
			ids[i] = ranked[i].UserID
		}
		found, err := h.users.GetByIDs(ctx, ids)
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to load leaderboard profiles")
		} else {
			users = found
		}
	}

	entries := make([]Entry, len(ranked))
	for i := range ranked {
		p := &ranked[i]
		entry := Entry{
			Rank:        i + 1,
			UserID:      p.UserID,
			DisplayName: fmt.Sprintf("Member #%d", p.UserID),
			TotalScore:  p.TotalScore,
			GymVisits:   p.GymVisits,
			Meals:       p.HealthyMeals,
			Checkins:    p.ClinicCheckins,
			Purchases:   p.StoreHealthPurchases,
		}
		if u, ok := users[p.UserID]; ok {
			entry.DisplayName = u.DisplayName
			entry.AvatarURL = u.AvatarURL
		}
		entries[i] = entry
	}
	return entries
}

func (h *Handler) userID(c *gin.Context) (uint, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "authentication required")
	}
	return userID, ok
}

// parseID extracts the :id path parameter.
func parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid challenge id: %s", c.Param("id"))
	}
	return uint(id), nil
}

// parseLimit extracts and validates the limit query parameter.
func parseLimit(c *gin.Context, defaultLimit int) (int, error) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %s", limitStr)
	}
	if limit < 1 {
		return 0, fmt.Errorf("limit must be greater than 0")
	}
	if limit > 100 {
		return 0, fmt.Errorf("limit cannot exceed 100")
	}
	return limit, nil
}
