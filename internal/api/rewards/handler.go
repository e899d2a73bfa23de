// Package rewards provides REST API handlers for the loyalty ledger and reward catalog.
package rewards

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aimd54/wellness-rewards/internal/api/middleware"
	"github.com/aimd54/wellness-rewards/internal/api/response"
	"github.com/aimd54/wellness-rewards/internal/models"
	"github.com/aimd54/wellness-rewards/internal/service/loyalty"
	"github.com/aimd54/wellness-rewards/pkg/logger"
)

// Service is the loyalty service consumed by the handler.
type Service interface {
	GetOrCreateLedger(ctx context.Context, userID uint) (*models.LoyaltyAccount, error)
	ListRewards(ctx context.Context, userID uint) (*loyalty.Catalog, error)
	Redeem(ctx context.Context, userID, rewardID uint) (*loyalty.RedeemResult, error)
	UseReward(ctx context.Context, userID, userRewardID uint) (*models.UserReward, error)
	ListTransactions(ctx context.Context, userID uint, limit int) ([]models.LoyaltyTransaction, error)
	Earn(ctx context.Context, req loyalty.EarnRequest) (*loyalty.EarnResult, error)
}

// Handler handles loyalty API requests.
type Handler struct {
	service Service
	log     *logger.Logger
}

// NewHandlerWithInterfaces creates a new loyalty handler.
func NewHandlerWithInterfaces(service Service, log *logger.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// RegisterRoutes mounts the handler under group. Every route requires auth.
func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/account", h.GetAccount)
	group.GET("/rewards", h.ListRewards)
	group.POST("/rewards/:id/redeem", h.Redeem)
	group.POST("/vouchers/:id/use", h.UseVoucher)
	group.GET("/transactions", h.ListTransactions)
	group.POST("/earn", h.Earn)
}

// GetAccount returns the caller's ledger, creating it on first access.
// GET /api/v1/loyalty/account.
func (h *Handler) GetAccount(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	account, err := h.service.GetOrCreateLedger(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account":            account,
		"tier_name":          loyalty.TierName(account.CurrentTierLevel),
		"spend_to_next_tier": loyalty.NextTierThreshold(account.LifetimeSpent),
	})
}

// ListRewards returns rewards eligible for the caller's tier and the caller's available vouchers.
// GET /api/v1/loyalty/rewards.
func (h *Handler) ListRewards(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	catalog, err := h.service.ListRewards(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, catalog)
}

// Redeem exchanges points for a reward.
// POST /api/v1/loyalty/rewards/:id/redeem.
func (h *Handler) Redeem(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	rewardID, err := parseID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Redeem(c.Request.Context(), userID, rewardID)
	if err != nil {
		response.FromError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// UseVoucher marks one of the caller's vouchers as used.
// POST /api/v1/loyalty/vouchers/:id/use.
func (h *Handler) UseVoucher(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	voucherID, err := parseID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	voucher, err := h.service.UseReward(c.Request.Context(), userID, voucherID)
	if err != nil {
		response.FromError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_reward": voucher})
}

// ListTransactions returns the caller's transaction log, newest first.
// GET /api/v1/loyalty/transactions?limit=50.
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	limit, err := parseLimit(c, 50)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	txns, err := h.service.ListTransactions(c.Request.Context(), userID, limit)
	if err != nil {
		response.FromError(c, h.log, err)
		return
	}
	if txns == nil {
		txns = []models.LoyaltyTransaction{}
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions":  txns,
		"total_entries": len(txns),
	})
}

// Earn credits points reported by a collaborating service.
// POST /api/v1/loyalty/earn.
func (h *Handler) Earn(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req loyalty.EarnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}
	req.UserID = userID

	result, err := h.service.Earn(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, result)
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
		return 0, fmt.Errorf("invalid id: %s", c.Param("id"))
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
	if limit > 1000 {
		return 0, fmt.Errorf("limit cannot exceed 1000")
	}
	return limit, nil
}
