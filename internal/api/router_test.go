//nolint:noctx // Test file uses http.NewRequest for simplicity
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/wellness-rewards/internal/api/middleware"
	"github.com/aimd54/wellness-rewards/internal/config"
	"github.com/aimd54/wellness-rewards/internal/lock"
	"github.com/aimd54/wellness-rewards/internal/models"
	"github.com/aimd54/wellness-rewards/internal/repository/memory"
	"github.com/aimd54/wellness-rewards/internal/service/challenge"
	"github.com/aimd54/wellness-rewards/internal/service/loyalty"
	"github.com/aimd54/wellness-rewards/pkg/logger"
)

type checkFunc func(ctx context.Context) error

func (f checkFunc) Health(ctx context.Context) error { return f(ctx) }

type testServer struct {
	router     *gin.Engine
	store      *memory.Store
	tokens     *middleware.TokenManager
	challenges *challenge.Service
}

func setupTestServer(t *testing.T, checks map[string]HealthChecker) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server:  config.ServerConfig{Environment: "test", RateLimitPerMinute: 1000},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	log := logger.Nop()
	store := memory.New()
	locks := lock.NewLocal()
	tokens := middleware.NewTokenManager("test-secret", time.Hour)

	challengeService := challenge.NewServiceWithInterfaces(store, locks, nil, &config.ChallengeConfig{}, log)

	router := NewRouter(Deps{
		Config:     cfg,
		Tokens:     tokens,
		Loyalty:    loyalty.NewServiceWithInterfaces(store, locks, log),
		Challenges: challengeService,
		Users:      store.Repositories().Users,
		Checks:     checks,
		Log:        log,
	})

	return &testServer{router: router, store: store, tokens: tokens, challenges: challengeService}
}

func (s *testServer) do(t *testing.T, method, path string, userID uint, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		token, err := s.tokens.Generate(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	healthy := setupTestServer(t, map[string]HealthChecker{
		"database": checkFunc(func(ctx context.Context) error { return nil }),
	})
	w := healthy.do(t, http.MethodGet, "/health", 0, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	unhealthy := setupTestServer(t, map[string]HealthChecker{
		"cache": checkFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
	})
	w = unhealthy.do(t, http.MethodGet, "/health", 0, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTestServer(t, nil)
	s.do(t, http.MethodGet, "/health", 0, nil)

	w := s.do(t, http.MethodGet, "/metrics", 0, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestLoyaltyRoutesRequireToken(t *testing.T) {
	s := setupTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/v1/loyalty/account", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/loyalty/account", 4, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEarnAndRedeemFlow(t *testing.T) {
	s := setupTestServer(t, nil)
	ctx := context.Background()

	reward := &models.Reward{
		Name:            "Smoothie",
		Category:        models.CategoryRestaurant,
		PointsCost:      100,
		TierRequirement: models.TierBronze,
		IsActive:        true,
		ExpiryDays:      30,
		UsageLimit:      1,
	}
	require.NoError(t, s.store.Repositories().Rewards.Create(ctx, reward))

	w := s.do(t, http.MethodPost, "/api/v1/loyalty/earn", 1, map[string]interface{}{
		"points":          300,
		"service_type":    models.CategoryRestaurant,
		"service_details": "Lunch",
		"amount_spent":    15000,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/loyalty/rewards/%d/redeem", reward.ID), 1, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var redeemed loyalty.RedeemResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &redeemed))
	assert.Equal(t, int64(200), redeemed.Account.TotalPoints)
	assert.Equal(t, models.TierSilver, redeemed.Account.CurrentTierLevel)
	require.NotNil(t, redeemed.Voucher)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/loyalty/vouchers/%d/use", redeemed.Voucher.ID), 1, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// A second use finds no available voucher.
	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/loyalty/vouchers/%d/use", redeemed.Voucher.ID), 1, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/loyalty/transactions", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_entries":2`)
}

func TestChallengeFlow(t *testing.T) {
	s := setupTestServer(t, nil)
	ctx := context.Background()

	now := time.Now()
	active := &models.WellnessChallenge{
		Title:     "Autumn Stride",
		Season:    "autumn",
		Year:      now.Year(),
		StartDate: now.Add(-time.Hour),
		EndDate:   now.Add(24 * time.Hour),
		IsActive:  true,
	}
	require.NoError(t, s.challenges.CreateChallenge(ctx, active))
	require.NoError(t, s.store.Repositories().Users.Save(ctx, &models.User{ID: 1, DisplayName: "Noor"}))

	w := s.do(t, http.MethodGet, "/api/v1/challenges/active", 0, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Autumn Stride")

	w = s.do(t, http.MethodPost, "/api/v1/challenges/active/activities", 1, map[string]string{"activity_type": models.ActivityGymVisit})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/challenges/%d/join", active.ID), 0, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	for _, userID := range []uint{1, 2} {
		w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/challenges/%d/join", active.ID), userID, nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodPost, "/api/v1/challenges/active/activities", 1, map[string]string{"activity_type": models.ActivityGymVisit})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, "/api/v1/challenges/active/activities", 2, map[string]string{"activity_type": models.ActivityStorePurchase})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/challenges/active/participation", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_score":25`)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/challenges/%d/leaderboard", active.ID), 0, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var board struct {
		Leaderboard []struct {
			Rank        int    `json:"rank"`
			UserID      uint   `json:"user_id"`
			DisplayName string `json:"display_name"`
			TotalScore  int64  `json:"total_score"`
		} `json:"leaderboard"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))
	require.Len(t, board.Leaderboard, 2)
	assert.Equal(t, "Noor", board.Leaderboard[0].DisplayName)
	assert.Equal(t, int64(25), board.Leaderboard[0].TotalScore)
	assert.Equal(t, "Member #2", board.Leaderboard[1].DisplayName)
}
