// Package api assembles the HTTP server: middleware, health and metrics
// endpoints, and the versioned loyalty and challenge routes.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aimd54/wellness-rewards/internal/api/challenges"
	"github.com/aimd54/wellness-rewards/internal/api/middleware"
	"github.com/aimd54/wellness-rewards/internal/api/rewards"
	"github.com/aimd54/wellness-rewards/internal/config"
	"github.com/aimd54/wellness-rewards/pkg/logger"
)

// HealthChecker is a dependency checked by /health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps holds everything the router wires together.
type Deps struct {
	Config     *config.Config
	Tokens     *middleware.TokenManager
	Loyalty    rewards.Service
	Challenges challenges.Service
	Users      challenges.UserDirectory
	Checks     map[string]HealthChecker
	Log        *logger.Logger
}

// NewRouter builds the gin engine.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Config.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	log := deps.Log.Component("http")

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Metrics())
	if deps.Config.Server.RateLimitPerMinute > 0 {
		router.Use(middleware.NewRateLimiter(deps.Config.Server.RateLimitPerMinute).Middleware())
	}

	router.GET("/health", healthHandler(deps.Checks))
	if deps.Config.Metrics.Enabled {
		router.GET(deps.Config.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := router.Group("/api/v1")
	auth := middleware.AuthRequired(deps.Tokens)

	loyaltyHandler := rewards.NewHandlerWithInterfaces(deps.Loyalty, log)
	loyaltyHandler.RegisterRoutes(v1.Group("/loyalty", auth))

	challengeHandler := challenges.NewHandlerWithInterfaces(deps.Challenges, deps.Users, log)
	challengeHandler.RegisterPublicRoutes(v1.Group("/challenges"))
	challengeHandler.RegisterAuthRoutes(v1.Group("/challenges", auth))

	return router
}

func healthHandler(checks map[string]HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check.Health(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		overall := "healthy"
		if status != http.StatusOK {
			overall = "unhealthy"
		}
		c.JSON(status, gin.H{
			"status": overall,
			"checks": results,
			"time":   time.Now().UTC(),
		})
	}
}
