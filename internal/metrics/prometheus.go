// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the wellness rewards service.
var (
	// Loyalty ledger.
	PointsEarnedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loyalty_points_earned_total",
			Help: "Total loyalty points credited, by service type",
		},
		[]string{"service_type"},
	)

	PointsRedeemedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loyalty_points_redeemed_total",
			Help: "Total loyalty points spent on rewards, by reward category",
		},
		[]string{"category"},
	)

	RedemptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loyalty_redemptions_total",
			Help: "Redemption attempts by outcome",
		},
		[]string{"status"},
	)

	VouchersUsedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loyalty_vouchers_used_total",
			Help: "Total vouchers marked used",
		},
	)

	TierUpgradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loyalty_tier_upgrades_total",
			Help: "Ledger tier changes, by the tier reached",
		},
		[]string{"tier"},
	)

	ExpiredUnusedVouchers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "loyalty_expired_unused_vouchers",
			Help: "Vouchers that expired without being used, as of the last sweep",
		},
	)

	// Challenges.
	ChallengeActivitiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_activities_total",
			Help: "Challenge activities recorded, by activity type",
		},
		[]string{"activity_type"},
	)

	ChallengeJoinsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_joins_total",
			Help: "Challenge enrollments, by challenge",
		},
		[]string{"challenge_id"},
	)

	LeaderboardCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_leaderboard_cache_total",
			Help: "Leaderboard cache lookups by result",
		},
		[]string{"result"},
	)

	// Scheduler.
	SchedulerJobsRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_run_total",
			Help: "Total scheduler job executions",
		},
		[]string{"job", "status"},
	)

	SchedulerJobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Time taken to execute a scheduler job",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8), // 10ms to ~164s
		},
		[]string{"job"},
	)

	// HTTP.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordPointsEarned records points credited by an earn event.
func RecordPointsEarned(serviceType string, points int64) {
	PointsEarnedTotal.WithLabelValues(serviceType).Add(float64(points))
}

// RecordPointsRedeemed records points spent on a reward.
func RecordPointsRedeemed(category string, points int64) {
	PointsRedeemedTotal.WithLabelValues(category).Add(float64(points))
}

// RecordRedemption records a redemption attempt outcome.
func RecordRedemption(status string) {
	RedemptionsTotal.WithLabelValues(status).Inc()
}

// RecordVoucherUsed records a voucher being used.
func RecordVoucherUsed() {
	VouchersUsedTotal.Inc()
}

// RecordTierUpgrade records a ledger reaching a new tier.
func RecordTierUpgrade(tier int) {
	TierUpgradesTotal.WithLabelValues(strconv.Itoa(tier)).Inc()
}

// SetExpiredUnusedVouchers sets the expired voucher gauge.
func SetExpiredUnusedVouchers(count int64) {
	ExpiredUnusedVouchers.Set(float64(count))
}

// RecordChallengeActivity records a scored challenge activity.
func RecordChallengeActivity(activityType string) {
	ChallengeActivitiesTotal.WithLabelValues(activityType).Inc()
}

// RecordChallengeJoin records a user joining a challenge.
func RecordChallengeJoin(challengeID uint) {
	ChallengeJoinsTotal.WithLabelValues(strconv.FormatUint(uint64(challengeID), 10)).Inc()
}

// RecordLeaderboardCache records a leaderboard cache hit or miss.
func RecordLeaderboardCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	LeaderboardCacheTotal.WithLabelValues(result).Inc()
}

// RecordSchedulerJobRun records a scheduler job execution.
func RecordSchedulerJobRun(job, status string) {
	SchedulerJobsRunTotal.WithLabelValues(job, status).Inc()
}

// ObserveSchedulerJobDuration observes the duration of a scheduler job.
func ObserveSchedulerJobDuration(job string, seconds float64) {
	SchedulerJobDurationSeconds.WithLabelValues(job).Observe(seconds)
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, route string, status int, seconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDurationSeconds.WithLabelValues(method, route).Observe(seconds)
}
