package loyalty

import (
	"context"
	"fmt"
	"strings"

	"github.com/aimd54/wellness-rewards/internal/apperr"
	"github.com/aimd54/wellness-rewards/internal/metrics"
	"github.com/aimd54/wellness-rewards/internal/models"
	"github.com/aimd54/wellness-rewards/internal/repository"
)

// Per-event ceilings on earn requests.
const (
	MaxEarnPoints  int64 = 1_000_000
	MaxAmountSpent int64 = 10_000_000_000 // currency minor units
)

// EarnRequest is an earn event reported by a collaborator such as checkout
// or appointment completion.
type EarnRequest struct {
	UserID         uint   `json:"-"`
	Points         int64  `json:"points"`
	ServiceType    string `json:"service_type"`
	ServiceDetails string `json:"service_details"`
	AmountSpent    int64  `json:"amount_spent"`
}

// Validate checks the request before anything is mutated.
func (r *EarnRequest) Validate() error {
	switch {
	case r.Points <= 0:
		return apperr.Validation("points must be a positive integer")
	case strings.TrimSpace(r.ServiceType) == "":
		return apperr.Validation("service_type is required")
	case strings.TrimSpace(r.ServiceDetails) == "":
		return apperr.Validation("service_details is required")
	case r.AmountSpent < 0:
		return apperr.Validation("amount_spent must not be negative")
	case r.Points > MaxEarnPoints:
		return apperr.Validation(fmt.Sprintf("points must not exceed %d", MaxEarnPoints))
	case r.AmountSpent > MaxAmountSpent:
		return apperr.Validation(fmt.Sprintf("amount_spent must not exceed %d", MaxAmountSpent))
	}
	return nil
}

// EarnResult is returned by a successful earn event.
type EarnResult struct {
	Account *models.LoyaltyAccount `json:"account"`
	Message string                 `json:"message"`
}

// Earn credits points and spend to the user's ledger and logs the event.
func (s *Service) Earn(ctx context.Context, req EarnRequest) (*EarnResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	release, err := s.lockUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	var account *models.LoyaltyAccount
	err = s.uow.Atomic(ctx, func(tx repository.Repositories) error {
		updated, err := s.applyPointsChange(ctx, tx, req.UserID, req.Points, req.AmountSpent)
		if err != nil {
			return err
		}
		account = updated

		return appendTransaction(ctx, tx, &models.LoyaltyTransaction{
			UserID:          req.UserID,
			PointsEarned:    req.Points,
			TransactionType: req.ServiceType,
			ServiceDetails:  req.ServiceDetails,
			CreatedAt:       s.now(),
		})
	})
	if err != nil {
		s.log.Error().Err(err).Uint("user_id", req.UserID).Str("service_type", req.ServiceType).Msg("Earn failed")
		return nil, err
	}

	metrics.RecordPointsEarned(req.ServiceType, req.Points)
	s.log.Info().
		Uint("user_id", req.UserID).
		Str("service_type", req.ServiceType).
		Int64("points", req.Points).
		Int64("balance", account.TotalPoints).
		Msg("Points earned")

	return &EarnResult{
		Account: account,
		Message: fmt.Sprintf("You earned %d points!", req.Points),
	}, nil
}
