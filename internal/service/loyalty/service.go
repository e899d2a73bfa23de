// Package loyalty implements the point ledger, tier policy, reward catalog and
// redemption flows of the loyalty program.
package loyalty

import (
	"context"
	"fmt"
	"time"

	"github.com/aimd54/wellness-rewards/internal/lock"
	"github.com/aimd54/wellness-rewards/internal/repository"
	"github.com/aimd54/wellness-rewards/pkg/logger"
)

// Service handles ledger mutations and reward redemption.
type Service struct {
	uow   repository.UnitOfWork
	locks lock.Locker
	log   *logger.Logger
	now   func() time.Time
}

// NewServiceWithInterfaces creates a loyalty service over any unit of work,
// database or in-memory.
func NewServiceWithInterfaces(uow repository.UnitOfWork, locks lock.Locker, log *logger.Logger) *Service {
	return &Service{
		uow:   uow,
		locks: locks,
		log:   log.Component("loyalty"),
		now:   time.Now,
	}
}

// lockUser serializes read-modify-write sequences on one user's ledger.
func (s *Service) lockUser(ctx context.Context, userID uint) (func(), error) {
	release, err := s.locks.Acquire(ctx, fmt.Sprintf("loyalty:user:%d", userID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock ledger of user %d: %w", userID, err)
	}
	return release, nil
}
