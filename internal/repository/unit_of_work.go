package repository

import (
	"context"

	"gorm.io/gorm"
)

// GormUnitOfWork runs multi-step mutations inside a database transaction.
type GormUnitOfWork struct {
	db *DB
}

// NewUnitOfWork creates a unit of work backed by db.
func NewUnitOfWork(db *DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

// Repositories returns stores bound to the shared connection.
func (u *GormUnitOfWork) Repositories() Repositories {
	return newRepositories(u.db)
}

// Atomic runs fn in a transaction; any error returned by fn rolls back.
func (u *GormUnitOfWork) Atomic(ctx context.Context, fn func(repos Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newRepositories(&DB{tx}))
	})
}

func newRepositories(db *DB) Repositories {
	return Repositories{
		Ledgers:        NewLedgerRepository(db),
		Rewards:        NewRewardRepository(db),
		Vouchers:       NewVoucherRepository(db),
		Transactions:   NewTransactionRepository(db),
		Challenges:     NewChallengeRepository(db),
		Participations: NewParticipationRepository(db),
		Activities:     NewActivityRepository(db),
		Users:          NewUserRepository(db),
	}
}

var _ UnitOfWork = (*GormUnitOfWork)(nil)
