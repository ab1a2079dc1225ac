package persistence

import (
	"context"

	"github.com/cashrecon/backend/internal/domain/recon"
	"gorm.io/gorm"
)

// GormUnitOfWork implements recon.UnitOfWork on top of GORM transactions.
// Each WithinTx call hands the callback a repository set bound to the
// transaction, so every write inside the callback commits or rolls back
// as one unit.
type GormUnitOfWork struct {
	db *gorm.DB
}

// NewGormUnitOfWork creates a new GormUnitOfWork
func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

// WithinTx runs fn inside a database transaction; rollback on error
func (u *GormUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, repos recon.RepositorySet) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, newRepositorySet(tx))
	})
}

// Repos returns the non-transactional repository set for reads
func (u *GormUnitOfWork) Repos() recon.RepositorySet {
	return newRepositorySet(u.db)
}

func newRepositorySet(db *gorm.DB) recon.RepositorySet {
	return recon.RepositorySet{
		Obligations: NewGormObligationRepository(db),
		Movements:   NewGormMovementRepository(db),
		Allocations: NewGormAllocationRepository(db),
		Washes:      NewGormWashRepository(db),
		Exceptions:  NewGormExceptionRepository(db),
	}
}

var _ recon.UnitOfWork = (*GormUnitOfWork)(nil)
