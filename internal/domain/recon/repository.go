package recon

import (
	"context"

	"github.com/cashrecon/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// ObligationRepository provides access to open obligations
type ObligationRepository interface {
	// FindByID finds an obligation by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Obligation, error)
	// FindOpen returns all open obligations for an entity and currency
	FindOpen(ctx context.Context, entityID uuid.UUID, currency valueobject.Currency) ([]*Obligation, error)
	// Save persists an obligation
	Save(ctx context.Context, obligation *Obligation) error
}

// MovementRepository provides access to bank cash movements
type MovementRepository interface {
	// FindByID finds a movement by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Movement, error)
	// FindByEntity returns all movements for an entity and currency
	FindByEntity(ctx context.Context, entityID uuid.UUID, currency valueobject.Currency) ([]*Movement, error)
	// FindUnmatched returns unmatched movements across all entities
	FindUnmatched(ctx context.Context) ([]*Movement, error)
	// Save persists a movement
	Save(ctx context.Context, movement *Movement) error
}

// AllocationRepository provides access to allocation records
type AllocationRepository interface {
	// FindByMovement returns all allocation records for a movement
	FindByMovement(ctx context.Context, movementID uuid.UUID) ([]*AllocationRecord, error)
	// FindByObligation returns all allocation records against an obligation
	FindByObligation(ctx context.Context, obligationID uuid.UUID) ([]*AllocationRecord, error)
	// Save persists an allocation record
	Save(ctx context.Context, record *AllocationRecord) error
	// DeleteByMovement removes all allocation records for a movement (rollback)
	DeleteByMovement(ctx context.Context, movementID uuid.UUID) error
}

// WashRepository provides access to suggested washes
type WashRepository interface {
	// FindByID finds a suggested wash by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*SuggestedWash, error)
	// Save persists a suggested wash
	Save(ctx context.Context, wash *SuggestedWash) error
}

// ExceptionRepository provides access to exception records
type ExceptionRepository interface {
	// FindByMovement returns all exception records for a movement
	FindByMovement(ctx context.Context, movementID uuid.UUID) ([]*ExceptionRecord, error)
	// Save persists an exception record
	Save(ctx context.Context, record *ExceptionRecord) error
}

// RepositorySet bundles the repositories a matching pass works with
type RepositorySet struct {
	Obligations ObligationRepository
	Movements   MovementRepository
	Allocations AllocationRepository
	Washes      WashRepository
	Exceptions  ExceptionRepository
}

// UnitOfWork runs a function with a transactional repository set: all
// status and open-amount mutations for one movement commit atomically
// through it, avoiding partial states.
type UnitOfWork interface {
	// WithinTx runs fn inside a transaction; rollback on error
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos RepositorySet) error) error
	// Repos returns the non-transactional repository set for reads
	Repos() RepositorySet
}
