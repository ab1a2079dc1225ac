package recon

import (
	"github.com/cashrecon/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationRecord is the persisted attribution of a movement portion to one
// obligation. Records are immutable once the owning snapshot is finalized;
// finalization itself is owned by an external collaborator.
type AllocationRecord struct {
	shared.BaseEntity
	MovementID   uuid.UUID
	ObligationID uuid.UUID
	Amount       decimal.Decimal // Always positive
}

// NewAllocationRecord creates a validated allocation record
func NewAllocationRecord(movementID, obligationID uuid.UUID, amount decimal.Decimal) (*AllocationRecord, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_INPUT", "Allocation amount must be positive")
	}
	return &AllocationRecord{
		BaseEntity:   shared.NewBaseEntity(),
		MovementID:   movementID,
		ObligationID: obligationID,
		Amount:       amount,
	}, nil
}

// SolverStatus describes how an allocation solution was produced
type SolverStatus string

const (
	SolverStatusOptimal        SolverStatus = "OPTIMAL"                 // LP solved to optimality
	SolverStatusGreedyFallback SolverStatus = "GREEDY_FALLBACK"         // Greedy strategy used
	SolverStatusNoCandidates   SolverStatus = "NO_CANDIDATES"           // Nothing to allocate against
	SolverStatusFeesOnly       SolverStatus = "FULLY_ALLOCATED_TO_FEES" // Net basis fully consumed by fees/writeoffs
)

// IsValid checks if the solver status is valid
func (s SolverStatus) IsValid() bool {
	switch s {
	case SolverStatusOptimal, SolverStatusGreedyFallback, SolverStatusNoCandidates, SolverStatusFeesOnly:
		return true
	}
	return false
}

// String returns the string representation
func (s SolverStatus) String() string {
	return string(s)
}

// Allocation is one line of a solver solution before it is persisted
type Allocation struct {
	ObligationID uuid.UUID
	Amount       decimal.Decimal
}

// AllocationSolution is the outcome of the constrained allocation solver for
// one movement. Unallocated amount is surfaced explicitly, never dropped.
type AllocationSolution struct {
	Allocations []Allocation
	Fees        decimal.Decimal
	Writeoffs   decimal.Decimal
	Unallocated decimal.Decimal
	IsOptimal   bool
	Status      SolverStatus
}

// AllocatedTotal returns the sum of all allocation amounts in the solution
func (s *AllocationSolution) AllocatedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, a := range s.Allocations {
		total = total.Add(a.Amount)
	}
	return total
}
