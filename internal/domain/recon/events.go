package recon

import (
	"github.com/cashrecon/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementClassifiedEvent is raised when a movement is assigned a match tier
type MovementClassifiedEvent struct {
	shared.BaseDomainEvent
	MovementID uuid.UUID       `json:"movement_id"`
	Status     MovementStatus  `json:"status"`
	Confidence float64         `json:"confidence"`
	Amount     decimal.Decimal `json:"amount"`
}

// EventType returns the event type name
func (e *MovementClassifiedEvent) EventType() string {
	return "MovementClassified"
}

// NewMovementClassifiedEvent creates a new MovementClassifiedEvent
func NewMovementClassifiedEvent(m *Movement) *MovementClassifiedEvent {
	return &MovementClassifiedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("MovementClassified", "Movement", m.ID, m.EntityID),
		MovementID:      m.ID,
		Status:          m.Status,
		Confidence:      m.Confidence,
		Amount:          m.Amount,
	}
}

// AllocationAppliedEvent is raised for every allocation record created.
// The audit collaborator uses these to reconstruct, for any movement, the
// exact obligation ids and amounts behind its status.
type AllocationAppliedEvent struct {
	shared.BaseDomainEvent
	AllocationID uuid.UUID       `json:"allocation_id"`
	MovementID   uuid.UUID       `json:"movement_id"`
	ObligationID uuid.UUID       `json:"obligation_id"`
	Amount       decimal.Decimal `json:"amount"`
	SolverStatus SolverStatus    `json:"solver_status"`
}

// EventType returns the event type name
func (e *AllocationAppliedEvent) EventType() string {
	return "AllocationApplied"
}

// NewAllocationAppliedEvent creates a new AllocationAppliedEvent
func NewAllocationAppliedEvent(entityID uuid.UUID, record *AllocationRecord, status SolverStatus) *AllocationAppliedEvent {
	return &AllocationAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("AllocationApplied", "AllocationRecord", record.ID, entityID),
		AllocationID:    record.ID,
		MovementID:      record.MovementID,
		ObligationID:    record.ObligationID,
		Amount:          record.Amount,
		SolverStatus:    status,
	}
}

// InvariantViolationDetectedEvent is raised when the verifier rejects a
// solver solution. The movement has already been reverted when this fires.
type InvariantViolationDetectedEvent struct {
	shared.BaseDomainEvent
	MovementID uuid.UUID `json:"movement_id"`
	Kind       string    `json:"kind"`
	Proof      string    `json:"proof"`
}

// EventType returns the event type name
func (e *InvariantViolationDetectedEvent) EventType() string {
	return "InvariantViolationDetected"
}

// NewInvariantViolationDetectedEvent creates a new InvariantViolationDetectedEvent
func NewInvariantViolationDetectedEvent(entityID uuid.UUID, violation *InvariantViolationError) *InvariantViolationDetectedEvent {
	return &InvariantViolationDetectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvariantViolationDetected", "Movement", violation.MovementID, entityID),
		MovementID:      violation.MovementID,
		Kind:            violation.Kind,
		Proof:           violation.Proof,
	}
}

// WashSuggestedEvent is raised when the wash detector flags an offsetting pair
type WashSuggestedEvent struct {
	shared.BaseDomainEvent
	WashID      uuid.UUID `json:"wash_id"`
	MovementAID uuid.UUID `json:"movement_a_id"`
	MovementBID uuid.UUID `json:"movement_b_id"`
	Confidence  float64   `json:"confidence"`
}

// EventType returns the event type name
func (e *WashSuggestedEvent) EventType() string {
	return "WashSuggested"
}

// NewWashSuggestedEvent creates a new WashSuggestedEvent
func NewWashSuggestedEvent(entityID uuid.UUID, wash SuggestedWash) *WashSuggestedEvent {
	return &WashSuggestedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("WashSuggested", "SuggestedWash", wash.ID, entityID),
		WashID:          wash.ID,
		MovementAID:     wash.MovementAID,
		MovementBID:     wash.MovementBID,
		Confidence:      wash.Confidence,
	}
}

// WashApprovedEvent is raised when an operator approves a suggested wash
type WashApprovedEvent struct {
	shared.BaseDomainEvent
	MovementAID uuid.UUID `json:"movement_a_id"`
	MovementBID uuid.UUID `json:"movement_b_id"`
}

// EventType returns the event type name
func (e *WashApprovedEvent) EventType() string {
	return "WashApproved"
}

// NewWashApprovedEvent creates a new WashApprovedEvent
func NewWashApprovedEvent(entityID, movementAID, movementBID uuid.UUID) *WashApprovedEvent {
	return &WashApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("WashApproved", "Movement", movementAID, entityID),
		MovementAID:     movementAID,
		MovementBID:     movementBID,
	}
}

// SuggestedMatchApprovedEvent is raised when an operator approves a fuzzy
// match, converting it into allocations
type SuggestedMatchApprovedEvent struct {
	shared.BaseDomainEvent
	MovementID    uuid.UUID   `json:"movement_id"`
	ObligationIDs []uuid.UUID `json:"obligation_ids"`
}

// EventType returns the event type name
func (e *SuggestedMatchApprovedEvent) EventType() string {
	return "SuggestedMatchApproved"
}

// NewSuggestedMatchApprovedEvent creates a new SuggestedMatchApprovedEvent
func NewSuggestedMatchApprovedEvent(entityID, movementID uuid.UUID, obligationIDs []uuid.UUID) *SuggestedMatchApprovedEvent {
	return &SuggestedMatchApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("SuggestedMatchApproved", "Movement", movementID, entityID),
		MovementID:      movementID,
		ObligationIDs:   obligationIDs,
	}
}
