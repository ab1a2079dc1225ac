package recon

import (
	"github.com/cashrecon/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ExceptionRecord is the queryable trace of a fatal per-movement condition.
// Input errors and invariant violations never silently alter financial
// totals; they always leave one of these behind.
type ExceptionRecord struct {
	shared.BaseEntity
	EntityID   uuid.UUID
	MovementID uuid.UUID
	Code       string // Domain error code, e.g. INVARIANT_VIOLATION
	Message    string
	Proof      string // Verifier proof string when applicable
}

// NewExceptionRecord creates an exception record for a movement
func NewExceptionRecord(entityID, movementID uuid.UUID, code, message, proof string) *ExceptionRecord {
	return &ExceptionRecord{
		BaseEntity: shared.NewBaseEntity(),
		EntityID:   entityID,
		MovementID: movementID,
		Code:       code,
		Message:    message,
		Proof:      proof,
	}
}
