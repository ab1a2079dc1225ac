package recon

import (
	"errors"
	"fmt"

	"github.com/cashrecon/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Solver and matcher errors. Malformed input is fatal and non-retryable;
// infeasibility is not an error and degrades through the fallback chain.
var (
	ErrDuplicateCandidate = shared.NewDomainError("DUPLICATE_CANDIDATE", "Duplicate candidate obligation ids passed to solver")
	ErrNegativeNetBasis   = shared.NewDomainError("NEGATIVE_NET_BASIS", "Fees and writeoffs exceed the movement amount")
	ErrOvermatch          = shared.NewDomainError("OVERMATCH", "Allocation exceeds obligation open amount")
	ErrCurrencyMismatch   = shared.NewDomainError("CURRENCY_MISMATCH", "Movement and obligation currencies differ")
)

// InvariantViolationError is fatal to a single movement, not to the pass.
// The movement reverts to its pre-solve status and is flagged for manual
// review; the batch continues for other movements.
type InvariantViolationError struct {
	MovementID uuid.UUID
	Kind       string // "CONSERVATION" or "NO_OVERMATCH"
	Proof      string
}

// Error implements the error interface
func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation (%s) on movement %s: %s", e.Kind, e.MovementID, e.Proof)
}

// NewInvariantViolationError creates an invariant violation error
func NewInvariantViolationError(movementID uuid.UUID, kind, proof string) *InvariantViolationError {
	return &InvariantViolationError{MovementID: movementID, Kind: kind, Proof: proof}
}

// TransientStoreError wraps a retryable I/O failure from an entity store.
// Matching is idempotent, so callers may safely retry the whole pass.
type TransientStoreError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transient store failure during %s: %v", e.Op, e.Err)
}

// Unwrap returns the wrapped error
func (e *TransientStoreError) Unwrap() error {
	return e.Err
}

// NewTransientStoreError wraps an I/O error as retryable
func NewTransientStoreError(op string, err error) *TransientStoreError {
	return &TransientStoreError{Op: op, Err: err}
}

// IsTransient reports whether the error chain contains a retryable store failure
func IsTransient(err error) bool {
	var t *TransientStoreError
	return errors.As(err, &t)
}

// IsInvariantViolation reports whether the error chain contains an invariant violation
func IsInvariantViolation(err error) bool {
	var v *InvariantViolationError
	return errors.As(err, &v)
}
