package recon

import (
	"time"

	"github.com/cashrecon/backend/internal/domain/shared"
	"github.com/cashrecon/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementStatus represents the match classification of a bank cash movement
type MovementStatus string

const (
	MovementStatusUnmatched     MovementStatus = "UNMATCHED"     // No qualifying tier found
	MovementStatusSuggested     MovementStatus = "SUGGESTED"     // Fuzzy candidate awaiting approval
	MovementStatusDeterministic MovementStatus = "DETERMINISTIC" // Reference + amount match, auto-allocated
	MovementStatusRuleBased     MovementStatus = "RULE_BASED"    // Amount + date window match, auto-allocated
	MovementStatusManyToMany    MovementStatus = "MANY_TO_MANY"  // Allocated across multiple obligations
	MovementStatusWash          MovementStatus = "WASH"          // Approved offsetting intercompany pair
)

// IsValid checks if the status is a valid MovementStatus
func (s MovementStatus) IsValid() bool {
	switch s {
	case MovementStatusUnmatched, MovementStatusSuggested, MovementStatusDeterministic,
		MovementStatusRuleBased, MovementStatusManyToMany, MovementStatusWash:
		return true
	}
	return false
}

// String returns the string representation
func (s MovementStatus) String() string {
	return string(s)
}

// IsMatched returns true if the movement carries an allocation-backed status
func (s MovementStatus) IsMatched() bool {
	return s == MovementStatusDeterministic || s == MovementStatusRuleBased || s == MovementStatusManyToMany
}

// IsTerminal returns true if the status is terminal for the current pass
func (s MovementStatus) IsTerminal() bool {
	return s != MovementStatusUnmatched
}

// CanTransitionTo reports whether the status transition is allowed.
// All classifications start from UNMATCHED; SUGGESTED may additionally
// escalate to an allocation-backed status through the approval workflow,
// and any revert goes back to UNMATCHED.
func (s MovementStatus) CanTransitionTo(next MovementStatus) bool {
	if !next.IsValid() {
		return false
	}
	switch s {
	case MovementStatusUnmatched:
		return true
	case MovementStatusSuggested:
		return next == MovementStatusDeterministic || next == MovementStatusRuleBased ||
			next == MovementStatusManyToMany || next == MovementStatusUnmatched
	default:
		return next == MovementStatusUnmatched
	}
}

// Movement represents one bank transaction line (inflow or outflow).
// Amount is immutable after creation; only Status, Confidence and the
// manual-review flag change during a matching pass.
type Movement struct {
	shared.BaseEntity
	EntityID          uuid.UUID            // Legal entity the movement belongs to
	AccountID         uuid.UUID            // Bank account the movement was booked on
	Amount            decimal.Decimal      // Signed amount: positive inflow, negative outflow
	Currency          valueobject.Currency // ISO 4217 currency code
	Reference         string               // Free-text payment reference
	Counterparty      string               // Counterparty text from the bank line
	BookingDate       time.Time            // Transaction date
	Status            MovementStatus
	Confidence        float64 // Match confidence in [0, 1]
	NeedsManualReview bool    // Set when an invariant violation was detected
}

// NewMovement creates a validated movement in UNMATCHED status
func NewMovement(entityID, accountID uuid.UUID, amount decimal.Decimal, currency valueobject.Currency, reference, counterparty string, bookingDate time.Time) (*Movement, error) {
	if amount.IsZero() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Movement amount cannot be zero")
	}
	if currency == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Movement currency cannot be empty")
	}
	return &Movement{
		BaseEntity:   shared.NewBaseEntity(),
		EntityID:     entityID,
		AccountID:    accountID,
		Amount:       amount,
		Currency:     currency,
		Reference:    reference,
		Counterparty: counterparty,
		BookingDate:  bookingDate,
		Status:       MovementStatusUnmatched,
	}, nil
}

// Net returns the absolute movement amount to be explained by allocations
func (m *Movement) Net() decimal.Decimal {
	return m.Amount.Abs()
}

// NetMoney returns the net amount tagged with the movement currency.
// The currency is validated non-empty at construction.
func (m *Movement) NetMoney() valueobject.Money {
	money, _ := valueobject.NewMoney(m.Amount.Abs(), m.Currency)
	return money
}

// Classify transitions the movement into a new status with the given confidence
func (m *Movement) Classify(status MovementStatus, confidence float64) error {
	if !m.Status.CanTransitionTo(status) {
		return shared.NewDomainError("INVALID_STATE",
			"Movement cannot transition from "+m.Status.String()+" to "+status.String())
	}
	if confidence < 0 || confidence > 1 {
		return shared.NewDomainError("INVALID_INPUT", "Confidence must be within [0, 1]")
	}
	m.Status = status
	m.Confidence = confidence
	m.Touch()
	return nil
}

// RevertToUnmatched rolls the movement back to its pre-classification state
func (m *Movement) RevertToUnmatched() {
	m.Status = MovementStatusUnmatched
	m.Confidence = 0
	m.Touch()
}

// FlagForManualReview marks the movement as needing operator attention
func (m *Movement) FlagForManualReview() {
	m.NeedsManualReview = true
	m.Touch()
}

// Validate checks structural invariants on the movement record
func (m *Movement) Validate() error {
	if m.Amount.IsZero() {
		return shared.NewDomainError("INVALID_INPUT", "Movement amount cannot be zero")
	}
	if m.Currency == "" {
		return shared.NewDomainError("INVALID_INPUT", "Movement currency cannot be empty")
	}
	if !m.Status.IsValid() {
		return shared.NewDomainError("INVALID_STATE", "Movement status is not valid")
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return shared.NewDomainError("INVALID_STATE", "Movement confidence must be within [0, 1]")
	}
	return nil
}
