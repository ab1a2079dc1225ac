package recon

import (
	"time"

	"github.com/cashrecon/backend/internal/domain/shared"
	"github.com/cashrecon/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ObligationKind represents the direction of an open obligation
type ObligationKind string

const (
	ObligationKindReceivable ObligationKind = "RECEIVABLE" // Money owed to us (open invoice)
	ObligationKindPayable    ObligationKind = "PAYABLE"    // Money we owe (vendor bill)
)

// IsValid checks if the obligation kind is valid
func (k ObligationKind) IsValid() bool {
	return k == ObligationKindReceivable || k == ObligationKindPayable
}

// String returns the string representation
func (k ObligationKind) String() string {
	return string(k)
}

// Obligation represents an open financial obligation (receivable or payable)
// awaiting settlement by one or more cash movements.
//
// OpenAmount is the only mutable field; it is reduced exclusively through
// ApplyAllocation and restored through ReverseAllocation so that the
// no-overmatch invariant is enforced at every mutation site.
type Obligation struct {
	shared.BaseEntity
	EntityID       uuid.UUID            // Legal entity that owns the obligation
	Kind           ObligationKind       // Receivable or payable
	DocumentNumber string               // Invoice/bill document number
	Counterparty   string               // Counterparty display name
	Currency       valueobject.Currency // ISO 4217 currency code
	Amount         decimal.Decimal      // Original amount, always positive
	OpenAmount     decimal.Decimal      // Outstanding amount, 0 <= OpenAmount <= Amount
	DueDate        *time.Time           // Due date for FIFO ordering
}

// NewObligation creates a validated open obligation with OpenAmount = Amount
func NewObligation(entityID uuid.UUID, kind ObligationKind, documentNumber, counterparty string, currency valueobject.Currency, amount decimal.Decimal, dueDate *time.Time) (*Obligation, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Obligation kind must be RECEIVABLE or PAYABLE")
	}
	if currency == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Obligation currency cannot be empty")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_INPUT", "Obligation amount must be positive")
	}
	return &Obligation{
		BaseEntity:     shared.NewBaseEntity(),
		EntityID:       entityID,
		Kind:           kind,
		DocumentNumber: documentNumber,
		Counterparty:   counterparty,
		Currency:       currency,
		Amount:         amount,
		OpenAmount:     amount,
		DueDate:        dueDate,
	}, nil
}

// IsOpen returns true if the obligation still has an outstanding amount
func (o *Obligation) IsOpen() bool {
	return o.OpenAmount.GreaterThan(decimal.Zero)
}

// OpenMoney returns the outstanding amount tagged with the obligation
// currency. The currency is validated non-empty at construction.
func (o *Obligation) OpenMoney() valueobject.Money {
	money, _ := valueobject.NewMoney(o.OpenAmount, o.Currency)
	return money
}

// IsClosed returns true if the obligation is fully settled within tolerance
func (o *Obligation) IsClosed() bool {
	return o.OpenAmount.Abs().LessThan(valueobject.CentTolerance)
}

// ApplyAllocation reduces OpenAmount by the allocated amount.
// Rejects non-positive amounts and any allocation exceeding OpenAmount
// beyond the cent tolerance.
func (o *Obligation) ApplyAllocation(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_INPUT", "Allocation amount must be positive")
	}
	if amount.Sub(o.OpenAmount).GreaterThan(valueobject.CentTolerance) {
		return ErrOvermatch
	}
	o.OpenAmount = o.OpenAmount.Sub(amount)
	if o.OpenAmount.IsNegative() {
		// Inside tolerance; snap to zero so OpenAmount stays non-negative.
		o.OpenAmount = decimal.Zero
	}
	o.Touch()
	return nil
}

// ReverseAllocation restores OpenAmount after an allocation is rolled back.
// The restored amount is capped at the original Amount.
func (o *Obligation) ReverseAllocation(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_INPUT", "Reversal amount must be positive")
	}
	restored := o.OpenAmount.Add(amount)
	if restored.Sub(o.Amount).GreaterThan(valueobject.CentTolerance) {
		return shared.NewDomainError("INVALID_STATE", "Reversal would exceed original obligation amount")
	}
	o.OpenAmount = decimal.Min(restored, o.Amount)
	o.Touch()
	return nil
}

// Validate checks structural invariants on the obligation record
func (o *Obligation) Validate() error {
	if !o.Kind.IsValid() {
		return shared.NewDomainError("INVALID_INPUT", "Obligation kind must be RECEIVABLE or PAYABLE")
	}
	if o.Currency == "" {
		return shared.NewDomainError("INVALID_INPUT", "Obligation currency cannot be empty")
	}
	if o.Amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_INPUT", "Obligation amount must be positive")
	}
	if o.OpenAmount.IsNegative() {
		return shared.NewDomainError("INVALID_STATE", "Obligation open amount cannot be negative")
	}
	if o.OpenAmount.Sub(o.Amount).GreaterThan(valueobject.CentTolerance) {
		return shared.NewDomainError("INVALID_STATE", "Obligation open amount cannot exceed original amount")
	}
	return nil
}
