package recon

import (
	"fmt"

	"github.com/cashrecon/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConservationProof is the outcome of verifying the conservation invariant:
// allocations plus fees and writeoffs must account for the full movement
// amount. An unallocated remainder is not an explanation, so it never counts
// towards the proof.
type ConservationProof struct {
	IsConserved   bool
	ExpectedTotal decimal.Decimal
	ActualTotal   decimal.Decimal
	Difference    decimal.Decimal
	Proof         string
}

// OvermatchViolation describes one obligation allocated beyond its open amount
type OvermatchViolation struct {
	ObligationID uuid.UUID
	OpenAmount   decimal.Decimal
	Existing     decimal.Decimal
	Allocated    decimal.Decimal
	Excess       decimal.Decimal
}

// OvermatchReport is the outcome of verifying the no-overmatch invariant
type OvermatchReport struct {
	NoOvermatch bool
	Violations  []OvermatchViolation
}

// VerifyConservation proves that the solution's allocations, fees and
// writeoffs sum to the absolute movement amount within the cent tolerance.
// The unallocated remainder is excluded from the sum on purpose: counting it
// would make any solution trivially conserved, and the check must stand
// independent of how the solver balanced its books. Pure function, no I/O.
func VerifyConservation(solution *AllocationSolution, movementAmount decimal.Decimal) ConservationProof {
	expected := movementAmount.Abs()
	actual := solution.AllocatedTotal().
		Add(solution.Fees).
		Add(solution.Writeoffs)
	difference := actual.Sub(expected)

	proof := fmt.Sprintf(
		"sum(allocations)=%s + fees=%s + writeoffs=%s = %s; |movement|=%s; diff=%s",
		solution.AllocatedTotal().StringFixed(2),
		solution.Fees.StringFixed(2),
		solution.Writeoffs.StringFixed(2),
		actual.StringFixed(2),
		expected.StringFixed(2),
		difference.StringFixed(4),
	)

	return ConservationProof{
		IsConserved:   difference.Abs().LessThan(valueobject.CentTolerance),
		ExpectedTotal: expected,
		ActualTotal:   actual,
		Difference:    difference,
		Proof:         proof,
	}
}

// VerifyNoOvermatch proves that no candidate's existing plus new allocation
// exceeds its open amount by more than the cent tolerance. Pure function.
func VerifyNoOvermatch(solution *AllocationSolution, candidates []Candidate) OvermatchReport {
	byID := make(map[uuid.UUID]Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.Obligation.ID] = c
	}

	report := OvermatchReport{NoOvermatch: true}
	for _, a := range solution.Allocations {
		c, ok := byID[a.ObligationID]
		if !ok {
			// An allocation against an obligation that was never a candidate
			// is an overmatch of capacity zero.
			report.NoOvermatch = false
			report.Violations = append(report.Violations, OvermatchViolation{
				ObligationID: a.ObligationID,
				Allocated:    a.Amount,
				Excess:       a.Amount,
			})
			continue
		}
		combined := c.AlreadyApplied.Add(a.Amount)
		excess := combined.Sub(c.Obligation.OpenAmount)
		if excess.GreaterThan(valueobject.CentTolerance) {
			report.NoOvermatch = false
			report.Violations = append(report.Violations, OvermatchViolation{
				ObligationID: a.ObligationID,
				OpenAmount:   c.Obligation.OpenAmount,
				Existing:     c.AlreadyApplied,
				Allocated:    a.Amount,
				Excess:       excess,
			})
		}
	}
	return report
}
