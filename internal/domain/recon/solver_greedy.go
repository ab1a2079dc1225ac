package recon

import (
	"sort"

	"github.com/shopspring/decimal"
)

// solveGreedy allocates the net basis across candidates in quality order:
// quality score descending, then FIFO by due date, then obligation id.
// Each candidate absorbs up to its remaining capacity until the net basis is
// exhausted. Never exceeds capacity, never raises.
//
// The tie-break (due date before obligation id) is the locked-in greedy
// ordering; see the order-invariance tests.
func solveGreedy(candidates []Candidate, net decimal.Decimal) []Allocation {
	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		qi, qj := ordered[i].QualityScore(), ordered[j].QualityScore()
		if qi != qj {
			return qi > qj
		}
		if c := compareDueDates(ordered[i].Obligation.DueDate, ordered[j].Obligation.DueDate); c != 0 {
			return c < 0
		}
		return ordered[i].Obligation.ID.String() < ordered[j].Obligation.ID.String()
	})

	allocations := make([]Allocation, 0, len(ordered))
	remaining := net
	for _, cand := range ordered {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		capacity := cand.RemainingCapacity()
		if capacity.LessThanOrEqual(decimal.Zero) {
			continue
		}
		amount := decimal.Min(remaining, capacity)
		allocations = append(allocations, Allocation{
			ObligationID: cand.Obligation.ID,
			Amount:       amount,
		})
		remaining = remaining.Sub(amount)
	}
	return allocations
}
