package recon

import (
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// Objective weights below the quality flags: a small preference for keeping
// larger open amounts in play breaks ties between equal-quality candidates,
// and a vanishing index term pins the simplex to one vertex when even that
// ties, keeping solutions reproducible across runs.
const (
	openAmountTieWeight = 1e-4
	indexTieWeight      = 1e-9
)

// solveLP formulates the allocation problem as a linear program in standard
// form and solves it with the simplex method.
//
// Variables are the n allocations plus n slack variables for the capacity
// bounds. Constraints: sum of allocations equals the net basis, and each
// allocation plus its slack equals the candidate's remaining capacity.
// The objective maximizes quality-weighted allocation.
func solveLP(candidates []Candidate, net decimal.Decimal) ([]Allocation, error) {
	n := len(candidates)
	netF, _ := net.Float64()

	// Standard form: minimize c^T x subject to A x = b, x >= 0.
	cols := 2 * n
	rows := n + 1
	c := make([]float64, cols)
	b := make([]float64, rows)
	a := mat.NewDense(rows, cols, nil)

	maxOpen := decimal.Zero
	for _, cand := range candidates {
		if cand.Obligation.OpenAmount.GreaterThan(maxOpen) {
			maxOpen = cand.Obligation.OpenAmount
		}
	}
	maxOpenF, _ := maxOpen.Float64()
	if maxOpenF <= 0 {
		maxOpenF = 1
	}

	b[0] = netF
	for i, cand := range candidates {
		openF, _ := cand.Obligation.OpenAmount.Float64()
		capacityF, _ := cand.RemainingCapacity().Float64()

		c[i] = -(float64(cand.QualityScore()) +
			openAmountTieWeight*openF/maxOpenF +
			indexTieWeight*float64(n-i))

		a.Set(0, i, 1)         // conservation row
		a.Set(i+1, i, 1)       // capacity row: x_i + s_i = capacity_i
		a.Set(i+1, n+i, 1)
		b[i+1] = capacityF
	}

	_, x, err := lp.Simplex(c, a, b, 0, nil)
	if err != nil {
		return nil, err
	}

	allocations := make([]Allocation, 0, n)
	for i, cand := range candidates {
		amount := decimal.NewFromFloat(x[i]).Round(2)
		if amount.LessThanOrEqual(decimal.Zero) {
			continue
		}
		allocations = append(allocations, Allocation{
			ObligationID: cand.Obligation.ID,
			Amount:       amount,
		})
	}
	return allocations, nil
}
