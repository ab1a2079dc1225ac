package recon

import (
	"github.com/cashrecon/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultLPCandidateBound caps the LP formulation size so solving stays
// deterministic and fast; larger candidate sets fall back to greedy.
const DefaultLPCandidateBound = 50

// SolverInput describes one movement's allocation problem
type SolverInput struct {
	MovementID     uuid.UUID
	MovementAmount decimal.Decimal // Absolute (net) movement amount
	Candidates     []Candidate     // Ordered candidate obligations
	Fees           decimal.Decimal
	Writeoffs      decimal.Decimal
}

// NetBasis returns the amount that must be covered by allocations:
// the movement amount minus fees and writeoffs
func (in SolverInput) NetBasis() decimal.Decimal {
	return in.MovementAmount.Sub(in.Fees).Sub(in.Writeoffs)
}

// AllocationSolver computes per-obligation allocations under the conservation
// and no-overmatch constraints. LP availability is a capability resolved at
// construction; the greedy strategy is a first-class fallback, not an
// exception path.
type AllocationSolver struct {
	lpEnabled        bool
	lpCandidateBound int
	logger           *zap.Logger
}

// SolverOption is a functional option for configuring AllocationSolver
type SolverOption func(*AllocationSolver)

// WithoutLP disables the LP capability, forcing the greedy strategy
func WithoutLP() SolverOption {
	return func(s *AllocationSolver) {
		s.lpEnabled = false
	}
}

// WithLPCandidateBound overrides the LP candidate bound
func WithLPCandidateBound(bound int) SolverOption {
	return func(s *AllocationSolver) {
		if bound > 0 {
			s.lpCandidateBound = bound
		}
	}
}

// NewAllocationSolver creates a solver with LP enabled and the default bound
func NewAllocationSolver(logger *zap.Logger, opts ...SolverOption) *AllocationSolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AllocationSolver{
		lpEnabled:        true,
		lpCandidateBound: DefaultLPCandidateBound,
		logger:           logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Solve computes an allocation solution for the input. Infeasibility never
// raises; the solver degrades through the fallback chain and surfaces any
// unplaceable remainder as Unallocated. Only malformed input is an error.
func (s *AllocationSolver) Solve(input SolverInput) (*AllocationSolution, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	net := input.NetBasis()
	solution := &AllocationSolution{
		Fees:        input.Fees,
		Writeoffs:   input.Writeoffs,
		Unallocated: decimal.Zero,
	}

	if net.Abs().LessThan(valueobject.CentTolerance) {
		solution.Status = SolverStatusFeesOnly
		solution.IsOptimal = true
		return solution, nil
	}
	if len(input.Candidates) == 0 {
		solution.Status = SolverStatusNoCandidates
		solution.Unallocated = net
		return solution, nil
	}

	var allocations []Allocation
	status := SolverStatusGreedyFallback
	if s.lpEnabled && len(input.Candidates) <= s.lpCandidateBound {
		lpAllocations, err := solveLP(input.Candidates, net)
		if err == nil {
			allocations = lpAllocations
			status = SolverStatusOptimal
		} else {
			s.logger.Debug("lp solve failed, using greedy strategy",
				zap.String("movement_id", input.MovementID.String()),
				zap.Int("candidates", len(input.Candidates)),
				zap.Error(err),
			)
		}
	}
	if allocations == nil {
		allocations = solveGreedy(input.Candidates, net)
	}

	solution.Allocations = allocations
	solution.Status = status
	solution.IsOptimal = status == SolverStatusOptimal

	s.postProcess(solution, input.Candidates, net)
	return solution, nil
}

// validateInput rejects malformed solver input: negative net basis or
// duplicate candidate obligation ids
func validateInput(input SolverInput) error {
	if input.MovementAmount.IsNegative() {
		return ErrNegativeNetBasis
	}
	if input.NetBasis().IsNegative() {
		return ErrNegativeNetBasis
	}
	seen := make(map[uuid.UUID]struct{}, len(input.Candidates))
	for _, c := range input.Candidates {
		if _, dup := seen[c.Obligation.ID]; dup {
			return ErrDuplicateCandidate
		}
		seen[c.Obligation.ID] = struct{}{}
	}
	return nil
}

// postProcess clamps allocations to remaining capacity (a defensive re-check
// even after LP success), redistributes any residual proportionally across
// non-zero allocations, rounds to cents, and surfaces the remainder that
// still cannot be placed as Unallocated.
func (s *AllocationSolver) postProcess(solution *AllocationSolution, candidates []Candidate, net decimal.Decimal) {
	capacityByID := make(map[uuid.UUID]decimal.Decimal, len(candidates))
	for _, c := range candidates {
		capacityByID[c.Obligation.ID] = c.RemainingCapacity()
	}

	clamped := make([]Allocation, 0, len(solution.Allocations))
	for _, a := range solution.Allocations {
		amount := a.Amount.Round(2)
		if capacity, ok := capacityByID[a.ObligationID]; ok && amount.GreaterThan(capacity) {
			amount = capacity.Round(2)
		}
		if amount.LessThanOrEqual(decimal.Zero) {
			continue
		}
		clamped = append(clamped, Allocation{ObligationID: a.ObligationID, Amount: amount})
	}
	solution.Allocations = clamped

	residual := net.Sub(solution.AllocatedTotal())
	if residual.GreaterThan(valueobject.CentTolerance) {
		residual = s.redistribute(solution, capacityByID, residual)
	}
	if residual.Abs().LessThanOrEqual(valueobject.CentTolerance) {
		residual = decimal.Zero
	}
	solution.Unallocated = residual
}

// redistribute spreads a residual proportionally across non-zero allocations,
// each capped at the obligation's remaining capacity. Returns what could not
// be placed.
func (s *AllocationSolver) redistribute(solution *AllocationSolution, capacityByID map[uuid.UUID]decimal.Decimal, residual decimal.Decimal) decimal.Decimal {
	total := solution.AllocatedTotal()
	if total.LessThanOrEqual(decimal.Zero) {
		return residual
	}
	for i := range solution.Allocations {
		a := &solution.Allocations[i]
		share := residual.Mul(a.Amount).Div(total).Round(2)
		capacity := capacityByID[a.ObligationID]
		headroom := capacity.Sub(a.Amount)
		if share.GreaterThan(headroom) {
			share = headroom
		}
		if share.LessThanOrEqual(decimal.Zero) {
			continue
		}
		a.Amount = a.Amount.Add(share)
	}
	// A second sweep pushes any rounding leftovers into whatever headroom
	// remains, in allocation order.
	leftover := residual.Sub(solution.AllocatedTotal().Sub(total))
	for i := range solution.Allocations {
		if leftover.LessThanOrEqual(valueobject.CentTolerance) {
			break
		}
		a := &solution.Allocations[i]
		headroom := capacityByID[a.ObligationID].Sub(a.Amount)
		if headroom.LessThanOrEqual(decimal.Zero) {
			continue
		}
		take := decimal.Min(leftover, headroom).Round(2)
		a.Amount = a.Amount.Add(take)
		leftover = leftover.Sub(take)
	}
	return leftover
}
