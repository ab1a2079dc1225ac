package recon

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cashrecon/backend/internal/domain/recon"
	"github.com/cashrecon/backend/internal/domain/shared"
	"github.com/cashrecon/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PassConfig controls the resource model of one matching pass
type PassConfig struct {
	// Budget is the wall-clock budget for a pass. The pass stops cleanly
	// after the current movement once exceeded; zero means unlimited.
	Budget time.Duration
	// MaxWorkers caps parallel processing of disjoint movement groups.
	// Values below 1 mean serial processing.
	MaxWorkers int
}

// PassResult summarizes one matching pass for the reporting collaborator
type PassResult struct {
	EntityID         uuid.UUID
	Currency         valueobject.Currency
	Processed        int
	StatusCounts     map[recon.MovementStatus]int
	TotalCash        decimal.Decimal
	ExplainedCash    decimal.Decimal
	ExplainedPercent float64
	Violations       int
	Incomplete       bool
}

// PassService orchestrates a matching pass for one (entity, currency) batch:
// candidate indexing, tier classification, constrained allocation, invariant
// verification and atomic persistence of the outcome.
type PassService struct {
	uow      recon.UnitOfWork
	resolver *recon.PolicyResolver
	matcher  *recon.TieredMatcher
	solver   *recon.AllocationSolver
	detector *recon.WashDetector
	events   shared.EventPublisher
	logger   *zap.Logger
	cfg      PassConfig
}

// NewPassService creates a pass service
func NewPassService(uow recon.UnitOfWork, resolver *recon.PolicyResolver, solver *recon.AllocationSolver, events shared.EventPublisher, logger *zap.Logger, cfg PassConfig) *PassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PassService{
		uow:      uow,
		resolver: resolver,
		matcher:  recon.NewTieredMatcher(),
		solver:   solver,
		detector: recon.NewWashDetector(),
		events:   events,
		logger:   logger,
		cfg:      cfg,
	}
}

// RunPass executes one matching pass for an entity and currency.
// Movements are processed in fixed order (booking date, then id); groups of
// movements whose touched obligation sets are provably disjoint run in
// parallel, shared-obligation groups run serially. Already-classified
// movements are skipped and not counted, which makes re-running a pass
// idempotent.
func (s *PassService) RunPass(ctx context.Context, entityID uuid.UUID, currency valueobject.Currency) (*PassResult, error) {
	start := time.Now()
	repos := s.uow.Repos()

	obligations, err := repos.Obligations.FindOpen(ctx, entityID, currency)
	if err != nil {
		return nil, recon.NewTransientStoreError("load obligations", err)
	}
	movements, err := repos.Movements.FindByEntity(ctx, entityID, currency)
	if err != nil {
		return nil, recon.NewTransientStoreError("load movements", err)
	}

	policy := s.resolver.Resolve(entityID, currency)
	index := recon.BuildIndex(obligations, policy.AmountTolerance)

	sort.Slice(movements, func(i, j int) bool {
		if !movements[i].BookingDate.Equal(movements[j].BookingDate) {
			return movements[i].BookingDate.Before(movements[j].BookingDate)
		}
		return movements[i].ID.String() < movements[j].ID.String()
	})

	result := &PassResult{
		EntityID:     entityID,
		Currency:     currency,
		StatusCounts: make(map[recon.MovementStatus]int),
		TotalCash:    decimal.Zero,
	}

	groups := partitionMovements(movements, index)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	workers := s.cfg.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for gi, group := range groups {
		// Budget checks sit between movements and between groups, so a
		// movement is never terminated mid-allocation.
		if gi > 0 && s.budgetExceeded(start) {
			mu.Lock()
			result.Incomplete = true
			mu.Unlock()
			break
		}
		g.Go(func() error {
			for i, m := range group {
				if i > 0 && s.budgetExceeded(start) {
					mu.Lock()
					result.Incomplete = true
					mu.Unlock()
					return nil
				}
				evaluated, violated, err := s.processMovement(gctx, entityID, m, index, policy)
				if err != nil {
					return err
				}
				if evaluated {
					mu.Lock()
					result.Processed++
					if violated {
						result.Violations++
					}
					mu.Unlock()
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.summarize(result, movements)
	s.logger.Info("matching pass finished",
		zap.String("entity_id", entityID.String()),
		zap.String("currency", string(currency)),
		zap.Int("movements", result.Processed),
		zap.Float64("explained_percent", result.ExplainedPercent),
		zap.Bool("incomplete", result.Incomplete),
	)
	return result, nil
}

// budgetExceeded reports whether the wall-clock budget has run out
func (s *PassService) budgetExceeded(start time.Time) bool {
	return s.cfg.Budget > 0 && time.Since(start) > s.cfg.Budget
}

// processMovement classifies one movement and commits its outcome
// atomically. Returns whether the movement was actually evaluated (already
// classified movements are skipped and not counted) and whether an invariant
// violation was recorded. "No match found" is a valid outcome, not an error.
func (s *PassService) processMovement(ctx context.Context, entityID uuid.UUID, m *recon.Movement, index *recon.BlockingIndex, policy recon.Policy) (evaluated, violated bool, err error) {
	if m.Status != recon.MovementStatusUnmatched {
		return false, false, nil
	}
	if err := m.Validate(); err != nil {
		return true, false, s.recordException(ctx, entityID, m.ID, "INVALID_INPUT", err.Error(), "")
	}

	// Candidates are re-queried here, not reused from partitioning, so open
	// amounts already consumed by earlier movements in the group are seen.
	candidates := index.Query(m, policy)
	decision := s.matcher.Classify(m, candidates, policy)

	switch decision.Status {
	case recon.MovementStatusUnmatched:
		return true, false, nil

	case recon.MovementStatusSuggested:
		return true, false, s.commitSuggestion(ctx, m, decision)

	default:
		violated, err := s.solveAndCommit(ctx, entityID, m, decision)
		return true, violated, err
	}
}

// commitSuggestion stores a fuzzy classification. No allocation record is
// created; only the external approval workflow can do that.
func (s *PassService) commitSuggestion(ctx context.Context, m *recon.Movement, decision recon.MatchDecision) error {
	if err := m.Classify(decision.Status, decision.Confidence); err != nil {
		return err
	}
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx recon.RepositorySet) error {
		return tx.Movements.Save(ctx, m)
	})
	if err != nil {
		m.RevertToUnmatched()
		return recon.NewTransientStoreError("save suggested movement", err)
	}
	return s.publish(ctx, recon.NewMovementClassifiedEvent(m))
}

// solveAndCommit runs the allocation solver for a matched movement, verifies
// both invariants and commits status, open amounts and allocation records in
// one transaction. An invariant violation reverts the movement and flags it
// for manual review without failing the pass.
func (s *PassService) solveAndCommit(ctx context.Context, entityID uuid.UUID, m *recon.Movement, decision recon.MatchDecision) (bool, error) {
	input := recon.SolverInput{
		MovementID:     m.ID,
		MovementAmount: m.Net(),
		Candidates:     decision.Candidates,
	}
	solution, err := s.solver.Solve(input)
	if err != nil {
		// Malformed input is fatal to this movement only.
		return false, s.recordException(ctx, entityID, m.ID, "INVALID_INPUT", err.Error(), "")
	}

	// A solution that cannot place the full net amount does not justify a
	// matched status; the movement stays unmatched for this pass.
	if solution.Unallocated.GreaterThan(valueobject.CentTolerance) {
		return false, nil
	}

	proof := recon.VerifyConservation(solution, m.Amount)
	overmatch := recon.VerifyNoOvermatch(solution, decision.Candidates)
	if !proof.IsConserved || !overmatch.NoOvermatch {
		return true, s.handleViolation(ctx, entityID, m, proof, overmatch)
	}

	records := make([]*recon.AllocationRecord, 0, len(solution.Allocations))
	applied := make([]recon.Allocation, 0, len(solution.Allocations))
	obligationByID := make(map[uuid.UUID]*recon.Obligation, len(decision.Candidates))
	for _, c := range decision.Candidates {
		obligationByID[c.Obligation.ID] = c.Obligation
	}

	revert := func() {
		for _, a := range applied {
			// Ignoring the error: reversal of a just-applied amount cannot
			// exceed the original obligation amount.
			_ = obligationByID[a.ObligationID].ReverseAllocation(a.Amount)
		}
		m.RevertToUnmatched()
	}

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx recon.RepositorySet) error {
		for _, a := range solution.Allocations {
			obligation := obligationByID[a.ObligationID]
			if err := obligation.ApplyAllocation(a.Amount); err != nil {
				return err
			}
			applied = append(applied, a)
			if err := tx.Obligations.Save(ctx, obligation); err != nil {
				return err
			}
			record, err := recon.NewAllocationRecord(m.ID, a.ObligationID, a.Amount)
			if err != nil {
				return err
			}
			if err := tx.Allocations.Save(ctx, record); err != nil {
				return err
			}
			records = append(records, record)
		}
		if err := m.Classify(decision.Status, decision.Confidence); err != nil {
			return err
		}
		return tx.Movements.Save(ctx, m)
	})
	if err != nil {
		revert()
		return false, recon.NewTransientStoreError("commit allocations", err)
	}

	if err := s.publish(ctx, recon.NewMovementClassifiedEvent(m)); err != nil {
		return false, err
	}
	for _, record := range records {
		if err := s.publish(ctx, recon.NewAllocationAppliedEvent(entityID, record, solution.Status)); err != nil {
			return false, err
		}
	}
	return false, nil
}

// handleViolation reverts the movement to its pre-solve state, flags it for
// manual review and records a queryable exception. The pass continues.
func (s *PassService) handleViolation(ctx context.Context, entityID uuid.UUID, m *recon.Movement, proof recon.ConservationProof, overmatch recon.OvermatchReport) error {
	kind := "CONSERVATION"
	detail := proof.Proof
	if !overmatch.NoOvermatch {
		kind = "NO_OVERMATCH"
		if len(overmatch.Violations) > 0 {
			v := overmatch.Violations[0]
			detail = "obligation " + v.ObligationID.String() + " over-allocated by " + v.Excess.StringFixed(2)
		}
	}
	violation := recon.NewInvariantViolationError(m.ID, kind, detail)
	s.logger.Error("invariant violation detected",
		zap.String("movement_id", m.ID.String()),
		zap.String("kind", kind),
		zap.String("proof", detail),
	)

	m.RevertToUnmatched()
	m.FlagForManualReview()
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx recon.RepositorySet) error {
		if err := tx.Movements.Save(ctx, m); err != nil {
			return err
		}
		return tx.Exceptions.Save(ctx, recon.NewExceptionRecord(entityID, m.ID, "INVARIANT_VIOLATION", violation.Error(), detail))
	})
	if err != nil {
		return recon.NewTransientStoreError("record invariant violation", err)
	}
	return s.publish(ctx, recon.NewInvariantViolationDetectedEvent(entityID, violation))
}

// recordException saves a queryable exception record for a movement
func (s *PassService) recordException(ctx context.Context, entityID, movementID uuid.UUID, code, message, proof string) error {
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx recon.RepositorySet) error {
		return tx.Exceptions.Save(ctx, recon.NewExceptionRecord(entityID, movementID, code, message, proof))
	})
	if err != nil {
		return recon.NewTransientStoreError("record exception", err)
	}
	return nil
}

// RunWashScan scans unmatched movements across all entities for probable
// offsetting intercompany pairs. Suggestions are persisted and published;
// no reconciliation flag changes until an explicit approval.
func (s *PassService) RunWashScan(ctx context.Context) ([]recon.SuggestedWash, error) {
	repos := s.uow.Repos()
	movements, err := repos.Movements.FindUnmatched(ctx)
	if err != nil {
		return nil, recon.NewTransientStoreError("load unmatched movements", err)
	}

	byID := make(map[uuid.UUID]*recon.Movement, len(movements))
	for _, m := range movements {
		byID[m.ID] = m
	}

	suggestions := s.detector.Detect(movements)
	for _, wash := range suggestions {
		err := s.uow.WithinTx(ctx, func(ctx context.Context, tx recon.RepositorySet) error {
			w := wash
			return tx.Washes.Save(ctx, &w)
		})
		if err != nil {
			return nil, recon.NewTransientStoreError("save wash suggestion", err)
		}
		entityID := byID[wash.MovementAID].EntityID
		if err := s.publish(ctx, recon.NewWashSuggestedEvent(entityID, wash)); err != nil {
			return nil, err
		}
	}
	return suggestions, nil
}

// publish forwards an event to the audit collaborator when a bus is wired
func (s *PassService) publish(ctx context.Context, event shared.DomainEvent) error {
	if s.events == nil {
		return nil
	}
	return s.events.Publish(ctx, event)
}

// summarize fills the explained-cash aggregates from the final movement set
func (s *PassService) summarize(result *PassResult, movements []*recon.Movement) {
	explained := decimal.Zero
	total := decimal.Zero
	for _, m := range movements {
		result.StatusCounts[m.Status]++
		total = total.Add(m.Net())
		if m.Status.IsTerminal() {
			explained = explained.Add(m.Net())
		}
	}
	result.TotalCash = total
	result.ExplainedCash = explained
	if total.IsPositive() {
		percent, _ := explained.Div(total).Mul(decimal.NewFromInt(100)).Float64()
		result.ExplainedPercent = percent
	}
}

// partitionMovements splits the ordered movement list into groups whose
// touched obligation sets are provably disjoint. Grouping on the touched set
// rather than on filtered candidates matters for parallelism: a worker's
// candidate lookup re-reads the open amount of every bucket and token hit,
// so any obligation one movement can read must live in the same group as
// every movement that can write it. Movements sharing a touched obligation
// are processed serially, preserving the fixed consumption order.
func partitionMovements(movements []*recon.Movement, index *recon.BlockingIndex) [][]*recon.Movement {
	parent := make([]int, len(movements))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			if ra > rb {
				ra, rb = rb, ra
			}
			parent[rb] = ra
		}
	}

	owner := make(map[uuid.UUID]int)
	for i, m := range movements {
		for _, id := range index.Touched(m) {
			if j, ok := owner[id]; ok {
				union(i, j)
			} else {
				owner[id] = i
			}
		}
	}

	grouped := make(map[int][]*recon.Movement)
	order := make([]int, 0)
	for i, m := range movements {
		root := find(i)
		if _, ok := grouped[root]; !ok {
			order = append(order, root)
		}
		grouped[root] = append(grouped[root], m)
	}

	groups := make([][]*recon.Movement, 0, len(order))
	for _, root := range order {
		groups = append(groups, grouped[root])
	}
	return groups
}
