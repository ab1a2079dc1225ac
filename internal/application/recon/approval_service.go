package recon

import (
	"context"

	"github.com/cashrecon/backend/internal/domain/recon"
	"github.com/cashrecon/backend/internal/domain/shared"
	"github.com/cashrecon/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ApprovalService is the sole path converting suggested matches and
// suggested washes into allocation records and wash flags. Fuzzy matches
// never auto-escalate regardless of confidence; everything here starts from
// an explicit operator action.
type ApprovalService struct {
	uow    recon.UnitOfWork
	solver *recon.AllocationSolver
	events shared.EventPublisher
	logger *zap.Logger
}

// NewApprovalService creates an approval service
func NewApprovalService(uow recon.UnitOfWork, solver *recon.AllocationSolver, events shared.EventPublisher, logger *zap.Logger) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{uow: uow, solver: solver, events: events, logger: logger}
}

// ApproveSuggested converts a SUGGESTED movement into allocations against
// the approved obligations. The obligations must fully cover the movement
// net amount; a partial cover is rejected so conservation holds for every
// matched movement.
func (s *ApprovalService) ApproveSuggested(ctx context.Context, movementID uuid.UUID, obligationIDs []uuid.UUID) error {
	if len(obligationIDs) == 0 {
		return shared.NewDomainError("INVALID_INPUT", "Approval requires at least one obligation")
	}
	repos := s.uow.Repos()

	m, err := repos.Movements.FindByID(ctx, movementID)
	if err != nil {
		return recon.NewTransientStoreError("load movement", err)
	}
	if m.Status != recon.MovementStatusSuggested {
		return shared.NewDomainError("INVALID_STATE", "Only suggested movements can be approved")
	}

	candidates := make([]recon.Candidate, 0, len(obligationIDs))
	for _, id := range obligationIDs {
		obligation, err := repos.Obligations.FindByID(ctx, id)
		if err != nil {
			return recon.NewTransientStoreError("load obligation", err)
		}
		if obligation.Currency != m.Currency {
			return recon.ErrCurrencyMismatch
		}
		candidates = append(candidates, recon.Candidate{
			Obligation: obligation,
			Flags:      recon.MatchFlags{CounterpartyMatch: true},
		})
	}

	solution, err := s.solver.Solve(recon.SolverInput{
		MovementID:     m.ID,
		MovementAmount: m.Net(),
		Candidates:     candidates,
	})
	if err != nil {
		return err
	}
	if solution.Unallocated.GreaterThan(valueobject.CentTolerance) {
		return shared.NewDomainError("INVALID_STATE", "Approved obligations do not cover the movement amount")
	}

	proof := recon.VerifyConservation(solution, m.Amount)
	overmatch := recon.VerifyNoOvermatch(solution, candidates)
	if !proof.IsConserved || !overmatch.NoOvermatch {
		return recon.NewInvariantViolationError(m.ID, "CONSERVATION", proof.Proof)
	}

	// Approved single-candidate matches land in the rule-based tier;
	// multi-obligation approvals are many-to-many allocations.
	status := recon.MovementStatusRuleBased
	if len(solution.Allocations) > 1 {
		status = recon.MovementStatusManyToMany
	}

	records := make([]*recon.AllocationRecord, 0, len(solution.Allocations))
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx recon.RepositorySet) error {
		for _, a := range solution.Allocations {
			var obligation *recon.Obligation
			for _, c := range candidates {
				if c.Obligation.ID == a.ObligationID {
					obligation = c.Obligation
					break
				}
			}
			if err := obligation.ApplyAllocation(a.Amount); err != nil {
				return err
			}
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
		if err := m.Classify(status, 1.0); err != nil {
			return err
		}
		return tx.Movements.Save(ctx, m)
	})
	if err != nil {
		return recon.NewTransientStoreError("commit approval", err)
	}

	s.logger.Info("suggested match approved",
		zap.String("movement_id", m.ID.String()),
		zap.Int("allocations", len(records)),
	)
	if s.events == nil {
		return nil
	}
	if err := s.events.Publish(ctx, recon.NewSuggestedMatchApprovedEvent(m.EntityID, m.ID, obligationIDs)); err != nil {
		return err
	}
	for _, record := range records {
		if err := s.events.Publish(ctx, recon.NewAllocationAppliedEvent(m.EntityID, record, solution.Status)); err != nil {
			return err
		}
	}
	return nil
}

// ApproveWash atomically marks both movements of a suggested wash as washed.
// Both must still be unmatched.
func (s *ApprovalService) ApproveWash(ctx context.Context, washID uuid.UUID) error {
	repos := s.uow.Repos()

	wash, err := repos.Washes.FindByID(ctx, washID)
	if err != nil {
		return recon.NewTransientStoreError("load wash suggestion", err)
	}
	a, err := repos.Movements.FindByID(ctx, wash.MovementAID)
	if err != nil {
		return recon.NewTransientStoreError("load movement", err)
	}
	b, err := repos.Movements.FindByID(ctx, wash.MovementBID)
	if err != nil {
		return recon.NewTransientStoreError("load movement", err)
	}
	if a.Status != recon.MovementStatusUnmatched || b.Status != recon.MovementStatusUnmatched {
		return shared.NewDomainError("INVALID_STATE", "Both movements must be unmatched to approve a wash")
	}

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx recon.RepositorySet) error {
		if err := a.Classify(recon.MovementStatusWash, wash.Confidence); err != nil {
			return err
		}
		if err := b.Classify(recon.MovementStatusWash, wash.Confidence); err != nil {
			return err
		}
		if err := tx.Movements.Save(ctx, a); err != nil {
			return err
		}
		return tx.Movements.Save(ctx, b)
	})
	if err != nil {
		a.RevertToUnmatched()
		b.RevertToUnmatched()
		return recon.NewTransientStoreError("commit wash approval", err)
	}

	s.logger.Info("wash approved",
		zap.String("movement_a", a.ID.String()),
		zap.String("movement_b", b.ID.String()),
	)
	if s.events == nil {
		return nil
	}
	return s.events.Publish(ctx, recon.NewWashApprovedEvent(a.EntityID, a.ID, b.ID))
}
