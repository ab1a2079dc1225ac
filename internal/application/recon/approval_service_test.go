package recon

import (
	"context"
	"testing"
	"time"

	"github.com/cashrecon/backend/internal/domain/recon"
	"github.com/cashrecon/backend/internal/domain/shared/valueobject"
	"github.com/cashrecon/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type approvalFixture struct {
	store    *persistence.MemoryStore
	service  *ApprovalService
	events   *capturingPublisher
	entityID uuid.UUID
}

func newApprovalFixture(t *testing.T) *approvalFixture {
	t.Helper()
	store := persistence.NewMemoryStore()
	events := &capturingPublisher{}
	solver := recon.NewAllocationSolver(zap.NewNop())
	return &approvalFixture{
		store:    store,
		service:  NewApprovalService(store, solver, events, zap.NewNop()),
		events:   events,
		entityID: uuid.New(),
	}
}

func (f *approvalFixture) addObligation(t *testing.T, documentNumber string, amount float64) *recon.Obligation {
	t.Helper()
	due := time.Now().AddDate(0, 0, -10)
	o, err := recon.NewObligation(f.entityID, recon.ObligationKindReceivable, documentNumber,
		"Acme Corp", valueobject.USD, decimal.NewFromFloat(amount), &due)
	require.NoError(t, err)
	require.NoError(t, f.store.Repos().Obligations.Save(context.Background(), o))
	return o
}

func (f *approvalFixture) addSuggestedMovement(t *testing.T, amount float64) *recon.Movement {
	t.Helper()
	m, err := recon.NewMovement(f.entityID, uuid.New(), decimal.NewFromFloat(amount),
		valueobject.USD, "wire transfer", "Acme Corp Ltd", time.Now())
	require.NoError(t, err)
	require.NoError(t, m.Classify(recon.MovementStatusSuggested, 0.85))
	require.NoError(t, f.store.Repos().Movements.Save(context.Background(), m))
	return m
}

func TestApprovalService_ApproveSuggested(t *testing.T) {
	ctx := context.Background()

	t.Run("single obligation becomes a rule-based match", func(t *testing.T) {
		f := newApprovalFixture(t)
		o := f.addObligation(t, "INV-1", 500)
		m := f.addSuggestedMovement(t, 500)

		require.NoError(t, f.service.ApproveSuggested(ctx, m.ID, []uuid.UUID{o.ID}))

		stored, err := f.store.Repos().Movements.FindByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, recon.MovementStatusRuleBased, stored.Status)
		assert.Equal(t, 1.0, stored.Confidence)

		obligation, err := f.store.Repos().Obligations.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.True(t, obligation.OpenAmount.IsZero())

		records, err := f.store.Repos().Allocations.FindByMovement(ctx, m.ID)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.True(t, records[0].Amount.Equal(decimal.NewFromInt(500)))

		assert.Len(t, f.events.byType("SuggestedMatchApproved"), 1)
		assert.Len(t, f.events.byType("AllocationApplied"), 1)
	})

	t.Run("multiple obligations become a many-to-many match", func(t *testing.T) {
		f := newApprovalFixture(t)
		a := f.addObligation(t, "INV-1", 300)
		b := f.addObligation(t, "INV-2", 700)
		m := f.addSuggestedMovement(t, 1000)

		require.NoError(t, f.service.ApproveSuggested(ctx, m.ID, []uuid.UUID{a.ID, b.ID}))

		stored, err := f.store.Repos().Movements.FindByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, recon.MovementStatusManyToMany, stored.Status)

		records, err := f.store.Repos().Allocations.FindByMovement(ctx, m.ID)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("rejects a movement that is not suggested", func(t *testing.T) {
		f := newApprovalFixture(t)
		o := f.addObligation(t, "INV-1", 500)
		m, err := recon.NewMovement(f.entityID, uuid.New(), decimal.NewFromInt(500),
			valueobject.USD, "", "Acme Corp", time.Now())
		require.NoError(t, err)
		require.NoError(t, f.store.Repos().Movements.Save(ctx, m))

		err = f.service.ApproveSuggested(ctx, m.ID, []uuid.UUID{o.ID})
		assert.ErrorContains(t, err, "Only suggested movements")
	})

	t.Run("rejects empty obligation list", func(t *testing.T) {
		f := newApprovalFixture(t)
		err := f.service.ApproveSuggested(ctx, uuid.New(), nil)
		assert.ErrorContains(t, err, "at least one obligation")
	})

	t.Run("rejects currency mismatch", func(t *testing.T) {
		f := newApprovalFixture(t)
		due := time.Now().AddDate(0, 0, -10)
		o, err := recon.NewObligation(f.entityID, recon.ObligationKindReceivable, "INV-1",
			"Acme Corp", valueobject.EUR, decimal.NewFromInt(500), &due)
		require.NoError(t, err)
		require.NoError(t, f.store.Repos().Obligations.Save(ctx, o))
		m := f.addSuggestedMovement(t, 500)

		err = f.service.ApproveSuggested(ctx, m.ID, []uuid.UUID{o.ID})
		assert.ErrorIs(t, err, recon.ErrCurrencyMismatch)
	})

	t.Run("rejects partial cover", func(t *testing.T) {
		f := newApprovalFixture(t)
		o := f.addObligation(t, "INV-1", 300)
		m := f.addSuggestedMovement(t, 500)

		err := f.service.ApproveSuggested(ctx, m.ID, []uuid.UUID{o.ID})
		assert.ErrorContains(t, err, "do not cover the movement amount")

		// Nothing was committed.
		obligation, err := f.store.Repos().Obligations.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.True(t, obligation.OpenAmount.Equal(decimal.NewFromInt(300)))
		records, err := f.store.Repos().Allocations.FindByMovement(ctx, m.ID)
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestApprovalService_ApproveWash(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	addMovement := func(t *testing.T, f *approvalFixture, amount float64) *recon.Movement {
		t.Helper()
		m, err := recon.NewMovement(uuid.New(), uuid.New(), decimal.NewFromFloat(amount),
			valueobject.USD, "", "", day)
		require.NoError(t, err)
		require.NoError(t, f.store.Repos().Movements.Save(ctx, m))
		return m
	}

	addWash := func(t *testing.T, f *approvalFixture, a, b *recon.Movement) *recon.SuggestedWash {
		t.Helper()
		suggestions := recon.NewWashDetector().Detect([]*recon.Movement{a, b})
		require.Len(t, suggestions, 1)
		require.NoError(t, f.store.Repos().Washes.Save(ctx, &suggestions[0]))
		return &suggestions[0]
	}

	t.Run("marks both movements as washed", func(t *testing.T) {
		f := newApprovalFixture(t)
		out := addMovement(t, f, -12000)
		in := addMovement(t, f, 12000)
		wash := addWash(t, f, out, in)

		require.NoError(t, f.service.ApproveWash(ctx, wash.ID))

		for _, id := range []uuid.UUID{out.ID, in.ID} {
			m, err := f.store.Repos().Movements.FindByID(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, recon.MovementStatusWash, m.Status)
			assert.Equal(t, wash.Confidence, m.Confidence)
		}
		assert.Len(t, f.events.byType("WashApproved"), 1)
	})

	t.Run("rejects when a movement is no longer unmatched", func(t *testing.T) {
		f := newApprovalFixture(t)
		out := addMovement(t, f, -12000)
		in := addMovement(t, f, 12000)
		wash := addWash(t, f, out, in)

		classified, err := f.store.Repos().Movements.FindByID(ctx, out.ID)
		require.NoError(t, err)
		require.NoError(t, classified.Classify(recon.MovementStatusSuggested, 0.85))
		require.NoError(t, f.store.Repos().Movements.Save(ctx, classified))

		err = f.service.ApproveWash(ctx, wash.ID)
		assert.ErrorContains(t, err, "must be unmatched")

		// The untouched side stays unmatched.
		other, err := f.store.Repos().Movements.FindByID(ctx, in.ID)
		require.NoError(t, err)
		assert.Equal(t, recon.MovementStatusUnmatched, other.Status)
	})

	t.Run("unknown wash id fails", func(t *testing.T) {
		f := newApprovalFixture(t)
		assert.Error(t, f.service.ApproveWash(ctx, uuid.New()))
	})
}
