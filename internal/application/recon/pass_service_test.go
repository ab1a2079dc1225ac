package recon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cashrecon/backend/internal/domain/recon"
	"github.com/cashrecon/backend/internal/domain/shared"
	"github.com/cashrecon/backend/internal/domain/shared/valueobject"
	"github.com/cashrecon/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// capturingPublisher collects published events for assertions
type capturingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *capturingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *capturingPublisher) byType(eventType string) []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.DomainEvent
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

type passFixture struct {
	store    *persistence.MemoryStore
	service  *PassService
	events   *capturingPublisher
	entityID uuid.UUID
}

func newPassFixture(t *testing.T, cfg PassConfig) *passFixture {
	t.Helper()
	store := persistence.NewMemoryStore()
	events := &capturingPublisher{}
	solver := recon.NewAllocationSolver(zap.NewNop())
	service := NewPassService(store, recon.NewPolicyResolver(), solver, events, zap.NewNop(), cfg)
	return &passFixture{
		store:    store,
		service:  service,
		events:   events,
		entityID: uuid.New(),
	}
}

func (f *passFixture) addObligation(t *testing.T, documentNumber, counterparty string, amount float64, dueDaysAgo int) *recon.Obligation {
	t.Helper()
	due := time.Now().AddDate(0, 0, -dueDaysAgo)
	o, err := recon.NewObligation(f.entityID, recon.ObligationKindReceivable, documentNumber,
		counterparty, valueobject.USD, decimal.NewFromFloat(amount), &due)
	require.NoError(t, err)
	require.NoError(t, f.store.Repos().Obligations.Save(context.Background(), o))
	return o
}

func (f *passFixture) addMovement(t *testing.T, amount float64, reference, counterparty string, bookingDate time.Time) *recon.Movement {
	t.Helper()
	m, err := recon.NewMovement(f.entityID, uuid.New(), decimal.NewFromFloat(amount),
		valueobject.USD, reference, counterparty, bookingDate)
	require.NoError(t, err)
	require.NoError(t, f.store.Repos().Movements.Save(context.Background(), m))
	return m
}

func (f *passFixture) movement(t *testing.T, id uuid.UUID) *recon.Movement {
	t.Helper()
	m, err := f.store.Repos().Movements.FindByID(context.Background(), id)
	require.NoError(t, err)
	return m
}

func (f *passFixture) obligation(t *testing.T, id uuid.UUID) *recon.Obligation {
	t.Helper()
	o, err := f.store.Repos().Obligations.FindByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

func TestPassService_RunPass_Deterministic(t *testing.T) {
	f := newPassFixture(t, PassConfig{})
	target := f.addObligation(t, "INV-1001", "Acme Corp", 500, 5)
	f.addObligation(t, "INV-1002", "Acme Corp", 750, 5)
	m := f.addMovement(t, 500, "payment INV-1001", "Acme Corp", time.Now())

	result, err := f.service.RunPass(context.Background(), f.entityID, valueobject.USD)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.StatusCounts[recon.MovementStatusDeterministic])
	assert.Zero(t, result.Violations)
	assert.False(t, result.Incomplete)
	assert.InDelta(t, 100.0, result.ExplainedPercent, 0.001)

	stored := f.movement(t, m.ID)
	assert.Equal(t, recon.MovementStatusDeterministic, stored.Status)
	assert.Equal(t, 1.0, stored.Confidence)

	// The matched obligation closes; the other stays untouched.
	assert.True(t, f.obligation(t, target.ID).OpenAmount.IsZero())

	records, err := f.store.Repos().Allocations.FindByMovement(context.Background(), m.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, target.ID, records[0].ObligationID)
	assert.True(t, records[0].Amount.Equal(decimal.NewFromInt(500)))

	assert.Len(t, f.events.byType("MovementClassified"), 1)
	assert.Len(t, f.events.byType("AllocationApplied"), 1)
}

func TestPassService_RunPass_ManyToMany(t *testing.T) {
	f := newPassFixture(t, PassConfig{})
	a := f.addObligation(t, "INV-1", "Acme Corp", 1000, 5)
	b := f.addObligation(t, "INV-2", "Acme Corp", 2000, 10)
	c := f.addObligation(t, "INV-3", "Acme Corp", 5000, 15)
	m := f.addMovement(t, 8000, "consolidated remittance", "Acme Corp", time.Now())

	result, err := f.service.RunPass(context.Background(), f.entityID, valueobject.USD)
	require.NoError(t, err)

	assert.Equal(t, 1, result.StatusCounts[recon.MovementStatusManyToMany])
	stored := f.movement(t, m.ID)
	assert.Equal(t, recon.MovementStatusManyToMany, stored.Status)
	assert.Equal(t, 0.9, stored.Confidence)

	for _, o := range []*recon.Obligation{a, b, c} {
		assert.True(t, f.obligation(t, o.ID).OpenAmount.IsZero())
	}
	records, err := f.store.Repos().Allocations.FindByMovement(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestPassService_RunPass_SuggestedNeverAutoApplies(t *testing.T) {
	f := newPassFixture(t, PassConfig{})
	o := f.addObligation(t, "INV-1001", "Acme Corp", 750, 5)
	m := f.addMovement(t, 500, "wire transfer", "Acme Corp Ltd", time.Now())

	_, err := f.service.RunPass(context.Background(), f.entityID, valueobject.USD)
	require.NoError(t, err)

	stored := f.movement(t, m.ID)
	assert.Equal(t, recon.MovementStatusSuggested, stored.Status)
	assert.GreaterOrEqual(t, stored.Confidence, 0.8)

	// No allocation and no open-amount change without an approval.
	assert.True(t, f.obligation(t, o.ID).OpenAmount.Equal(decimal.NewFromInt(750)))
	records, err := f.store.Repos().Allocations.FindByMovement(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Empty(t, records)

	assert.Len(t, f.events.byType("MovementClassified"), 1)
	assert.Empty(t, f.events.byType("AllocationApplied"))
}

func TestPassService_RunPass_Idempotent(t *testing.T) {
	f := newPassFixture(t, PassConfig{})
	f.addObligation(t, "INV-1001", "Acme Corp", 500, 5)
	m := f.addMovement(t, 500, "payment INV-1001", "Acme Corp", time.Now())

	_, err := f.service.RunPass(context.Background(), f.entityID, valueobject.USD)
	require.NoError(t, err)
	first, err := f.store.Repos().Allocations.FindByMovement(context.Background(), m.ID)
	require.NoError(t, err)

	// Re-running over the same data changes nothing.
	result, err := f.service.RunPass(context.Background(), f.entityID, valueobject.USD)
	require.NoError(t, err)
	assert.Zero(t, result.Processed)

	second, err := f.store.Repos().Allocations.FindByMovement(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Len(t, second, len(first))
	assert.Equal(t, recon.MovementStatusDeterministic, f.movement(t, m.ID).Status)
}

func TestPassService_RunPass_FixedConsumptionOrder(t *testing.T) {
	// Two movements compete for one obligation; the earlier booking date
	// wins it, every run.
	day := time.Now().Truncate(time.Minute)

	for run := 0; run < 3; run++ {
		f := newPassFixture(t, PassConfig{})
		o := f.addObligation(t, "INV-1001", "Acme Corp", 500, 5)
		late := f.addMovement(t, 500, "payment INV-1001", "Acme Corp", day.Add(time.Hour))
		early := f.addMovement(t, 500, "payment INV-1001", "Acme Corp", day)

		_, err := f.service.RunPass(context.Background(), f.entityID, valueobject.USD)
		require.NoError(t, err)

		assert.Equal(t, recon.MovementStatusDeterministic, f.movement(t, early.ID).Status)
		assert.Equal(t, recon.MovementStatusUnmatched, f.movement(t, late.ID).Status)
		assert.True(t, f.obligation(t, o.ID).OpenAmount.IsZero())
	}
}

func TestPassService_RunPass_PartialCoverStaysUnmatched(t *testing.T) {
	// The obligation matches on amount within tolerance but its open amount
	// is below the movement net, so the solver leaves a remainder above the
	// tolerance and the movement must not be classified.
	f := newPassFixture(t, PassConfig{})
	o := f.addObligation(t, "INV-1001", "Acme Corp", 499.99, 5)

	// Shrink the open amount below the net while keeping the original
	// amount blockable.
	stored := f.obligation(t, o.ID)
	require.NoError(t, stored.ApplyAllocation(decimal.NewFromInt(100)))
	require.NoError(t, f.store.Repos().Obligations.Save(context.Background(), stored))

	m := f.addMovement(t, 500, "payment INV-1001", "Acme Corp", time.Now())

	_, err := f.service.RunPass(context.Background(), f.entityID, valueobject.USD)
	require.NoError(t, err)

	// The shrunken obligation no longer amount-matches, so the movement is
	// at most suggested; either way no partial allocation leaks out.
	records, err := f.store.Repos().Allocations.FindByMovement(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.True(t, f.obligation(t, o.ID).OpenAmount.Equal(decimal.NewFromFloat(399.99)))
}

func TestPassService_RunPass_InvalidMovementRecordsException(t *testing.T) {
	f := newPassFixture(t, PassConfig{})
	f.addObligation(t, "INV-1001", "Acme Corp", 500, 5)
	m := f.addMovement(t, 500, "payment INV-1001", "Acme Corp", time.Now())

	// Corrupt the stored movement so structural validation fails.
	stored := f.movement(t, m.ID)
	stored.Confidence = 1.5
	require.NoError(t, f.store.Repos().Movements.Save(context.Background(), stored))

	result, err := f.service.RunPass(context.Background(), f.entityID, valueobject.USD)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)

	exceptions, err := f.store.Repos().Exceptions.FindByMovement(context.Background(), m.ID)
	require.NoError(t, err)
	require.Len(t, exceptions, 1)
	assert.Equal(t, "INVALID_INPUT", exceptions[0].Code)

	// The invalid movement was not classified.
	assert.Equal(t, recon.MovementStatusUnmatched, f.movement(t, m.ID).Status)
}

func TestPassService_RunPass_BudgetStopsCleanly(t *testing.T) {
	f := newPassFixture(t, PassConfig{Budget: time.Nanosecond})
	// Two disjoint groups: different counterparties and amounts.
	f.addObligation(t, "INV-1", "Acme Corp", 500, 5)
	f.addObligation(t, "INV-2", "Globex", 900, 5)
	f.addMovement(t, 500, "payment INV-1", "Acme Corp", time.Now())
	f.addMovement(t, 900, "payment INV-2", "Globex", time.Now().Add(time.Hour))

	result, err := f.service.RunPass(context.Background(), f.entityID, valueobject.USD)
	require.NoError(t, err)

	assert.True(t, result.Incomplete)
	assert.Less(t, result.Processed, 2)
}

func TestPassService_RunPass_ParallelGroupsConverge(t *testing.T) {
	// Many disjoint movement/obligation pairs; parallel workers must
	// produce exactly one allocation per movement.
	f := newPassFixture(t, PassConfig{MaxWorkers: 4})
	day := time.Now().Truncate(time.Minute)

	movementIDs := make([]uuid.UUID, 0, 8)
	for i := 0; i < 8; i++ {
		suffix := uuid.NewString()[:8]
		amount := float64(1000 + i*10)
		f.addObligation(t, "inv-"+suffix, "payer-"+suffix, amount, 5)
		m := f.addMovement(t, amount, "payment inv-"+suffix, "payer-"+suffix, day.Add(time.Duration(i)*time.Minute))
		movementIDs = append(movementIDs, m.ID)
	}

	result, err := f.service.RunPass(context.Background(), f.entityID, valueobject.USD)
	require.NoError(t, err)
	assert.Equal(t, 8, result.Processed)

	for _, id := range movementIDs {
		records, err := f.store.Repos().Allocations.FindByMovement(context.Background(), id)
		require.NoError(t, err)
		assert.Len(t, records, 1)
		assert.True(t, f.movement(t, id).Status.IsMatched())
	}
}

func TestPartitionMovements_SharedTokenStaysInOneGroup(t *testing.T) {
	// The filtered candidate sets are disjoint (the date window excludes the
	// cross pairs), but both movements read both obligations through the
	// shared counterparty tokens. They must land in one serial group or
	// parallel workers would race on the obligations' open amounts.
	entityID := uuid.New()
	recentDue := time.Now().AddDate(0, 0, -5)
	oldDue := time.Now().AddDate(0, 0, -60)
	recent, err := recon.NewObligation(entityID, recon.ObligationKindReceivable, "INV-1",
		"Acme Corp", valueobject.USD, decimal.NewFromInt(500), &recentDue)
	require.NoError(t, err)
	old, err := recon.NewObligation(entityID, recon.ObligationKindReceivable, "INV-2",
		"Acme Corp", valueobject.USD, decimal.NewFromInt(900), &oldDue)
	require.NoError(t, err)

	m1, err := recon.NewMovement(entityID, uuid.New(), decimal.NewFromInt(500),
		valueobject.USD, "payment INV-1", "Acme Corp", time.Now())
	require.NoError(t, err)
	m2, err := recon.NewMovement(entityID, uuid.New(), decimal.NewFromInt(900),
		valueobject.USD, "payment INV-2", "Acme Corp", time.Now().AddDate(0, 0, -60))
	require.NoError(t, err)

	index := recon.BuildIndex([]*recon.Obligation{recent, old}, recon.DefaultPolicy().AmountTolerance)
	groups := partitionMovements([]*recon.Movement{m1, m2}, index)

	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 2)
}

func TestPassService_RunPass_SharedCounterpartyAcrossWindows(t *testing.T) {
	// Same setup as the partition test, run through the full pass with
	// parallel workers enabled: each movement must settle exactly its own
	// obligation.
	f := newPassFixture(t, PassConfig{MaxWorkers: 4})
	recent := f.addObligation(t, "INV-1", "Acme Corp", 500, 5)
	old := f.addObligation(t, "INV-2", "Acme Corp", 900, 60)
	m1 := f.addMovement(t, 500, "payment INV-1", "Acme Corp", time.Now())
	m2 := f.addMovement(t, 900, "payment INV-2", "Acme Corp", time.Now().AddDate(0, 0, -60))

	result, err := f.service.RunPass(context.Background(), f.entityID, valueobject.USD)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, recon.MovementStatusDeterministic, f.movement(t, m1.ID).Status)
	assert.Equal(t, recon.MovementStatusDeterministic, f.movement(t, m2.ID).Status)
	assert.True(t, f.obligation(t, recent.ID).OpenAmount.IsZero())
	assert.True(t, f.obligation(t, old.ID).OpenAmount.IsZero())
}

func TestPassService_RunWashScan(t *testing.T) {
	f := newPassFixture(t, PassConfig{})
	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	entityA := uuid.New()
	entityB := uuid.New()
	out, err := recon.NewMovement(entityA, uuid.New(), decimal.NewFromInt(-12000),
		valueobject.USD, "", "", day)
	require.NoError(t, err)
	in, err := recon.NewMovement(entityB, uuid.New(), decimal.NewFromInt(12000),
		valueobject.USD, "", "", day)
	require.NoError(t, err)
	require.NoError(t, f.store.Repos().Movements.Save(context.Background(), out))
	require.NoError(t, f.store.Repos().Movements.Save(context.Background(), in))

	suggestions, err := f.service.RunWashScan(context.Background())
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, 0.9, suggestions[0].Confidence)

	// Suggestions are persisted but reconciliation state is untouched.
	saved, err := f.store.Repos().Washes.FindByID(context.Background(), suggestions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, suggestions[0].MovementAID, saved.MovementAID)
	assert.Equal(t, recon.MovementStatusUnmatched, f.movement(t, out.ID).Status)
	assert.Equal(t, recon.MovementStatusUnmatched, f.movement(t, in.ID).Status)

	assert.Len(t, f.events.byType("WashSuggested"), 1)
}
