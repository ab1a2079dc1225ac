package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/cashrecon/backend/internal/domain/recon"
	"github.com/cashrecon/backend/internal/domain/shared"
	"github.com/cashrecon/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// MemoryStore is an in-memory implementation of recon.UnitOfWork backed by
// maps. It is used in tests and when running without a database; WithinTx
// snapshots the store and restores it when the callback fails, so rollback
// behaves like the transactional store.
type MemoryStore struct {
	mu          sync.RWMutex
	obligations map[uuid.UUID]recon.Obligation
	movements   map[uuid.UUID]recon.Movement
	allocations map[uuid.UUID]recon.AllocationRecord
	washes      map[uuid.UUID]recon.SuggestedWash
	exceptions  map[uuid.UUID]recon.ExceptionRecord
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		obligations: make(map[uuid.UUID]recon.Obligation),
		movements:   make(map[uuid.UUID]recon.Movement),
		allocations: make(map[uuid.UUID]recon.AllocationRecord),
		washes:      make(map[uuid.UUID]recon.SuggestedWash),
		exceptions:  make(map[uuid.UUID]recon.ExceptionRecord),
	}
}

// WithinTx runs fn against the store, restoring the pre-call state on error
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos recon.RepositorySet) error) error {
	s.mu.Lock()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := fn(ctx, s.Repos()); err != nil {
		s.mu.Lock()
		s.restoreLocked(snapshot)
		s.mu.Unlock()
		return err
	}
	return nil
}

// Repos returns the repository set backed by this store
func (s *MemoryStore) Repos() recon.RepositorySet {
	return recon.RepositorySet{
		Obligations: &memoryObligationRepository{store: s},
		Movements:   &memoryMovementRepository{store: s},
		Allocations: &memoryAllocationRepository{store: s},
		Washes:      &memoryWashRepository{store: s},
		Exceptions:  &memoryExceptionRepository{store: s},
	}
}

type storeSnapshot struct {
	obligations map[uuid.UUID]recon.Obligation
	movements   map[uuid.UUID]recon.Movement
	allocations map[uuid.UUID]recon.AllocationRecord
	washes      map[uuid.UUID]recon.SuggestedWash
	exceptions  map[uuid.UUID]recon.ExceptionRecord
}

func (s *MemoryStore) snapshotLocked() storeSnapshot {
	return storeSnapshot{
		obligations: copyMap(s.obligations),
		movements:   copyMap(s.movements),
		allocations: copyMap(s.allocations),
		washes:      copyMap(s.washes),
		exceptions:  copyMap(s.exceptions),
	}
}

func (s *MemoryStore) restoreLocked(snap storeSnapshot) {
	s.obligations = snap.obligations
	s.movements = snap.movements
	s.allocations = snap.allocations
	s.washes = snap.washes
	s.exceptions = snap.exceptions
}

func copyMap[V any](src map[uuid.UUID]V) map[uuid.UUID]V {
	dst := make(map[uuid.UUID]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

type memoryObligationRepository struct {
	store *MemoryStore
}

func (r *memoryObligationRepository) FindByID(_ context.Context, id uuid.UUID) (*recon.Obligation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	o, ok := r.store.obligations[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &o, nil
}

func (r *memoryObligationRepository) FindOpen(_ context.Context, entityID uuid.UUID, currency valueobject.Currency) ([]*recon.Obligation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []*recon.Obligation
	for _, o := range r.store.obligations {
		if o.EntityID == entityID && o.Currency == currency && o.IsOpen() {
			obligation := o
			result = append(result, &obligation)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

func (r *memoryObligationRepository) Save(_ context.Context, obligation *recon.Obligation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.obligations[obligation.ID] = *obligation
	return nil
}

type memoryMovementRepository struct {
	store *MemoryStore
}

func (r *memoryMovementRepository) FindByID(_ context.Context, id uuid.UUID) (*recon.Movement, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	m, ok := r.store.movements[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &m, nil
}

func (r *memoryMovementRepository) FindByEntity(_ context.Context, entityID uuid.UUID, currency valueobject.Currency) ([]*recon.Movement, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []*recon.Movement
	for _, m := range r.store.movements {
		if m.EntityID == entityID && m.Currency == currency {
			movement := m
			result = append(result, &movement)
		}
	}
	sortMovements(result)
	return result, nil
}

func (r *memoryMovementRepository) FindUnmatched(_ context.Context) ([]*recon.Movement, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []*recon.Movement
	for _, m := range r.store.movements {
		if m.Status == recon.MovementStatusUnmatched {
			movement := m
			result = append(result, &movement)
		}
	}
	sortMovements(result)
	return result, nil
}

func (r *memoryMovementRepository) Save(_ context.Context, movement *recon.Movement) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.movements[movement.ID] = *movement
	return nil
}

func sortMovements(movements []*recon.Movement) {
	sort.Slice(movements, func(i, j int) bool {
		if !movements[i].BookingDate.Equal(movements[j].BookingDate) {
			return movements[i].BookingDate.Before(movements[j].BookingDate)
		}
		return movements[i].ID.String() < movements[j].ID.String()
	})
}

type memoryAllocationRepository struct {
	store *MemoryStore
}

func (r *memoryAllocationRepository) FindByMovement(_ context.Context, movementID uuid.UUID) ([]*recon.AllocationRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []*recon.AllocationRecord
	for _, rec := range r.store.allocations {
		if rec.MovementID == movementID {
			record := rec
			result = append(result, &record)
		}
	}
	sortAllocations(result)
	return result, nil
}

func (r *memoryAllocationRepository) FindByObligation(_ context.Context, obligationID uuid.UUID) ([]*recon.AllocationRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []*recon.AllocationRecord
	for _, rec := range r.store.allocations {
		if rec.ObligationID == obligationID {
			record := rec
			result = append(result, &record)
		}
	}
	sortAllocations(result)
	return result, nil
}

func (r *memoryAllocationRepository) Save(_ context.Context, record *recon.AllocationRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.allocations[record.ID] = *record
	return nil
}

func (r *memoryAllocationRepository) DeleteByMovement(_ context.Context, movementID uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, rec := range r.store.allocations {
		if rec.MovementID == movementID {
			delete(r.store.allocations, id)
		}
	}
	return nil
}

func sortAllocations(records []*recon.AllocationRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID.String() < records[j].ID.String()
	})
}

type memoryWashRepository struct {
	store *MemoryStore
}

func (r *memoryWashRepository) FindByID(_ context.Context, id uuid.UUID) (*recon.SuggestedWash, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	w, ok := r.store.washes[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &w, nil
}

func (r *memoryWashRepository) Save(_ context.Context, wash *recon.SuggestedWash) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.washes[wash.ID] = *wash
	return nil
}

type memoryExceptionRepository struct {
	store *MemoryStore
}

func (r *memoryExceptionRepository) FindByMovement(_ context.Context, movementID uuid.UUID) ([]*recon.ExceptionRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []*recon.ExceptionRecord
	for _, rec := range r.store.exceptions {
		if rec.MovementID == movementID {
			record := rec
			result = append(result, &record)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

func (r *memoryExceptionRepository) Save(_ context.Context, record *recon.ExceptionRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.exceptions[record.ID] = *record
	return nil
}

var _ recon.UnitOfWork = (*MemoryStore)(nil)
