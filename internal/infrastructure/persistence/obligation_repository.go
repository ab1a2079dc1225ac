package persistence

import (
	"context"
	"errors"

	"github.com/cashrecon/backend/internal/domain/recon"
	"github.com/cashrecon/backend/internal/domain/shared"
	"github.com/cashrecon/backend/internal/domain/shared/valueobject"
	"github.com/cashrecon/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormObligationRepository implements recon.ObligationRepository using GORM
type GormObligationRepository struct {
	db *gorm.DB
}

// NewGormObligationRepository creates a new GormObligationRepository
func NewGormObligationRepository(db *gorm.DB) *GormObligationRepository {
	return &GormObligationRepository{db: db}
}

// FindByID finds an obligation by its ID
func (r *GormObligationRepository) FindByID(ctx context.Context, id uuid.UUID) (*recon.Obligation, error) {
	var model models.ObligationModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOpen returns all open obligations for an entity and currency.
// Ordering by due date then ID keeps pass inputs stable across runs.
func (r *GormObligationRepository) FindOpen(ctx context.Context, entityID uuid.UUID, currency valueobject.Currency) ([]*recon.Obligation, error) {
	var obligationModels []models.ObligationModel
	if err := r.db.WithContext(ctx).
		Where("entity_id = ? AND currency = ? AND open_amount > 0", entityID, currency).
		Order("due_date ASC NULLS LAST, id ASC").
		Find(&obligationModels).Error; err != nil {
		return nil, err
	}
	obligations := make([]*recon.Obligation, len(obligationModels))
	for i := range obligationModels {
		obligations[i] = obligationModels[i].ToDomain()
	}
	return obligations, nil
}

// Save persists an obligation
func (r *GormObligationRepository) Save(ctx context.Context, obligation *recon.Obligation) error {
	model := models.ObligationModelFromDomain(obligation)
	return r.db.WithContext(ctx).Save(model).Error
}

var _ recon.ObligationRepository = (*GormObligationRepository)(nil)
