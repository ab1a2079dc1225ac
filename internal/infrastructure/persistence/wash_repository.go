package persistence

import (
	"context"
	"errors"

	"github.com/cashrecon/backend/internal/domain/recon"
	"github.com/cashrecon/backend/internal/domain/shared"
	"github.com/cashrecon/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormWashRepository implements recon.WashRepository using GORM
type GormWashRepository struct {
	db *gorm.DB
}

// NewGormWashRepository creates a new GormWashRepository
func NewGormWashRepository(db *gorm.DB) *GormWashRepository {
	return &GormWashRepository{db: db}
}

// FindByID finds a suggested wash by its ID
func (r *GormWashRepository) FindByID(ctx context.Context, id uuid.UUID) (*recon.SuggestedWash, error) {
	var model models.SuggestedWashModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save persists a suggested wash
func (r *GormWashRepository) Save(ctx context.Context, wash *recon.SuggestedWash) error {
	model := models.SuggestedWashModelFromDomain(wash)
	return r.db.WithContext(ctx).Save(model).Error
}

var _ recon.WashRepository = (*GormWashRepository)(nil)
