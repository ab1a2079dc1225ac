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

// GormMovementRepository implements recon.MovementRepository using GORM
type GormMovementRepository struct {
	db *gorm.DB
}

// NewGormMovementRepository creates a new GormMovementRepository
func NewGormMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// FindByID finds a movement by its ID
func (r *GormMovementRepository) FindByID(ctx context.Context, id uuid.UUID) (*recon.Movement, error) {
	var model models.MovementModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByEntity returns all movements for an entity and currency
func (r *GormMovementRepository) FindByEntity(ctx context.Context, entityID uuid.UUID, currency valueobject.Currency) ([]*recon.Movement, error) {
	var movementModels []models.MovementModel
	if err := r.db.WithContext(ctx).
		Where("entity_id = ? AND currency = ?", entityID, currency).
		Order("booking_date ASC, id ASC").
		Find(&movementModels).Error; err != nil {
		return nil, err
	}
	return toDomainMovements(movementModels), nil
}

// FindUnmatched returns unmatched movements across all entities
func (r *GormMovementRepository) FindUnmatched(ctx context.Context) ([]*recon.Movement, error) {
	var movementModels []models.MovementModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", recon.MovementStatusUnmatched).
		Order("booking_date ASC, id ASC").
		Find(&movementModels).Error; err != nil {
		return nil, err
	}
	return toDomainMovements(movementModels), nil
}

// Save persists a movement
func (r *GormMovementRepository) Save(ctx context.Context, movement *recon.Movement) error {
	model := models.MovementModelFromDomain(movement)
	return r.db.WithContext(ctx).Save(model).Error
}

func toDomainMovements(movementModels []models.MovementModel) []*recon.Movement {
	movements := make([]*recon.Movement, len(movementModels))
	for i := range movementModels {
		movements[i] = movementModels[i].ToDomain()
	}
	return movements
}

var _ recon.MovementRepository = (*GormMovementRepository)(nil)
