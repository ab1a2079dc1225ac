package persistence

import (
	"context"

	"github.com/cashrecon/backend/internal/domain/recon"
	"github.com/cashrecon/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAllocationRepository implements recon.AllocationRepository using GORM
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// FindByMovement returns all allocation records for a movement
func (r *GormAllocationRepository) FindByMovement(ctx context.Context, movementID uuid.UUID) ([]*recon.AllocationRecord, error) {
	var recordModels []models.AllocationRecordModel
	if err := r.db.WithContext(ctx).
		Where("movement_id = ?", movementID).
		Order("created_at ASC, id ASC").
		Find(&recordModels).Error; err != nil {
		return nil, err
	}
	return toDomainAllocations(recordModels), nil
}

// FindByObligation returns all allocation records against an obligation
func (r *GormAllocationRepository) FindByObligation(ctx context.Context, obligationID uuid.UUID) ([]*recon.AllocationRecord, error) {
	var recordModels []models.AllocationRecordModel
	if err := r.db.WithContext(ctx).
		Where("obligation_id = ?", obligationID).
		Order("created_at ASC, id ASC").
		Find(&recordModels).Error; err != nil {
		return nil, err
	}
	return toDomainAllocations(recordModels), nil
}

// Save persists an allocation record
func (r *GormAllocationRepository) Save(ctx context.Context, record *recon.AllocationRecord) error {
	model := models.AllocationRecordModelFromDomain(record)
	return r.db.WithContext(ctx).Save(model).Error
}

// DeleteByMovement removes all allocation records for a movement
func (r *GormAllocationRepository) DeleteByMovement(ctx context.Context, movementID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("movement_id = ?", movementID).
		Delete(&models.AllocationRecordModel{}).Error
}

func toDomainAllocations(recordModels []models.AllocationRecordModel) []*recon.AllocationRecord {
	records := make([]*recon.AllocationRecord, len(recordModels))
	for i := range recordModels {
		records[i] = recordModels[i].ToDomain()
	}
	return records
}

var _ recon.AllocationRepository = (*GormAllocationRepository)(nil)
