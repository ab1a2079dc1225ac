package persistence

import (
	"context"

	"github.com/cashrecon/backend/internal/domain/recon"
	"github.com/cashrecon/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormExceptionRepository implements recon.ExceptionRepository using GORM
type GormExceptionRepository struct {
	db *gorm.DB
}

// NewGormExceptionRepository creates a new GormExceptionRepository
func NewGormExceptionRepository(db *gorm.DB) *GormExceptionRepository {
	return &GormExceptionRepository{db: db}
}

// FindByMovement returns all exception records for a movement
func (r *GormExceptionRepository) FindByMovement(ctx context.Context, movementID uuid.UUID) ([]*recon.ExceptionRecord, error) {
	var recordModels []models.ExceptionRecordModel
	if err := r.db.WithContext(ctx).
		Where("movement_id = ?", movementID).
		Order("created_at ASC, id ASC").
		Find(&recordModels).Error; err != nil {
		return nil, err
	}
	records := make([]*recon.ExceptionRecord, len(recordModels))
	for i := range recordModels {
		records[i] = recordModels[i].ToDomain()
	}
	return records, nil
}

// Save persists an exception record
func (r *GormExceptionRepository) Save(ctx context.Context, record *recon.ExceptionRecord) error {
	model := models.ExceptionRecordModelFromDomain(record)
	return r.db.WithContext(ctx).Save(model).Error
}

var _ recon.ExceptionRepository = (*GormExceptionRepository)(nil)
