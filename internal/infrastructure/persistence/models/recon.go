package models

import (
	"time"

	"github.com/cashrecon/backend/internal/domain/recon"
	"github.com/cashrecon/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ObligationModel is the persistence model for the Obligation entity.
type ObligationModel struct {
	BaseModel
	EntityID       uuid.UUID            `gorm:"type:uuid;not null;index:idx_obligations_entity_currency,priority:1"`
	Kind           recon.ObligationKind `gorm:"type:varchar(20);not null"`
	DocumentNumber string               `gorm:"type:varchar(100);not null;index"`
	Counterparty   string               `gorm:"type:varchar(200);not null"`
	Currency       valueobject.Currency `gorm:"type:varchar(3);not null;index:idx_obligations_entity_currency,priority:2"`
	Amount         decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	OpenAmount     decimal.Decimal      `gorm:"type:decimal(18,4);not null;index"`
	DueDate        *time.Time           `gorm:"index"`
}

// TableName returns the table name for GORM
func (ObligationModel) TableName() string {
	return "obligations"
}

// ToDomain converts the persistence model to a domain Obligation entity.
func (m *ObligationModel) ToDomain() *recon.Obligation {
	return &recon.Obligation{
		BaseEntity:     m.BaseModel.ToDomain(),
		EntityID:       m.EntityID,
		Kind:           m.Kind,
		DocumentNumber: m.DocumentNumber,
		Counterparty:   m.Counterparty,
		Currency:       m.Currency,
		Amount:         m.Amount,
		OpenAmount:     m.OpenAmount,
		DueDate:        m.DueDate,
	}
}

// ObligationModelFromDomain creates a persistence model from a domain Obligation.
func ObligationModelFromDomain(o *recon.Obligation) *ObligationModel {
	m := &ObligationModel{}
	m.FromDomainBaseEntity(o.BaseEntity)
	m.EntityID = o.EntityID
	m.Kind = o.Kind
	m.DocumentNumber = o.DocumentNumber
	m.Counterparty = o.Counterparty
	m.Currency = o.Currency
	m.Amount = o.Amount
	m.OpenAmount = o.OpenAmount
	m.DueDate = o.DueDate
	return m
}

// MovementModel is the persistence model for the Movement entity.
type MovementModel struct {
	BaseModel
	EntityID          uuid.UUID            `gorm:"type:uuid;not null;index:idx_movements_entity_currency,priority:1"`
	AccountID         uuid.UUID            `gorm:"type:uuid;not null;index"`
	Amount            decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Currency          valueobject.Currency `gorm:"type:varchar(3);not null;index:idx_movements_entity_currency,priority:2"`
	Reference         string               `gorm:"type:varchar(500)"`
	Counterparty      string               `gorm:"type:varchar(200)"`
	BookingDate       time.Time            `gorm:"not null;index"`
	Status            recon.MovementStatus `gorm:"type:varchar(20);not null;default:'UNMATCHED';index"`
	Confidence        float64              `gorm:"not null;default:0"`
	NeedsManualReview bool                 `gorm:"not null;default:false;index"`
}

// TableName returns the table name for GORM
func (MovementModel) TableName() string {
	return "movements"
}

// ToDomain converts the persistence model to a domain Movement entity.
func (m *MovementModel) ToDomain() *recon.Movement {
	return &recon.Movement{
		BaseEntity:        m.BaseModel.ToDomain(),
		EntityID:          m.EntityID,
		AccountID:         m.AccountID,
		Amount:            m.Amount,
		Currency:          m.Currency,
		Reference:         m.Reference,
		Counterparty:      m.Counterparty,
		BookingDate:       m.BookingDate,
		Status:            m.Status,
		Confidence:        m.Confidence,
		NeedsManualReview: m.NeedsManualReview,
	}
}

// MovementModelFromDomain creates a persistence model from a domain Movement.
func MovementModelFromDomain(mv *recon.Movement) *MovementModel {
	m := &MovementModel{}
	m.FromDomainBaseEntity(mv.BaseEntity)
	m.EntityID = mv.EntityID
	m.AccountID = mv.AccountID
	m.Amount = mv.Amount
	m.Currency = mv.Currency
	m.Reference = mv.Reference
	m.Counterparty = mv.Counterparty
	m.BookingDate = mv.BookingDate
	m.Status = mv.Status
	m.Confidence = mv.Confidence
	m.NeedsManualReview = mv.NeedsManualReview
	return m
}

// AllocationRecordModel is the persistence model for the AllocationRecord entity.
type AllocationRecordModel struct {
	BaseModel
	MovementID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ObligationID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (AllocationRecordModel) TableName() string {
	return "allocation_records"
}

// ToDomain converts the persistence model to a domain AllocationRecord entity.
func (m *AllocationRecordModel) ToDomain() *recon.AllocationRecord {
	return &recon.AllocationRecord{
		BaseEntity:   m.BaseModel.ToDomain(),
		MovementID:   m.MovementID,
		ObligationID: m.ObligationID,
		Amount:       m.Amount,
	}
}

// AllocationRecordModelFromDomain creates a persistence model from a domain AllocationRecord.
func AllocationRecordModelFromDomain(r *recon.AllocationRecord) *AllocationRecordModel {
	m := &AllocationRecordModel{}
	m.FromDomainBaseEntity(r.BaseEntity)
	m.MovementID = r.MovementID
	m.ObligationID = r.ObligationID
	m.Amount = r.Amount
	return m
}

// SuggestedWashModel is the persistence model for the SuggestedWash entity.
type SuggestedWashModel struct {
	BaseModel
	MovementAID uuid.UUID `gorm:"type:uuid;not null;index"`
	MovementBID uuid.UUID `gorm:"type:uuid;not null;index"`
	Confidence  float64   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SuggestedWashModel) TableName() string {
	return "suggested_washes"
}

// ToDomain converts the persistence model to a domain SuggestedWash entity.
func (m *SuggestedWashModel) ToDomain() *recon.SuggestedWash {
	return &recon.SuggestedWash{
		BaseEntity:  m.BaseModel.ToDomain(),
		MovementAID: m.MovementAID,
		MovementBID: m.MovementBID,
		Confidence:  m.Confidence,
	}
}

// SuggestedWashModelFromDomain creates a persistence model from a domain SuggestedWash.
func SuggestedWashModelFromDomain(w *recon.SuggestedWash) *SuggestedWashModel {
	m := &SuggestedWashModel{}
	m.FromDomainBaseEntity(w.BaseEntity)
	m.MovementAID = w.MovementAID
	m.MovementBID = w.MovementBID
	m.Confidence = w.Confidence
	return m
}

// ExceptionRecordModel is the persistence model for the ExceptionRecord entity.
type ExceptionRecordModel struct {
	BaseModel
	EntityID   uuid.UUID `gorm:"type:uuid;not null;index"`
	MovementID uuid.UUID `gorm:"type:uuid;not null;index"`
	Code       string    `gorm:"type:varchar(50);not null;index"`
	Message    string    `gorm:"type:text"`
	Proof      string    `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ExceptionRecordModel) TableName() string {
	return "exception_records"
}

// ToDomain converts the persistence model to a domain ExceptionRecord entity.
func (m *ExceptionRecordModel) ToDomain() *recon.ExceptionRecord {
	return &recon.ExceptionRecord{
		BaseEntity: m.BaseModel.ToDomain(),
		EntityID:   m.EntityID,
		MovementID: m.MovementID,
		Code:       m.Code,
		Message:    m.Message,
		Proof:      m.Proof,
	}
}

// ExceptionRecordModelFromDomain creates a persistence model from a domain ExceptionRecord.
func ExceptionRecordModelFromDomain(r *recon.ExceptionRecord) *ExceptionRecordModel {
	m := &ExceptionRecordModel{}
	m.FromDomainBaseEntity(r.BaseEntity)
	m.EntityID = r.EntityID
	m.MovementID = r.MovementID
	m.Code = r.Code
	m.Message = r.Message
	m.Proof = r.Proof
	return m
}

// AllModels returns every persistence model for schema migration.
func AllModels() []interface{} {
	return []interface{}{
		&ObligationModel{},
		&MovementModel{},
		&AllocationRecordModel{},
		&SuggestedWashModel{},
		&ExceptionRecordModel{},
	}
}
