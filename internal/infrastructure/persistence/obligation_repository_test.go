package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cashrecon/backend/internal/domain/recon"
	"github.com/cashrecon/backend/internal/domain/shared"
	"github.com/cashrecon/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockDB creates a GORM DB backed by a mocked SQL connection
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func TestGormObligationRepository_FindByID(t *testing.T) {
	t.Run("finds existing obligation", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormObligationRepository(gormDB)

		obligationID := uuid.New()
		entityID := uuid.New()
		now := time.Now()

		rows := sqlmock.NewRows([]string{"id", "created_at", "updated_at", "entity_id", "kind", "document_number", "counterparty", "currency", "amount", "open_amount", "due_date"}).
			AddRow(obligationID, now, now, entityID, "RECEIVABLE", "INV-1001", "Acme Corp", "USD", decimal.NewFromInt(500), decimal.NewFromInt(500), nil)

		mock.ExpectQuery(`SELECT \* FROM "obligations" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(obligationID, 1).
			WillReturnRows(rows)

		obligation, err := repo.FindByID(context.Background(), obligationID)

		assert.NoError(t, err)
		assert.NotNil(t, obligation)
		assert.Equal(t, obligationID, obligation.ID)
		assert.Equal(t, "INV-1001", obligation.DocumentNumber)
		assert.Equal(t, recon.ObligationKindReceivable, obligation.Kind)
		assert.True(t, obligation.OpenAmount.Equal(decimal.NewFromInt(500)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns error for non-existent obligation", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormObligationRepository(gormDB)

		obligationID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "obligations" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(obligationID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		obligation, err := repo.FindByID(context.Background(), obligationID)

		assert.Error(t, err)
		assert.Nil(t, obligation)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormObligationRepository_FindOpen(t *testing.T) {
	t.Run("returns only open obligations for entity and currency", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormObligationRepository(gormDB)

		entityID := uuid.New()
		now := time.Now()

		rows := sqlmock.NewRows([]string{"id", "created_at", "updated_at", "entity_id", "kind", "document_number", "counterparty", "currency", "amount", "open_amount", "due_date"}).
			AddRow(uuid.New(), now, now, entityID, "RECEIVABLE", "INV-1001", "Acme Corp", "USD", decimal.NewFromInt(500), decimal.NewFromInt(500), nil).
			AddRow(uuid.New(), now, now, entityID, "PAYABLE", "BILL-2001", "Globex", "USD", decimal.NewFromInt(300), decimal.NewFromInt(120), nil)

		mock.ExpectQuery(`SELECT \* FROM "obligations" WHERE entity_id = \$1 AND currency = \$2 AND open_amount > 0 ORDER BY .*`).
			WithArgs(entityID, "USD").
			WillReturnRows(rows)

		obligations, err := repo.FindOpen(context.Background(), entityID, valueobject.USD)

		assert.NoError(t, err)
		require.Len(t, obligations, 2)
		assert.Equal(t, "INV-1001", obligations[0].DocumentNumber)
		assert.True(t, obligations[1].OpenAmount.Equal(decimal.NewFromInt(120)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormMovementRepository_FindUnmatched(t *testing.T) {
	t.Run("filters by unmatched status", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormMovementRepository(gormDB)

		now := time.Now()
		movementID := uuid.New()

		rows := sqlmock.NewRows([]string{"id", "created_at", "updated_at", "entity_id", "account_id", "amount", "currency", "reference", "counterparty", "booking_date", "status", "confidence", "needs_manual_review"}).
			AddRow(movementID, now, now, uuid.New(), uuid.New(), decimal.NewFromInt(500), "USD", "INV-1001 payment", "Acme Corp", now, "UNMATCHED", 0.0, false)

		mock.ExpectQuery(`SELECT \* FROM "movements" WHERE status = \$1 ORDER BY .*`).
			WithArgs("UNMATCHED").
			WillReturnRows(rows)

		movements, err := repo.FindUnmatched(context.Background())

		assert.NoError(t, err)
		require.Len(t, movements, 1)
		assert.Equal(t, movementID, movements[0].ID)
		assert.Equal(t, recon.MovementStatusUnmatched, movements[0].Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormAllocationRepository_DeleteByMovement(t *testing.T) {
	t.Run("deletes all records for the movement", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()
		repo := NewGormAllocationRepository(gormDB)

		movementID := uuid.New()

		mock.ExpectExec(`DELETE FROM "allocation_records" WHERE movement_id = \$1`).
			WithArgs(movementID).
			WillReturnResult(sqlmock.NewResult(0, 2))

		err := repo.DeleteByMovement(context.Background(), movementID)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
