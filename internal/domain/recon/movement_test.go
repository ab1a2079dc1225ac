package recon

import (
	"testing"
	"time"

	"github.com/cashrecon/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovementStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    MovementStatus
		to      MovementStatus
		allowed bool
	}{
		{"unmatched to deterministic", MovementStatusUnmatched, MovementStatusDeterministic, true},
		{"unmatched to suggested", MovementStatusUnmatched, MovementStatusSuggested, true},
		{"unmatched to wash", MovementStatusUnmatched, MovementStatusWash, true},
		{"suggested to rule based", MovementStatusSuggested, MovementStatusRuleBased, true},
		{"suggested to many to many", MovementStatusSuggested, MovementStatusManyToMany, true},
		{"suggested back to unmatched", MovementStatusSuggested, MovementStatusUnmatched, true},
		{"suggested to wash is blocked", MovementStatusSuggested, MovementStatusWash, false},
		{"deterministic back to unmatched", MovementStatusDeterministic, MovementStatusUnmatched, true},
		{"deterministic to rule based is blocked", MovementStatusDeterministic, MovementStatusRuleBased, false},
		{"wash back to unmatched", MovementStatusWash, MovementStatusUnmatched, true},
		{"invalid target", MovementStatusUnmatched, MovementStatus("BOGUS"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestNewMovement(t *testing.T) {
	t.Run("starts unmatched with zero confidence", func(t *testing.T) {
		m := newTestMovement(t, 500, "INV-1001 payment", "Acme Corp", time.Now())

		assert.Equal(t, MovementStatusUnmatched, m.Status)
		assert.Zero(t, m.Confidence)
		assert.False(t, m.NeedsManualReview)
	})

	t.Run("rejects zero amount", func(t *testing.T) {
		_, err := NewMovement(uuid.New(), uuid.New(), decimal.Zero, "USD", "", "", time.Now())
		assert.Error(t, err)
	})

	t.Run("rejects empty currency", func(t *testing.T) {
		_, err := NewMovement(uuid.New(), uuid.New(), decimal.NewFromInt(100), "", "", "", time.Now())
		assert.Error(t, err)
	})
}

func TestMovement_Net(t *testing.T) {
	t.Run("outflow nets to absolute amount", func(t *testing.T) {
		m := newTestMovement(t, -250.75, "", "Acme Corp", time.Now())
		assert.True(t, m.Net().Equal(decimal.NewFromFloat(250.75)))
	})

	t.Run("inflow nets to itself", func(t *testing.T) {
		m := newTestMovement(t, 250.75, "", "Acme Corp", time.Now())
		assert.True(t, m.Net().Equal(decimal.NewFromFloat(250.75)))
	})
}

func TestMovement_NetMoney(t *testing.T) {
	m := newTestMovement(t, -250.75, "", "Acme Corp", time.Now())

	money := m.NetMoney()
	assert.True(t, money.Amount().Equal(decimal.NewFromFloat(250.75)))
	assert.Equal(t, valueobject.USD, money.Currency())
}

func TestMovement_Classify(t *testing.T) {
	t.Run("applies status and confidence", func(t *testing.T) {
		m := newTestMovement(t, 500, "", "Acme Corp", time.Now())

		err := m.Classify(MovementStatusDeterministic, 1.0)
		require.NoError(t, err)
		assert.Equal(t, MovementStatusDeterministic, m.Status)
		assert.Equal(t, 1.0, m.Confidence)
	})

	t.Run("rejects disallowed transition", func(t *testing.T) {
		m := newTestMovement(t, 500, "", "Acme Corp", time.Now())
		require.NoError(t, m.Classify(MovementStatusDeterministic, 1.0))

		err := m.Classify(MovementStatusRuleBased, 0.95)
		assert.Error(t, err)
		assert.Equal(t, MovementStatusDeterministic, m.Status)
	})

	t.Run("rejects confidence outside unit interval", func(t *testing.T) {
		m := newTestMovement(t, 500, "", "Acme Corp", time.Now())
		assert.Error(t, m.Classify(MovementStatusSuggested, 1.5))
		assert.Error(t, m.Classify(MovementStatusSuggested, -0.1))
	})
}

func TestMovement_RevertToUnmatched(t *testing.T) {
	m := newTestMovement(t, 500, "", "Acme Corp", time.Now())
	require.NoError(t, m.Classify(MovementStatusRuleBased, 0.95))

	m.RevertToUnmatched()

	assert.Equal(t, MovementStatusUnmatched, m.Status)
	assert.Zero(t, m.Confidence)
}

func TestMovement_FlagForManualReview(t *testing.T) {
	m := newTestMovement(t, 500, "", "Acme Corp", time.Now())
	m.FlagForManualReview()
	assert.True(t, m.NeedsManualReview)
}
