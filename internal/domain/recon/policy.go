package recon

import (
	"github.com/cashrecon/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PolicySource records which lookup level produced a policy. It is decided
// once by the resolver and never re-resolved downstream.
type PolicySource string

const (
	PolicySourceCurrency PolicySource = "CURRENCY" // Currency-specific override for the entity
	PolicySourceEntity   PolicySource = "ENTITY"   // Entity-wide default
	PolicySourceDefault  PolicySource = "DEFAULT"  // System default
)

// String returns the string representation
func (s PolicySource) String() string {
	return string(s)
}

// Policy is the per-(entity, currency) tolerance configuration used by the
// blocking index and the tiered matcher. Read-only input to a pass.
type Policy struct {
	Source            PolicySource
	AmountTolerance   decimal.Decimal
	DateWindowDays    int
	DeterministicTier bool
	RuleBasedTier     bool
	SuggestedTier     bool
	ManyToManyTier    bool
}

// DefaultPolicy returns the system default policy:
// tolerance 0.01, 30-day date window, all tiers enabled.
func DefaultPolicy() Policy {
	return Policy{
		Source:            PolicySourceDefault,
		AmountTolerance:   decimal.NewFromFloat(0.01),
		DateWindowDays:    30,
		DeterministicTier: true,
		RuleBasedTier:     true,
		SuggestedTier:     true,
		ManyToManyTier:    true,
	}
}

// policyKey identifies a currency-specific policy override
type policyKey struct {
	entityID uuid.UUID
	currency valueobject.Currency
}

// PolicyResolver resolves tolerance policies with a three-level lookup:
// currency-specific, then entity default, then system default.
// Pure and read-only; safe for concurrent use after construction.
type PolicyResolver struct {
	byCurrency map[policyKey]Policy
	byEntity   map[uuid.UUID]Policy
}

// NewPolicyResolver creates an empty resolver that always falls back to the
// system default policy
func NewPolicyResolver() *PolicyResolver {
	return &PolicyResolver{
		byCurrency: make(map[policyKey]Policy),
		byEntity:   make(map[uuid.UUID]Policy),
	}
}

// SetCurrencyPolicy registers a currency-specific policy for an entity
func (r *PolicyResolver) SetCurrencyPolicy(entityID uuid.UUID, currency valueobject.Currency, p Policy) {
	p.Source = PolicySourceCurrency
	r.byCurrency[policyKey{entityID: entityID, currency: currency}] = p
}

// SetEntityPolicy registers an entity-wide default policy
func (r *PolicyResolver) SetEntityPolicy(entityID uuid.UUID, p Policy) {
	p.Source = PolicySourceEntity
	r.byEntity[entityID] = p
}

// Resolve returns the effective policy for an (entity, currency) pair
func (r *PolicyResolver) Resolve(entityID uuid.UUID, currency valueobject.Currency) Policy {
	if p, ok := r.byCurrency[policyKey{entityID: entityID, currency: currency}]; ok {
		return p
	}
	if p, ok := r.byEntity[entityID]; ok {
		return p
	}
	return DefaultPolicy()
}
