package recon

import (
	"github.com/shopspring/decimal"
)

// Quality weights for the allocation objective. A reference hit dominates
// everything else so a documented match always wins over circumstantial ones.
const (
	qualityWeightReference    = 100
	qualityWeightAmount       = 50
	qualityWeightDate         = 25
	qualityWeightCounterparty = 10
)

// MatchFlags records which match dimensions hold between a movement and an obligation
type MatchFlags struct {
	ReferenceMatch    bool // Movement reference contains the obligation document number
	AmountMatch       bool // Open amount within policy tolerance of the movement net
	DateMatch         bool // Due date within the policy date window of the booking date
	CounterpartyMatch bool // Normalized counterparty names overlap
}

// QualityScore returns the weighted match quality of the flag set
func (f MatchFlags) QualityScore() int {
	score := 0
	if f.ReferenceMatch {
		score += qualityWeightReference
	}
	if f.AmountMatch {
		score += qualityWeightAmount
	}
	if f.DateMatch {
		score += qualityWeightDate
	}
	if f.CounterpartyMatch {
		score += qualityWeightCounterparty
	}
	return score
}

// Candidate is an ephemeral pairing of one movement with one obligation.
// It is never persisted; the blocking index produces it and the matcher and
// solver consume it within a single pass.
type Candidate struct {
	Obligation     *Obligation
	Flags          MatchFlags
	AlreadyApplied decimal.Decimal // Allocation already applied to the obligation this cycle
}

// RemainingCapacity returns how much can still be allocated to the obligation
func (c Candidate) RemainingCapacity() decimal.Decimal {
	capacity := c.Obligation.OpenAmount.Sub(c.AlreadyApplied)
	if capacity.IsNegative() {
		return decimal.Zero
	}
	return capacity
}

// QualityScore returns the weighted match quality of the candidate
func (c Candidate) QualityScore() int {
	return c.Flags.QualityScore()
}
