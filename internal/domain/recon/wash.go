package recon

import (
	"sort"
	"time"

	"github.com/cashrecon/backend/internal/domain/shared"
	"github.com/cashrecon/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Wash detection thresholds
const (
	washMaxDayGap         = 2
	washConfidenceSameDay = 0.9
	washConfidenceNearDay = 0.7
)

// SuggestedWash flags a probable offsetting intercompany pair. It never
// mutates reconciliation state; only an explicit approval marks both
// movements washed.
type SuggestedWash struct {
	shared.BaseEntity
	MovementAID uuid.UUID
	MovementBID uuid.UUID
	Confidence  float64
}

// WashDetector scans unmatched movements across entities for offsetting
// pairs: amounts cancelling within the cent tolerance, booked at most two
// days apart, on different accounts.
type WashDetector struct{}

// NewWashDetector creates a wash detector
func NewWashDetector() *WashDetector {
	return &WashDetector{}
}

// Detect emits at most one suggestion per movement. Movements are paired
// greedily in deterministic order (booking date, then id), so re-running the
// scan over an unchanged set reproduces the same suggestions.
func (d *WashDetector) Detect(movements []*Movement) []SuggestedWash {
	eligible := make([]*Movement, 0, len(movements))
	for _, m := range movements {
		if m.Status == MovementStatusUnmatched && !m.Amount.IsZero() {
			eligible = append(eligible, m)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		if !eligible[i].BookingDate.Equal(eligible[j].BookingDate) {
			return eligible[i].BookingDate.Before(eligible[j].BookingDate)
		}
		return eligible[i].ID.String() < eligible[j].ID.String()
	})

	// Block on the absolute cent amount so pairing stays linear in practice.
	byAmount := make(map[int64][]*Movement, len(eligible))
	for _, m := range eligible {
		key := washAmountKey(m)
		byAmount[key] = append(byAmount[key], m)
	}

	suggestions := make([]SuggestedWash, 0)
	paired := make(map[uuid.UUID]struct{})
	for _, a := range eligible {
		if _, done := paired[a.ID]; done {
			continue
		}
		b := findWashPeer(a, byAmount, paired)
		if b == nil {
			continue
		}
		confidence := washConfidenceNearDay
		if sameDay(a.BookingDate, b.BookingDate) {
			confidence = washConfidenceSameDay
		}
		suggestions = append(suggestions, SuggestedWash{
			BaseEntity:  shared.NewBaseEntity(),
			MovementAID: a.ID,
			MovementBID: b.ID,
			Confidence:  confidence,
		})
		paired[a.ID] = struct{}{}
		paired[b.ID] = struct{}{}
	}
	return suggestions
}

// washAmountKey maps a movement onto its cent-amount blocking key
func washAmountKey(m *Movement) int64 {
	return m.Net().Mul(centFactor).Round(0).IntPart()
}

// findWashPeer returns the first unpaired counterpart for a in blocking
// order. Adjacent cent keys are scanned so a sub-cent offset straddling a
// cent boundary still pairs.
func findWashPeer(a *Movement, byAmount map[int64][]*Movement, paired map[uuid.UUID]struct{}) *Movement {
	key := washAmountKey(a)
	for _, k := range []int64{key - 1, key, key + 1} {
		for _, b := range byAmount[k] {
			if a.ID == b.ID {
				continue
			}
			if _, done := paired[b.ID]; done {
				continue
			}
			if isWashPair(a, b) {
				return b
			}
		}
	}
	return nil
}

// isWashPair checks offsetting amounts, the day gap and distinct accounts
func isWashPair(a, b *Movement) bool {
	if a.Currency != b.Currency {
		return false
	}
	if a.AccountID == b.AccountID {
		return false
	}
	if a.Amount.Add(b.Amount).Abs().GreaterThanOrEqual(valueobject.CentTolerance) {
		return false
	}
	return daysBetween(a.BookingDate, b.BookingDate) <= washMaxDayGap
}

// daysBetween returns the absolute whole-day gap between two dates
func daysBetween(a, b time.Time) int {
	da := a.Truncate(24 * time.Hour)
	db := b.Truncate(24 * time.Hour)
	diff := int(da.Sub(db).Hours() / 24)
	if diff < 0 {
		diff = -diff
	}
	return diff
}

// sameDay reports whether two timestamps fall on the same calendar day (UTC)
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
