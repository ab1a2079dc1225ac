package recon

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// BlockingIndex bounds candidate lookup over a large open-obligation set.
// Instead of comparing every movement against every obligation, it blocks on
// three keys: the amount bucket, reference tokens and counterparty tokens.
// Read-only after Build; safe for concurrent queries.
type BlockingIndex struct {
	bucketUnit  decimal.Decimal
	byAmount    map[int64][]*Obligation
	byRefToken  map[string][]*Obligation
	byCptyToken map[string][]*Obligation
	size        int
}

// minTokenLen filters out connective fragments ("of", "co") that would turn
// token blocking back into a near-exhaustive scan.
const minTokenLen = 3

// BuildIndex populates the blocking structures for one obligation set.
// bucketUnit is the amount-rounding unit; bucket keys are the amount divided
// by the unit, so two amounts within one unit land in the same or an
// adjacent bucket.
func BuildIndex(obligations []*Obligation, bucketUnit decimal.Decimal) *BlockingIndex {
	if bucketUnit.LessThanOrEqual(decimal.Zero) {
		bucketUnit = decimal.NewFromFloat(0.01)
	}
	ix := &BlockingIndex{
		bucketUnit:  bucketUnit,
		byAmount:    make(map[int64][]*Obligation, len(obligations)),
		byRefToken:  make(map[string][]*Obligation),
		byCptyToken: make(map[string][]*Obligation),
		size:        len(obligations),
	}
	for _, o := range obligations {
		key := ix.bucketKey(o.OpenAmount)
		ix.byAmount[key] = append(ix.byAmount[key], o)
		for _, tok := range TokenizeText(o.DocumentNumber) {
			ix.byRefToken[tok] = append(ix.byRefToken[tok], o)
		}
		for _, tok := range TokenizeText(o.Counterparty) {
			ix.byCptyToken[tok] = append(ix.byCptyToken[tok], o)
		}
	}
	return ix
}

// Size returns the number of indexed obligations
func (ix *BlockingIndex) Size() int {
	return ix.size
}

// Query returns the obligations that block with the movement: open amount
// within the policy tolerance of the movement net, or reference/counterparty
// token overlap with the movement text. Hits are filtered to the policy date
// window and returned in deterministic order. An empty result is valid.
func (ix *BlockingIndex) Query(m *Movement, policy Policy) []*Obligation {
	seen := make(map[uuid.UUID]*Obligation)

	net := m.Net()
	netMoney := m.NetMoney()
	key := ix.bucketKey(net)
	// Adjacent buckets cover amounts straddling a bucket boundary.
	for _, k := range []int64{key - 1, key, key + 1} {
		for _, o := range ix.byAmount[k] {
			if o.OpenMoney().WithinTolerance(netMoney, policy.AmountTolerance) {
				seen[o.ID] = o
			}
		}
	}
	for _, tok := range TokenizeText(m.Reference) {
		for _, o := range ix.byRefToken[tok] {
			seen[o.ID] = o
		}
	}
	for _, tok := range TokenizeText(m.Counterparty) {
		for _, o := range ix.byCptyToken[tok] {
			seen[o.ID] = o
		}
	}

	result := make([]*Obligation, 0, len(seen))
	for _, o := range seen {
		if !o.IsOpen() {
			continue
		}
		if o.Currency != m.Currency {
			continue
		}
		if !withinDateWindow(m, o, policy.DateWindowDays) {
			continue
		}
		result = append(result, o)
	}

	// Deterministic candidate order: closest open amount first, then earliest
	// due date, then id. Downstream tie-breaks rely on this ordering being
	// reproducible across passes.
	sort.Slice(result, func(i, j int) bool {
		di := result[i].OpenAmount.Sub(net).Abs()
		dj := result[j].OpenAmount.Sub(net).Abs()
		if !di.Equal(dj) {
			return di.LessThan(dj)
		}
		if c := compareDueDates(result[i].DueDate, result[j].DueDate); c != 0 {
			return c < 0
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result
}

// Touched returns the ids of every obligation a Query for the movement can
// read: all amount-bucket neighbours and all token hits, before any
// state-dependent filtering. The result depends only on immutable movement
// fields and the bucket keys fixed at build time, so it is stable across
// open-amount mutations for the lifetime of the index.
func (ix *BlockingIndex) Touched(m *Movement) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})

	key := ix.bucketKey(m.Net())
	for _, k := range []int64{key - 1, key, key + 1} {
		for _, o := range ix.byAmount[k] {
			seen[o.ID] = struct{}{}
		}
	}
	for _, tok := range TokenizeText(m.Reference) {
		for _, o := range ix.byRefToken[tok] {
			seen[o.ID] = struct{}{}
		}
	}
	for _, tok := range TokenizeText(m.Counterparty) {
		for _, o := range ix.byCptyToken[tok] {
			seen[o.ID] = struct{}{}
		}
	}

	ids := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids
}

// bucketKey maps an amount onto its bucket index
func (ix *BlockingIndex) bucketKey(amount decimal.Decimal) int64 {
	return amount.Div(ix.bucketUnit).Round(0).IntPart()
}

// withinDateWindow checks the obligation due date against the movement
// booking date. Obligations without a due date always pass.
func withinDateWindow(m *Movement, o *Obligation, windowDays int) bool {
	if o.DueDate == nil || windowDays <= 0 {
		return true
	}
	delta := m.BookingDate.Sub(*o.DueDate).Hours() / 24
	if delta < 0 {
		delta = -delta
	}
	return delta <= float64(windowDays)
}

// compareDueDates orders due dates ascending with nil dates last
func compareDueDates(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case a.Before(*b):
		return -1
	case b.Before(*a):
		return 1
	}
	return 0
}

// NormalizeText lowercases a string and folds unicode compatibility forms so
// that bank-line text and master-data names tokenize identically
func NormalizeText(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

// TokenizeText splits normalized text into blocking tokens, dropping
// fragments shorter than minTokenLen
func TokenizeText(s string) []string {
	normalized := NormalizeText(s)
	fields := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= minTokenLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
