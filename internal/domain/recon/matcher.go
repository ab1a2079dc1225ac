package recon

import (
	"math/bits"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Tier confidence levels. Deterministic matches are documentary evidence;
// the rest degrade with the strength of the signal.
const (
	confidenceDeterministic = 1.0
	confidenceRuleBased     = 0.95
	confidenceManyToMany    = 0.9
	confidenceSuggested     = 0.8
)

// maxSubsetCandidates bounds the many-to-many subset search per counterparty
// group so classification stays deterministic and fast.
const maxSubsetCandidates = 20

// maxSubsetStates bounds the subset-sum state space for one group.
const maxSubsetStates = 1 << 15

var centFactor = decimal.NewFromInt(100)

// MatchDecision is the pure outcome of classifying one movement.
// It carries no side effects; the pass service applies the transition and
// creates allocations atomically.
type MatchDecision struct {
	Status     MovementStatus
	Confidence float64
	// Candidates carries the chosen candidate for single-obligation tiers,
	// the full group for MANY_TO_MANY, and the best fuzzy candidate for
	// SUGGESTED. Empty when the movement stays unmatched.
	Candidates []Candidate
}

// TieredMatcher classifies movements into match tiers using blocked
// candidates and the resolved policy. Stateless and safe for concurrent use.
type TieredMatcher struct{}

// NewTieredMatcher creates a tiered matcher
func NewTieredMatcher() *TieredMatcher {
	return &TieredMatcher{}
}

// BuildCandidates pairs the movement with each obligation and computes the
// match-quality flags against the policy
func (tm *TieredMatcher) BuildCandidates(m *Movement, obligations []*Obligation, policy Policy) []Candidate {
	net := m.Net()
	netMoney := m.NetMoney()
	movementRef := NormalizeText(m.Reference)
	movementCpty := NormalizeText(m.Counterparty)

	candidates := make([]Candidate, 0, len(obligations))
	for _, o := range obligations {
		if !o.IsOpen() || o.Currency != m.Currency {
			continue
		}
		docNumber := NormalizeText(o.DocumentNumber)
		cpty := NormalizeText(o.Counterparty)
		flags := MatchFlags{
			ReferenceMatch:    docNumber != "" && strings.Contains(movementRef, docNumber),
			AmountMatch:       o.OpenMoney().WithinTolerance(netMoney, policy.AmountTolerance),
			DateMatch:         withinDateWindow(m, o, policy.DateWindowDays),
			CounterpartyMatch: counterpartyOverlap(movementCpty, cpty),
		}
		candidates = append(candidates, Candidate{Obligation: o, Flags: flags})
	}
	sortCandidates(candidates, net)
	return candidates
}

// Classify runs the tier evaluation for one movement: deterministic, then
// rule-based, then many-to-many, then suggested; first qualifying tier wins.
// "No match" is a valid outcome, never an error.
func (tm *TieredMatcher) Classify(m *Movement, obligations []*Obligation, policy Policy) MatchDecision {
	candidates := tm.BuildCandidates(m, obligations, policy)
	if len(candidates) == 0 {
		return MatchDecision{Status: MovementStatusUnmatched}
	}

	if policy.DeterministicTier {
		for _, c := range candidates {
			if c.Flags.ReferenceMatch && c.Flags.AmountMatch {
				return MatchDecision{
					Status:     MovementStatusDeterministic,
					Confidence: confidenceDeterministic,
					Candidates: []Candidate{c},
				}
			}
		}
	}

	if policy.RuleBasedTier {
		for _, c := range candidates {
			if c.Flags.AmountMatch && c.Flags.DateMatch {
				return MatchDecision{
					Status:     MovementStatusRuleBased,
					Confidence: confidenceRuleBased,
					Candidates: []Candidate{c},
				}
			}
		}
	}

	// The sum condition is checked before the fuzzy tier: a movement whose
	// amount equals a counterparty group total is an allocation case, not a
	// suggestion, even though the group also matches on counterparty text.
	if policy.ManyToManyTier {
		if group := tm.findAmountGroup(candidates, m.Net(), policy.AmountTolerance); len(group) >= 2 {
			return MatchDecision{
				Status:     MovementStatusManyToMany,
				Confidence: confidenceManyToMany,
				Candidates: group,
			}
		}
	}

	if policy.SuggestedTier && !hasAmountMatch(candidates) {
		if best, ok := bestCounterpartyCandidate(candidates); ok {
			confidence := confidenceSuggested
			if sim := tokenSimilarity(m.Counterparty, best.Obligation.Counterparty); sim > confidence {
				confidence = sim
			}
			return MatchDecision{
				Status:     MovementStatusSuggested,
				Confidence: confidence,
				Candidates: []Candidate{best},
			}
		}
	}

	return MatchDecision{Status: MovementStatusUnmatched}
}

// sortCandidates applies the in-tier tie-break: smallest |open - net| first,
// then earliest due date (FIFO), then obligation id. Shuffled discovery order
// therefore never changes the outcome.
func sortCandidates(candidates []Candidate, net decimal.Decimal) {
	sort.Slice(candidates, func(i, j int) bool {
		di := candidates[i].Obligation.OpenAmount.Sub(net).Abs()
		dj := candidates[j].Obligation.OpenAmount.Sub(net).Abs()
		if !di.Equal(dj) {
			return di.LessThan(dj)
		}
		if c := compareDueDates(candidates[i].Obligation.DueDate, candidates[j].Obligation.DueDate); c != 0 {
			return c < 0
		}
		return candidates[i].Obligation.ID.String() < candidates[j].Obligation.ID.String()
	})
}

// hasAmountMatch reports whether any candidate matches on amount
func hasAmountMatch(candidates []Candidate) bool {
	for _, c := range candidates {
		if c.Flags.AmountMatch {
			return true
		}
	}
	return false
}

// bestCounterpartyCandidate returns the first candidate (in tie-break order)
// that matches on counterparty text
func bestCounterpartyCandidate(candidates []Candidate) (Candidate, bool) {
	for _, c := range candidates {
		if c.Flags.CounterpartyMatch {
			return c, true
		}
	}
	return Candidate{}, false
}

// counterpartyOverlap reports whether two normalized counterparty names refer
// to the same party: containment either way, or shared significant tokens
func counterpartyOverlap(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	tokensA := TokenizeText(a)
	for _, ta := range tokensA {
		for _, tb := range TokenizeText(b) {
			if ta == tb {
				return true
			}
		}
	}
	return false
}

// tokenSimilarity returns the Jaccard similarity of the token sets of two names
func tokenSimilarity(a, b string) float64 {
	setA := make(map[string]struct{})
	for _, t := range TokenizeText(a) {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{})
	for _, t := range TokenizeText(b) {
		setB[t] = struct{}{}
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// findAmountGroup searches for a same-counterparty group of open obligations
// whose open amounts sum to the movement net within tolerance. Groups are
// visited in candidate tie-break order so the result is deterministic.
func (tm *TieredMatcher) findAmountGroup(candidates []Candidate, net, tolerance decimal.Decimal) []Candidate {
	groups := make(map[string][]Candidate)
	order := make([]string, 0)
	for _, c := range candidates {
		key := NormalizeText(c.Obligation.Counterparty)
		if key == "" {
			continue
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}

	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		if len(group) > maxSubsetCandidates {
			group = group[:maxSubsetCandidates]
		}
		if subset := subsetSum(group, net, tolerance); len(subset) >= 2 {
			return subset
		}
	}
	return nil
}

// subsetSum finds the subset of group open amounts closest to the target net
// within tolerance, preferring exact sums, then fewer members. Amounts are
// folded to integer cents; the state space is bounded by maxSubsetStates.
func subsetSum(group []Candidate, net, tolerance decimal.Decimal) []Candidate {
	target := net.Mul(centFactor).Round(0).IntPart()
	tolCents := tolerance.Mul(centFactor).Round(0).IntPart()

	// Quick reject: the whole group cannot reach the target.
	total := int64(0)
	for _, c := range group {
		total += c.Obligation.OpenAmount.Mul(centFactor).Round(0).IntPart()
	}
	if total < target-tolCents {
		return nil
	}

	// sums maps an achievable cent sum to the first member mask reaching it.
	sums := map[int64]uint32{0: 0}
	for i, c := range group {
		v := c.Obligation.OpenAmount.Mul(centFactor).Round(0).IntPart()
		if v <= 0 {
			continue
		}
		additions := make(map[int64]uint32)
		for sum, mask := range sums {
			next := sum + v
			if next > target+tolCents {
				continue
			}
			if _, known := sums[next]; known {
				continue
			}
			if existing, pending := additions[next]; !pending || lessMask(mask|1<<uint(i), existing) {
				additions[next] = mask | 1<<uint(i)
			}
		}
		for sum, mask := range additions {
			sums[sum] = mask
		}
		if len(sums) > maxSubsetStates {
			break
		}
	}

	bestMask := uint32(0)
	bestDelta := int64(-1)
	for sum, mask := range sums {
		delta := sum - target
		if delta < 0 {
			delta = -delta
		}
		if delta > tolCents || bits.OnesCount32(mask) < 2 {
			continue
		}
		if bestDelta < 0 || delta < bestDelta ||
			(delta == bestDelta && lessMask(mask, bestMask)) {
			bestDelta = delta
			bestMask = mask
		}
	}
	if bestDelta < 0 {
		return nil
	}

	subset := make([]Candidate, 0, bits.OnesCount32(bestMask))
	for i := range group {
		if bestMask&(1<<uint(i)) != 0 {
			subset = append(subset, group[i])
		}
	}
	return subset
}

// lessMask orders member masks by popcount, then value, for deterministic
// subset selection
func lessMask(a, b uint32) bool {
	pa, pb := bits.OnesCount32(a), bits.OnesCount32(b)
	if pa != pb {
		return pa < pb
	}
	return a < b
}
