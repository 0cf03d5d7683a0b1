// Package match pairs entities between two bundle snapshots using normalized
// key equality first and a conservative fuzzy fallback second. It also
// implements self-deduplication: collapsing duplicate entities that different
// producers authored into a single bundle under different key conventions.
package match

import (
	"fmt"
	"log"

	"github.com/planweave/planweave/internal/normalize"
	"github.com/planweave/planweave/internal/types"
)

// FeaturePair is one matched feature across the two input sets.
type FeaturePair struct {
	// A is the entity from the first input set, B from the second.
	A *types.Feature
	B *types.Feature

	// Fuzzy is true when the pair matched via the fuzzy predicate rather
	// than exact normalized-key equality. Fuzzy pairs are audit-relevant.
	Fuzzy bool
}

// StoryPair is one matched story within a matched feature pair.
type StoryPair struct {
	A     *types.Story
	B     *types.Story
	Fuzzy bool
}

// FeatureResult is the outcome of matching two feature sets.
type FeatureResult struct {
	Pairs []FeaturePair
	OnlyA []*types.Feature
	OnlyB []*types.Feature
}

// StoryResult is the outcome of matching two story sets.
type StoryResult struct {
	Pairs []StoryPair
	OnlyA []*types.Story
	OnlyB []*types.Story
}

// Matcher aligns entities between bundle snapshots. The fuzzy predicate is
// injected so key-convention heuristics can be tuned or replaced without
// touching the matching control flow.
type Matcher struct {
	fuzzy normalize.Equivalence
}

// New creates a Matcher with the given fuzzy fallback predicate.
// Passing nil disables the fuzzy pass entirely.
func New(fuzzy normalize.Equivalence) *Matcher {
	return &Matcher{fuzzy: fuzzy}
}

// Default returns a Matcher using the default fuzzy prefix/suffix rule.
func Default() *Matcher {
	fp, err := normalize.NewFuzzyPrefix(normalize.DefaultFuzzyConfig())
	if err != nil {
		// DefaultFuzzyConfig always validates.
		panic(fmt.Sprintf("default fuzzy config invalid: %v", err))
	}
	return New(fp)
}

// MatchFeatures pairs features between two sets. Matching is stable: exact
// normalized-key matches first, then fuzzy matches among the remainder in
// input order, first match wins. A given entity participates in at most one
// pair. Unmatched entities are returned in OnlyA/OnlyB in input order.
func (m *Matcher) MatchFeatures(setA, setB []types.Feature) FeatureResult {
	keysA := make([]string, len(setA))
	for i := range setA {
		keysA[i] = setA[i].Key
	}
	keysB := make([]string, len(setB))
	for i := range setB {
		keysB[i] = setB[i].Key
	}

	pairs, onlyA, onlyB := m.matchKeys(keysA, keysB)

	result := FeatureResult{}
	for _, p := range pairs {
		result.Pairs = append(result.Pairs, FeaturePair{
			A:     &setA[p.ia],
			B:     &setB[p.ib],
			Fuzzy: p.fuzzy,
		})
	}
	for _, i := range onlyA {
		result.OnlyA = append(result.OnlyA, &setA[i])
	}
	for _, i := range onlyB {
		result.OnlyB = append(result.OnlyB, &setB[i])
	}
	return result
}

// MatchStories pairs stories between two sets with the same semantics as
// MatchFeatures.
func (m *Matcher) MatchStories(setA, setB []types.Story) StoryResult {
	keysA := make([]string, len(setA))
	for i := range setA {
		keysA[i] = setA[i].Key
	}
	keysB := make([]string, len(setB))
	for i := range setB {
		keysB[i] = setB[i].Key
	}

	pairs, onlyA, onlyB := m.matchKeys(keysA, keysB)

	result := StoryResult{}
	for _, p := range pairs {
		result.Pairs = append(result.Pairs, StoryPair{
			A:     &setA[p.ia],
			B:     &setB[p.ib],
			Fuzzy: p.fuzzy,
		})
	}
	for _, i := range onlyA {
		result.OnlyA = append(result.OnlyA, &setA[i])
	}
	for _, i := range onlyB {
		result.OnlyB = append(result.OnlyB, &setB[i])
	}
	return result
}

type indexPair struct {
	ia, ib int
	fuzzy  bool
}

// matchKeys is the core two-pass matching algorithm over raw keys.
// Pass 1: exact normalized-key equality via hash map, O(n).
// Pass 2: fuzzy equivalence among the remainder, O(n*m). Bundle sizes are
// bounded (tens to low hundreds of entities), so the quadratic pass is fine.
func (m *Matcher) matchKeys(keysA, keysB []string) (pairs []indexPair, onlyA, onlyB []int) {
	matchedA := make([]bool, len(keysA))
	matchedB := make([]bool, len(keysB))

	// Exact pass. First occurrence of each normalized key on the B side
	// wins, keeping ties stable in input order.
	byNorm := make(map[string][]int, len(keysB))
	for i, k := range keysB {
		nk := normalize.Key(k)
		byNorm[nk] = append(byNorm[nk], i)
	}
	for ia, k := range keysA {
		nk := normalize.Key(k)
		for _, ib := range byNorm[nk] {
			if matchedB[ib] {
				continue
			}
			pairs = append(pairs, indexPair{ia: ia, ib: ib})
			matchedA[ia] = true
			matchedB[ib] = true
			break
		}
	}

	// Fuzzy pass over the remainder. First successful match wins; an entity
	// that fuzzy-matches more than one candidate is resolved deterministically
	// by input order and logged for audit.
	if m.fuzzy != nil {
		for ia := range keysA {
			if matchedA[ia] {
				continue
			}
			for ib := range keysB {
				if matchedB[ib] {
					continue
				}
				if m.fuzzy.Equivalent(keysA[ia], keysB[ib]) {
					log.Printf("[MATCH] fuzzy key match: %q ~ %q", keysA[ia], keysB[ib])
					pairs = append(pairs, indexPair{ia: ia, ib: ib, fuzzy: true})
					matchedA[ia] = true
					matchedB[ib] = true
					break
				}
			}
		}
	}

	for i := range keysA {
		if !matchedA[i] {
			onlyA = append(onlyA, i)
		}
	}
	for i := range keysB {
		if !matchedB[i] {
			onlyB = append(onlyB, i)
		}
	}
	return pairs, onlyA, onlyB
}
