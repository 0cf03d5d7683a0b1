// Package normalize canonicalizes entity keys so that equivalent entities
// authored by different producers (human authors vs. code-derived extraction)
// compare equal. It also provides the pluggable equivalence predicates the
// matcher uses as a fuzzy fallback when normalized keys differ.
package normalize

import (
	"regexp"
	"strings"
)

// ordinalPrefix matches a leading numeric/ordinal prefix such as "041_" or
// "12-". Producers that emit numbered directories carry these; code-derived
// keys do not.
var ordinalPrefix = regexp.MustCompile(`^[0-9]+[_-]?`)

// Key returns the canonical form of a raw entity key: the leading ordinal
// prefix is removed, separator characters are stripped, and the remainder is
// lower-cased. Pure and deterministic; malformed input falls through as the
// identity transform of whatever survives the character filter.
func Key(raw string) string {
	s := ordinalPrefix.ReplaceAllString(raw, "")
	s = strings.NewReplacer("_", "", "-", "").Replace(s)
	return strings.ToLower(s)
}

// HasOrdinalPrefix reports whether a raw key carries a leading numeric
// ordinal prefix, signalling it originated from a numbering convention.
func HasOrdinalPrefix(raw string) bool {
	return ordinalPrefix.MatchString(raw)
}

// Equivalence is a pluggable predicate deciding whether two raw keys refer to
// the same logical entity. The matcher consults it only after exact
// normalized-key equality has failed, so implementations should be
// conservative: a false positive silently merges two distinct entities.
type Equivalence interface {
	// Equivalent reports whether the two raw keys identify the same entity.
	Equivalent(rawA, rawB string) bool
}

// EquivalenceFunc adapts a plain function to the Equivalence interface.
type EquivalenceFunc func(rawA, rawB string) bool

// Equivalent calls the underlying function.
func (f EquivalenceFunc) Equivalent(rawA, rawB string) bool { return f(rawA, rawB) }

// Exact matches only when normalized keys are identical.
var Exact Equivalence = EquivalenceFunc(func(a, b string) bool {
	return Key(a) == Key(b)
})
