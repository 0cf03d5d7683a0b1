package normalize

import (
	"fmt"
	"strings"
)

// FuzzyConfig holds the thresholds for the fuzzy prefix/suffix equivalence
// rule. The defaults are deliberately conservative: the rule exists to catch
// producer-specific abbreviation (a code-derived class-name key vs. a
// human-authored descriptive directory name) while rejecting accidental
// short-string collisions.
type FuzzyConfig struct {
	// MinRawLength is the minimum length of each raw key for the rule to
	// apply at all. Short keys lack the signal to match safely.
	// Default: 10.
	MinRawLength int

	// MinLengthDiff is the minimum absolute length difference between the
	// comparable forms. Equal-length keys that differ are different
	// entities, not abbreviations of one another.
	// Default: 6.
	MinLengthDiff int

	// MaxShortRatio is the exclusive upper bound on shorter/longer length
	// ratio of the comparable forms. A near-equal pair is more likely a
	// typo than an abbreviation, so it is rejected.
	// Default: 0.75.
	MaxShortRatio float64

	// KindTags are entity-kind markers stripped from the front of a
	// normalized key before comparison, so "FEATURE-IDEINTEGRATION" can
	// line up against "041_IDE_INTEGRATION_SYSTEM".
	// Default: feature, feat, story.
	KindTags []string
}

// DefaultFuzzyConfig returns the default fuzzy-match thresholds.
func DefaultFuzzyConfig() FuzzyConfig {
	return FuzzyConfig{
		MinRawLength:  10,
		MinLengthDiff: 6,
		MaxShortRatio: 0.75,
		KindTags:      []string{"feature", "feat", "story"},
	}
}

// Validate checks that the thresholds are sane.
func (c FuzzyConfig) Validate() error {
	if c.MinRawLength < 1 {
		return fmt.Errorf("min_raw_length must be positive (got %d)", c.MinRawLength)
	}
	if c.MinLengthDiff < 0 {
		return fmt.Errorf("min_length_diff cannot be negative (got %d)", c.MinLengthDiff)
	}
	if c.MaxShortRatio <= 0.0 || c.MaxShortRatio > 1.0 {
		return fmt.Errorf("max_short_ratio must be in (0.0, 1.0] (got %.2f)", c.MaxShortRatio)
	}
	return nil
}

// FuzzyPrefix is the conservative prefix/suffix equivalence predicate.
// Two raw keys are equivalent when all of the following hold:
//
//   - both raw keys are at least MinRawLength characters long
//   - at least one key carries a numeric ordinal prefix (signalling it
//     originated from a different producer's numbering convention)
//   - one comparable form is a prefix or suffix of the other
//   - the comparable forms differ in length by at least MinLengthDiff
//   - the shorter comparable form is less than MaxShortRatio of the longer
//
// The rule is asymmetric by design: without the ordinal-prefix signal, two
// plain descriptive keys never fuzzy-match.
type FuzzyPrefix struct {
	cfg FuzzyConfig
}

// NewFuzzyPrefix creates the predicate, falling back to defaults when cfg is
// the zero value.
func NewFuzzyPrefix(cfg FuzzyConfig) (*FuzzyPrefix, error) {
	if cfg.MinRawLength == 0 && cfg.MinLengthDiff == 0 && cfg.MaxShortRatio == 0 {
		cfg = DefaultFuzzyConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fuzzy config: %w", err)
	}
	return &FuzzyPrefix{cfg: cfg}, nil
}

// Equivalent implements the Equivalence interface.
func (p *FuzzyPrefix) Equivalent(rawA, rawB string) bool {
	if len(rawA) < p.cfg.MinRawLength || len(rawB) < p.cfg.MinRawLength {
		return false
	}
	if !HasOrdinalPrefix(rawA) && !HasOrdinalPrefix(rawB) {
		return false
	}

	a := p.Comparable(rawA)
	b := p.Comparable(rawB)
	if a == "" || b == "" || a == b {
		// Identical comparable forms are the exact matcher's job.
		return false
	}

	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(long)-len(short) < p.cfg.MinLengthDiff {
		return false
	}
	if float64(len(short)) >= p.cfg.MaxShortRatio*float64(len(long)) {
		return false
	}

	return strings.HasPrefix(long, short) || strings.HasSuffix(long, short)
}

// Comparable returns the form the fuzzy thresholds are applied to: the
// normalized key with any leading entity-kind tag stripped.
func (p *FuzzyPrefix) Comparable(raw string) string {
	key := Key(raw)
	for _, tag := range p.cfg.KindTags {
		if len(key) > len(tag) && strings.HasPrefix(key, tag) {
			return key[len(tag):]
		}
	}
	return key
}
