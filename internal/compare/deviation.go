// Package compare computes severity-classified deviations between two plan
// bundles: a reference (e.g. the manually authored plan) and a candidate
// (e.g. an auto-derived extraction). Deviations are report artifacts,
// regenerated on every run and never persisted as authoritative state.
package compare

import "fmt"

// Severity classifies how much a deviation matters.
type Severity int

const (
	// SeverityLow indicates minor drift (small confidence delta).
	SeverityLow Severity = iota

	// SeverityMedium indicates drift that should be reviewed.
	SeverityMedium

	// SeverityHigh indicates a likely oversight: missing non-draft
	// entities, large confidence swings, structural problems.
	SeverityHigh
)

// String returns the canonical upper-case severity name.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// Category identifies what kind of difference a deviation describes.
type Category string

const (
	// CategoryMissingInCandidate marks an entity present only in the reference.
	CategoryMissingInCandidate Category = "missing-in-candidate"

	// CategoryMissingInReference marks an entity present only in the candidate.
	CategoryMissingInReference Category = "missing-in-reference"

	// CategoryFieldMismatch marks a tracked field differing between matched entities.
	CategoryFieldMismatch Category = "field-mismatch"

	// CategoryStructural marks duplicate keys after normalization or
	// promoted stories under draft features.
	CategoryStructural Category = "structural"
)

// Deviation is one reported difference between the reference and candidate
// bundles. Deviations are immutable once produced.
type Deviation struct {
	// ID is a deterministic identifier (DEV-001, DEV-002, ...) assigned
	// after sorting, so repeated runs on unchanged inputs are byte-identical.
	ID string `json:"id" yaml:"id"`

	// Severity is the classification tier.
	Severity Severity `json:"-" yaml:"-"`

	// SeverityLabel is the rendered severity name.
	SeverityLabel string `json:"severity" yaml:"severity"`

	// Category identifies the kind of difference.
	Category Category `json:"category" yaml:"category"`

	// Description is the human-readable explanation, always naming the
	// entity and cause.
	Description string `json:"description" yaml:"description"`

	// Path is the dot/bracket-addressed location of the difference, e.g.
	// "features[3].stories[1].acceptance". Missing-in-candidate and
	// field-mismatch paths address the reference bundle; missing-in-reference
	// paths address the candidate bundle.
	Path string `json:"path" yaml:"path"`
}

func featurePath(idx int) string {
	return fmt.Sprintf("features[%d]", idx)
}

func storyPath(featureIdx, storyIdx int) string {
	return fmt.Sprintf("features[%d].stories[%d]", featureIdx, storyIdx)
}
