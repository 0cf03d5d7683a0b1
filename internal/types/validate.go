package types

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// SupportedSchemaMajor is the bundle schema major version this build accepts.
const SupportedSchemaMajor = "v1"

// ValidateSchemaVersion checks that a bundle's declared schema version is
// well-formed semver and compatible with this build.
func ValidateSchemaVersion(version string) error {
	if version == "" {
		return fmt.Errorf("bundle has no schema version")
	}
	if !semver.IsValid(version) {
		return fmt.Errorf("invalid schema version %q (expected semver, e.g. %q)", version, "v1.0.0")
	}
	if semver.Major(version) != SupportedSchemaMajor {
		return fmt.Errorf("unsupported schema version %s (this build supports %s.x)", version, SupportedSchemaMajor)
	}
	return nil
}

// Validate checks the bundle's structural invariants. A validation failure is
// fatal: no comparison, merge, or write may proceed on an invalid bundle.
//
// Checked invariants:
//   - schema version is present, well-formed, and supported
//   - every feature and story key is non-empty
//   - confidence values are within [0.0, 1.0]
//   - an empty feature list is only legal in draft stage
//   - a non-draft feature at review stage or higher has at least one story
//
// Duplicate-key detection requires normalization and lives in the match
// package, which reports duplicates as structural deviations.
func (b *Bundle) Validate() error {
	if err := ValidateSchemaVersion(b.Version); err != nil {
		return err
	}

	if len(b.Features) == 0 && b.Metadata.Stage.AtLeast(StageRefining) {
		return fmt.Errorf("bundle at stage %q has no features (empty bundles are only legal in draft)", b.Metadata.Stage)
	}

	for i := range b.Features {
		if err := b.Features[i].Validate(b.Metadata.Stage); err != nil {
			return fmt.Errorf("features[%d]: %w", i, err)
		}
	}

	for i, c := range b.Clarifications {
		if c.Question == "" {
			return fmt.Errorf("clarifications[%d]: question cannot be empty", i)
		}
	}

	return nil
}

// Validate checks a single feature's invariants against the bundle stage.
func (f *Feature) Validate(stage Stage) error {
	if f.Key == "" {
		return fmt.Errorf("feature key cannot be empty")
	}
	if f.Confidence < 0.0 || f.Confidence > 1.0 {
		return fmt.Errorf("feature %q: confidence must be between 0.0 and 1.0 (got %.2f)", f.Key, f.Confidence)
	}
	if !f.Draft && stage.AtLeast(StageReview) && len(f.Stories) == 0 {
		return fmt.Errorf("feature %q: non-draft feature at stage %q must have at least one story", f.Key, stage)
	}
	for i := range f.Stories {
		if err := f.Stories[i].Validate(); err != nil {
			return fmt.Errorf("feature %q stories[%d]: %w", f.Key, i, err)
		}
	}
	return nil
}

// Validate checks a single story's invariants.
func (s *Story) Validate() error {
	if s.Key == "" {
		return fmt.Errorf("story key cannot be empty")
	}
	if s.Confidence < 0.0 || s.Confidence > 1.0 {
		return fmt.Errorf("story %q: confidence must be between 0.0 and 1.0 (got %.2f)", s.Key, s.Confidence)
	}
	return nil
}
