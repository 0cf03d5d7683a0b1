// Package types defines the core data model for plan bundles: the documents
// that the reconciliation engine normalizes, compares, merges, and locks.
package types

import (
	"time"
)

// Stage represents the lifecycle stage of a bundle.
type Stage string

const (
	// StageDraft is the initial state when a bundle is first created.
	// An empty feature list is legal only in this stage.
	StageDraft Stage = "draft"

	// StageRefining indicates the bundle is undergoing iterative refinement.
	StageRefining Stage = "refining"

	// StageReview indicates the bundle is under collaborative review.
	// Non-draft features must carry at least one story from this stage on.
	StageReview Stage = "review"

	// StageApproved indicates the bundle has been approved.
	StageApproved Stage = "approved"
)

// stageRank orders stages for "review or higher" checks.
var stageRank = map[Stage]int{
	StageDraft:    0,
	StageRefining: 1,
	StageReview:   2,
	StageApproved: 3,
}

// AtLeast reports whether s is at or past the given stage in the lifecycle.
// Unknown stages rank below draft.
func (s Stage) AtLeast(other Stage) bool {
	return stageRank[s] >= stageRank[other]
}

// Persona is a declared collaborator role (e.g., "product", "architect",
// "developer") used for section ownership and lock scoping.
type Persona string

// Bundle is the root aggregate: one plan document for one project.
type Bundle struct {
	// Version is the bundle schema version (semver, e.g. "v1.0.0").
	// The storage layer rejects bundles whose major version it does not support.
	Version string `yaml:"version" json:"version"`

	// Idea is the optional narrative/context block describing the plan's intent.
	Idea *IdeaBlock `yaml:"idea,omitempty" json:"idea,omitempty"`

	// Features are the top-level planned entities. Feature keys must be
	// unique within the bundle after normalization.
	Features []Feature `yaml:"features" json:"features"`

	// Metadata carries lifecycle stage, timestamps, and provenance.
	Metadata Metadata `yaml:"metadata" json:"metadata"`

	// Clarifications is the ordered record of resolved ambiguities.
	// Append-only: entries are never mutated or removed once written.
	Clarifications []Clarification `yaml:"clarifications,omitempty" json:"clarifications,omitempty"`
}

// IdeaBlock is the narrative section of a bundle ("idea" in section paths).
type IdeaBlock struct {
	// Title is a short name for the plan.
	Title string `yaml:"title" json:"title"`

	// Context is the freeform narrative describing goals and background.
	Context string `yaml:"context,omitempty" json:"context,omitempty"`
}

// Metadata holds bundle provenance and lifecycle information.
type Metadata struct {
	// Stage is the current lifecycle stage.
	Stage Stage `yaml:"stage" json:"stage"`

	// Provenance records which producer authored this bundle
	// (e.g., "manual", "code-derived").
	Provenance string `yaml:"provenance,omitempty" json:"provenance,omitempty"`

	// CreatedAt is when the bundle was first written.
	CreatedAt time.Time `yaml:"created_at,omitempty" json:"created_at,omitempty"`

	// UpdatedAt is when the bundle was last written.
	UpdatedAt time.Time `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Feature is a top-level planned entity within a bundle.
type Feature struct {
	// Key is the producer-assigned identifier. Not guaranteed unique across
	// producers until normalized (see internal/normalize).
	Key string `yaml:"key" json:"key"`

	// Title is the human-readable feature name.
	Title string `yaml:"title" json:"title"`

	// Outcomes are the expected outcome statements, in author order.
	Outcomes []string `yaml:"outcomes,omitempty" json:"outcomes,omitempty"`

	// Acceptance are the acceptance statements, in author order.
	Acceptance []string `yaml:"acceptance,omitempty" json:"acceptance,omitempty"`

	// Constraints are the constraint statements, in author order.
	Constraints []string `yaml:"constraints,omitempty" json:"constraints,omitempty"`

	// Confidence is the producer's confidence in this feature, in [0.0, 1.0].
	Confidence float64 `yaml:"confidence" json:"confidence"`

	// Draft marks the feature as provisional. Draft entities get reduced
	// severity when missing from a counterpart bundle.
	Draft bool `yaml:"draft,omitempty" json:"draft,omitempty"`

	// Stories are the child entities of this feature. A non-draft feature in
	// a bundle at review stage or higher must have at least one story.
	Stories []Story `yaml:"stories,omitempty" json:"stories,omitempty"`
}

// Story is a child entity of a Feature.
type Story struct {
	// Key is the producer-assigned identifier, unique within the parent
	// feature after normalization.
	Key string `yaml:"key" json:"key"`

	// Title is the human-readable story name.
	Title string `yaml:"title" json:"title"`

	// Acceptance are the acceptance statements, in author order.
	Acceptance []string `yaml:"acceptance,omitempty" json:"acceptance,omitempty"`

	// Tags are freeform labels.
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	// Confidence is the producer's confidence in this story, in [0.0, 1.0].
	Confidence float64 `yaml:"confidence" json:"confidence"`

	// Draft marks the story as provisional.
	Draft bool `yaml:"draft,omitempty" json:"draft,omitempty"`
}

// Clarification is one resolved ambiguity in the bundle's clarification log.
type Clarification struct {
	// ID is a unique identifier for this entry.
	ID string `yaml:"id" json:"id"`

	// Question is the ambiguity that was raised.
	Question string `yaml:"question" json:"question"`

	// Answer is the resolution that was recorded.
	Answer string `yaml:"answer" json:"answer"`

	// Persona is the role that resolved the ambiguity.
	Persona Persona `yaml:"persona,omitempty" json:"persona,omitempty"`

	// ResolvedAt is when the entry was appended.
	ResolvedAt time.Time `yaml:"resolved_at" json:"resolved_at"`
}

// AppendClarification adds an entry to the clarification log. The log is
// append-only; there is deliberately no API to edit or remove entries.
func (b *Bundle) AppendClarification(c Clarification) {
	b.Clarifications = append(b.Clarifications, c)
}

// FeatureByKey returns the feature with the given raw key, or nil.
func (b *Bundle) FeatureByKey(key string) *Feature {
	for i := range b.Features {
		if b.Features[i].Key == key {
			return &b.Features[i]
		}
	}
	return nil
}

// OwnershipMap declares which persona may author each section of a bundle.
// It is external configuration (part of the project manifest), consumed by
// the conflict arbiter and the lock manager, never derived by the engine.
type OwnershipMap map[Persona][]string

// Owner returns the persona owning the longest declared section path that
// covers the given path, if any. A declared path covers a target when they
// are equal or the target is nested under it (dot-separated).
func (m OwnershipMap) Owner(path string) (Persona, bool) {
	var (
		best    Persona
		bestLen = -1
	)
	for persona, sections := range m {
		for _, section := range sections {
			if !PathCovers(section, path) {
				continue
			}
			if len(section) > bestLen {
				best = persona
				bestLen = len(section)
			}
		}
	}
	return best, bestLen >= 0
}

// PathCovers reports whether a section path covers a target path.
// "features" covers "features.auth.title"; "idea" covers "idea" and
// "idea.title" but not "ideation".
func PathCovers(section, target string) bool {
	if section == target {
		return true
	}
	if len(target) > len(section) &&
		target[:len(section)] == section &&
		target[len(section)] == '.' {
		return true
	}
	return false
}
