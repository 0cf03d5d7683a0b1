package compare

import (
	"fmt"
	"math"
	"sort"

	"github.com/planweave/planweave/internal/match"
	"github.com/planweave/planweave/internal/normalize"
	"github.com/planweave/planweave/internal/types"
)

// Confidence delta thresholds from the severity table: deltas below the
// medium threshold are LOW, deltas at or above the high threshold are HIGH.
const (
	confidenceMediumDelta = 0.3
	confidenceHighDelta   = 0.5
)

// Detector computes the deviation list between two bundles.
type Detector struct {
	matcher *match.Matcher
}

// NewDetector creates a Detector using the given matcher.
func NewDetector(m *match.Matcher) *Detector {
	return &Detector{matcher: m}
}

// Compare validates both bundles and returns the ordered deviation list.
// A schema violation in either bundle rejects the whole comparison with a
// single structural error and no partial output. Deviations themselves are
// data, not failure: a non-empty result with a nil error is a successful run.
//
// The output is deterministic for fixed inputs: sorted by severity
// descending, then by location path, with identifiers assigned after the
// sort.
func (d *Detector) Compare(reference, candidate *types.Bundle) ([]Deviation, error) {
	if err := reference.Validate(); err != nil {
		return nil, fmt.Errorf("reference bundle is malformed: %w", err)
	}
	if err := candidate.Validate(); err != nil {
		return nil, fmt.Errorf("candidate bundle is malformed: %w", err)
	}

	var devs []Deviation

	devs = append(devs, structuralDeviations(reference, "reference")...)
	devs = append(devs, structuralDeviations(candidate, "candidate")...)

	res := d.matcher.MatchFeatures(reference.Features, candidate.Features)

	refIdx := featureIndex(reference.Features)
	candIdx := featureIndex(candidate.Features)

	for _, f := range res.OnlyA {
		devs = append(devs, missingDeviation(
			CategoryMissingInCandidate,
			featurePath(refIdx[f.Key]),
			fmt.Sprintf("feature %q exists in the reference but not in the candidate", f.Key),
			f.Draft,
		))
	}
	for _, f := range res.OnlyB {
		devs = append(devs, missingDeviation(
			CategoryMissingInReference,
			featurePath(candIdx[f.Key]),
			fmt.Sprintf("feature %q exists in the candidate but not in the reference", f.Key),
			f.Draft,
		))
	}

	for _, pair := range res.Pairs {
		fi := refIdx[pair.A.Key]
		devs = append(devs, d.compareFeature(pair.A, pair.B, fi)...)
	}

	sortDeviations(devs)
	for i := range devs {
		devs[i].ID = fmt.Sprintf("DEV-%03d", i+1)
		devs[i].SeverityLabel = devs[i].Severity.String()
	}
	return devs, nil
}

// compareFeature reports field-level deviations for one matched feature pair
// and recurses into the stories.
func (d *Detector) compareFeature(ref, cand *types.Feature, featureIdx int) []Deviation {
	var devs []Deviation
	base := featurePath(featureIdx)

	if ref.Title != cand.Title {
		devs = append(devs, Deviation{
			Severity: SeverityMedium,
			Category: CategoryFieldMismatch,
			Path:     base + ".title",
			Description: fmt.Sprintf("feature %q title differs: %q vs %q",
				ref.Key, ref.Title, cand.Title),
		})
	}

	devs = append(devs, listMismatch(ref.Key, base+".outcomes", "outcomes", ref.Outcomes, cand.Outcomes, SeverityMedium)...)
	devs = append(devs, listMismatch(ref.Key, base+".acceptance", "acceptance", ref.Acceptance, cand.Acceptance, SeverityMedium)...)
	devs = append(devs, listMismatch(ref.Key, base+".constraints", "constraints", ref.Constraints, cand.Constraints, SeverityMedium)...)

	if dev, ok := confidenceMismatch(ref.Key, base+".confidence", ref.Confidence, cand.Confidence); ok {
		devs = append(devs, dev)
	}

	storyRes := d.matcher.MatchStories(ref.Stories, cand.Stories)
	refIdx := storyIndex(ref.Stories)
	candIdx := storyIndex(cand.Stories)

	for _, s := range storyRes.OnlyA {
		devs = append(devs, missingDeviation(
			CategoryMissingInCandidate,
			storyPath(featureIdx, refIdx[s.Key]),
			fmt.Sprintf("story %q of feature %q exists in the reference but not in the candidate", s.Key, ref.Key),
			s.Draft,
		))
	}
	for _, s := range storyRes.OnlyB {
		devs = append(devs, missingDeviation(
			CategoryMissingInReference,
			storyPath(featureIdx, candIdx[s.Key]),
			fmt.Sprintf("story %q of feature %q exists in the candidate but not in the reference", s.Key, ref.Key),
			s.Draft,
		))
	}

	for _, pair := range storyRes.Pairs {
		si := refIdx[pair.A.Key]
		devs = append(devs, compareStory(pair.A, pair.B, storyPath(featureIdx, si))...)
	}

	return devs
}

// compareStory reports field-level deviations for one matched story pair.
// An acceptance difference on a story either side already marks non-draft is
// HIGH: promoted acceptance criteria changing silently is a real hazard.
func compareStory(ref, cand *types.Story, base string) []Deviation {
	var devs []Deviation

	if ref.Title != cand.Title {
		devs = append(devs, Deviation{
			Severity: SeverityMedium,
			Category: CategoryFieldMismatch,
			Path:     base + ".title",
			Description: fmt.Sprintf("story %q title differs: %q vs %q",
				ref.Key, ref.Title, cand.Title),
		})
	}

	acceptanceSeverity := SeverityMedium
	if !ref.Draft || !cand.Draft {
		acceptanceSeverity = SeverityHigh
	}
	devs = append(devs, listMismatch(ref.Key, base+".acceptance", "acceptance", ref.Acceptance, cand.Acceptance, acceptanceSeverity)...)

	if dev, ok := confidenceMismatch(ref.Key, base+".confidence", ref.Confidence, cand.Confidence); ok {
		devs = append(devs, dev)
	}

	return devs
}

// structuralDeviations reports HIGH-severity structural problems within a
// single bundle: duplicate keys after normalization, and promoted (non-draft)
// stories orphaned under draft features.
func structuralDeviations(b *types.Bundle, side string) []Deviation {
	var devs []Deviation

	seen := make(map[string]string)
	for i := range b.Features {
		f := &b.Features[i]
		nk := normalize.Key(f.Key)
		if prev, dup := seen[nk]; dup {
			devs = append(devs, Deviation{
				Severity: SeverityHigh,
				Category: CategoryStructural,
				Path:     fmt.Sprintf("%s:%s", side, featurePath(i)),
				Description: fmt.Sprintf("%s bundle: features %q and %q share normalized key %q",
					side, prev, f.Key, nk),
			})
		} else {
			seen[nk] = f.Key
		}

		seenStories := make(map[string]string)
		for j := range f.Stories {
			s := &f.Stories[j]
			snk := normalize.Key(s.Key)
			if prev, dup := seenStories[snk]; dup {
				devs = append(devs, Deviation{
					Severity: SeverityHigh,
					Category: CategoryStructural,
					Path:     fmt.Sprintf("%s:%s", side, storyPath(i, j)),
					Description: fmt.Sprintf("%s bundle: stories %q and %q of feature %q share normalized key %q",
						side, prev, s.Key, f.Key, snk),
				})
			} else {
				seenStories[snk] = s.Key
			}

			if f.Draft && !s.Draft {
				devs = append(devs, Deviation{
					Severity: SeverityHigh,
					Category: CategoryStructural,
					Path:     fmt.Sprintf("%s:%s", side, storyPath(i, j)),
					Description: fmt.Sprintf("%s bundle: non-draft story %q is orphaned under draft feature %q",
						side, s.Key, f.Key),
				})
			}
		}
	}

	return devs
}

// missingDeviation builds a missing-entity deviation. Missing entities
// default to HIGH severity as a potential oversight, reduced to MEDIUM when
// the entity is flagged draft.
func missingDeviation(cat Category, path, description string, draft bool) Deviation {
	sev := SeverityHigh
	if draft {
		sev = SeverityMedium
	}
	return Deviation{
		Severity:    sev,
		Category:    cat,
		Path:        path,
		Description: description,
	}
}

// listMismatch compares a list-valued field as an order-insensitive set.
func listMismatch(key, path, field string, ref, cand []string, sev Severity) []Deviation {
	if setEqual(ref, cand) {
		return nil
	}
	return []Deviation{{
		Severity: sev,
		Category: CategoryFieldMismatch,
		Path:     path,
		Description: fmt.Sprintf("%s of %q differ: %d reference entries vs %d candidate entries",
			field, key, len(ref), len(cand)),
	}}
}

// confidenceMismatch classifies a confidence delta per the severity table.
func confidenceMismatch(key, path string, ref, cand float64) (Deviation, bool) {
	delta := math.Abs(ref - cand)
	if delta == 0 {
		return Deviation{}, false
	}

	sev := SeverityLow
	switch {
	case delta >= confidenceHighDelta:
		sev = SeverityHigh
	case delta >= confidenceMediumDelta:
		sev = SeverityMedium
	}

	return Deviation{
		Severity: sev,
		Category: CategoryFieldMismatch,
		Path:     path,
		Description: fmt.Sprintf("confidence of %q differs: %.2f vs %.2f (delta %.2f)",
			key, ref, cand, delta),
	}, true
}

// sortDeviations orders by severity descending, then by location path, so
// repeated runs against unchanged inputs are byte-identical.
func sortDeviations(devs []Deviation) {
	sort.SliceStable(devs, func(i, j int) bool {
		if devs[i].Severity != devs[j].Severity {
			return devs[i].Severity > devs[j].Severity
		}
		return devs[i].Path < devs[j].Path
	})
}

// setEqual reports order-insensitive multiset equality ignoring duplicates:
// two lists are equal when they contain the same distinct elements.
func setEqual(a, b []string) bool {
	setA := make(map[string]struct{}, len(a))
	for _, s := range a {
		setA[s] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, s := range b {
		setB[s] = struct{}{}
	}
	if len(setA) != len(setB) {
		return false
	}
	for s := range setA {
		if _, ok := setB[s]; !ok {
			return false
		}
	}
	return true
}

func featureIndex(features []types.Feature) map[string]int {
	idx := make(map[string]int, len(features))
	for i := range features {
		if _, dup := idx[features[i].Key]; !dup {
			idx[features[i].Key] = i
		}
	}
	return idx
}

func storyIndex(stories []types.Story) map[string]int {
	idx := make(map[string]int, len(stories))
	for i := range stories {
		if _, dup := idx[stories[i].Key]; !dup {
			idx[stories[i].Key] = i
		}
	}
	return idx
}
