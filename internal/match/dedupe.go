package match

import (
	"log"

	"github.com/planweave/planweave/internal/normalize"
	"github.com/planweave/planweave/internal/types"
)

// MergeNote records one pair of entities collapsed during deduplication.
type MergeNote struct {
	// Kind is "feature" or "story".
	Kind string `json:"kind"`

	// Kept is the raw key of the surviving entity.
	Kept string `json:"kept"`

	// Dropped is the raw key of the entity merged into it.
	Dropped string `json:"dropped"`

	// Fuzzy is true when the pair matched via the fuzzy predicate.
	Fuzzy bool `json:"fuzzy,omitempty"`
}

// DedupeReport summarizes a self-deduplication run. Deduplication is never
// silent: callers surface these counts to the user.
type DedupeReport struct {
	FeaturesMerged int         `json:"features_merged"`
	StoriesMerged  int         `json:"stories_merged"`
	Merges         []MergeNote `json:"merges,omitempty"`
}

// Deduplicate collapses duplicate entities within a single bundle in place.
// Two features (or two stories within one feature) are duplicates when their
// keys are equivalent under exact normalization or the fuzzy predicate.
// The earlier entity survives; the later one is folded into it by field
// union. Returns a report of everything that was merged.
func (m *Matcher) Deduplicate(b *types.Bundle) DedupeReport {
	report := DedupeReport{}

	b.Features = m.dedupeFeatures(b.Features, &report)
	for i := range b.Features {
		b.Features[i].Stories = m.dedupeStories(b.Features[i].Stories, &report)
	}

	return report
}

func (m *Matcher) dedupeFeatures(features []types.Feature, report *DedupeReport) []types.Feature {
	out := make([]types.Feature, 0, len(features))

	for _, candidate := range features {
		merged := false
		for i := range out {
			ok, fuzzy := m.equivalent(out[i].Key, candidate.Key)
			if !ok {
				continue
			}
			log.Printf("[DEDUPE] merging feature %q into %q", candidate.Key, out[i].Key)
			m.mergeFeature(&out[i], &candidate, report)
			report.FeaturesMerged++
			report.Merges = append(report.Merges, MergeNote{
				Kind: "feature", Kept: out[i].Key, Dropped: candidate.Key, Fuzzy: fuzzy,
			})
			merged = true
			break
		}
		if !merged {
			out = append(out, candidate)
		}
	}
	return out
}

func (m *Matcher) dedupeStories(stories []types.Story, report *DedupeReport) []types.Story {
	out := make([]types.Story, 0, len(stories))

	for _, candidate := range stories {
		merged := false
		for i := range out {
			ok, fuzzy := m.equivalent(out[i].Key, candidate.Key)
			if !ok {
				continue
			}
			log.Printf("[DEDUPE] merging story %q into %q", candidate.Key, out[i].Key)
			mergeStory(&out[i], &candidate)
			report.StoriesMerged++
			report.Merges = append(report.Merges, MergeNote{
				Kind: "story", Kept: out[i].Key, Dropped: candidate.Key, Fuzzy: fuzzy,
			})
			merged = true
			break
		}
		if !merged {
			out = append(out, candidate)
		}
	}
	return out
}

// equivalent reports whether two raw keys identify the same entity, and
// whether the decision came from the fuzzy predicate.
func (m *Matcher) equivalent(a, b string) (ok, fuzzy bool) {
	if normalize.Key(a) == normalize.Key(b) {
		return true, false
	}
	if m.fuzzy != nil && m.fuzzy.Equivalent(a, b) {
		return true, true
	}
	return false, false
}

// mergeFeature folds src into dst by field union: prefer the longer
// non-empty scalar, union the list fields, take the higher confidence, and
// recursively deduplicate the combined stories. A feature is only draft if
// both halves were draft.
func (m *Matcher) mergeFeature(dst, src *types.Feature, report *DedupeReport) {
	dst.Title = preferLonger(dst.Title, src.Title)
	dst.Outcomes = unionStrings(dst.Outcomes, src.Outcomes)
	dst.Acceptance = unionStrings(dst.Acceptance, src.Acceptance)
	dst.Constraints = unionStrings(dst.Constraints, src.Constraints)
	if src.Confidence > dst.Confidence {
		dst.Confidence = src.Confidence
	}
	dst.Draft = dst.Draft && src.Draft
	dst.Stories = m.dedupeStories(append(dst.Stories, src.Stories...), report)
}

// mergeStory folds src into dst by field union.
func mergeStory(dst, src *types.Story) {
	dst.Title = preferLonger(dst.Title, src.Title)
	dst.Acceptance = unionStrings(dst.Acceptance, src.Acceptance)
	dst.Tags = unionStrings(dst.Tags, src.Tags)
	if src.Confidence > dst.Confidence {
		dst.Confidence = src.Confidence
	}
	dst.Draft = dst.Draft && src.Draft
}

// preferLonger keeps the longer of two strings, treating empty as absent.
func preferLonger(a, b string) string {
	if len(b) > len(a) {
		return b
	}
	return a
}

// unionStrings appends elements of b not already present in a, preserving
// first-seen order.
func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, s := range b {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
