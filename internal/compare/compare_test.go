package compare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planweave/planweave/internal/match"
	"github.com/planweave/planweave/internal/types"
)

func detector() *Detector {
	return NewDetector(match.Default())
}

func bundle(features ...types.Feature) *types.Bundle {
	return &types.Bundle{
		Version:  "v1.0.0",
		Features: features,
		Metadata: types.Metadata{Stage: types.StageDraft},
	}
}

func TestCompareIdenticalBundles(t *testing.T) {
	ref := bundle(types.Feature{Key: "checkout_flow", Title: "Checkout", Confidence: 0.8})
	cand := bundle(types.Feature{Key: "checkout_flow", Title: "Checkout", Confidence: 0.8})

	devs, err := detector().Compare(ref, cand)
	require.NoError(t, err)
	assert.Empty(t, devs)
}

func TestCompareRejectsMalformedBundle(t *testing.T) {
	ref := bundle(types.Feature{Key: "checkout", Confidence: 1.5})
	cand := bundle()

	devs, err := detector().Compare(ref, cand)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reference bundle is malformed")
	assert.Nil(t, devs, "no partial output on structural failure")
}

// An entity present only in one bundle yields exactly one missing-entity
// deviation on the other side: never both, never zero.
func TestCompareMissingEntitySymmetry(t *testing.T) {
	ref := bundle(
		types.Feature{Key: "checkout", Title: "Checkout", Confidence: 0.8},
		types.Feature{Key: "reporting", Title: "Reporting", Confidence: 0.6},
	)
	cand := bundle(
		types.Feature{Key: "checkout", Title: "Checkout", Confidence: 0.8},
		types.Feature{Key: "billing", Title: "Billing", Confidence: 0.7},
	)

	devs, err := detector().Compare(ref, cand)
	require.NoError(t, err)
	require.Len(t, devs, 2)

	var missingInCand, missingInRef int
	for _, d := range devs {
		switch d.Category {
		case CategoryMissingInCandidate:
			missingInCand++
			assert.Contains(t, d.Description, "reporting")
		case CategoryMissingInReference:
			missingInRef++
			assert.Contains(t, d.Description, "billing")
		}
	}
	assert.Equal(t, 1, missingInCand)
	assert.Equal(t, 1, missingInRef)
}

func TestCompareMissingEntitySeverity(t *testing.T) {
	ref := bundle(
		types.Feature{Key: "solid_feature", Title: "Solid", Confidence: 0.9},
		types.Feature{Key: "sketchy_idea", Title: "Sketchy", Confidence: 0.2, Draft: true},
	)
	cand := bundle()

	devs, err := detector().Compare(ref, cand)
	require.NoError(t, err)
	require.Len(t, devs, 2)

	// Sorted by severity descending: the non-draft HIGH comes first.
	assert.Equal(t, SeverityHigh, devs[0].Severity)
	assert.Contains(t, devs[0].Description, "solid_feature")
	assert.Equal(t, SeverityMedium, devs[1].Severity)
	assert.Contains(t, devs[1].Description, "sketchy_idea")
}

// Two features with the same normalized key and a confidence delta of 0.6
// must produce exactly one HIGH field-mismatch deviation for confidence.
func TestCompareConfidenceDeltaSeverity(t *testing.T) {
	ref := bundle(types.Feature{Key: "checkout", Title: "Checkout", Confidence: 0.9})
	cand := bundle(types.Feature{Key: "CHECKOUT", Title: "Checkout", Confidence: 0.3})

	devs, err := detector().Compare(ref, cand)
	require.NoError(t, err)
	require.Len(t, devs, 1)

	assert.Equal(t, SeverityHigh, devs[0].Severity)
	assert.Equal(t, CategoryFieldMismatch, devs[0].Category)
	assert.Equal(t, "features[0].confidence", devs[0].Path)
}

func TestCompareConfidenceDeltaTiers(t *testing.T) {
	tests := []struct {
		name     string
		ref      float64
		cand     float64
		expected Severity
	}{
		{"small delta is low", 0.80, 0.60, SeverityLow},
		{"medium delta", 0.80, 0.45, SeverityMedium},
		{"boundary 0.3 is medium", 0.80, 0.50, SeverityMedium},
		{"boundary 0.5 is high", 0.90, 0.40, SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := bundle(types.Feature{Key: "checkout", Title: "C", Confidence: tt.ref})
			cand := bundle(types.Feature{Key: "checkout", Title: "C", Confidence: tt.cand})

			devs, err := detector().Compare(ref, cand)
			require.NoError(t, err)
			require.Len(t, devs, 1)
			assert.Equal(t, tt.expected, devs[0].Severity)
		})
	}
}

func TestCompareTitleMismatch(t *testing.T) {
	ref := bundle(types.Feature{Key: "checkout", Title: "Checkout", Confidence: 0.5})
	cand := bundle(types.Feature{Key: "checkout", Title: "Checkout v2", Confidence: 0.5})

	devs, err := detector().Compare(ref, cand)
	require.NoError(t, err)
	require.Len(t, devs, 1)
	assert.Equal(t, SeverityMedium, devs[0].Severity)
	assert.Equal(t, "features[0].title", devs[0].Path)
}

func TestCompareListFieldsOrderInsensitive(t *testing.T) {
	ref := bundle(types.Feature{
		Key: "checkout", Title: "C", Confidence: 0.5,
		Outcomes: []string{"faster", "cheaper"},
	})
	cand := bundle(types.Feature{
		Key: "checkout", Title: "C", Confidence: 0.5,
		Outcomes: []string{"cheaper", "faster"},
	})

	devs, err := detector().Compare(ref, cand)
	require.NoError(t, err)
	assert.Empty(t, devs, "reordered list contents are not a deviation")

	cand.Features[0].Outcomes = []string{"cheaper"}
	devs, err = detector().Compare(ref, cand)
	require.NoError(t, err)
	require.Len(t, devs, 1)
	assert.Equal(t, "features[0].outcomes", devs[0].Path)
	assert.Equal(t, SeverityMedium, devs[0].Severity)
}

func TestCompareStoryAcceptanceSeverity(t *testing.T) {
	mk := func(draft bool) (*types.Bundle, *types.Bundle) {
		ref := bundle(types.Feature{
			Key: "checkout", Title: "C", Confidence: 0.5, Draft: draft,
			Stories: []types.Story{
				{Key: "guest", Title: "Guest", Acceptance: []string{"no login"}, Confidence: 0.5, Draft: draft},
			},
		})
		cand := bundle(types.Feature{
			Key: "checkout", Title: "C", Confidence: 0.5, Draft: draft,
			Stories: []types.Story{
				{Key: "guest", Title: "Guest", Acceptance: []string{"login required"}, Confidence: 0.5, Draft: draft},
			},
		})
		return ref, cand
	}

	// Non-draft story: acceptance drift is HIGH.
	ref, cand := mk(false)
	devs, err := detector().Compare(ref, cand)
	require.NoError(t, err)
	require.Len(t, devs, 1)
	assert.Equal(t, SeverityHigh, devs[0].Severity)
	assert.Equal(t, "features[0].stories[0].acceptance", devs[0].Path)

	// Draft story: same drift is MEDIUM.
	ref, cand = mk(true)
	devs, err = detector().Compare(ref, cand)
	require.NoError(t, err)
	require.Len(t, devs, 1)
	assert.Equal(t, SeverityMedium, devs[0].Severity)
}

func TestCompareStructuralDuplicateKeys(t *testing.T) {
	ref := bundle(
		types.Feature{Key: "041_checkout", Title: "A", Confidence: 0.5},
		types.Feature{Key: "checkout", Title: "B", Confidence: 0.5},
	)
	cand := bundle(types.Feature{Key: "checkout", Title: "A", Confidence: 0.5})

	devs, err := detector().Compare(ref, cand)
	require.NoError(t, err)

	var structural []Deviation
	for _, d := range devs {
		if d.Category == CategoryStructural {
			structural = append(structural, d)
		}
	}
	require.Len(t, structural, 1)
	assert.Equal(t, SeverityHigh, structural[0].Severity)
	assert.Contains(t, structural[0].Description, "share normalized key")
}

func TestCompareOrphanedStoryIsStructural(t *testing.T) {
	ref := bundle(types.Feature{
		Key: "checkout", Title: "C", Confidence: 0.5, Draft: true,
		Stories: []types.Story{
			{Key: "guest", Title: "Guest", Confidence: 0.5, Draft: false},
		},
	})
	cand := bundle(types.Feature{
		Key: "checkout", Title: "C", Confidence: 0.5, Draft: true,
		Stories: []types.Story{
			{Key: "guest", Title: "Guest", Confidence: 0.5, Draft: false},
		},
	})

	devs, err := detector().Compare(ref, cand)
	require.NoError(t, err)

	var orphaned int
	for _, d := range devs {
		if d.Category == CategoryStructural {
			orphaned++
			assert.Contains(t, d.Description, "orphaned under draft feature")
			assert.Equal(t, SeverityHigh, d.Severity)
		}
	}
	assert.Equal(t, 2, orphaned, "one structural deviation per side")
}

// Repeated runs on unchanged inputs yield identical lists: same order, same
// content, same identifiers.
func TestCompareDeterministic(t *testing.T) {
	ref := bundle(
		types.Feature{Key: "alpha", Title: "Alpha", Confidence: 0.9},
		types.Feature{Key: "beta", Title: "Beta", Confidence: 0.2},
		types.Feature{Key: "gamma", Title: "Gamma", Confidence: 0.5},
	)
	cand := bundle(
		types.Feature{Key: "alpha", Title: "Alpha renamed", Confidence: 0.3},
		types.Feature{Key: "delta", Title: "Delta", Confidence: 0.5},
	)

	first, err := detector().Compare(ref, cand)
	require.NoError(t, err)
	second, err := detector().Compare(ref, cand)
	require.NoError(t, err)

	require.Equal(t, first, second)

	// Severity never increases down the list, and IDs are sequential.
	for i := range first {
		assert.Equal(t, first[i].Severity.String(), first[i].SeverityLabel)
		if i > 0 {
			assert.GreaterOrEqual(t, int(first[i-1].Severity), int(first[i].Severity))
		}
	}
	assert.Equal(t, "DEV-001", first[0].ID)
}
