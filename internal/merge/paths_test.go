package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planweave/planweave/internal/types"
)

func pathBundle() *types.Bundle {
	return &types.Bundle{
		Version: "v1.0.0",
		Idea:    &types.IdeaBlock{Title: "Plan", Context: "ctx"},
		Features: []types.Feature{
			{
				Key: "041_checkout", Title: "Checkout", Confidence: 0.5,
				Stories: []types.Story{
					{Key: "guest", Title: "Guest", Confidence: 0.5},
				},
			},
		},
		Metadata: types.Metadata{Stage: types.StageDraft},
	}
}

func TestSetPathLeaves(t *testing.T) {
	b := pathBundle()

	require.NoError(t, SetPath(b, "idea.title", "Plan v2"))
	assert.Equal(t, "Plan v2", b.Idea.Title)

	require.NoError(t, SetPath(b, "metadata.stage", types.StageRefining))
	assert.Equal(t, types.StageRefining, b.Metadata.Stage)

	// Feature segments match by normalized key, so "checkout" addresses
	// the feature stored as "041_checkout".
	require.NoError(t, SetPath(b, "features.checkout.confidence", 0.9))
	assert.Equal(t, 0.9, b.Features[0].Confidence)

	require.NoError(t, SetPath(b, "features.checkout.outcomes", []string{"faster"}))
	assert.Equal(t, []string{"faster"}, b.Features[0].Outcomes)

	require.NoError(t, SetPath(b, "features.checkout.stories.GUEST.title", "Guest checkout"))
	assert.Equal(t, "Guest checkout", b.Features[0].Stories[0].Title)
}

func TestSetPathEntities(t *testing.T) {
	b := pathBundle()

	require.NoError(t, SetPath(b, "features.billing", &types.Feature{Key: "billing", Title: "Billing", Confidence: 0.4}))
	require.Len(t, b.Features, 2)

	require.NoError(t, SetPath(b, "features.billing", &types.Feature{Key: "billing", Title: "Billing v2", Confidence: 0.4}))
	require.Len(t, b.Features, 2, "replacing an existing entity does not append")
	assert.Equal(t, "Billing v2", b.Features[1].Title)

	var none *types.Feature
	require.NoError(t, SetPath(b, "features.billing", none))
	require.Len(t, b.Features, 1)

	require.NoError(t, SetPath(b, "features.checkout.stories.guest", nil))
	assert.Empty(t, b.Features[0].Stories)
}

func TestSetPathErrors(t *testing.T) {
	b := pathBundle()

	assert.Error(t, SetPath(b, "bogus.path", "x"))
	assert.Error(t, SetPath(b, "features.checkout.bogus", "x"))
	assert.Error(t, SetPath(b, "features.nosuch.title", "x"))
	assert.Error(t, SetPath(b, "features.checkout.confidence", "not a float"))
	assert.Error(t, SetPath(b, "idea.title", 42))
}

func TestApplyResolution(t *testing.T) {
	b := pathBundle()
	c := &Conflict{Path: "features.checkout.confidence", Base: 0.5, Ours: 0.8, Theirs: 0.6, Deferred: true}

	require.NoError(t, ApplyResolution(b, c, 0.7))
	assert.Equal(t, 0.7, b.Features[0].Confidence)
	assert.False(t, c.Deferred)
	assert.Equal(t, "manual", c.Resolution)
	assert.Equal(t, 0.7, c.ResolvedValue)
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue("features.checkout.confidence", "0.75")
	require.NoError(t, err)
	assert.Equal(t, 0.75, v)

	_, err = ParseValue("features.checkout.confidence", "high")
	assert.Error(t, err)

	v, err = ParseValue("features.checkout.draft", "true")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = ParseValue("features.checkout.outcomes", "faster, cheaper , ")
	require.NoError(t, err)
	assert.Equal(t, []string{"faster", "cheaper"}, v)

	v, err = ParseValue("features.checkout.title", "Checkout v2")
	require.NoError(t, err)
	assert.Equal(t, "Checkout v2", v)
}
