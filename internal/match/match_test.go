package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planweave/planweave/internal/types"
)

func feat(key string) types.Feature {
	return types.Feature{Key: key, Title: key, Confidence: 0.5}
}

func TestMatchFeaturesExact(t *testing.T) {
	m := Default()

	setA := []types.Feature{feat("041_ide_integration"), feat("auth_flow")}
	setB := []types.Feature{feat("AUTH-FLOW"), feat("ide-integration")}

	res := m.MatchFeatures(setA, setB)

	require.Len(t, res.Pairs, 2)
	assert.Empty(t, res.OnlyA)
	assert.Empty(t, res.OnlyB)

	// Pairs come out in A-side input order.
	assert.Equal(t, "041_ide_integration", res.Pairs[0].A.Key)
	assert.Equal(t, "ide-integration", res.Pairs[0].B.Key)
	assert.False(t, res.Pairs[0].Fuzzy)
	assert.Equal(t, "auth_flow", res.Pairs[1].A.Key)
	assert.Equal(t, "AUTH-FLOW", res.Pairs[1].B.Key)
}

func TestMatchFeaturesFuzzyFallback(t *testing.T) {
	m := Default()

	setA := []types.Feature{feat("FEATURE-IDEINTEGRATION")}
	setB := []types.Feature{feat("041_IDE_INTEGRATION_SYSTEM")}

	res := m.MatchFeatures(setA, setB)

	require.Len(t, res.Pairs, 1)
	assert.True(t, res.Pairs[0].Fuzzy)
	assert.Empty(t, res.OnlyA)
	assert.Empty(t, res.OnlyB)
}

func TestMatchFeaturesUnmatched(t *testing.T) {
	m := Default()

	setA := []types.Feature{feat("alpha_reporting"), feat("beta_exports")}
	setB := []types.Feature{feat("beta_exports"), feat("gamma_imports")}

	res := m.MatchFeatures(setA, setB)

	require.Len(t, res.Pairs, 1)
	assert.Equal(t, "beta_exports", res.Pairs[0].A.Key)

	require.Len(t, res.OnlyA, 1)
	assert.Equal(t, "alpha_reporting", res.OnlyA[0].Key)
	require.Len(t, res.OnlyB, 1)
	assert.Equal(t, "gamma_imports", res.OnlyB[0].Key)
}

// An entity participates in at most one pair; ties resolve to the first
// candidate in input order.
func TestMatchFeaturesFirstMatchWins(t *testing.T) {
	m := Default()

	setA := []types.Feature{feat("payment_flow")}
	setB := []types.Feature{feat("payment-flow"), feat("PAYMENT_FLOW")}

	res := m.MatchFeatures(setA, setB)

	require.Len(t, res.Pairs, 1)
	assert.Equal(t, "payment-flow", res.Pairs[0].B.Key)
	require.Len(t, res.OnlyB, 1)
	assert.Equal(t, "PAYMENT_FLOW", res.OnlyB[0].Key)
}

func TestMatchFeaturesDeterministic(t *testing.T) {
	m := Default()

	setA := []types.Feature{feat("a_one"), feat("b_two"), feat("c_three")}
	setB := []types.Feature{feat("c-three"), feat("a-one")}

	first := m.MatchFeatures(setA, setB)
	second := m.MatchFeatures(setA, setB)

	require.Equal(t, len(first.Pairs), len(second.Pairs))
	for i := range first.Pairs {
		assert.Equal(t, first.Pairs[i].A.Key, second.Pairs[i].A.Key)
		assert.Equal(t, first.Pairs[i].B.Key, second.Pairs[i].B.Key)
	}
}

func TestMatchStories(t *testing.T) {
	m := Default()

	setA := []types.Story{
		{Key: "guest_checkout", Confidence: 0.5},
		{Key: "saved_cards", Confidence: 0.5},
	}
	setB := []types.Story{
		{Key: "GUEST-CHECKOUT", Confidence: 0.5},
	}

	res := m.MatchStories(setA, setB)

	require.Len(t, res.Pairs, 1)
	assert.Equal(t, "guest_checkout", res.Pairs[0].A.Key)
	require.Len(t, res.OnlyA, 1)
	assert.Equal(t, "saved_cards", res.OnlyA[0].Key)
	assert.Empty(t, res.OnlyB)
}

func TestMatcherWithoutFuzzy(t *testing.T) {
	m := New(nil)

	setA := []types.Feature{feat("FEATURE-IDEINTEGRATION")}
	setB := []types.Feature{feat("041_IDE_INTEGRATION_SYSTEM")}

	res := m.MatchFeatures(setA, setB)
	assert.Empty(t, res.Pairs)
	assert.Len(t, res.OnlyA, 1)
	assert.Len(t, res.OnlyB, 1)
}
